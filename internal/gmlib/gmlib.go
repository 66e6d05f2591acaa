// Package gmlib bundles the DOM query helper, the HTTP client and the TTL
// cache factory behind one entry point.
package gmlib

import (
	"os"

	"github.com/52poke/gmlib/internal/cache"
	"github.com/52poke/gmlib/internal/dom"
	"github.com/52poke/gmlib/internal/fetch"
	"github.com/52poke/gmlib/internal/storage"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// Host holds what the kit is built on. A nil HTTP client or Logger is
// replaced by a default; the default logger writes to stderr.
type Host struct {
	storage.Host
	HTTP   *fetch.Client
	Logger *zerolog.Logger
}

type Kit struct {
	HTTP *fetch.Client

	host   storage.Host
	logger zerolog.Logger
}

func New(host Host) *Kit {
	if host.HTTP == nil {
		host.HTTP = fetch.NewClient()
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if host.Logger != nil {
		logger = *host.Logger
	}
	return &Kit{HTTP: host.HTTP, host: host.Host, logger: logger}
}

func (k *Kit) Query(doc *goquery.Document) dom.Query {
	return dom.NewQuery(doc)
}

// Cache binds a new cache instance to the named storage type. ttlSeconds
// <= 0 selects the two day default.
func (k *Kit) Cache(storageType string, ttlSeconds int, quiet bool, opts ...cache.Option) (*cache.Cache, error) {
	backend, err := storage.Select(storageType, k.host)
	if err != nil {
		return nil, err
	}
	base := []cache.Option{
		cache.WithLogger(k.logger),
		cache.WithTTLSeconds(ttlSeconds),
		cache.Quiet(quiet),
	}
	return cache.New(backend, append(base, opts...)...), nil
}
