package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/52poke/gmlib/internal/storage"
	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	Namespace         = "gmlib|"
	DefaultTTLSeconds = 172800
	DefaultTTL        = DefaultTTLSeconds * time.Second
)

// Producer computes the value for a missing or expired key.
type Producer[T any] func(ctx context.Context) (T, error)

type Cache struct {
	backend storage.Backend
	ttl     time.Duration
	quiet   bool
	clock   clock.Clock
	log     zerolog.Logger
	sf      *singleflight.Group
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithTTLSeconds(seconds int) Option {
	return WithTTL(time.Duration(seconds) * time.Second)
}

// Quiet suppresses debug and info output for this instance only.
func Quiet(quiet bool) Option {
	return func(c *Cache) { c.quiet = quiet }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

func WithClock(clk clock.Clock) Option {
	return func(c *Cache) { c.clock = clk }
}

// WithSingleFlight collapses concurrent misses on the same key into one
// producer call. The shared call is detached from the first caller's
// cancellation; each caller still stops waiting when its own ctx is done.
func WithSingleFlight() Option {
	return func(c *Cache) { c.sf = &singleflight.Group{} }
}

func New(backend storage.Backend, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		ttl:     DefaultTTL,
		clock:   clock.New(),
		log:     zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With().
		Str("ns", strings.TrimSuffix(Namespace, "|")).
		Str("storage", storage.TypeOf(backend)).
		Logger()
	if c.quiet {
		c.log = c.log.Level(maxLevel(c.log.GetLevel(), zerolog.WarnLevel))
	}
	return c
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Do returns the cached value for key when it is fresh, and otherwise runs
// producer and stores its result. Producer and backend errors are returned
// unchanged. A result that encodes to JSON null is returned but never
// stored.
func Do[T any](ctx context.Context, c *Cache, key string, producer Producer[T]) (T, error) {
	var zero T
	nsKey := Namespace + key

	v, ok, err := lookup[T](ctx, c, nsKey)
	if err != nil {
		return zero, err
	}
	if ok {
		return v, nil
	}

	if c.sf == nil {
		return produce(ctx, c, nsKey, producer)
	}

	shared := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(nsKey, func() (any, error) {
		v, err := produce(shared, c, nsKey, producer)
		return v, err
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, res.Err
	}
	if res.Val == nil {
		return zero, nil
	}
	v, ok = res.Val.(T)
	if !ok {
		// another caller used the same key with a different type
		return produce(ctx, c, nsKey, producer)
	}
	if res.Shared {
		c.log.Debug().Str("key", key).Msg("shared in-flight result")
	}
	return v, nil
}

func lookup[T any](ctx context.Context, c *Cache, nsKey string) (T, bool, error) {
	var zero T
	raw, err := c.backend.Get(ctx, nsKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.log.Debug().Str("key", nsKey).Msg("miss")
			return zero, false, nil
		}
		return zero, false, err
	}

	e, err := decodeEntry(raw)
	if err != nil {
		c.log.Warn().Err(err).Str("key", nsKey).Msg("ignoring malformed entry")
		return zero, false, nil
	}

	now := c.clock.Now()
	if !e.fresh(now, c.ttl) {
		c.log.Debug().Str("key", nsKey).Time("stored", e.storedAt()).Msg("expired")
		return zero, false, nil
	}

	var v T
	if err := json.Unmarshal(e.Value, &v); err != nil {
		c.log.Warn().Err(err).Str("key", nsKey).Msg("stored value does not fit requested type")
		return zero, false, nil
	}
	c.log.Debug().Str("key", nsKey).Msg("hit")
	return v, true, nil
}

func produce[T any](ctx context.Context, c *Cache, nsKey string, producer Producer[T]) (T, error) {
	var zero T
	v, err := producer(ctx)
	if err != nil {
		return zero, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return zero, err
	}
	if isNull(data) {
		c.log.Warn().Str("key", nsKey).Msg("producer returned null, not caching")
		return v, nil
	}

	raw, err := encodeEntry(c.clock.Now(), data)
	if err != nil {
		return zero, err
	}
	if err := c.backend.Set(ctx, nsKey, raw); err != nil {
		return zero, err
	}
	c.log.Debug().Str("key", nsKey).Msg("stored")
	return v, nil
}

// Clear deletes every entry whose key starts with prefix, fresh or not.
// An empty prefix clears the whole namespace.
func (c *Cache) Clear(ctx context.Context, prefix string) error {
	filter := Namespace + prefix
	keys, err := c.backend.Keys(ctx)
	if err != nil {
		return err
	}

	removed := 0
	for _, k := range keys {
		if !strings.HasPrefix(k, filter) {
			continue
		}
		if err := c.backend.Delete(ctx, k); err != nil {
			return err
		}
		removed++
	}
	c.log.Debug().Str("prefix", filter).Int("removed", removed).Msg("cleared")
	return nil
}

func maxLevel(a, b zerolog.Level) zerolog.Level {
	if a > b {
		return a
	}
	return b
}
