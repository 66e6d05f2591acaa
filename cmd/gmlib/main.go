package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/52poke/gmlib/internal/cache"
	"github.com/52poke/gmlib/internal/config"
	"github.com/52poke/gmlib/internal/dom"
	"github.com/52poke/gmlib/internal/fetch"
	"github.com/52poke/gmlib/internal/gmlib"
	"github.com/52poke/gmlib/internal/storage"
	"github.com/rs/zerolog"
)

const usage = `usage: gmlib [flags] <command> [args]

commands:
  get   <url>             print the body of url
  json  <url>             print the JSON document at url
  query <url> <selector>  print the text of every node matching selector
  clear [prefix]          drop cached entries whose key starts with prefix

flags:
`

func main() {
	os.Exit(realMain(os.Args[1:]))
}

// realMain is the single exit point; deferred cleanup runs before the
// status is returned to main.
func realMain(argv []string) int {
	fs := flag.NewFlagSet("gmlib", flag.ContinueOnError)
	configPath := fs.String("config", "", "config file")
	storageType := fs.String("storage", "", "storage type: local, script or s3")
	ttl := fs.Int("ttl", 0, "cache ttl in seconds")
	quiet := fs.Bool("quiet", false, "suppress debug output")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath, *storageType, *ttl, *quiet)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gmlib:", err)
		return 1
	}
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger, fs.Args()); err != nil {
		var se *fetch.StatusError
		if errors.As(err, &se) {
			logger.Error().Int("status", se.Code).Str("url", se.URL).Msg("request failed")
		} else {
			fmt.Fprintln(os.Stderr, "gmlib:", err)
		}
		return 1
	}
	return 0
}

func loadConfig(path, storageType string, ttl int, quiet bool) (config.Config, error) {
	cfg, err := config.Read(path)
	if err != nil {
		return cfg, err
	}
	if storageType != "" {
		cfg.Storage = storageType
	}
	if ttl > 0 {
		cfg.TTLSeconds = ttl
	}
	if quiet {
		cfg.Quiet = true
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger, args []string) error {
	host, err := newHost(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if host.Redis != nil {
		defer host.Redis.Close()
	}
	kit := gmlib.New(host)
	c, err := kit.Cache(cfg.Storage, cfg.TTLSeconds, cfg.Quiet)
	if err != nil {
		return err
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "get":
		if len(args) != 1 {
			return errors.New("get takes one url")
		}
		url := args[0]
		body, err := cache.Do(ctx, c, "get:"+url, func(ctx context.Context) (string, error) {
			return kit.HTTP.Get(ctx, url, nil)
		})
		if err != nil {
			return err
		}
		fmt.Println(body)
	case "json":
		if len(args) != 1 {
			return errors.New("json takes one url")
		}
		url := args[0]
		doc, err := cache.Do(ctx, c, "json:"+url, func(ctx context.Context) (any, error) {
			var v any
			err := kit.HTTP.GetJSON(ctx, url, &v)
			return v, err
		})
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case "query":
		if len(args) != 2 {
			return errors.New("query takes a url and a selector")
		}
		url, selector := args[0], args[1]
		if err := dom.Compile(selector); err != nil {
			return fmt.Errorf("selector %q: %w", selector, err)
		}
		texts, err := cache.Do(ctx, c, "query:"+selector+"@"+url, func(ctx context.Context) ([]string, error) {
			doc, err := kit.HTTP.GetDocument(ctx, url)
			if err != nil {
				return nil, err
			}
			return dom.Text(kit.Query(doc)(selector)), nil
		})
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(texts, "\n"))
	case "clear":
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}
		return c.Clear(ctx, prefix)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func newHost(ctx context.Context, cfg config.Config, logger zerolog.Logger) (gmlib.Host, error) {
	host := gmlib.Host{
		HTTP: fetch.NewClient(
			fetch.WithTimeout(time.Duration(cfg.HTTPTimeoutSeconds)*time.Second),
			fetch.WithUserAgent(cfg.UserAgent),
		),
		Logger: &logger,
	}
	switch cfg.Storage {
	case storage.TypeLocal:
		host.LocalDir = cfg.LocalDir
	case storage.TypeScript:
		host.Redis = storage.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case storage.TypeS3:
		client, err := storage.NewS3Client(ctx, storage.S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return host, err
		}
		host.S3 = client
		host.S3Bucket = cfg.S3Bucket
	}
	return host, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}
