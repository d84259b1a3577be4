package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdslog "log/slog"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/imgload"
	"github.com/unkn0wn-root/imgload/codec"
	asynchook "github.com/unkn0wn-root/imgload/hooks/async"
	"github.com/unkn0wn-root/imgload/hooks/prom"
	logruslog "github.com/unkn0wn-root/imgload/log/logrus"
	sloglog "github.com/unkn0wn-root/imgload/log/slog"
	zaplog "github.com/unkn0wn-root/imgload/log/zap"
	zerologlog "github.com/unkn0wn-root/imgload/log/zerolog"
	"github.com/unkn0wn-root/imgload/memcache"
	ristrettocache "github.com/unkn0wn-root/imgload/memcache/ristretto"
	"github.com/unkn0wn-root/imgload/sloghooks"
	"github.com/unkn0wn-root/imgload/store"
	badgerstore "github.com/unkn0wn-root/imgload/store/badger"
	bigcachestore "github.com/unkn0wn-root/imgload/store/bigcache"
	fsstore "github.com/unkn0wn-root/imgload/store/fs"
	miniostore "github.com/unkn0wn-root/imgload/store/minio"
	redisstore "github.com/unkn0wn-root/imgload/store/redis"
	"github.com/unkn0wn-root/imgload/transport"
)

// Runtime is a Loader with the pieces built around it.
type Runtime struct {
	Loader imgload.Loader
	// Store is the store handed to the Loader; Framed is set when it is framed.
	Store    store.Store
	Framed   *store.Framed
	Registry *prometheus.Registry
	Metrics  *prom.Hooks
	Logger   imgload.Logger

	closers []func()
}

// Close closes the Loader (and with it the store), then the hooks and the
// logger.
func (r *Runtime) Close(ctx context.Context) error {
	var err error
	if r.Loader != nil {
		err = r.Loader.Close(ctx)
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
	return err
}

// Build wires a Loader from cfg. Logs go to stderr; nil means os.Stderr.
func Build(ctx context.Context, cfg *Config, stderr io.Writer) (*Runtime, error) {
	if stderr == nil {
		stderr = os.Stderr
	}
	rt := &Runtime{}

	logger, closeLog, err := buildLogger(cfg.Logging, stderr)
	if err != nil {
		return nil, err
	}
	rt.Logger = logger
	rt.closers = append(rt.closers, closeLog)

	mem, closeMem, err := buildMemory(cfg.Memory)
	if err != nil {
		rt.abort()
		return nil, err
	}
	rt.closers = append(rt.closers, closeMem)

	st, err := buildStore(ctx, cfg.Store)
	if err != nil {
		rt.abort()
		return nil, err
	}
	rt.Store = st
	if cfg.Store.Framed {
		c, err := codec.ByName[store.Meta](cfg.Store.Codec)
		if err != nil {
			_ = st.Close(ctx)
			rt.abort()
			return nil, fmt.Errorf("config: %w", err)
		}
		rt.Framed = store.NewFramed(st, c)
		rt.Store = rt.Framed
	}

	rt.Registry = prometheus.NewRegistry()
	rt.Metrics = prom.New(rt.Registry)
	hooks := imgload.MultiHooks{rt.Metrics}
	if cfg.Logging.Events {
		every := cfg.Logging.SampleEvery
		hooks = append(hooks, sloghooks.New(eventLogger(cfg.Logging, stderr), sloghooks.Options{
			HitEvery:     every,
			FetchEvery:   every,
			CorruptEvery: 1,
		}))
	}
	var h imgload.Hooks = hooks
	if cfg.Metrics.AsyncWorkers > 0 {
		ah := asynchook.New(hooks, cfg.Metrics.AsyncWorkers, cfg.Metrics.AsyncQueue)
		rt.closers = append(rt.closers, ah.Close)
		h = ah
	}

	fetcher := transport.NewHTTP(transport.HTTPConfig{
		Timeout:      cfg.Transport.Timeout,
		MaxBytes:     int64(cfg.Transport.MaxBytes),
		MaxRedirects: cfg.Transport.MaxRedirects,
		UserAgent:    cfg.Transport.UserAgent,
		RateLimit:    cfg.Transport.RateLimit,
		Burst:        cfg.Transport.Burst,
	})

	l, err := imgload.New(imgload.Options{
		Transport:      fetcher,
		Store:          rt.Store,
		Memory:         mem,
		Logger:         logger,
		Hooks:          h,
		MaxConcurrency: cfg.Loader.MaxConcurrency,
		LookupWorkers:  cfg.Loader.LookupWorkers,
		MaxWidth:       cfg.Loader.MaxWidth,
		MaxHeight:      cfg.Loader.MaxHeight,
		MaxPixels:      cfg.Loader.MaxPixels,
		FetchTimeout:   cfg.Loader.FetchTimeout,
		LookupTimeout:  cfg.Loader.LookupTimeout,
		GenRetention:   cfg.Loader.GenRetention,
	})
	if err != nil {
		_ = rt.Store.Close(ctx)
		rt.abort()
		return nil, err
	}
	rt.Loader = l
	return rt, nil
}

func (r *Runtime) abort() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

func nop() {}

func buildMemory(cfg MemoryConfig) (memcache.Cache, func(), error) {
	switch cfg.Kind {
	case "", "tiered":
		hot := cfg.HotItems
		if hot == 0 {
			hot = memcache.DefaultHotItems
		}
		cold := cfg.ColdItems
		if cold == 0 {
			cold = memcache.DefaultColdItems
		}
		return memcache.NewTiered(hot, cold), nop, nil
	case "bytes":
		return memcache.NewBytes(int64(cfg.Budget)), nop, nil
	case "ristretto":
		c, err := ristrettocache.New(ristrettocache.DefaultConfig(int64(cfg.Budget)))
		if err != nil {
			return nil, nil, fmt.Errorf("config: memory: %w", err)
		}
		return c, c.Close, nil
	default:
		return nil, nil, fmt.Errorf("config: unknown memory kind %q", cfg.Kind)
	}
}

func buildStore(ctx context.Context, cfg StoreConfig) (store.Store, error) {
	switch cfg.Kind {
	case "", "none":
		return store.Nop{}, nil
	case "memory":
		return store.NewMemory(), nil
	case "fs":
		s, err := fsstore.New(fsstore.Config{Dir: cfg.FS.Dir})
		if err != nil {
			return nil, fmt.Errorf("config: fs store: %w", err)
		}
		return s, nil
	case "badger":
		s, err := badgerstore.Open(badgerstore.Config{
			Dir:       cfg.Badger.Dir,
			InMemory:  cfg.Badger.InMemory,
			TTL:       cfg.TTL,
			Namespace: cfg.Namespace,
		})
		if err != nil {
			return nil, fmt.Errorf("config: badger store: %w", err)
		}
		return s, nil
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s, err := redisstore.New(redisstore.Config{
			Client:      rdb,
			Namespace:   cfg.Namespace,
			TTL:         cfg.TTL,
			CloseClient: true,
		})
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("config: redis store: %w", err)
		}
		return s, nil
	case "bigcache":
		s, err := bigcachestore.New(ctx, bigcachestore.Config{
			LifeWindow:         cfg.BigCache.LifeWindow,
			MaxEntrySize:       int(cfg.BigCache.MaxEntrySize),
			HardMaxCacheSizeMB: int(cfg.BigCache.MaxSize >> 20),
		})
		if err != nil {
			return nil, fmt.Errorf("config: bigcache store: %w", err)
		}
		return s, nil
	case "minio":
		client, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
			Secure: cfg.Minio.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("config: minio client: %w", err)
		}
		s, err := miniostore.New(client, cfg.Minio.Bucket, cfg.Minio.Prefix)
		if err != nil {
			return nil, fmt.Errorf("config: minio store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("config: unknown store kind %q", cfg.Kind)
	}
}

func buildLogger(cfg LoggingConfig, w io.Writer) (imgload.Logger, func(), error) {
	switch cfg.Backend {
	case "", "none":
		return imgload.NopLogger{}, nop, nil

	case "zap":
		lvl, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("config: zap level: %w", err)
		}
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		if cfg.Format == "text" {
			enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		}
		zl := zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl))
		return zaplog.ZapLogger{L: zl}, func() { _ = zl.Sync() }, nil

	case "logrus":
		lvl, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("config: logrus level: %w", err)
		}
		lg := logrus.New()
		lg.SetOutput(w)
		lg.SetLevel(lvl)
		if cfg.Format == "json" {
			lg.SetFormatter(&logrus.JSONFormatter{})
		}
		return logruslog.LogrusLogger{E: logrus.NewEntry(lg)}, nop, nil

	case "slog":
		return sloglog.Logger{L: newSlog(cfg, w)}, nop, nil

	case "zerolog":
		lvl, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("config: zerolog level: %w", err)
		}
		out := w
		if cfg.Format == "text" {
			out = zerolog.ConsoleWriter{Out: w}
		}
		zl := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
		return zerologlog.Logger{L: zl}, nop, nil

	default:
		return nil, nil, errors.New("config: unknown logging backend " + cfg.Backend)
	}
}

func slogLevel(s string) stdslog.Level {
	var l stdslog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return stdslog.LevelInfo
	}
	return l
}

func newSlog(cfg LoggingConfig, w io.Writer) *stdslog.Logger {
	opts := &stdslog.HandlerOptions{Level: slogLevel(cfg.Level)}
	if cfg.Format == "json" {
		return stdslog.New(stdslog.NewJSONHandler(w, opts))
	}
	return stdslog.New(stdslog.NewTextHandler(w, opts))
}

// eventLogger backs sloghooks. Most events are emitted at debug, so the
// handler accepts debug regardless of the main logger's level.
func eventLogger(cfg LoggingConfig, w io.Writer) *stdslog.Logger {
	cfg.Level = "debug"
	return newSlog(cfg, w)
}
