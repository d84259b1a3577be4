// Package config loads the imgload CLI configuration from a file and
// IMGLOAD_* environment variables and builds a Loader from it.
//
// Precedence (highest to lowest):
//  1. Environment variables (IMGLOAD_STORE_KIND=badger, IMGLOAD_MEMORY_BUDGET=64MiB)
//  2. Configuration file (YAML, TOML or JSON)
//  3. Default values
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const EnvPrefix = "IMGLOAD"

type Config struct {
	Loader    LoaderConfig    `mapstructure:"loader"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Store     StoreConfig     `mapstructure:"store"`
	Transport TransportConfig `mapstructure:"transport"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type LoaderConfig struct {
	MaxConcurrency int           `mapstructure:"max_concurrency" validate:"gte=1"`
	LookupWorkers  int           `mapstructure:"lookup_workers" validate:"gte=1"`
	MaxWidth       int           `mapstructure:"max_width" validate:"gte=1"`
	MaxHeight      int           `mapstructure:"max_height" validate:"gte=1"`
	MaxPixels      int           `mapstructure:"max_pixels"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout" validate:"gte=0"`
	LookupTimeout  time.Duration `mapstructure:"lookup_timeout" validate:"gte=0"`
	// GenRetention must exceed the longest fetch or an invalidation can be
	// forgotten while a stale fetch is still running.
	GenRetention time.Duration `mapstructure:"gen_retention" validate:"gte=0"`
}

type MemoryConfig struct {
	// Kind selects the memory cache: tiered (item counts), bytes (FIFO byte
	// budget) or ristretto (LFU byte budget).
	Kind      string   `mapstructure:"kind" validate:"oneof=tiered bytes ristretto"`
	HotItems  int      `mapstructure:"hot_items" validate:"gte=0"`
	ColdItems int      `mapstructure:"cold_items" validate:"gte=0"`
	Budget    ByteSize `mapstructure:"budget"`
}

type StoreConfig struct {
	Kind string `mapstructure:"kind" validate:"oneof=none memory fs badger redis bigcache minio"`
	// Framed wraps the backend with a checksummed metadata header.
	Framed    bool          `mapstructure:"framed"`
	Codec     string        `mapstructure:"codec" validate:"omitempty,oneof=msgpack cbor json"`
	Namespace string        `mapstructure:"namespace"`
	TTL       time.Duration `mapstructure:"ttl" validate:"gte=0"`

	FS       FSConfig       `mapstructure:"fs"`
	Badger   BadgerConfig   `mapstructure:"badger"`
	Redis    RedisConfig    `mapstructure:"redis"`
	BigCache BigCacheConfig `mapstructure:"bigcache"`
	Minio    MinioConfig    `mapstructure:"minio"`
}

type FSConfig struct {
	Dir string `mapstructure:"dir"`
}

type BadgerConfig struct {
	Dir      string `mapstructure:"dir"`
	InMemory bool   `mapstructure:"in_memory"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

type BigCacheConfig struct {
	LifeWindow   time.Duration `mapstructure:"life_window" validate:"gte=0"`
	MaxSize      ByteSize      `mapstructure:"max_size"`
	MaxEntrySize ByteSize      `mapstructure:"max_entry_size"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Secure    bool   `mapstructure:"secure"`
}

type TransportConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxBytes     ByteSize      `mapstructure:"max_bytes"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	UserAgent    string        `mapstructure:"user_agent"`
	RateLimit    float64       `mapstructure:"rate_limit" validate:"gte=0"`
	Burst        int           `mapstructure:"burst" validate:"gte=0"`
}

type LoggingConfig struct {
	// Backend selects the logger adapter.
	Backend string `mapstructure:"backend" validate:"oneof=none zap logrus slog zerolog"`
	Level   string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format  string `mapstructure:"format" validate:"oneof=text json"`
	// Events logs sampled loader events through slog.
	Events      bool   `mapstructure:"events"`
	SampleEvery uint64 `mapstructure:"sample_every"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	// AsyncWorkers > 0 moves hook calls onto a bounded queue.
	AsyncWorkers int `mapstructure:"async_workers" validate:"gte=0"`
	AsyncQueue   int `mapstructure:"async_queue" validate:"gte=0"`
}

// ByteSize is a byte count read from "64MiB", "3 MB" or a plain number.
type ByteSize uint64

func (b ByteSize) String() string { return humanize.IBytes(uint64(b)) }

func defaults(v *viper.Viper) {
	v.SetDefault("loader.max_concurrency", 5)
	v.SetDefault("loader.lookup_workers", 4)
	v.SetDefault("loader.max_width", 1024)
	v.SetDefault("loader.max_height", 1024)
	v.SetDefault("loader.max_pixels", 64<<20)
	v.SetDefault("loader.fetch_timeout", "30s")
	v.SetDefault("loader.lookup_timeout", "10s")
	v.SetDefault("loader.gen_retention", "24h")

	v.SetDefault("memory.kind", "tiered")
	v.SetDefault("memory.hot_items", 30)
	v.SetDefault("memory.cold_items", 150)
	v.SetDefault("memory.budget", "3MiB")

	v.SetDefault("store.kind", "none")
	v.SetDefault("store.framed", false)
	v.SetDefault("store.codec", "msgpack")
	v.SetDefault("store.namespace", "")
	v.SetDefault("store.ttl", "0s")
	v.SetDefault("store.fs.dir", "")
	v.SetDefault("store.badger.dir", "")
	v.SetDefault("store.badger.in_memory", false)
	v.SetDefault("store.redis.addr", "")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.bigcache.life_window", "1h")
	v.SetDefault("store.bigcache.max_size", "256MiB")
	v.SetDefault("store.bigcache.max_entry_size", "64KiB")
	v.SetDefault("store.minio.endpoint", "")
	v.SetDefault("store.minio.access_key", "")
	v.SetDefault("store.minio.secret_key", "")
	v.SetDefault("store.minio.bucket", "")
	v.SetDefault("store.minio.prefix", "")
	v.SetDefault("store.minio.secure", false)

	v.SetDefault("transport.timeout", "0s")
	v.SetDefault("transport.max_bytes", "32MiB")
	v.SetDefault("transport.max_redirects", 5)
	v.SetDefault("transport.user_agent", "imgload/1")
	v.SetDefault("transport.rate_limit", 0)
	v.SetDefault("transport.burst", 0)

	v.SetDefault("logging.backend", "slog")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.events", false)
	v.SetDefault("logging.sample_every", 1)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.async_workers", 0)
	v.SetDefault("metrics.async_queue", 1024)
}

// Load reads path (optional) and the environment. An empty path or a missing
// file yields the defaults overridden by the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

func byteSizeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			n, err := humanize.ParseBytes(v)
			if err != nil {
				return nil, fmt.Errorf("config: byte size %q: %w", v, err)
			}
			return ByteSize(n), nil
		case int:
			return ByteSize(v), nil
		case int64:
			return ByteSize(v), nil
		case uint64:
			return ByteSize(v), nil
		case float64:
			return ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(storeRules, StoreConfig{})
	return v
}

// storeRules requires the settings of the selected backend only.
func storeRules(sl validator.StructLevel) {
	s := sl.Current().Interface().(StoreConfig)
	switch s.Kind {
	case "fs":
		if s.FS.Dir == "" {
			sl.ReportError(s.FS.Dir, "FS.Dir", "dir", "required_with_kind", "fs")
		}
	case "badger":
		if s.Badger.Dir == "" && !s.Badger.InMemory {
			sl.ReportError(s.Badger.Dir, "Badger.Dir", "dir", "required_with_kind", "badger")
		}
	case "redis":
		if s.Redis.Addr == "" {
			sl.ReportError(s.Redis.Addr, "Redis.Addr", "addr", "required_with_kind", "redis")
		}
	case "minio":
		if s.Minio.Endpoint == "" {
			sl.ReportError(s.Minio.Endpoint, "Minio.Endpoint", "endpoint", "required_with_kind", "minio")
		}
		if s.Minio.Bucket == "" {
			sl.ReportError(s.Minio.Bucket, "Minio.Bucket", "bucket", "required_with_kind", "minio")
		}
	}
}

// Validate checks field constraints and backend specific requirements.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q (%v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
	}
	return nil
}
