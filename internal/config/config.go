package config

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"time"

	"github.com/dunamismax/mediaproc/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendProxy = "proxy"
	BackendS3    = "s3"
	BackendLocal = "local"

	UsageNone     = "none"
	UsageMemory   = "memory"
	UsagePostgres = "postgres"
)

type Config struct {
	API       APIConfig
	Log       LogConfig
	Storage   StorageConfig
	Limits    LimitsConfig
	Worker    WorkerConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Usage     UsageConfig
	Telemetry TelemetryConfig
}

type APIConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type StorageConfig struct {
	Backend            string
	ProxyURL           string
	AccessClientID     string
	AccessClientSecret string
	Timeout            time.Duration
	MaxAttempts        int
	MaxInputBytes      int64
	MinIO              MinIOConfig
	LocalDir           string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type LimitsConfig struct {
	MaxDimension   int
	MaxPixels      int64
	DefaultQuality int
}

func (l LimitsConfig) Domain() domain.Limits {
	return domain.Limits{
		MaxDimension:   l.MaxDimension,
		MaxPixels:      l.MaxPixels,
		DefaultQuality: l.DefaultQuality,
	}.Normalize()
}

type WorkerConfig struct {
	Concurrency      int
	TransformTimeout time.Duration
}

type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type UsageConfig struct {
	Store          string
	PostgresDSN    string
	MemoryCapacity int
}

type TelemetryConfig struct {
	ServiceName   string
	TraceExporter string
	OTLPEndpoint  string
	OTLPInsecure  bool
	SampleRatio   float64
}

var defaults = map[string]any{
	"MEDIAPROC_API_ADDR":      ":8080",
	"API_READ_TIMEOUT":        "10s",
	"API_WRITE_TIMEOUT":       "60s",
	"API_SHUTDOWN_TIMEOUT":    "15s",
	"LOG_LEVEL":               "info",
	"LOG_FORMAT":              "json",
	"STORAGE_BACKEND":         BackendProxy,
	"STORAGE_PROXY_URL":       "",
	"CF_ACCESS_CLIENT_ID":     "",
	"CF_ACCESS_CLIENT_SECRET": "",
	"STORAGE_TIMEOUT":         "30s",
	"STORAGE_MAX_ATTEMPTS":    1,
	"MINIO_ENDPOINT":          "localhost:9000",
	"MINIO_ACCESS_KEY":        "minioadmin",
	"MINIO_SECRET_KEY":        "minioadmin",
	"MINIO_BUCKET":            "media",
	"MINIO_USE_SSL":           false,
	"LOCAL_SOURCE_DIR":        "./media",
	"MAX_INPUT_BYTES":         50 << 20,
	"MAX_DIMENSION":           domain.MaxDimension,
	"MAX_PIXELS":              domain.MaxPixels,
	"DEFAULT_QUALITY":         domain.DefaultQuality,
	"WORKER_CONCURRENCY":      runtime.NumCPU(),
	"TRANSFORM_TIMEOUT":       "30s",
	"RATE_LIMIT_ENABLED":      false,
	"RATE_LIMIT_REQUESTS":     120,
	"RATE_LIMIT_WINDOW":       "1m",
	"REDIS_ADDR":              "localhost:6379",
	"REDIS_PASSWORD":          "",
	"REDIS_DB":                0,
	"USAGE_STORE":             UsageMemory,
	"USAGE_MEMORY_CAPACITY":   10_000,
	"POSTGRES_DSN":            "",
	"OTEL_SERVICE_NAME":       "mediaproc",
	"TRACE_EXPORTER":          "none",
	"OTLP_ENDPOINT":           "",
	"OTLP_INSECURE":           false,
	"TRACE_SAMPLE_RATIO":      1.0,
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory when one exists. Variables already set in the
// environment win over .env entries.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return v
}

// FromViper builds and validates a Config from v.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		API: APIConfig{
			Addr:            v.GetString("MEDIAPROC_API_ADDR"),
			ReadTimeout:     v.GetDuration("API_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("API_WRITE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("API_SHUTDOWN_TIMEOUT"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Storage: StorageConfig{
			Backend:            strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_BACKEND"))),
			ProxyURL:           strings.TrimSpace(v.GetString("STORAGE_PROXY_URL")),
			AccessClientID:     v.GetString("CF_ACCESS_CLIENT_ID"),
			AccessClientSecret: v.GetString("CF_ACCESS_CLIENT_SECRET"),
			Timeout:            v.GetDuration("STORAGE_TIMEOUT"),
			MaxAttempts:        v.GetInt("STORAGE_MAX_ATTEMPTS"),
			MaxInputBytes:      v.GetInt64("MAX_INPUT_BYTES"),
			MinIO: MinIOConfig{
				Endpoint:  v.GetString("MINIO_ENDPOINT"),
				AccessKey: v.GetString("MINIO_ACCESS_KEY"),
				SecretKey: v.GetString("MINIO_SECRET_KEY"),
				Bucket:    v.GetString("MINIO_BUCKET"),
				UseSSL:    v.GetBool("MINIO_USE_SSL"),
			},
			LocalDir: v.GetString("LOCAL_SOURCE_DIR"),
		},
		Limits: LimitsConfig{
			MaxDimension:   v.GetInt("MAX_DIMENSION"),
			MaxPixels:      v.GetInt64("MAX_PIXELS"),
			DefaultQuality: v.GetInt("DEFAULT_QUALITY"),
		},
		Worker: WorkerConfig{
			Concurrency:      v.GetInt("WORKER_CONCURRENCY"),
			TransformTimeout: v.GetDuration("TRANSFORM_TIMEOUT"),
		},
		RateLimit: RateLimitConfig{
			Enabled:  v.GetBool("RATE_LIMIT_ENABLED"),
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Usage: UsageConfig{
			Store:          strings.ToLower(strings.TrimSpace(v.GetString("USAGE_STORE"))),
			PostgresDSN:    v.GetString("POSTGRES_DSN"),
			MemoryCapacity: v.GetInt("USAGE_MEMORY_CAPACITY"),
		},
		Telemetry: TelemetryConfig{
			ServiceName:   v.GetString("OTEL_SERVICE_NAME"),
			TraceExporter: strings.ToLower(strings.TrimSpace(v.GetString("TRACE_EXPORTER"))),
			OTLPEndpoint:  v.GetString("OTLP_ENDPOINT"),
			OTLPInsecure:  v.GetBool("OTLP_INSECURE"),
			SampleRatio:   v.GetFloat64("TRACE_SAMPLE_RATIO"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.API.Addr) == "" {
		errs = append(errs, errors.New("MEDIAPROC_API_ADDR is required"))
	}

	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format))
	}

	switch c.Storage.Backend {
	case BackendProxy:
		if c.Storage.ProxyURL == "" {
			errs = append(errs, errors.New("STORAGE_PROXY_URL is required for the proxy backend"))
		}
	case BackendS3:
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT and MINIO_BUCKET are required for the s3 backend"))
		}
	case BackendLocal:
		if c.Storage.LocalDir == "" {
			errs = append(errs, errors.New("LOCAL_SOURCE_DIR is required for the local backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be proxy, s3 or local, got %q", c.Storage.Backend))
	}
	if c.Storage.MaxInputBytes <= 0 {
		errs = append(errs, errors.New("MAX_INPUT_BYTES must be positive"))
	}
	if c.Storage.MaxAttempts < 1 {
		errs = append(errs, errors.New("STORAGE_MAX_ATTEMPTS must be at least 1"))
	}

	if c.Limits.MaxDimension < 1 {
		errs = append(errs, errors.New("MAX_DIMENSION must be positive"))
	}
	if c.Limits.MaxPixels < 1 {
		errs = append(errs, errors.New("MAX_PIXELS must be positive"))
	}
	if c.Limits.DefaultQuality < domain.MinQuality || c.Limits.DefaultQuality > domain.MaxQuality {
		errs = append(errs, fmt.Errorf("DEFAULT_QUALITY must be %d-%d", domain.MinQuality, domain.MaxQuality))
	}
	if c.Worker.Concurrency < 0 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must not be negative"))
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests < 1 || c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
		}
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when rate limiting is enabled"))
		}
	}

	switch c.Usage.Store {
	case UsageNone:
	case UsageMemory:
		if c.Usage.MemoryCapacity < 1 {
			errs = append(errs, errors.New("USAGE_MEMORY_CAPACITY must be positive for the memory usage store"))
		}
	case UsagePostgres:
		if c.Usage.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres usage store"))
		}
	default:
		errs = append(errs, fmt.Errorf("USAGE_STORE must be none, memory or postgres, got %q", c.Usage.Store))
	}

	switch c.Telemetry.TraceExporter {
	case "", "none", "stdout":
	case "otlp":
		if c.Telemetry.OTLPEndpoint == "" {
			errs = append(errs, errors.New("OTLP_ENDPOINT is required for the otlp exporter"))
		}
	default:
		errs = append(errs, fmt.Errorf("TRACE_EXPORTER must be none, stdout or otlp, got %q", c.Telemetry.TraceExporter))
	}

	return errors.Join(errs...)
}
