// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Catalog, Model, Resolver, Redis, Kafka, Poster, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	RPC       RPCConfig       `yaml:"rpc"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Model     ModelConfig     `yaml:"model"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Recommend RecommendConfig `yaml:"recommend"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Poster    PosterConfig    `yaml:"poster"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// CORSOrigins lists browser origins allowed to call the API. Empty
	// disables CORS headers.
	CORSOrigins []string `yaml:"corsOrigins"`
}

// RPCConfig controls the JSON-over-TCP RPC listener. Port 0 disables it.
type RPCConfig struct {
	Port int `yaml:"port"`
}

// CatalogConfig selects where the catalog is loaded from.
type CatalogConfig struct {
	// Source is "csv", "postgres" or "snapshot".
	Source   string `yaml:"source"`
	Path     string `yaml:"path"`
	Table    string `yaml:"table"`
	OrderBy  string `yaml:"orderBy"`
	Snapshot string `yaml:"snapshot"`
}

// ModelConfig holds the feature composition and weighting policy.
type ModelConfig struct {
	Separator      string `yaml:"separator"`
	IDF            string `yaml:"idf"`
	MinTokenLength int    `yaml:"minTokenLength"`
	StopWords      bool   `yaml:"stopWords"`
	Stem           bool   `yaml:"stem"`
	Normalize      bool   `yaml:"normalize"`
	Workers        int    `yaml:"workers"`
}

// ResolverConfig controls fuzzy title matching.
type ResolverConfig struct {
	Threshold float64 `yaml:"threshold"`
	FoldCase  bool    `yaml:"foldCase"`
}

// RecommendConfig bounds the number of results per query.
type RecommendConfig struct {
	DefaultK int `yaml:"defaultK"`
	MaxK     int `yaml:"maxK"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// PosterConfig configures the poster lookup collaborator.
type PosterConfig struct {
	Enabled      bool          `yaml:"enabled"`
	BaseURL      string        `yaml:"baseUrl"`
	ImageBaseURL string        `yaml:"imageBaseUrl"`
	APIKey       string        `yaml:"apiKey"`
	FallbackURL  string        `yaml:"fallbackUrl"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"maxAttempts"`
}

// RateLimitConfig controls the per-client request limiter.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// AnalyticsConfig toggles recommendation analytics.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with defaults for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Catalog: CatalogConfig{
			Source:  "csv",
			Path:    "movies.csv",
			Table:   "movies",
			OrderBy: "id",
		},
		Model: ModelConfig{
			Separator:      " ",
			IDF:            "smooth",
			MinTokenLength: 2,
			Normalize:      true,
		},
		Resolver: ResolverConfig{
			Threshold: 0.6,
		},
		Recommend: RecommendConfig{
			DefaultK: 10,
			MaxK:     50,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "cinematch",
			User:            "cinematch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "cinematch-group",
			Topics: KafkaTopics{
				AnalyticsEvents: "recommend-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Poster: PosterConfig{
			BaseURL:      "https://api.themoviedb.org/3",
			ImageBaseURL: "https://image.tmdb.org/t/p/w500",
			FallbackURL:  "https://via.placeholder.com/500x750?text=No+Poster",
			Timeout:      5 * time.Second,
			MaxAttempts:  3,
		},
		RateLimit: RateLimitConfig{
			Requests: 120,
			Window:   time.Minute,
		},
		Analytics: AnalyticsConfig{
			BufferSize:       10000,
			SnapshotInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate rejects configurations the model or resolver cannot honour.
func (c *Config) Validate() error {
	if c.Resolver.Threshold <= 0 || c.Resolver.Threshold > 1 {
		return fmt.Errorf("resolver.threshold must be in (0, 1], got %g", c.Resolver.Threshold)
	}
	if c.Recommend.MaxK < 1 {
		return fmt.Errorf("recommend.maxK must be positive, got %d", c.Recommend.MaxK)
	}
	if c.Recommend.DefaultK < 1 || c.Recommend.DefaultK > c.Recommend.MaxK {
		return fmt.Errorf("recommend.defaultK must be in [1, %d], got %d", c.Recommend.MaxK, c.Recommend.DefaultK)
	}
	switch c.Model.IDF {
	case "smooth", "plain":
	default:
		return fmt.Errorf("model.idf must be smooth or plain, got %q", c.Model.IDF)
	}
	if c.Model.MinTokenLength < 1 {
		return fmt.Errorf("model.minTokenLength must be positive, got %d", c.Model.MinTokenLength)
	}
	switch c.Catalog.Source {
	case "csv", "postgres", "snapshot":
	default:
		return fmt.Errorf("catalog.source must be csv, postgres or snapshot, got %q", c.Catalog.Source)
	}
	if c.Catalog.Source == "postgres" && !c.Postgres.Enabled {
		return fmt.Errorf("catalog.source postgres requires postgres.enabled")
	}
	return nil
}

// applyEnvOverrides reads CM_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CM_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("CM_RPC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.RPC.Port = port
		}
	}
	if v := os.Getenv("CM_CATALOG_SOURCE"); v != "" {
		cfg.Catalog.Source = v
	}
	if v := os.Getenv("CM_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("CM_CATALOG_SNAPSHOT"); v != "" {
		cfg.Catalog.Snapshot = v
	}
	if v := os.Getenv("CM_RESOLVER_THRESHOLD"); v != "" {
		if th, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Resolver.Threshold = th
		}
	}
	if v := os.Getenv("CM_MODEL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Model.Workers = n
		}
	}
	if v := os.Getenv("CM_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("CM_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("CM_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("CM_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("CM_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("CM_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CM_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CM_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CM_POSTER_API_KEY"); v != "" {
		cfg.Poster.APIKey = v
	}
	if v := os.Getenv("CM_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CM_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
