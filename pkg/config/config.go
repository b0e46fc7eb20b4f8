// Package config loads and validates configuration from YAML files with
// RR_* environment-variable overrides. It provides typed structs for every
// subsystem (Corpus, Ranker, Search, Eval, Redis, Kafka, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/ranked-retrieval/pkg/errors"
)

// Corpus types.
const (
	CorpusLine     = "line"
	CorpusPostgres = "postgres"
	CorpusSQLite   = "sqlite"
)

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Ranker    RankerConfig    `yaml:"ranker"`
	Search    SearchConfig    `yaml:"search"`
	Eval      EvalConfig      `yaml:"eval"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Server    ServerConfig    `yaml:"server"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CorpusConfig says where documents are read from when building the index.
// Line corpora hold one document per line, optionally `name<TAB>content`;
// SQL corpora read nameColumn and contentColumn from table.
type CorpusConfig struct {
	Type          string `yaml:"type"`
	Path          string `yaml:"path"`
	Table         string `yaml:"table"`
	NameColumn    string `yaml:"nameColumn"`
	ContentColumn string `yaml:"contentColumn"`
	StopWords     string `yaml:"stopWords"`
	Stem          *bool  `yaml:"stem"`
}

// Stemming reports whether terms are stemmed; on unless disabled.
func (c CorpusConfig) Stemming() bool {
	return c.Stem == nil || *c.Stem
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RankerConfig selects a built-in ranking function and overrides its
// parameters (c, k1, b, k3, s, mu, lambda, delta).
type RankerConfig struct {
	Method string             `yaml:"method"`
	Params map[string]float64 `yaml:"params"`
}

// SearchConfig controls result depth, output and batch execution.
type SearchConfig struct {
	NumResults    int           `yaml:"numResults"`
	RunTag        string        `yaml:"runTag"`
	Format        string        `yaml:"format"`
	Workers       int           `yaml:"workers"`
	QueryTimeout  time.Duration `yaml:"queryTimeout"`
	ExcludeDocIDs []uint64      `yaml:"excludeDocIDs"`
}

// EvalConfig points at an optional qrels file.
type EvalConfig struct {
	QrelsPath string `yaml:"qrelsPath"`
	Depth     int    `yaml:"depth"`
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

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

type KafkaTopics struct {
	QueryEvents string `yaml:"queryEvents"`
}

// AnalyticsConfig controls periodic snapshots of the serving statistics
// to the postgres database.
type AnalyticsConfig struct {
	Persist          bool          `yaml:"persist"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// ServerConfig holds HTTP server settings for the search service.
// RateLimit is the per-client request budget per RateWindow; 0 disables
// limiting.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimit       int           `yaml:"rateLimit"`
	RateWindow      time.Duration `yaml:"rateWindow"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result. Every failure wraps
// apperrors.ErrConfiguration.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading config file %s: %w", apperrors.ErrConfiguration, path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file %s: %w", apperrors.ErrConfiguration, path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	switch c.Corpus.Type {
	case CorpusLine, CorpusSQLite:
		if c.Corpus.Path == "" {
			add("corpus.path is required for %s corpora", c.Corpus.Type)
		}
	case CorpusPostgres:
		if c.Postgres.Host == "" || c.Postgres.Database == "" {
			add("postgres.host and postgres.database are required for postgres corpora")
		}
	default:
		add("corpus.type %q is not one of line, postgres, sqlite", c.Corpus.Type)
	}
	if c.Corpus.Type != CorpusLine && (c.Corpus.Table == "" || c.Corpus.NameColumn == "" || c.Corpus.ContentColumn == "") {
		add("corpus.table, corpus.nameColumn and corpus.contentColumn are required for SQL corpora")
	}
	if strings.TrimSpace(c.Ranker.Method) == "" {
		add("ranker.method is required")
	}
	if c.Search.NumResults <= 0 {
		add("search.numResults must be positive, got %d", c.Search.NumResults)
	}
	if c.Search.Workers < 0 {
		add("search.workers must be >= 0, got %d", c.Search.Workers)
	}
	if c.Search.QueryTimeout < 0 {
		add("search.queryTimeout must be >= 0, got %s", c.Search.QueryTimeout)
	}
	switch strings.ToLower(c.Search.Format) {
	case "trec", "human":
	default:
		add("search.format %q is not one of trec, human", c.Search.Format)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		add("redis.addr is required when redis is enabled")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topics.QueryEvents == "") {
		add("kafka.brokers and kafka.topics.queryEvents are required when kafka is enabled")
	}
	if c.Analytics.Persist {
		if c.Postgres.Host == "" || c.Postgres.Database == "" {
			add("postgres.host and postgres.database are required when analytics.persist is set")
		}
		if c.Analytics.SnapshotInterval <= 0 {
			add("analytics.snapshotInterval must be positive, got %s", c.Analytics.SnapshotInterval)
		}
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		add("metrics.port %d is out of range", c.Metrics.Port)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port %d is out of range", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		add("server.rateLimit must be >= 0, got %d", c.Server.RateLimit)
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindow <= 0 {
		add("server.rateWindow must be positive when server.rateLimit is set")
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
	}
	return nil
}

// defaultConfig returns a Config with defaults for a local line corpus.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Corpus: CorpusConfig{
			Type:          CorpusLine,
			Table:         "documents",
			NameColumn:    "name",
			ContentColumn: "content",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "rankedretrieval",
			User:            "rankedretrieval",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Ranker: RankerConfig{
			Method: "pl2",
		},
		Search: SearchConfig{
			NumResults: 1000,
			RunTag:     "MeTA",
			Format:     "trec",
			Workers:    1,
		},
		Eval: EvalConfig{
			Depth: 10,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "rankserver-analytics",
			Topics: KafkaTopics{
				QueryEvents: "query-events",
			},
		},
		Analytics: AnalyticsConfig{
			SnapshotInterval: time.Minute,
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateWindow:      time.Minute,
		},
	}
}

// applyEnvOverrides reads RR_* environment variables and overrides the
// corresponding config fields. Unparsable numbers are ignored.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("RR_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("RR_LOGGING_FORMAT", &cfg.Logging.Format)

	setString("RR_CORPUS_TYPE", &cfg.Corpus.Type)
	setString("RR_CORPUS_PATH", &cfg.Corpus.Path)
	setString("RR_CORPUS_TABLE", &cfg.Corpus.Table)

	setString("RR_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("RR_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("RR_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("RR_POSTGRES_USER", &cfg.Postgres.User)
	setString("RR_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("RR_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)

	setString("RR_RANKER_METHOD", &cfg.Ranker.Method)

	setInt("RR_SEARCH_NUM_RESULTS", &cfg.Search.NumResults)
	setString("RR_SEARCH_RUN_TAG", &cfg.Search.RunTag)
	setString("RR_SEARCH_FORMAT", &cfg.Search.Format)
	setInt("RR_SEARCH_WORKERS", &cfg.Search.Workers)
	if v := os.Getenv("RR_SEARCH_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.QueryTimeout = d
		}
	}

	setString("RR_EVAL_QRELS_PATH", &cfg.Eval.QrelsPath)

	setBool("RR_REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("RR_REDIS_ADDR", &cfg.Redis.Addr)
	setString("RR_REDIS_PASSWORD", &cfg.Redis.Password)

	setBool("RR_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("RR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setBool("RR_ANALYTICS_PERSIST", &cfg.Analytics.Persist)

	setBool("RR_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setInt("RR_METRICS_PORT", &cfg.Metrics.Port)
	setInt("RR_SERVER_PORT", &cfg.Server.Port)
	setInt("RR_SERVER_RATE_LIMIT", &cfg.Server.RateLimit)
}

// IsConfigurationError reports whether err came from loading or
// validating configuration.
func IsConfigurationError(err error) bool {
	return errors.Is(err, apperrors.ErrConfiguration)
}
