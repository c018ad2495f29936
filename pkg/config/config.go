// Package config loads and validates vectorizer configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Pipeline, Kafka, Redis, Postgres, Sink, Logging, Metrics).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Sink     SinkConfig     `yaml:"sink"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PipelineConfig controls stage parallelism and the static inputs of the
// tf-idf computation.
type PipelineConfig struct {
	Workers          int           `yaml:"workers"`
	Partitions       int           `yaml:"partitions"`
	CorpusSize       int           `yaml:"corpusSize"`
	DFFile           string        `yaml:"dfFile"`
	DFSource         string        `yaml:"dfSource"`
	DFReloadInterval time.Duration `yaml:"dfReloadInterval"`
	StopWordsFile    string        `yaml:"stopWordsFile"`
	DataDir          string        `yaml:"dataDir"`
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

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	Documents string `yaml:"documents"`
	Vectors   string `yaml:"vectors"`
}

// RedisConfig holds Redis connection and vector storage parameters.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	KeyPrefix string        `yaml:"keyPrefix"`
	VectorTTL time.Duration `yaml:"vectorTTL"`
}

// SinkConfig selects where encoded vectors go and how writes are guarded.
type SinkConfig struct {
	Kind             string        `yaml:"kind"`
	WriteTimeout     time.Duration `yaml:"writeTimeout"`
	MaxAttempts      int           `yaml:"maxAttempts"`
	InitialBackoff   time.Duration `yaml:"initialBackoff"`
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
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
// overrides, including any found in a .env file in the working directory.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Pipeline.Workers <= 0 {
		problems = append(problems, "pipeline.workers must be positive")
	}
	if c.Pipeline.Partitions <= 0 {
		problems = append(problems, "pipeline.partitions must be positive")
	}
	if c.Pipeline.DFReloadInterval < 0 {
		problems = append(problems, "pipeline.dfReloadInterval must not be negative")
	}
	if c.Pipeline.CorpusSize < 0 {
		problems = append(problems, "pipeline.corpusSize must not be negative")
	}
	switch c.Pipeline.DFSource {
	case "file", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("pipeline.dfSource %q is not one of file, postgres", c.Pipeline.DFSource))
	}
	switch c.Sink.Kind {
	case "redis", "kafka", "segment":
	default:
		problems = append(problems, fmt.Sprintf("sink.kind %q is not one of redis, kafka, segment", c.Sink.Kind))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Workers:    8,
			Partitions: 16,
			DFSource:   "file",
			DataDir:    "data/vectors",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "vectorizer",
			User:            "vectorizer",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "vectorizer-group",
			Topics: KafkaTopics{
				Documents: "documents.raw",
				Vectors:   "vectors.tfidf",
			},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "vector:",
		},
		Sink: SinkConfig{
			Kind:             "segment",
			WriteTimeout:     5 * time.Second,
			MaxAttempts:      3,
			InitialBackoff:   100 * time.Millisecond,
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
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

// applyEnvOverrides reads TV_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	overrideInt("TV_PIPELINE_WORKERS", &cfg.Pipeline.Workers)
	overrideInt("TV_PIPELINE_PARTITIONS", &cfg.Pipeline.Partitions)
	overrideInt("TV_PIPELINE_CORPUS_SIZE", &cfg.Pipeline.CorpusSize)
	overrideString("TV_PIPELINE_DF_FILE", &cfg.Pipeline.DFFile)
	overrideString("TV_PIPELINE_DF_SOURCE", &cfg.Pipeline.DFSource)
	overrideString("TV_PIPELINE_STOP_WORDS_FILE", &cfg.Pipeline.StopWordsFile)
	overrideString("TV_PIPELINE_DATA_DIR", &cfg.Pipeline.DataDir)
	overrideString("TV_POSTGRES_HOST", &cfg.Postgres.Host)
	overrideInt("TV_POSTGRES_PORT", &cfg.Postgres.Port)
	overrideString("TV_POSTGRES_DATABASE", &cfg.Postgres.Database)
	overrideString("TV_POSTGRES_USER", &cfg.Postgres.User)
	overrideString("TV_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	overrideString("TV_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	if v := os.Getenv("TV_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	overrideString("TV_KAFKA_TOPIC_DOCUMENTS", &cfg.Kafka.Topics.Documents)
	overrideString("TV_KAFKA_TOPIC_VECTORS", &cfg.Kafka.Topics.Vectors)
	overrideString("TV_REDIS_ADDR", &cfg.Redis.Addr)
	overrideString("TV_REDIS_PASSWORD", &cfg.Redis.Password)
	overrideString("TV_SINK_KIND", &cfg.Sink.Kind)
	overrideString("TV_LOGGING_LEVEL", &cfg.Logging.Level)
	overrideString("TV_LOGGING_FORMAT", &cfg.Logging.Format)
	overrideInt("TV_METRICS_PORT", &cfg.Metrics.Port)
}

func overrideString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
