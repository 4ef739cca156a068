// Package config loads and validates application configuration from YAML files
// with .env and environment-variable overrides. It provides typed structs for
// every subsystem (Server, Postgres, Redis, Kafka, Planner, Export, etc.).
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
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Planner   PlannerConfig   `yaml:"planner"`
	Export    ExportConfig    `yaml:"export"`
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
}

// PostgresConfig holds PostgreSQL connection parameters and the name of the
// chapter table.
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
	ChapterTable    string        `yaml:"chapterTable"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection and plan caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds broker and topic settings for plan events.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	PlanEvents string `yaml:"planEvents"`
}

// PlannerConfig controls the partition search.
type PlannerConfig struct {
	InitialTolerance     float64 `yaml:"initialTolerance"`
	ConvergenceTolerance int     `yaml:"convergenceTolerance"`
	MaxIterations        int     `yaml:"maxIterations"`
	Step                 float64 `yaml:"step"`
	MaxDays              int     `yaml:"maxDays"`
	// UnitsTTL is how long the fetched chapter list is reused between
	// requests. Zero disables reuse.
	UnitsTTL time.Duration `yaml:"unitsTTL"`
}

// ExportConfig controls where and how CSV schedules are written.
type ExportConfig struct {
	ResultDir       string `yaml:"resultDir"`
	FileNamePattern string `yaml:"fileNamePattern"`
	HeaderLanguage  string `yaml:"headerLanguage"`
}

// RateLimitConfig controls the per-client token bucket on plan endpoints.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// AnalyticsConfig controls plan event batching and stats snapshots.
type AnalyticsConfig struct {
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
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

// Load reads a YAML config file (if provided), loads the .env file at envPath
// (if it exists) and applies environment-variable overrides. Variables that
// are already set in the process environment win over the .env file.
func Load(path, envPath string) (*Config, error) {
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
	if err := loadDotEnv(envPath); err != nil {
		return nil, fmt.Errorf("loading env file %s: %w", envPath, err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the planner cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Planner.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("planner.maxIterations must be positive, got %d", c.Planner.MaxIterations))
	}
	if c.Planner.Step <= 0 {
		errs = append(errs, fmt.Errorf("planner.step must be positive, got %v", c.Planner.Step))
	}
	if c.Planner.InitialTolerance < 0 {
		errs = append(errs, fmt.Errorf("planner.initialTolerance must not be negative, got %v", c.Planner.InitialTolerance))
	}
	if c.Planner.ConvergenceTolerance < 0 {
		errs = append(errs, fmt.Errorf("planner.convergenceTolerance must not be negative, got %d", c.Planner.ConvergenceTolerance))
	}
	if !strings.Contains(c.Export.FileNamePattern, "%d") {
		errs = append(errs, fmt.Errorf("export.fileNamePattern must contain %%d, got %q", c.Export.FileNamePattern))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rateLimit.requests and rateLimit.window must be positive when enabled"))
	}
	return errors.Join(errs...)
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "readingplan",
			User:            "readingplan",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ChapterTable:    "bible_chapters",
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: time.Hour,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "readingplan-group",
			Topics: KafkaTopics{
				PlanEvents: "plan-events",
			},
		},
		Planner: PlannerConfig{
			InitialTolerance:     0.01,
			ConvergenceTolerance: 0,
			MaxIterations:        5000,
			Step:                 0.001,
			MaxDays:              3650,
			UnitsTTL:             10 * time.Minute,
		},
		Export: ExportConfig{
			ResultDir:       "result",
			FileNamePattern: "성경통독표(%d일).csv",
			HeaderLanguage:  "ko",
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 60,
			Window:   time.Minute,
		},
		Analytics: AnalyticsConfig{
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			SnapshotInterval: 0,
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

func loadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// applyEnvOverrides reads RP_* environment variables and overrides the
// corresponding config fields. PORT and DB_* are honoured too so existing
// deployment env files keep working.
func applyEnvOverrides(cfg *Config) {
	setInt(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.Port, "RP_SERVER_PORT")

	setString(&cfg.Postgres.Host, "DB_HOST")
	setString(&cfg.Postgres.User, "DB_USER")
	setString(&cfg.Postgres.Password, "DB_PASSWORD")
	setString(&cfg.Postgres.Database, "DB_NAME")
	setString(&cfg.Postgres.Host, "RP_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "RP_POSTGRES_PORT")
	setString(&cfg.Postgres.Database, "RP_POSTGRES_DATABASE")
	setString(&cfg.Postgres.User, "RP_POSTGRES_USER")
	setString(&cfg.Postgres.Password, "RP_POSTGRES_PASSWORD")
	setString(&cfg.Postgres.SSLMode, "RP_POSTGRES_SSLMODE")
	setString(&cfg.Postgres.ChapterTable, "RP_POSTGRES_CHAPTER_TABLE")

	setBool(&cfg.Redis.Enabled, "RP_REDIS_ENABLED")
	setString(&cfg.Redis.Addr, "RP_REDIS_ADDR")
	setString(&cfg.Redis.Password, "RP_REDIS_PASSWORD")

	setBool(&cfg.Kafka.Enabled, "RP_KAFKA_ENABLED")
	if v := os.Getenv("RP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}

	setFloat(&cfg.Planner.InitialTolerance, "RP_PLANNER_INITIAL_TOLERANCE")
	setInt(&cfg.Planner.ConvergenceTolerance, "RP_PLANNER_CONVERGENCE_TOLERANCE")
	setInt(&cfg.Planner.MaxIterations, "RP_PLANNER_MAX_ITERATIONS")
	setFloat(&cfg.Planner.Step, "RP_PLANNER_STEP")
	setInt(&cfg.Planner.MaxDays, "RP_PLANNER_MAX_DAYS")
	setDuration(&cfg.Planner.UnitsTTL, "RP_PLANNER_UNITS_TTL")

	setString(&cfg.Export.ResultDir, "RP_EXPORT_RESULT_DIR")
	setString(&cfg.Export.HeaderLanguage, "RP_EXPORT_HEADER_LANGUAGE")

	setDuration(&cfg.Analytics.SnapshotInterval, "RP_ANALYTICS_SNAPSHOT_INTERVAL")

	setString(&cfg.Logging.Level, "RP_LOGGING_LEVEL")
	setString(&cfg.Logging.Format, "RP_LOGGING_FORMAT")
	setBool(&cfg.Metrics.Enabled, "RP_METRICS_ENABLED")
	setInt(&cfg.Metrics.Port, "RP_METRICS_PORT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
