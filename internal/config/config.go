// Package config loads dashboard configuration from YAML, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fidde/churn_dashboard/internal/cache"
	"github.com/fidde/churn_dashboard/internal/dataset"
	"github.com/fidde/churn_dashboard/internal/exporter"
	"github.com/fidde/churn_dashboard/internal/storage"
	"github.com/fidde/churn_dashboard/internal/storage/clickhouse"
	"github.com/fidde/churn_dashboard/pkg/models"
)

// DefaultPath is read when no -config flag is given.
const DefaultPath = "config/churn.yaml"

// Config holds all configuration for the dashboard.
type Config struct {
	Server    ServerConfig                   `yaml:"server"`
	Source    SourceConfig                   `yaml:"source"`
	Models    map[string]models.ModelColumns `yaml:"models"`
	Dashboard DashboardConfig                `yaml:"dashboard"`
	Cache     CacheConfig                    `yaml:"cache"`
	Exporter  ExporterConfig                 `yaml:"exporter"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// SourceConfig selects where the churn table is read from.
type SourceConfig struct {
	Backend    string           `yaml:"backend"`
	Path       string           `yaml:"path"`
	DSN        string           `yaml:"dsn"`
	Table      string           `yaml:"table"`
	S3         S3Config         `yaml:"s3"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Watch      bool             `yaml:"watch"`

	// CheckInterval bounds how often requests re-check the source for a
	// newer table. Zero leaves reloads to the file watcher.
	CheckInterval time.Duration `yaml:"check_interval"`
}

// S3Config locates a CSV object.
type S3Config struct {
	Bucket  string `yaml:"bucket"`
	Key     string `yaml:"key"`
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"` // Empty uses the default credential chain
}

// ClickHouseConfig holds native protocol connection settings.
type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DashboardConfig holds the operator defaults.
type DashboardConfig struct {
	DefaultTopN int    `yaml:"default_top_n"`
	MaxTopN     int    `yaml:"max_top_n"`
	RankMode    string `yaml:"rank_mode"`
}

// CacheConfig enables the Redis result cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

// ExporterConfig enables pushing evaluation metrics over OTLP.
type ExporterConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Protocol    string `yaml:"protocol"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	ch := clickhouse.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:           "0.0.0.0:8080",
			AllowedOrigins: []string{"http://localhost:5173"},
			RequestTimeout: 60 * time.Second,
		},
		Source: SourceConfig{
			Backend: storage.BackendCSV,
			Path:    "churn_model_comparison.csv",
			Table:   "churn_predictions",
			S3:      S3Config{Region: "us-east-1"},

			CheckInterval: storage.DefaultCheckInterval,
			ClickHouse: ClickHouseConfig{
				Addr:     ch.Addr,
				Database: ch.Database,
				Username: ch.Username,
			},
		},
		Dashboard: DashboardConfig{
			DefaultTopN: 10,
			MaxTopN:     50,
			RankMode:    models.RankAll.String(),
		},
		Cache: CacheConfig{
			RedisAddr: "localhost:6379",
			TTL:       cache.DefaultTTL,
		},
		Exporter: ExporterConfig{
			Protocol:    exporter.ProtocolGRPC,
			Endpoint:    "localhost:4317",
			ServiceName: "churn-dashboard",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv loads .env (if present), then path, then applies environment
// overrides and validates the result.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("API_ADDR", c.Server.Addr)
	c.Source.Backend = getEnv("SOURCE_BACKEND", c.Source.Backend)
	c.Source.Path = getEnv("SOURCE_PATH", c.Source.Path)
	c.Source.DSN = getEnv("SOURCE_DSN", c.Source.DSN)
	c.Source.Table = getEnv("SOURCE_TABLE", c.Source.Table)
	c.Source.Watch = getEnvBool("WATCH_SOURCE", c.Source.Watch)

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Cache.RedisAddr = addr
		c.Cache.Enabled = true
	}
	if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
		c.Exporter.Endpoint = endpoint
		c.Exporter.Enabled = true
	}
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	switch c.Source.Backend {
	case storage.BackendCSV:
		if c.Source.Path == "" {
			return errors.New("source.path is required for the csv backend")
		}
	case storage.BackendSQLite, storage.BackendPostgres, storage.BackendSnowflake:
		if c.Source.DSN == "" {
			return fmt.Errorf("source.dsn is required for the %s backend", c.Source.Backend)
		}
	case storage.BackendClickHouse:
		if c.Source.ClickHouse.Addr == "" {
			return errors.New("source.clickhouse.addr is required for the clickhouse backend")
		}
	case storage.BackendS3:
		if c.Source.S3.Bucket == "" || c.Source.S3.Key == "" {
			return errors.New("source.s3.bucket and source.s3.key are required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown source.backend %q", c.Source.Backend)
	}

	if c.Source.Watch && c.Source.Backend != storage.BackendCSV {
		return errors.New("source.watch is only supported for the csv backend")
	}
	if c.Source.CheckInterval < 0 {
		return fmt.Errorf("source.check_interval must not be negative, got %s", c.Source.CheckInterval)
	}

	if c.Dashboard.MaxTopN <= 0 {
		return fmt.Errorf("dashboard.max_top_n must be positive, got %d", c.Dashboard.MaxTopN)
	}
	if c.Dashboard.DefaultTopN < 1 || c.Dashboard.DefaultTopN > c.Dashboard.MaxTopN {
		return fmt.Errorf("dashboard.default_top_n must be between 1 and %d, got %d", c.Dashboard.MaxTopN, c.Dashboard.DefaultTopN)
	}
	if _, err := models.ParseRankMode(c.Dashboard.RankMode); err != nil {
		return fmt.Errorf("dashboard.rank_mode: %w", err)
	}

	if c.Cache.Enabled && c.Cache.RedisAddr == "" {
		return errors.New("cache.redis_addr is required when the cache is enabled")
	}

	if c.Exporter.Enabled {
		switch c.Exporter.Protocol {
		case exporter.ProtocolGRPC, exporter.ProtocolHTTP:
		default:
			return fmt.Errorf("unknown exporter.protocol %q", c.Exporter.Protocol)
		}
		if c.Exporter.Endpoint == "" {
			return errors.New("exporter.endpoint is required when the exporter is enabled")
		}
	}

	if _, err := c.Schema(); err != nil {
		return err
	}
	return nil
}

// Schema applies the models section over the default column mapping.
func (c *Config) Schema() (dataset.Schema, error) {
	schema := dataset.DefaultSchema()
	for name, cols := range c.Models {
		m, err := models.ParseModelVariant(name)
		if err != nil {
			return schema, fmt.Errorf("models: %w", err)
		}
		if cols.Pred == "" || cols.Prob == "" {
			return schema, fmt.Errorf("models.%s: pred and prob columns are required", name)
		}
		schema.Models[m] = cols
	}
	return schema, nil
}

// ParsedRankMode returns the parsed default rank mode.
func (c DashboardConfig) ParsedRankMode() models.RankMode {
	m, _ := models.ParseRankMode(c.RankMode)
	return m
}

// StorageConfig converts the source section for the storage factory.
func (c *Config) StorageConfig() (storage.Config, error) {
	schema, err := c.Schema()
	if err != nil {
		return storage.Config{}, err
	}

	ch := clickhouse.DefaultConfig()
	ch.Addr = c.Source.ClickHouse.Addr
	ch.Database = c.Source.ClickHouse.Database
	ch.Username = c.Source.ClickHouse.Username
	ch.Password = c.Source.ClickHouse.Password
	if c.Source.Table != "" {
		ch.Table = c.Source.Table
	}

	return storage.Config{
		Backend:    c.Source.Backend,
		Path:       c.Source.Path,
		DSN:        c.Source.DSN,
		Table:      c.Source.Table,
		S3Bucket:   c.Source.S3.Bucket,
		S3Key:      c.Source.S3.Key,
		S3Region:   c.Source.S3.Region,
		S3Profile:  c.Source.S3.Profile,
		ClickHouse: ch,
		Schema:     schema,
	}, nil
}

// getEnv gets an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default fallback.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
