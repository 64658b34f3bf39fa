package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fidde/churn_dashboard/pkg/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "churn.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:9090"
source:
  backend: sqlite
  dsn: /var/lib/churn/churn.db
  table: scored_customers
models:
  xgboost:
    pred: XGB_v2_Pred
    prob: XGB_v2_Prob
dashboard:
  default_top_n: 20
  rank_mode: predicted_positive
cache:
  enabled: true
  ttl: 90s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Errorf("Expected addr 127.0.0.1:9090, got %s", cfg.Server.Addr)
	}
	if cfg.Source.Backend != "sqlite" || cfg.Source.Table != "scored_customers" {
		t.Errorf("Unexpected source %+v", cfg.Source)
	}
	if cfg.Dashboard.DefaultTopN != 20 {
		t.Errorf("Expected default_top_n 20, got %d", cfg.Dashboard.DefaultTopN)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Dashboard.MaxTopN != 50 {
		t.Errorf("Expected max_top_n default 50, got %d", cfg.Dashboard.MaxTopN)
	}
	if cfg.Dashboard.ParsedRankMode() != models.RankPredictedPositive {
		t.Errorf("Expected predicted_positive rank mode, got %s", cfg.Dashboard.ParsedRankMode())
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("Expected ttl 90s, got %s", cfg.Cache.TTL)
	}

	schema, err := cfg.Schema()
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}
	if schema.Models[models.XGBoost].Prob != "XGB_v2_Prob" {
		t.Errorf("Expected XGB_v2_Prob, got %s", schema.Models[models.XGBoost].Prob)
	}
	if schema.Models[models.LogisticRegression].Pred != "Logistic_Pred" {
		t.Errorf("Expected default Logistic_Pred, got %s", schema.Models[models.LogisticRegression].Pred)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Source.Backend != "csv" {
		t.Errorf("Expected csv backend, got %s", cfg.Source.Backend)
	}
	if cfg.Dashboard.DefaultTopN != 10 {
		t.Errorf("Expected default_top_n 10, got %d", cfg.Dashboard.DefaultTopN)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, "source:\n  backend: csv\n  path: from-file.csv\n")

	t.Setenv("API_ADDR", "0.0.0.0:7070")
	t.Setenv("SOURCE_PATH", "from-env.csv")
	t.Setenv("WATCH_SOURCE", "true")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("OTLP_ENDPOINT", "collector:4317")

	cfg, err := LoadFromEnv(path)
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if cfg.Server.Addr != "0.0.0.0:7070" {
		t.Errorf("Expected env addr, got %s", cfg.Server.Addr)
	}
	if cfg.Source.Path != "from-env.csv" {
		t.Errorf("Expected env path, got %s", cfg.Source.Path)
	}
	if !cfg.Source.Watch {
		t.Error("Expected watch enabled from env")
	}
	if !cfg.Cache.Enabled || cfg.Cache.RedisAddr != "redis:6379" {
		t.Errorf("Expected cache enabled at redis:6379, got %+v", cfg.Cache)
	}
	if !cfg.Exporter.Enabled || cfg.Exporter.Endpoint != "collector:4317" {
		t.Errorf("Expected exporter enabled at collector:4317, got %+v", cfg.Exporter)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown backend", func(c *Config) { c.Source.Backend = "parquet" }, "unknown source.backend"},
		{"csv without path", func(c *Config) { c.Source.Path = "" }, "source.path"},
		{"postgres without dsn", func(c *Config) { c.Source.Backend = "postgres" }, "source.dsn"},
		{"s3 without key", func(c *Config) { c.Source.Backend = "s3"; c.Source.S3.Bucket = "b" }, "source.s3"},
		{"watch on sql", func(c *Config) {
			c.Source.Backend = "sqlite"
			c.Source.DSN = "x.db"
			c.Source.Watch = true
		}, "source.watch"},
		{"default above max", func(c *Config) { c.Dashboard.DefaultTopN = 60 }, "default_top_n"},
		{"zero default", func(c *Config) { c.Dashboard.DefaultTopN = 0 }, "default_top_n"},
		{"negative check interval", func(c *Config) { c.Source.CheckInterval = -time.Second }, "check_interval"},
		{"zero max", func(c *Config) { c.Dashboard.MaxTopN = 0 }, "max_top_n"},
		{"bad rank mode", func(c *Config) { c.Dashboard.RankMode = "random" }, "rank_mode"},
		{"bad exporter protocol", func(c *Config) {
			c.Exporter.Enabled = true
			c.Exporter.Protocol = "kafka"
		}, "exporter.protocol"},
		{"unknown model", func(c *Config) {
			c.Models = map[string]models.ModelColumns{"random_forest": {Pred: "a", Prob: "b"}}
		}, "models"},
		{"incomplete model columns", func(c *Config) {
			c.Models = map[string]models.ModelColumns{"xgboost": {Pred: "a"}}
		}, "pred and prob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStorageConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source.Backend = "clickhouse"
	cfg.Source.Table = "scored"
	cfg.Source.ClickHouse.Addr = "ch:9000"

	sc, err := cfg.StorageConfig()
	if err != nil {
		t.Fatalf("StorageConfig failed: %v", err)
	}
	if sc.ClickHouse.Addr != "ch:9000" || sc.ClickHouse.Table != "scored" {
		t.Errorf("Unexpected clickhouse config %+v", sc.ClickHouse)
	}
	if sc.Schema.Models[models.XGBoost].Pred != "XGB_Pred" {
		t.Errorf("Expected default schema, got %+v", sc.Schema)
	}
}
