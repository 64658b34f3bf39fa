package storage

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/fidde/churn_dashboard/internal/dataset"
	"github.com/fidde/churn_dashboard/internal/storage/clickhouse"
	"github.com/fidde/churn_dashboard/internal/storage/csvfile"
	"github.com/fidde/churn_dashboard/internal/storage/s3source"
	"github.com/fidde/churn_dashboard/internal/storage/sqlsource"
)

// Supported backends.
const (
	BackendCSV        = "csv"
	BackendSQLite     = "sqlite"
	BackendPostgres   = "postgres"
	BackendSnowflake  = "snowflake"
	BackendClickHouse = "clickhouse"
	BackendS3         = "s3"
)

// Config holds source configuration.
type Config struct {
	// Backend selects the source: csv, sqlite, postgres, snowflake, clickhouse or s3.
	Backend string

	// Path is the CSV file for the csv backend.
	Path string

	// DSN and Table configure the database/sql backends.
	DSN   string
	Table string

	// S3 object location for the s3 backend.
	S3Bucket  string
	S3Key     string
	S3Region  string
	S3Profile string

	// ClickHouse connection for the clickhouse backend.
	ClickHouse *clickhouse.ConnectionConfig

	// Schema maps model variants to prediction columns.
	Schema dataset.Schema
}

// DefaultConfig returns a CSV source reading churn_model_comparison.csv.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendCSV,
		Path:       "churn_model_comparison.csv",
		Table:      sqlsource.DefaultTable,
		S3Region:   "us-east-1",
		ClickHouse: clickhouse.DefaultConfig(),
		Schema:     dataset.DefaultSchema(),
	}
}

// NewSource creates a source based on configuration.
func NewSource(ctx context.Context, cfg Config, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendCSV:
		log.Printf("Using CSV source: %s", cfg.Path)
		return csvfile.New(cfg.Path, cfg.Schema), nil

	case BackendSQLite, BackendPostgres, BackendSnowflake:
		log.Printf("Using %s source (table: %s)", cfg.Backend, cfg.Table)
		src, err := sqlsource.Open(ctx, sqlsource.Config{
			Driver: cfg.Backend,
			DSN:    cfg.DSN,
			Table:  cfg.Table,
			Schema: cfg.Schema,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating %s source: %w", cfg.Backend, err)
		}
		return src, nil

	case BackendClickHouse:
		chCfg := cfg.ClickHouse
		if chCfg == nil {
			chCfg = clickhouse.DefaultConfig()
		}
		log.Printf("Using ClickHouse source: %s (table: %s)", chCfg.Addr, chCfg.Table)
		src, err := clickhouse.NewSource(ctx, chCfg, cfg.Schema, logger)
		if err != nil {
			return nil, fmt.Errorf("creating ClickHouse source: %w", err)
		}
		return src, nil

	case BackendS3:
		log.Printf("Using S3 source: s3://%s/%s", cfg.S3Bucket, cfg.S3Key)
		src, err := s3source.Open(ctx, s3source.Config{
			Bucket:  cfg.S3Bucket,
			Key:     cfg.S3Key,
			Region:  cfg.S3Region,
			Profile: cfg.S3Profile,
			Schema:  cfg.Schema,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating S3 source: %w", err)
		}
		return src, nil

	default:
		return nil, fmt.Errorf("unknown source backend: %s (supported: csv, sqlite, postgres, snowflake, clickhouse, s3)", cfg.Backend)
	}
}
