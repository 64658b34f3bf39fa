// Package sqlsource loads the churn table from a SQL database through
// database/sql. SQLite, PostgreSQL and Snowflake drivers are registered.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/fidde/churn_dashboard/internal/dataset"
	"github.com/fidde/churn_dashboard/pkg/models"
	_ "github.com/lib/pq"
	_ "github.com/snowflakedb/gosnowflake"
	_ "modernc.org/sqlite"
)

// Supported driver names.
const (
	DriverSQLite    = "sqlite"
	DriverPostgres  = "postgres"
	DriverSnowflake = "snowflake"
)

// DefaultTable is the table read when none is configured.
const DefaultTable = "churn_predictions"

var identPart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds SQL source configuration.
type Config struct {
	Driver string
	DSN    string
	Table  string
	Schema dataset.Schema
}

// Source reads the table with a single SELECT.
type Source struct {
	db     *sql.DB
	driver string
	table  string
	schema dataset.Schema
	logger *slog.Logger
}

// Open opens the database and verifies the connection.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Source, error) {
	switch cfg.Driver {
	case DriverSQLite, DriverPostgres, DriverSnowflake:
	default:
		return nil, fmt.Errorf("unsupported SQL driver %q (supported: sqlite, postgres, snowflake)", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Driver, err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: connecting to %s: %v", models.ErrDataLoad, cfg.Driver, err)
	}

	s, err := New(db, cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing handle. The source takes ownership of db.
func New(db *sql.DB, cfg Config, logger *slog.Logger) (*Source, error) {
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	for _, part := range strings.Split(table, ".") {
		if !identPart.MatchString(part) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Source{
		db:     db,
		driver: cfg.Driver,
		table:  table,
		schema: cfg.Schema,
		logger: logger,
	}, nil
}

// Query returns the SELECT statement the source runs.
func (s *Source) Query() string {
	cols := s.schema.Columns()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}

	parts := strings.Split(s.table, ".")
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}

	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), strings.Join(parts, "."))
}

// Load runs the query and decodes every row.
func (s *Source) Load(ctx context.Context) (*dataset.View, error) {
	start := time.Now()

	rows, err := s.db.QueryContext(ctx, s.Query())
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %v", models.ErrDataLoad, s.table, err)
	}
	defer rows.Close()

	cols := s.schema.Columns()
	dec, err := dataset.NewDecoder(s.schema, cols)
	if err != nil {
		return nil, err
	}

	raw := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}
	values := make([]string, len(cols))

	var records []models.CustomerRecord
	line := 0
	for rows.Next() {
		line++
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: scanning row %d: %v", models.ErrDataLoad, line, err)
		}
		for i := range raw {
			// NULL decodes as blank; only TotalCharges accepts it.
			values[i] = raw[i].String
		}
		rec, err := dec.Decode(line, values)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", models.ErrDataLoad, s.table, err)
	}

	view, err := dataset.New(records)
	if err != nil {
		return nil, err
	}

	s.logger.Info("loaded churn table",
		"driver", s.driver,
		"table", s.table,
		"row_count", view.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return view, nil
}

// Identity is constant: the table is read once per process.
func (s *Source) Identity(ctx context.Context) (string, error) {
	return fmt.Sprintf("%s:%s", s.driver, s.table), nil
}

// Close closes the database handle.
func (s *Source) Close() error {
	return s.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
