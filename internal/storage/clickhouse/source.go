// Package clickhouse loads the churn table from ClickHouse over the native protocol.
package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/fidde/churn_dashboard/internal/dataset"
	"github.com/fidde/churn_dashboard/pkg/models"
)

var identPart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Source reads the churn table from a ClickHouse table.
type Source struct {
	conn     driver.Conn
	database string
	table    string
	schema   dataset.Schema
	logger   *slog.Logger
}

// NewSource connects to ClickHouse and returns a source for config.Table.
func NewSource(ctx context.Context, config *ConnectionConfig, schema dataset.Schema, logger *slog.Logger) (*Source, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if !identPart.MatchString(config.Table) {
		return nil, fmt.Errorf("invalid table name %q", config.Table)
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := Connect(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDataLoad, err)
	}

	logger.Info("connected to ClickHouse", "addr", config.Addr, "database", config.Database)

	return &Source{
		conn:     conn,
		database: config.Database,
		table:    config.Table,
		schema:   schema,
		logger:   logger,
	}, nil
}

// Query builds the SELECT statement. Every column is read as a string so
// the shared decoder applies the same validation as the CSV path; NULL
// becomes an empty string.
func Query(schema dataset.Schema, table string) string {
	cols := schema.Columns()
	exprs := make([]string, len(cols))
	for i, c := range cols {
		exprs[i] = fmt.Sprintf("ifNull(toString(`%s`), '')", c)
	}
	return fmt.Sprintf("SELECT %s FROM `%s`", strings.Join(exprs, ", "), table)
}

// Load runs the query and decodes every row.
func (s *Source) Load(ctx context.Context) (*dataset.View, error) {
	start := time.Now()
	cols := s.schema.Columns()

	dec, err := dataset.NewDecoder(s.schema, cols)
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, Query(s.schema, s.table))
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %v", models.ErrDataLoad, s.table, err)
	}
	defer rows.Close()

	values := make([]string, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	var records []models.CustomerRecord
	line := 0
	for rows.Next() {
		line++
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: scanning row %d: %v", models.ErrDataLoad, line, err)
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
		"table", s.table,
		"row_count", view.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return view, nil
}

// Identity is constant: the table is read once per process.
func (s *Source) Identity(ctx context.Context) (string, error) {
	return fmt.Sprintf("clickhouse:%s.%s", s.database, s.table), nil
}

// Close closes the connection.
func (s *Source) Close() error {
	return s.conn.Close()
}
