package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// The source runs one SELECT per load, so a small pool is enough.
const (
	poolSize         = 2
	dialTimeout      = 10 * time.Second
	queryTimeoutSecs = 60

	defaultMaxRetries = 3
	firstRetryDelay   = time.Second
)

// ConnectionConfig locates the churn table in ClickHouse.
type ConnectionConfig struct {
	Addr       string
	Database   string
	Username   string
	Password   string
	Table      string
	MaxRetries int
}

// DefaultConfig returns the local development defaults.
func DefaultConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Addr:       "localhost:9000",
		Database:   "default",
		Username:   "default",
		Table:      "churn_predictions",
		MaxRetries: defaultMaxRetries,
	}
}

func (c *ConnectionConfig) options() *clickhouse.Options {
	return &clickhouse.Options{
		Addr: []string{c.Addr},
		Auth: clickhouse.Auth{
			Database: c.Database,
			Username: c.Username,
			Password: c.Password,
		},
		Settings:     clickhouse.Settings{"max_execution_time": queryTimeoutSecs},
		DialTimeout:  dialTimeout,
		MaxOpenConns: poolSize,
		MaxIdleConns: poolSize,
	}
}

// Connect opens and pings a connection, retrying with doubling delays.
func Connect(ctx context.Context, config *ConnectionConfig) (driver.Conn, error) {
	if config == nil {
		config = DefaultConfig()
	}
	attempts := max(config.MaxRetries, 1)
	opts := config.options()

	var lastErr error
	delay := firstRetryDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err := open(ctx, opts)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}

	return nil, fmt.Errorf("connecting to ClickHouse at %s after %d attempts: %w", config.Addr, attempts, lastErr)
}

func open(ctx context.Context, opts *clickhouse.Options) (driver.Conn, error) {
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
