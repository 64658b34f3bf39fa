// Package storage defines where the churn table is loaded from.
package storage

import (
	"context"

	"github.com/fidde/churn_dashboard/internal/dataset"
)

// Source loads the churn prediction table from a backend.
// Implementations must be safe for concurrent use.
type Source interface {
	// Load reads and validates the whole table. Errors wrap models.ErrDataLoad.
	Load(ctx context.Context) (*dataset.View, error)

	// Identity returns a string that changes whenever the underlying data may
	// have changed (file mtime, object ETag). Backends without change
	// detection return a constant.
	Identity(ctx context.Context) (string, error)

	// Close releases connections held by the source.
	Close() error
}
