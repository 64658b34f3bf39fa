// Package csvfile loads the churn table from a local CSV file.
package csvfile

import (
	"context"
	"fmt"
	"os"

	"github.com/fidde/churn_dashboard/internal/dataset"
	"github.com/fidde/churn_dashboard/pkg/models"
)

// Source reads a CSV file from disk.
type Source struct {
	path   string
	schema dataset.Schema
}

// New creates a CSV source for path.
func New(path string, schema dataset.Schema) *Source {
	return &Source{path: path, schema: schema}
}

// Path returns the file the source reads.
func (s *Source) Path() string {
	return s.path
}

// Load parses the file.
func (s *Source) Load(ctx context.Context) (*dataset.View, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return dataset.LoadFile(s.path, s.schema)
}

// Identity combines the path with the file's size and modification time.
func (s *Source) Identity(ctx context.Context) (string, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %v", models.ErrDataLoad, s.path, err)
	}
	return fmt.Sprintf("csv:%s:%d:%d", s.path, info.Size(), info.ModTime().UnixNano()), nil
}

// Close is a no-op.
func (s *Source) Close() error {
	return nil
}
