package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fidde/churn_dashboard/pkg/models"
)

// Load reads a CSV file using the default schema.
func Load(path string) (*View, error) {
	return LoadFile(path, DefaultSchema())
}

// LoadFile reads a CSV file using the given schema.
func LoadFile(path string, schema Schema) (*View, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", models.ErrDataLoad, path, err)
	}
	defer f.Close()

	v, err := Parse(f, schema)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return v, nil
}

// Parse reads a CSV table with a header row. Column order is free; extra
// columns are ignored.
func Parse(r io.Reader, schema Schema) (*View, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty source", models.ErrDataLoad)
		}
		return nil, fmt.Errorf("%w: reading header: %v", models.ErrDataLoad, err)
	}

	dec, err := NewDecoder(schema, header)
	if err != nil {
		return nil, err
	}

	var records []models.CustomerRecord
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", models.ErrDataLoad, line, err)
		}
		if isBlank(row) {
			continue
		}

		rec, err := dec.Decode(line, row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return New(records)
}

func isBlank(row []string) bool {
	for _, f := range row {
		if f != "" {
			return false
		}
	}
	return true
}
