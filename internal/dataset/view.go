// Package dataset provides the immutable, schema-validated customer table.
package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/fidde/churn_dashboard/pkg/models"
)

// View is a read-only view over a loaded churn table.
// It is immutable after construction and safe for concurrent use.
type View struct {
	records     []models.CustomerRecord
	index       map[string]int
	distinct    map[string][]string
	fingerprint string
	imputed     int
}

// New builds a View from decoded records. Customer IDs must be non-empty
// and unique. The slice is copied.
func New(records []models.CustomerRecord) (*View, error) {
	v := &View{
		records:  make([]models.CustomerRecord, len(records)),
		index:    make(map[string]int, len(records)),
		distinct: make(map[string][]string, len(models.CategoricalColumns)),
	}
	copy(v.records, records)

	seen := make(map[string]map[string]struct{}, len(models.CategoricalColumns))
	for _, c := range models.CategoricalColumns {
		seen[c] = make(map[string]struct{})
	}

	h := sha256.New()
	for i := range v.records {
		r := &v.records[i]
		if r.CustomerID == "" {
			return nil, fmt.Errorf("%w: row %d has an empty customer ID", models.ErrDataLoad, i+1)
		}
		if prev, dup := v.index[r.CustomerID]; dup {
			return nil, fmt.Errorf("%w: duplicate customer ID %q (rows %d and %d)", models.ErrDataLoad, r.CustomerID, prev+1, i+1)
		}
		v.index[r.CustomerID] = i

		for _, c := range models.CategoricalColumns {
			val, _ := r.Category(c)
			seen[c][val] = struct{}{}
		}
		if !r.TotalCharges.Valid {
			v.imputed++
		}
		fmt.Fprintf(h, "%+v\n", *r)
	}

	for c, set := range seen {
		values := make([]string, 0, len(set))
		for val := range set {
			values = append(values, val)
		}
		sort.Strings(values)
		v.distinct[c] = values
	}
	v.fingerprint = hex.EncodeToString(h.Sum(nil))

	return v, nil
}

// Rows returns a copy of every record in source order.
func (v *View) Rows() []models.CustomerRecord {
	out := make([]models.CustomerRecord, len(v.records))
	copy(out, v.records)
	return out
}

// Len returns the number of records.
func (v *View) Len() int {
	return len(v.records)
}

// Each calls fn for every record in source order without copying the table.
// fn must not retain the pointer.
func (v *View) Each(fn func(r *models.CustomerRecord)) {
	for i := range v.records {
		fn(&v.records[i])
	}
}

// DistinctValues returns the sorted unique values of a categorical column.
// The order is fixed for the lifetime of the view.
func (v *View) DistinctValues(column string) ([]string, error) {
	values, ok := v.distinct[column]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownColumn, column)
	}
	out := make([]string, len(values))
	copy(out, values)
	return out, nil
}

// Lookup returns the record with the given customer ID.
func (v *View) Lookup(customerID string) (models.CustomerRecord, error) {
	i, ok := v.index[customerID]
	if !ok {
		return models.CustomerRecord{}, fmt.Errorf("customer %q: %w", customerID, models.ErrNotFound)
	}
	return v.records[i], nil
}

// Fingerprint identifies the table contents. Views over equal rows in the
// same order share a fingerprint.
func (v *View) Fingerprint() string {
	return v.fingerprint
}

// MissingTotalCharges returns how many rows have no TotalCharges value.
func (v *View) MissingTotalCharges() int {
	return v.imputed
}
