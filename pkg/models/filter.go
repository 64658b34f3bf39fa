package models

import (
	"fmt"
	"sort"
	"strings"
)

// FilterSpec maps a categorical column to the values selected for it.
// A column that is absent or has an empty selection matches every value.
type FilterSpec map[string][]string

// Validate checks that every filtered column is categorical.
func (f FilterSpec) Validate() error {
	for column := range f {
		if !IsCategorical(column) {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
		}
	}
	return nil
}

// Normalized returns a copy with empty selections removed and values
// deduplicated and sorted. Two specs selecting the same rows for every
// dataset normalize to equal values.
func (f FilterSpec) Normalized() FilterSpec {
	out := make(FilterSpec, len(f))
	for column, values := range f {
		if len(values) == 0 {
			continue
		}
		seen := make(map[string]struct{}, len(values))
		uniq := make([]string, 0, len(values))
		for _, v := range values {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			uniq = append(uniq, v)
		}
		sort.Strings(uniq)
		out[column] = uniq
	}
	return out
}

// Key returns a canonical string form of the normalized spec.
func (f FilterSpec) Key() string {
	n := f.Normalized()
	columns := make([]string, 0, len(n))
	for c := range n {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	var b strings.Builder
	for i, c := range columns {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(c)
		b.WriteByte('=')
		b.WriteString(strings.Join(n[c], ","))
	}
	return b.String()
}

// Matches reports whether the record satisfies every dimension of the spec.
// Unknown columns never match; call Validate first.
func (f FilterSpec) Matches(r *CustomerRecord) bool {
	for column, values := range f {
		if len(values) == 0 {
			continue
		}
		v, ok := r.Category(column)
		if !ok {
			return false
		}
		found := false
		for _, want := range values {
			if v == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
