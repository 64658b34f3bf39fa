package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RankMode selects which filtered rows are eligible for the top churner list.
type RankMode int

const (
	// RankAll ranks every filtered row by predicted probability.
	RankAll RankMode = iota

	// RankPredictedPositive ranks only rows the model labels as churn.
	RankPredictedPositive
)

// ParseRankMode parses "all" or "predicted_positive". An empty string yields RankAll.
func ParseRankMode(s string) (RankMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return RankAll, nil
	case "predicted_positive", "predicted-positive", "positive":
		return RankPredictedPositive, nil
	default:
		return 0, fmt.Errorf("unknown rank mode %q", s)
	}
}

// String returns the wire name of the mode.
func (m RankMode) String() string {
	if m == RankPredictedPositive {
		return "predicted_positive"
	}
	return "all"
}

// MarshalJSON encodes the wire name.
func (m RankMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts any spelling ParseRankMode accepts.
func (m *RankMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseRankMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// FilterResult is the output of one pipeline evaluation.
type FilterResult struct {
	Model    ModelVariant `json:"model"`
	RankMode RankMode     `json:"rank_mode"`

	// FilteredRows holds the rows that passed the filters, in source order.
	FilteredRows []CustomerRecord `json:"filtered_rows,omitempty"`

	Metrics MetricsSummary `json:"metrics"`

	// TopChurners is ordered by predicted probability descending,
	// ties broken by customer ID ascending.
	TopChurners []CustomerRecord `json:"top_churners"`

	// Empty is set when no row passed the filters.
	Empty bool `json:"empty"`
}

// ModelComparison pairs a variant with its metrics over a shared filtered set.
type ModelComparison struct {
	Model   ModelVariant   `json:"model"`
	Label   string         `json:"label"`
	Metrics MetricsSummary `json:"metrics"`
}

// ValueCount is one bucket of a categorical breakdown.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}
