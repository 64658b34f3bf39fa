package models

import (
	"encoding/json"
	"strconv"
)

// Metric is a score that may be undefined when its inputs are degenerate,
// e.g. recall over a set with no actual positives. An undefined metric is
// distinct from a valid 0.0 and encodes as JSON null.
type Metric struct {
	Value   float64
	Defined bool
}

// DefinedMetric returns a defined metric holding v.
func DefinedMetric(v float64) Metric {
	return Metric{Value: v, Defined: true}
}

// Undefined returns an undefined metric.
func Undefined() Metric {
	return Metric{}
}

// Float returns the value and whether it is defined.
func (m Metric) Float() (float64, bool) {
	return m.Value, m.Defined
}

// String formats the metric with two decimals, or "n/a".
func (m Metric) String() string {
	if !m.Defined {
		return "n/a"
	}
	return strconv.FormatFloat(m.Value, 'f', 2, 64)
}

// MarshalJSON encodes an undefined metric as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON accepts a number or null.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Metric{}
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*m = DefinedMetric(v)
	return nil
}

// Confusion holds the binary confusion matrix counts.
type Confusion struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

// MetricsSummary contains the evaluation metrics of one model over a set of rows.
type MetricsSummary struct {
	Accuracy  Metric    `json:"accuracy"`
	Recall    Metric    `json:"recall"`
	Precision Metric    `json:"precision"`
	F1        Metric    `json:"f1"`
	ROCAUC    Metric    `json:"roc_auc"`
	Confusion Confusion `json:"confusion"`

	// Support is the number of evaluated rows.
	Support int `json:"support"`

	// Positives is the number of rows whose Actual label is churn.
	Positives int `json:"positives"`
}
