// Package pipeline implements the churn metrics and filtering pipeline.
//
// Evaluate is a pure function of its inputs: it filters the table, computes
// classification metrics for the selected model and ranks the top churners.
// It performs no I/O and no logging.
package pipeline

import (
	"fmt"

	"github.com/fidde/churn_dashboard/pkg/models"
)

// Dataset is the read-only table the pipeline evaluates.
// *dataset.View satisfies it.
type Dataset interface {
	Each(fn func(r *models.CustomerRecord))
}

type options struct {
	rankMode models.RankMode
}

// Option configures an evaluation.
type Option func(*options)

// WithRankMode selects which rows are eligible for the top churner list.
// The default is models.RankAll.
func WithRankMode(m models.RankMode) Option {
	return func(o *options) {
		o.rankMode = m
	}
}

// Evaluate filters ds, computes the metrics of model over the filtered rows
// and returns the topN highest-probability churners.
//
// An empty filter selection matches every value. When no row passes the
// filters the result is flagged Empty with undefined metrics and no top
// churners; this is not an error.
func Evaluate(ds Dataset, model models.ModelVariant, filters models.FilterSpec, topN int, opts ...Option) (*models.FilterResult, error) {
	if !model.Valid() {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownModel, model)
	}
	if topN < 0 {
		return nil, fmt.Errorf("%w: got %d", models.ErrInvalidTopN, topN)
	}
	if err := filters.Validate(); err != nil {
		return nil, err
	}

	o := options{rankMode: models.RankAll}
	for _, opt := range opts {
		opt(&o)
	}

	filtered := Filter(ds, filters)

	result := &models.FilterResult{
		Model:        model,
		RankMode:     o.rankMode,
		FilteredRows: filtered,
		TopChurners:  []models.CustomerRecord{},
	}

	if len(filtered) == 0 {
		result.Empty = true
		result.Metrics = ComputeMetrics(nil, model)
		return result, nil
	}

	result.Metrics = ComputeMetrics(filtered, model)
	result.TopChurners = RankTopChurners(filtered, model, topN, o.rankMode)

	return result, nil
}

// Filter returns copies of the rows matching filters, in source order.
// filters must already be validated.
func Filter(ds Dataset, filters models.FilterSpec) []models.CustomerRecord {
	out := []models.CustomerRecord{}
	ds.Each(func(r *models.CustomerRecord) {
		if filters.Matches(r) {
			out = append(out, *r)
		}
	})
	return out
}

// Compare evaluates every model variant over the same filtered rows.
func Compare(ds Dataset, filters models.FilterSpec) ([]models.ModelComparison, error) {
	if err := filters.Validate(); err != nil {
		return nil, err
	}

	filtered := Filter(ds, filters)
	out := make([]models.ModelComparison, 0, models.NumModelVariants)
	for _, m := range models.AllModelVariants() {
		out = append(out, models.ModelComparison{
			Model:   m,
			Label:   m.Label(),
			Metrics: ComputeMetrics(filtered, m),
		})
	}
	return out, nil
}
