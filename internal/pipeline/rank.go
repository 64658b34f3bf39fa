package pipeline

import (
	"fmt"
	"sort"

	"github.com/fidde/churn_dashboard/pkg/models"
)

// RankTopChurners orders rows by the model's predicted probability,
// descending, breaking ties by customer ID ascending, and keeps the first
// topN. With RankPredictedPositive only rows labelled churn are ranked.
// The input slice is not modified.
func RankTopChurners(rows []models.CustomerRecord, model models.ModelVariant, topN int, mode models.RankMode) []models.CustomerRecord {
	candidates := make([]models.CustomerRecord, 0, len(rows))
	for i := range rows {
		if mode == models.RankPredictedPositive && !rows[i].Prediction(model).Label {
			continue
		}
		candidates = append(candidates, rows[i])
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		pa := candidates[a].Prediction(model).Probability
		pb := candidates[b].Prediction(model).Probability
		if pa != pb {
			return pa > pb
		}
		return candidates[a].CustomerID < candidates[b].CustomerID
	})

	if topN < len(candidates) {
		candidates = candidates[:topN]
	}
	return candidates
}

// CountBy returns value counts of a categorical column over rows, ordered
// by count descending and then value ascending.
func CountBy(rows []models.CustomerRecord, column string) ([]models.ValueCount, error) {
	if !models.IsCategorical(column) {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownColumn, column)
	}

	counts := make(map[string]int)
	for i := range rows {
		v, _ := rows[i].Category(column)
		counts[v]++
	}

	out := make([]models.ValueCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, models.ValueCount{Value: v, Count: n})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].Value < out[b].Value
	})
	return out, nil
}
