package pipeline

import (
	"sort"

	"github.com/fidde/churn_dashboard/pkg/models"
)

// ComputeMetrics scores model against the Actual label of rows.
//
// Recall is undefined without actual positives, precision without predicted
// positives, ROC-AUC without both classes, and accuracy on an empty set.
func ComputeMetrics(rows []models.CustomerRecord, model models.ModelVariant) models.MetricsSummary {
	var s models.MetricsSummary
	s.Support = len(rows)

	for i := range rows {
		p := rows[i].Prediction(model)
		switch {
		case p.Label && rows[i].Actual:
			s.Confusion.TP++
		case p.Label && !rows[i].Actual:
			s.Confusion.FP++
		case !p.Label && rows[i].Actual:
			s.Confusion.FN++
		default:
			s.Confusion.TN++
		}
	}
	c := s.Confusion
	s.Positives = c.TP + c.FN

	s.Accuracy = ratio(c.TP+c.TN, len(rows))
	s.Recall = ratio(c.TP, c.TP+c.FN)
	s.Precision = ratio(c.TP, c.TP+c.FP)
	s.F1 = f1(s.Precision, s.Recall)
	s.ROCAUC = rocAUC(rows, model)

	return s
}

func ratio(num, den int) models.Metric {
	if den == 0 {
		return models.Undefined()
	}
	return models.DefinedMetric(float64(num) / float64(den))
}

func f1(precision, recall models.Metric) models.Metric {
	if !precision.Defined || !recall.Defined {
		return models.Undefined()
	}
	sum := precision.Value + recall.Value
	if sum == 0 {
		return models.Undefined()
	}
	return models.DefinedMetric(2 * precision.Value * recall.Value / sum)
}

// rocAUC is the Mann-Whitney statistic: the probability that a random
// positive scores above a random negative, with ties counting one half.
// Tied scores share the mean of their ranks.
func rocAUC(rows []models.CustomerRecord, model models.ModelVariant) models.Metric {
	n := len(rows)
	scores := make([]float64, n)
	positives := 0
	for i := range rows {
		scores[i] = rows[i].Prediction(model).Probability
		if rows[i].Actual {
			positives++
		}
	}
	negatives := n - positives
	if positives == 0 || negatives == 0 {
		return models.Undefined()
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] < scores[order[b]]
	})

	var positiveRankSum float64
	for start := 0; start < n; {
		end := start + 1
		for end < n && scores[order[end]] == scores[order[start]] {
			end++
		}
		// Ranks are 1-based; the group covers ranks start+1 .. end.
		midRank := float64(start+1+end) / 2
		for k := start; k < end; k++ {
			if rows[order[k]].Actual {
				positiveRankSum += midRank
			}
		}
		start = end
	}

	p := float64(positives)
	u := positiveRankSum - p*(p+1)/2
	return models.DefinedMetric(u / (p * float64(negatives)))
}
