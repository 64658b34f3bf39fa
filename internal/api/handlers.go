package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fidde/churn_dashboard/internal/cache"
	"github.com/fidde/churn_dashboard/internal/charts"
	"github.com/fidde/churn_dashboard/internal/dataset"
	"github.com/fidde/churn_dashboard/internal/pipeline"
	"github.com/fidde/churn_dashboard/pkg/models"
)

var errInvalidParam = errors.New("invalid parameter")

// Query parameters that are not filter columns.
const (
	paramModel       = "model"
	paramTopN        = "top_n"
	paramRank        = "rank"
	paramIncludeRows = "include_rows"
	paramWidth       = "width"
)

// breakdownColumns are summarised over the top churners in every evaluation.
var breakdownColumns = []string{
	models.ColumnPhoneService,
	models.ColumnPaymentMethod,
	models.ColumnInternetService,
}

// evalRequest is the operator's selection, parsed from the query string.
type evalRequest struct {
	model       models.ModelVariant
	filters     models.FilterSpec
	topN        int
	rankMode    models.RankMode
	includeRows bool
	width       int
}

// parseEvalRequest reads model, filters, top_n, rank, include_rows and
// width. Every other query key must be a filter column; repeating a key
// selects several values and an empty value selects all.
func (s *Server) parseEvalRequest(r *http.Request) (evalRequest, error) {
	q := r.URL.Query()
	req := evalRequest{
		model:    models.LogisticRegression,
		filters:  models.FilterSpec{},
		topN:     s.opts.DefaultTopN,
		rankMode: s.opts.RankMode,
	}

	for key, values := range q {
		var err error
		switch key {
		case paramModel:
			req.model, err = models.ParseModelVariant(q.Get(key))
		case paramTopN:
			req.topN, err = strconv.Atoi(q.Get(key))
			if err != nil {
				err = fmt.Errorf("%w: %q", models.ErrInvalidTopN, q.Get(key))
			} else if req.topN > s.opts.MaxTopN {
				req.topN = s.opts.MaxTopN
			}
		case paramRank:
			req.rankMode, err = models.ParseRankMode(q.Get(key))
			if err != nil {
				err = fmt.Errorf("%w: %v", errInvalidParam, err)
			}
		case paramIncludeRows:
			req.includeRows, err = strconv.ParseBool(q.Get(key))
			if err != nil {
				err = fmt.Errorf("%w: include_rows=%q", errInvalidParam, q.Get(key))
			}
		case paramWidth:
			req.width, err = strconv.Atoi(q.Get(key))
			if err != nil {
				err = fmt.Errorf("%w: width=%q", errInvalidParam, q.Get(key))
			}
		default:
			selected := make([]string, 0, len(values))
			for _, v := range values {
				if v != "" {
					selected = append(selected, v)
				}
			}
			req.filters[key] = selected
		}
		if err != nil {
			return req, err
		}
	}

	return req, req.filters.Validate()
}

// EvaluateResponse is a FilterResult plus value counts over the top churners.
type EvaluateResponse struct {
	*models.FilterResult
	ModelIndex int                            `json:"model_index"`
	Label      string                         `json:"label"`
	Breakdowns map[string][]models.ValueCount `json:"breakdowns"`
}

// runEvaluation evaluates req against the current table, going through the
// cache when one is configured.
func (s *Server) runEvaluation(ctx context.Context, view *dataset.View, req evalRequest) (*models.FilterResult, bool, error) {
	key := cache.EvalKey(view.Fingerprint(), req.model, req.filters, req.topN, req.rankMode, req.includeRows)
	computed := false

	result, err := cache.Remember(ctx, s.opts.Cache, key, func() (*models.FilterResult, error) {
		computed = true
		res, err := pipeline.Evaluate(view, req.model, req.filters, req.topN, pipeline.WithRankMode(req.rankMode))
		if err != nil {
			return nil, err
		}
		if !req.includeRows {
			res.FilteredRows = nil
		}
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}

	if computed && s.exports != nil && !s.exports.enqueue(result, req.filters) {
		s.logger.Warn("metrics export queue full, dropping export", "model", req.model.String())
	}
	return result, !computed, nil
}

// evaluate returns metrics and top churners for one model and filter set.
// GET /api/v1/evaluate
func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := s.parseEvalRequest(r)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	view, err := s.data.View(ctx)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	result, hit, err := s.runEvaluation(ctx, view, req)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	breakdowns := make(map[string][]models.ValueCount, len(breakdownColumns))
	for _, col := range breakdownColumns {
		counts, err := pipeline.CountBy(result.TopChurners, col)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		breakdowns[col] = counts
	}

	setCacheHeader(w, hit)
	s.respondJSON(w, http.StatusOK, EvaluateResponse{
		FilterResult: result,
		ModelIndex:   int(result.Model),
		Label:        result.Model.Label(),
		Breakdowns:   breakdowns,
	})
}

// compare returns the metrics of every model over the same filtered rows.
// GET /api/v1/compare
func (s *Server) compare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := s.parseEvalRequest(r)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	view, err := s.data.View(ctx)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	computed := false
	comparison, err := cache.Remember(ctx, s.opts.Cache, cache.CompareKey(view.Fingerprint(), req.filters), func() ([]models.ModelComparison, error) {
		computed = true
		return pipeline.Compare(view, req.filters)
	})
	if err != nil {
		s.respondErr(w, err)
		return
	}

	setCacheHeader(w, !computed)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  comparison,
		"total": len(comparison),
	})
}

// listModels returns the model variants and their prediction columns.
// GET /api/v1/models
func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	type modelInfo struct {
		Name    string              `json:"name"`
		Label   string              `json:"label"`
		Columns models.ModelColumns `json:"columns"`
	}

	variants := models.AllModelVariants()
	out := make([]modelInfo, 0, len(variants))
	for _, m := range variants {
		out = append(out, modelInfo{
			Name:    m.String(),
			Label:   m.Label(),
			Columns: s.opts.Schema.Models[m],
		})
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"models":        out,
		"default_top_n": s.opts.DefaultTopN,
		"max_top_n":     s.opts.MaxTopN,
		"rank_mode":     s.opts.RankMode,
	})
}

// listFilters returns the distinct values of every filter column.
// GET /api/v1/filters
func (s *Server) listFilters(w http.ResponseWriter, r *http.Request) {
	view, err := s.data.View(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}

	filters := make(map[string][]string, len(models.CategoricalColumns))
	for _, col := range models.CategoricalColumns {
		values, err := view.DistinctValues(col)
		if err != nil {
			s.respondErr(w, err)
			return
		}
		filters[col] = values
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"filters": filters,
		"rows":    view.Len(),
	})
}

// getCustomer returns one record by customer ID.
// GET /api/v1/customers/{id}
func (s *Server) getCustomer(w http.ResponseWriter, r *http.Request) {
	view, err := s.data.View(r.Context())
	if err != nil {
		s.respondErr(w, err)
		return
	}

	rec, err := view.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, rec)
}

// getChart renders one of the top churner charts as PNG.
// GET /api/v1/charts/{chart}.png
func (s *Server) getChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "chart")

	req, err := s.parseEvalRequest(r)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	view, err := s.data.View(ctx)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	result, hit, err := s.runEvaluation(ctx, view, req)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	img, err := charts.Render(name, result.TopChurners)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	setCacheHeader(w, hit)
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := charts.Encode(w, charts.Scale(img, req.width)); err != nil {
		s.logger.Warn("writing chart failed", "chart", name, "error", err)
	}
}

func setCacheHeader(w http.ResponseWriter, hit bool) {
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
}
