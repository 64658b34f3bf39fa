package api

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/fidde/churn_dashboard/pkg/models"
)

// DefaultExportQueueSize is the number of pending metric exports kept
// before new ones are dropped.
const DefaultExportQueueSize = 16

type exportJob struct {
	result  *models.FilterResult
	filters models.FilterSpec
}

// exportQueue hands computed results to a single export worker. When the
// worker falls behind, new results are dropped rather than queued.
type exportQueue struct {
	exporter MetricsExporter
	logger   *slog.Logger
	jobs     chan exportJob
	done     chan struct{}
	stop     sync.Once
	dropped  atomic.Int64
}

func newExportQueue(exporter MetricsExporter, size int, logger *slog.Logger) *exportQueue {
	return &exportQueue{
		exporter: exporter,
		logger:   logger,
		jobs:     make(chan exportJob, size),
		done:     make(chan struct{}),
	}
}

// enqueue never blocks. It reports whether the job was accepted.
func (q *exportQueue) enqueue(result *models.FilterResult, filters models.FilterSpec) bool {
	select {
	case <-q.done:
		return false
	default:
	}

	select {
	case q.jobs <- exportJob{result: result, filters: filters}:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

func (q *exportQueue) run() {
	for {
		select {
		case <-q.done:
			return
		case job := <-q.jobs:
			if err := q.exporter.Export(context.Background(), job.result, job.filters); err != nil {
				q.logger.Warn("metrics export failed", "error", err)
			}
		}
	}
}

func (q *exportQueue) close() {
	q.stop.Do(func() { close(q.done) })
}
