package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fidde/churn_dashboard/internal/dataset"
)

// DefaultCheckInterval is how often View re-checks the source identity.
const DefaultCheckInterval = 30 * time.Second

// Registry holds the loaded table and reloads it only when the source
// identity changes. Readers share the loaded view under a read lock; the
// identity is checked by Refresh and at most once per check interval from
// View.
type Registry struct {
	source        Source
	logger        *slog.Logger
	checkInterval time.Duration
	now           func() time.Time

	mu             sync.RWMutex
	view           *dataset.View
	identity       string
	failedIdentity string
	lastCheck      time.Time
	loads          int
}

// NewRegistry creates a registry over source. Nothing is loaded until the
// first call to View or Refresh.
func NewRegistry(source Source, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		source:        source,
		logger:        logger,
		checkInterval: DefaultCheckInterval,
		now:           time.Now,
	}
}

// SetCheckInterval changes how often View re-checks the source identity.
// Zero disables the check; only Refresh reloads after the first load.
func (r *Registry) SetCheckInterval(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkInterval = d
}

// View returns the current table, loading it on first use or after the
// source identity changed. If a reload fails the previous table keeps being
// served and the failure is logged.
func (r *Registry) View(ctx context.Context) (*dataset.View, error) {
	r.mu.RLock()
	view, due := r.view, r.checkDueLocked()
	r.mu.RUnlock()
	if view != nil && !due {
		return view, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have checked while we waited for the lock.
	if r.view != nil && !r.checkDueLocked() {
		return r.view, nil
	}

	view, err := r.refreshLocked(ctx)
	if err != nil && r.view != nil {
		r.logger.Warn("reload failed, serving previous table", "error", err)
		return r.view, nil
	}
	return view, err
}

// Refresh checks the source identity and reloads if it changed. Unlike
// View it reports reload failures.
func (r *Registry) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.refreshLocked(ctx)
	return err
}

func (r *Registry) checkDueLocked() bool {
	if r.view == nil {
		return true
	}
	return r.checkInterval > 0 && r.now().Sub(r.lastCheck) >= r.checkInterval
}

func (r *Registry) refreshLocked(ctx context.Context) (*dataset.View, error) {
	r.lastCheck = r.now()

	id, err := r.source.Identity(ctx)
	if err != nil {
		return nil, err
	}
	if r.view != nil && (id == r.identity || id == r.failedIdentity) {
		return r.view, nil
	}

	view, err := r.source.Load(ctx)
	if err != nil {
		r.failedIdentity = id
		return nil, err
	}

	r.view = view
	r.identity = id
	r.failedIdentity = ""
	r.loads++
	r.logger.Info("churn table loaded",
		"identity", id,
		"row_count", view.Len(),
		"missing_total_charges", view.MissingTotalCharges(),
	)
	return view, nil
}

// Loads returns how many times the table has been loaded.
func (r *Registry) Loads() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loads
}

// Close closes the underlying source.
func (r *Registry) Close() error {
	return r.source.Close()
}
