package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fidde/churn_dashboard/internal/dataset"
	"github.com/fidde/churn_dashboard/pkg/models"
)

type fakeSource struct {
	mu       sync.Mutex
	identity string
	records  []models.CustomerRecord
	loadErr  error
	loads    int
	checks   int
	closed   bool
}

func (f *fakeSource) Load(ctx context.Context) (*dataset.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return dataset.New(f.records)
}

func (f *fakeSource) Identity(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.identity, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSource) identityChecks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

func (f *fakeSource) set(identity string, records []models.CustomerRecord, loadErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identity = identity
	f.records = records
	f.loadErr = loadErr
}

func record(id string) models.CustomerRecord {
	return models.CustomerRecord{
		CustomerID:      id,
		Gender:          "Female",
		PhoneService:    "Yes",
		InternetService: "DSL",
		PaymentMethod:   "Mailed check",
	}
}

func TestRegistryLoadsOncePerIdentity(t *testing.T) {
	src := &fakeSource{identity: "v1", records: []models.CustomerRecord{record("A")}}
	reg := NewRegistry(src, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		view, err := reg.View(ctx)
		if err != nil {
			t.Fatalf("View failed: %v", err)
		}
		if view.Len() != 1 {
			t.Errorf("Expected 1 row, got %d", view.Len())
		}
	}

	if reg.Loads() != 1 {
		t.Errorf("Expected 1 load, got %d", reg.Loads())
	}
}

func TestRegistryReloadsOnIdentityChange(t *testing.T) {
	src := &fakeSource{identity: "v1", records: []models.CustomerRecord{record("A")}}
	reg := NewRegistry(src, nil)
	ctx := context.Background()

	if _, err := reg.View(ctx); err != nil {
		t.Fatalf("View failed: %v", err)
	}

	src.set("v2", []models.CustomerRecord{record("A"), record("B")}, nil)

	if err := reg.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	view, err := reg.View(ctx)
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if view.Len() != 2 {
		t.Errorf("Expected 2 rows after reload, got %d", view.Len())
	}
	if reg.Loads() != 2 {
		t.Errorf("Expected 2 loads, got %d", reg.Loads())
	}
}

func TestRegistryKeepsPreviousViewOnFailedReload(t *testing.T) {
	src := &fakeSource{identity: "v1", records: []models.CustomerRecord{record("A")}}
	reg := NewRegistry(src, nil)
	ctx := context.Background()

	if _, err := reg.View(ctx); err != nil {
		t.Fatalf("View failed: %v", err)
	}

	loadErr := errors.New("truncated file")
	src.set("v2", nil, loadErr)

	if err := reg.Refresh(ctx); !errors.Is(err, loadErr) {
		t.Errorf("Expected Refresh to report %v, got %v", loadErr, err)
	}

	view, err := reg.View(ctx)
	if err != nil {
		t.Fatalf("Expected previous view to be served, got error: %v", err)
	}
	if view.Len() != 1 {
		t.Errorf("Expected previous view with 1 row, got %d", view.Len())
	}

	// The broken identity is not retried on every request.
	if src.loads != 2 {
		t.Errorf("Expected 2 load attempts, got %d", src.loads)
	}

	src.set("v3", []models.CustomerRecord{record("A"), record("B"), record("C")}, nil)
	if err := reg.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	view, err = reg.View(ctx)
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if view.Len() != 3 {
		t.Errorf("Expected recovered view with 3 rows, got %d", view.Len())
	}
}

func TestRegistryViewSkipsIdentityCheckWithinInterval(t *testing.T) {
	src := &fakeSource{identity: "v1", records: []models.CustomerRecord{record("A")}}
	reg := NewRegistry(src, nil)
	ctx := context.Background()

	if _, err := reg.View(ctx); err != nil {
		t.Fatalf("View failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.View(ctx); err != nil {
				t.Errorf("View failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := src.identityChecks(); got != 1 {
		t.Errorf("Expected 1 identity check for 11 View calls, got %d", got)
	}
}

func TestRegistryRechecksAfterInterval(t *testing.T) {
	src := &fakeSource{identity: "v1", records: []models.CustomerRecord{record("A")}}
	reg := NewRegistry(src, nil)
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }
	reg.SetCheckInterval(time.Minute)

	if _, err := reg.View(ctx); err != nil {
		t.Fatalf("View failed: %v", err)
	}
	src.set("v2", []models.CustomerRecord{record("A"), record("B")}, nil)

	now = now.Add(30 * time.Second)
	view, _ := reg.View(ctx)
	if view.Len() != 1 {
		t.Errorf("Expected cached view before the interval elapsed, got %d rows", view.Len())
	}

	now = now.Add(time.Minute)
	view, _ = reg.View(ctx)
	if view.Len() != 2 {
		t.Errorf("Expected reload after the interval elapsed, got %d rows", view.Len())
	}
	if got := src.identityChecks(); got != 2 {
		t.Errorf("Expected 2 identity checks, got %d", got)
	}
}

func TestRegistryZeroIntervalOnlyRefreshReloads(t *testing.T) {
	src := &fakeSource{identity: "v1", records: []models.CustomerRecord{record("A")}}
	reg := NewRegistry(src, nil)
	reg.SetCheckInterval(0)
	ctx := context.Background()

	if _, err := reg.View(ctx); err != nil {
		t.Fatalf("View failed: %v", err)
	}
	src.set("v2", []models.CustomerRecord{record("A"), record("B")}, nil)

	if view, _ := reg.View(ctx); view.Len() != 1 {
		t.Errorf("Expected View to keep the loaded table, got %d rows", view.Len())
	}
	if err := reg.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if view, _ := reg.View(ctx); view.Len() != 2 {
		t.Errorf("Expected 2 rows after Refresh, got %d", view.Len())
	}
}

func TestRegistryFirstLoadFailure(t *testing.T) {
	src := &fakeSource{identity: "v1", loadErr: models.ErrDataLoad}
	reg := NewRegistry(src, nil)

	_, err := reg.View(context.Background())
	if !errors.Is(err, models.ErrDataLoad) {
		t.Errorf("Expected ErrDataLoad, got %v", err)
	}
	if reg.Loads() != 0 {
		t.Errorf("Expected 0 successful loads, got %d", reg.Loads())
	}
}

func TestRegistryConcurrentViews(t *testing.T) {
	src := &fakeSource{identity: "v1", records: []models.CustomerRecord{record("A")}}
	reg := NewRegistry(src, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.View(ctx); err != nil {
				t.Errorf("View failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if reg.Loads() != 1 {
		t.Errorf("Expected 1 load under concurrency, got %d", reg.Loads())
	}
}

func TestRegistryClose(t *testing.T) {
	src := &fakeSource{identity: "v1"}
	reg := NewRegistry(src, nil)
	if err := reg.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !src.closed {
		t.Error("Expected source to be closed")
	}
}

func TestNewSourceUnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "parquet"

	if _, err := NewSource(context.Background(), cfg, nil); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestNewSourceCSV(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = "../dataset/testdata/churn_sample.csv"

	src, err := NewSource(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	defer src.Close()

	view, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if view.Len() != 16 {
		t.Errorf("Expected 16 rows, got %d", view.Len())
	}
}
