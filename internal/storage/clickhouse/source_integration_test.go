//go:build integration

package clickhouse

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/fidde/churn_dashboard/internal/dataset"
	"github.com/fidde/churn_dashboard/pkg/models"
)

// TestClickHouseIntegration loads a small table from a local ClickHouse.
// Run with: go test -tags=integration ./internal/storage/clickhouse -v
func TestClickHouseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	config := DefaultConfig()
	config.Table = "churn_predictions_it"
	config.MaxRetries = 1

	conn, err := Connect(ctx, config)
	if err != nil {
		t.Skipf("ClickHouse not available: %v", err)
	}
	defer conn.Close()

	ddl := "CREATE TABLE IF NOT EXISTS churn_predictions_it (" +
		"customerID String, gender String, SeniorCitizen UInt8, tenure UInt32, " +
		"MonthlyCharges Float64, TotalCharges Nullable(Float64), PhoneService String, " +
		"InternetService String, PaymentMethod String, Actual UInt8, " +
		"Logistic_Pred UInt8, Logistic_Prob Float64, Smote_Pred UInt8, Smote_Prob Float64, " +
		"XGB_Pred UInt8, XGB_Prob Float64) ENGINE = Memory"
	if err := conn.Exec(ctx, ddl); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	defer conn.Exec(ctx, "DROP TABLE IF EXISTS churn_predictions_it")

	if err := conn.Exec(ctx, "TRUNCATE TABLE churn_predictions_it"); err != nil {
		t.Fatalf("Failed to truncate: %v", err)
	}
	insert := "INSERT INTO churn_predictions_it VALUES " +
		"('9237-HQITU','Female',0,2,70.7,151.65,'Yes','Fiber optic','Electronic check',1,1,0.77,1,0.86,1,0.81), " +
		"('4472-LVYGI','Female',0,0,52.55,NULL,'No','DSL','Bank transfer (automatic)',0,0,0.09,0,0.18,0,0.06)"
	if err := conn.Exec(ctx, insert); err != nil {
		t.Fatalf("Failed to insert rows: %v", err)
	}

	src, err := NewSource(ctx, config, dataset.DefaultSchema(), logger)
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	defer src.Close()

	view, err := src.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if view.Len() != 2 {
		t.Errorf("Expected 2 rows, got %d", view.Len())
	}

	r, err := view.Lookup("9237-HQITU")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if p := r.Prediction(models.XGBoost); !p.Label || p.Probability != 0.81 {
		t.Errorf("Unexpected prediction: %+v", p)
	}

	missing, _ := view.Lookup("4472-LVYGI")
	if missing.TotalCharges.Valid {
		t.Error("NULL TotalCharges must stay missing")
	}
}
