package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/fidde/churn_dashboard/pkg/models"
)

const sampleCSV = "testdata/churn_sample.csv"

const header = "customerID,gender,SeniorCitizen,tenure,MonthlyCharges,TotalCharges,PhoneService,InternetService,PaymentMethod,Actual,Logistic_Pred,Logistic_Prob,Smote_Pred,Smote_Prob,XGB_Pred,XGB_Prob\n"

func TestLoadSample(t *testing.T) {
	v, err := Load(sampleCSV)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if v.Len() != 16 {
		t.Errorf("Expected 16 rows, got %d", v.Len())
	}

	r, err := v.Lookup("9237-HQITU")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if r.InternetService != "Fiber optic" || r.Tenure != 2 || !r.Actual {
		t.Errorf("Unexpected record: %+v", r)
	}
	if p := r.Prediction(models.XGBoost); !p.Label || p.Probability != 0.81 {
		t.Errorf("Unexpected XGBoost prediction: %+v", p)
	}

	senior, _ := v.Lookup("5129-JLPIS")
	if !senior.SeniorCitizen {
		t.Error("Expected 5129-JLPIS to be a senior citizen")
	}
}

func TestLoadBlankTotalChargesIsMissing(t *testing.T) {
	v, err := Load(sampleCSV)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	r, _ := v.Lookup("4472-LVYGI")
	if r.TotalCharges.Valid {
		t.Errorf("Blank TotalCharges must be missing, got %v", r.TotalCharges.Value)
	}
	if v.MissingTotalCharges() != 1 {
		t.Errorf("Expected 1 missing TotalCharges, got %d", v.MissingTotalCharges())
	}
}

func TestDistinctValuesSortedAndStable(t *testing.T) {
	v, err := Load(sampleCSV)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got, err := v.DistinctValues(models.ColumnInternetService)
	if err != nil {
		t.Fatalf("DistinctValues failed: %v", err)
	}
	want := []string{"DSL", "Fiber optic", "No"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	// Mutating the returned slice must not leak into later calls.
	got[0] = "mutated"
	again, _ := v.DistinctValues(models.ColumnInternetService)
	if !reflect.DeepEqual(again, want) {
		t.Errorf("DistinctValues not stable across calls: %v", again)
	}

	if _, err := v.DistinctValues(models.ColumnTenure); !errors.Is(err, models.ErrUnknownColumn) {
		t.Errorf("Expected ErrUnknownColumn, got %v", err)
	}
}

func TestRowsReturnsCopy(t *testing.T) {
	v, err := Load(sampleCSV)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	rows := v.Rows()
	rows[0].CustomerID = "changed"

	first := v.Rows()[0]
	if first.CustomerID != "7590-VHVEG" {
		t.Errorf("View was mutated through Rows(): %s", first.CustomerID)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "empty file",
			content: "",
			wantMsg: "empty source",
		},
		{
			name:    "missing model columns",
			content: "customerID,gender,SeniorCitizen,tenure,MonthlyCharges,TotalCharges,PhoneService,InternetService,PaymentMethod,Actual\n",
			wantMsg: "Logistic_Pred, Logistic_Prob, Smote_Pred, Smote_Prob, XGB_Pred, XGB_Prob",
		},
		{
			name:    "bad label",
			content: header + "A,Male,0,1,10,10,Yes,DSL,Mailed check,2,0,0.1,0,0.1,0,0.1\n",
			wantMsg: "column Actual",
		},
		{
			name:    "probability out of range",
			content: header + "A,Male,0,1,10,10,Yes,DSL,Mailed check,1,0,1.5,0,0.1,0,0.1\n",
			wantMsg: "outside [0,1]",
		},
		{
			name:    "negative tenure",
			content: header + "A,Male,0,-3,10,10,Yes,DSL,Mailed check,1,0,0.5,0,0.1,0,0.1\n",
			wantMsg: "column tenure",
		},
		{
			name: "duplicate id",
			content: header +
				"A,Male,0,1,10,10,Yes,DSL,Mailed check,1,0,0.5,0,0.1,0,0.1\n" +
				"A,Male,0,1,10,10,Yes,DSL,Mailed check,1,0,0.5,0,0.1,0,0.1\n",
			wantMsg: "duplicate customer ID",
		},
		{
			name:    "empty id",
			content: header + ",Male,0,1,10,10,Yes,DSL,Mailed check,1,0,0.5,0,0.1,0,0.1\n",
			wantMsg: "empty customer ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.content), DefaultSchema())
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, models.ErrDataLoad) {
				t.Errorf("Expected ErrDataLoad, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected error containing %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, models.ErrDataLoad) {
		t.Errorf("Expected ErrDataLoad, got %v", err)
	}
}

func TestParseAcceptsBooleanSpellingsAndExtraColumns(t *testing.T) {
	content := "extra," + header + "x,A,Female,true,3.0,20.5, ,No,No,Credit card (automatic),false,No,0.2,yes,0.6,0,0.4\n"

	v, err := Parse(strings.NewReader(content), DefaultSchema())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	r := v.Rows()[0]
	if !r.SeniorCitizen || r.Tenure != 3 || r.Actual {
		t.Errorf("Unexpected record: %+v", r)
	}
	if r.TotalCharges.Valid {
		t.Error("Whitespace TotalCharges must be missing")
	}
	if !r.Predictions[models.SmoteLogistic].Label {
		t.Error("Expected Smote label from \"yes\"")
	}
}

func TestCustomSchema(t *testing.T) {
	schema := DefaultSchema()
	schema.Models[models.XGBoost] = models.ModelColumns{Pred: "xgb_label", Prob: "xgb_score"}

	content := strings.Replace(header, "XGB_Pred,XGB_Prob", "xgb_label,xgb_score", 1) +
		"A,Male,0,1,10,10,Yes,DSL,Mailed check,1,0,0.5,0,0.1,1,0.9\n"

	v, err := Parse(strings.NewReader(content), schema)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p := v.Rows()[0].Prediction(models.XGBoost); !p.Label || p.Probability != 0.9 {
		t.Errorf("Unexpected prediction: %+v", p)
	}
}

func TestFingerprint(t *testing.T) {
	a, err := Load(sampleCSV)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	b, _ := Load(sampleCSV)
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("Same content should produce the same fingerprint")
	}

	data, _ := os.ReadFile(sampleCSV)
	changed := strings.Replace(string(data), "0.81", "0.82", 1)
	c, err := Parse(strings.NewReader(changed), DefaultSchema())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("Different content should produce a different fingerprint")
	}
}
