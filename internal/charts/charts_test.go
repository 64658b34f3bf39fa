package charts

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"github.com/fidde/churn_dashboard/pkg/models"
)

func topChurners() []models.CustomerRecord {
	return []models.CustomerRecord{
		{CustomerID: "9237-HQITU", PhoneService: "Yes", InternetService: "Fiber optic", PaymentMethod: "Electronic check", TotalCharges: models.NullFloat{Value: 151.65, Valid: true}},
		{CustomerID: "9305-CDSKC", PhoneService: "Yes", InternetService: "Fiber optic", PaymentMethod: "Electronic check", TotalCharges: models.NullFloat{Value: 820.5, Valid: true}},
		{CustomerID: "3668-QPYBK", PhoneService: "Yes", InternetService: "DSL", PaymentMethod: "Mailed check", TotalCharges: models.NullFloat{Value: 108.15, Valid: true}},
		{CustomerID: "4472-LVYGI", PhoneService: "No", InternetService: "DSL", PaymentMethod: "Bank transfer (automatic)"},
	}
}

func TestRenderAllCharts(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			img, err := Render(name, topChurners())
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}

			var buf bytes.Buffer
			if err := Encode(&buf, img); err != nil {
				t.Fatalf("Encode failed: %v", err)
			}

			decoded, err := png.Decode(&buf)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			b := decoded.Bounds()
			if b.Dx() != Width || b.Dy() != Height {
				t.Errorf("Expected %dx%d, got %dx%d", Width, Height, b.Dx(), b.Dy())
			}
		})
	}
}

func TestRenderUnknownChart(t *testing.T) {
	_, err := Render("scatter", topChurners())
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRenderEmpty(t *testing.T) {
	for _, name := range Names() {
		img, err := Render(name, nil)
		if err != nil {
			t.Fatalf("Render(%s) failed: %v", name, err)
		}
		if img.Bounds().Dx() != Width {
			t.Errorf("Expected width %d for %s, got %d", Width, name, img.Bounds().Dx())
		}
	}
}

func TestPieChartFillsCenter(t *testing.T) {
	img := PieChart("phone", []models.ValueCount{{Value: "Yes", Count: 3}})

	if got := img.RGBAAt(Width/4+30, Height/2+15); got == background {
		t.Error("Expected pie center to be filled")
	}
	if got := img.RGBAAt(5, Height-5); got != background {
		t.Errorf("Expected corner to stay background, got %v", got)
	}
}

func TestBarChartDrawsBars(t *testing.T) {
	img := BarChart("charges", []Bar{{Label: "A", Value: 10}})

	// A single bar spans the middle of the plot area and reaches the top.
	got := img.RGBAAt(Width/2, Height-80)
	if got != palette[0] {
		t.Errorf("Expected bar color %v, got %v", palette[0], got)
	}
}

func TestScale(t *testing.T) {
	img, err := Render(TotalCharges, topChurners())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	small := Scale(img, 320)
	if small.Bounds().Dx() != 320 || small.Bounds().Dy() != 200 {
		t.Errorf("Expected 320x200, got %v", small.Bounds())
	}

	if Scale(img, 0) != img {
		t.Error("Expected zero width to leave image unchanged")
	}
	if Scale(img, 2*Width) != img {
		t.Error("Expected upscaling to be refused")
	}
}
