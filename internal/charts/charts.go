// Package charts renders the dashboard's top churner visuals as PNG images.
package charts

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/fidde/churn_dashboard/internal/pipeline"
	"github.com/fidde/churn_dashboard/pkg/models"
)

// Canvas size of every chart.
const (
	Width  = 640
	Height = 400
)

// Chart names.
const (
	TotalCharges    = "total-charges"
	PhoneService    = "phone-service"
	PaymentMethod   = "payment-method"
	InternetService = "internet-service"
)

// MinScaledWidth is the smallest width Scale produces.
const MinScaledWidth = 64

var (
	background = color.RGBA{0xff, 0xff, 0xff, 0xff}
	textColor  = color.RGBA{0x22, 0x22, 0x22, 0xff}
	axisColor  = color.RGBA{0x55, 0x55, 0x55, 0xff}
	gridColor  = color.RGBA{0xe4, 0xe4, 0xe4, 0xff}

	palette = []color.RGBA{
		{0x4b, 0x00, 0x82, 0xff},
		{0x93, 0x70, 0xdb, 0xff},
		{0x00, 0xb4, 0xd8, 0xff},
		{0xf7, 0x7f, 0x00, 0xff},
		{0xd6, 0x28, 0x28, 0xff},
		{0x2a, 0x9d, 0x8f, 0xff},
	}
)

// Names returns the chart names Render accepts.
func Names() []string {
	return []string{TotalCharges, PhoneService, PaymentMethod, InternetService}
}

// Bar is one bar of a vertical bar chart.
type Bar struct {
	Label string
	Value float64
}

// Render draws the named chart from the top churner list.
func Render(name string, top []models.CustomerRecord) (*image.RGBA, error) {
	switch name {
	case TotalCharges:
		bars := make([]Bar, 0, len(top))
		for i := range top {
			// Missing TotalCharges draws as an empty slot.
			bars = append(bars, Bar{Label: top[i].CustomerID, Value: top[i].TotalCharges.Value})
		}
		return BarChart("Total Charges of Top Churners", bars), nil

	case PhoneService:
		counts, err := pipeline.CountBy(top, models.ColumnPhoneService)
		if err != nil {
			return nil, err
		}
		return PieChart("Top Churners with Phone Service", counts), nil

	case PaymentMethod:
		counts, err := pipeline.CountBy(top, models.ColumnPaymentMethod)
		if err != nil {
			return nil, err
		}
		return HBarChart("Top Churners by Payment Method", counts), nil

	case InternetService:
		counts, err := pipeline.CountBy(top, models.ColumnInternetService)
		if err != nil {
			return nil, err
		}
		return HBarChart("Top Churners by Internet Service", counts), nil

	default:
		return nil, fmt.Errorf("%w: chart %q", models.ErrNotFound, name)
	}
}

// Encode writes img as PNG.
func Encode(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// Scale resizes img to width keeping the aspect ratio. Widths outside
// [MinScaledWidth, current width) return img unchanged.
func Scale(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width < MinScaledWidth || width >= b.Dx() {
		return img
	}
	height := b.Dy() * width / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// BarChart draws one vertical bar per entry, labelled underneath.
func BarChart(title string, bars []Bar) *image.RGBA {
	c := newCanvas(title)
	if len(bars) == 0 {
		c.noData()
		return c.img
	}

	plot := image.Rect(70, 50, Width-20, Height-70)

	maxV := 0.0
	for _, b := range bars {
		maxV = math.Max(maxV, b.Value)
	}
	if maxV <= 0 {
		maxV = 1
	}

	const ticks = 4
	for i := 0; i <= ticks; i++ {
		y := plot.Max.Y - plot.Dy()*i/ticks
		c.fillRect(image.Rect(plot.Min.X, y, plot.Max.X, y+1), gridColor)
		label := fmt.Sprintf("%.0f", maxV*float64(i)/ticks)
		c.text(plot.Min.X-6-textWidth(label), y+4, label, textColor)
	}
	c.axes(plot)

	slot := float64(plot.Dx()) / float64(len(bars))
	barW := int(slot * 0.7)
	if barW < 1 {
		barW = 1
	}

	for i, b := range bars {
		x0 := plot.Min.X + int(slot*float64(i)+(slot-float64(barW))/2)
		h := int(float64(plot.Dy()) * b.Value / maxV)
		if h > 0 {
			c.fillRect(image.Rect(x0, plot.Max.Y-h, x0+barW, plot.Max.Y), palette[0])
		}

		// Labels alternate between two rows so each gets two slots of room.
		w := textWidth(b.Label)
		if float64(w) <= 2*slot {
			y := plot.Max.Y + 16 + (i%2)*14
			c.text(x0+barW/2-w/2, y, b.Label, textColor)
		}
	}
	return c.img
}

// PieChart draws one wedge per value with a percentage legend.
func PieChart(title string, counts []models.ValueCount) *image.RGBA {
	c := newCanvas(title)
	total := 0
	for _, vc := range counts {
		total += vc.Count
	}
	if total == 0 {
		c.noData()
		return c.img
	}

	cx, cy := float32(Width/4+30), float32(Height/2+15)
	r := float32(140)
	lx := Width/2 + 60

	start := -math.Pi / 2
	for i, vc := range counts {
		col := palette[i%len(palette)]
		sweep := 2 * math.Pi * float64(vc.Count) / float64(total)
		wedge(c.img, cx, cy, r, start, start+sweep, col)
		start += sweep

		y := 80 + i*22
		c.fillRect(image.Rect(lx, y-10, lx+12, y+2), col)
		c.text(lx+18, y, fmt.Sprintf("%s  %.1f%%", vc.Value, 100*float64(vc.Count)/float64(total)), textColor)
	}
	return c.img
}

// HBarChart draws one horizontal bar per value with its count at the end.
func HBarChart(title string, counts []models.ValueCount) *image.RGBA {
	c := newCanvas(title)
	if len(counts) == 0 {
		c.noData()
		return c.img
	}

	labelW := 0
	maxC := 0
	for _, vc := range counts {
		if w := textWidth(vc.Value); w > labelW {
			labelW = w
		}
		if vc.Count > maxC {
			maxC = vc.Count
		}
	}
	if maxC == 0 {
		maxC = 1
	}

	plot := image.Rect(30+labelW, 50, Width-50, Height-20)
	rowH := plot.Dy() / len(counts)
	barH := rowH * 6 / 10
	if barH > 40 {
		barH = 40
	}
	if barH < 1 {
		barH = 1
	}

	for i, vc := range counts {
		y0 := plot.Min.Y + i*rowH + (rowH-barH)/2
		w := plot.Dx() * vc.Count / maxC
		c.fillRect(image.Rect(plot.Min.X, y0, plot.Min.X+w, y0+barH), palette[i%len(palette)])

		mid := y0 + barH/2 + 4
		c.text(plot.Min.X-10-textWidth(vc.Value), mid, vc.Value, textColor)
		c.text(plot.Min.X+w+6, mid, fmt.Sprintf("%d", vc.Count), textColor)
	}
	c.fillRect(image.Rect(plot.Min.X-1, plot.Min.Y, plot.Min.X, plot.Max.Y), axisColor)
	return c.img
}

type canvas struct {
	img *image.RGBA
}

func newCanvas(title string) *canvas {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	c := &canvas{img: img}
	c.text(Width/2-textWidth(title)/2, 28, title, textColor)
	return c
}

func (c *canvas) fillRect(r image.Rectangle, col color.Color) {
	draw.Draw(c.img, r, image.NewUniform(col), image.Point{}, draw.Over)
}

func (c *canvas) text(x, y int, s string, col color.Color) {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func (c *canvas) axes(plot image.Rectangle) {
	c.fillRect(image.Rect(plot.Min.X-1, plot.Min.Y, plot.Min.X, plot.Max.Y+1), axisColor)
	c.fillRect(image.Rect(plot.Min.X-1, plot.Max.Y, plot.Max.X, plot.Max.Y+1), axisColor)
}

func (c *canvas) noData() {
	const msg = "no data for the current filters"
	c.text(Width/2-textWidth(msg)/2, Height/2, msg, axisColor)
}

func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

// wedge fills the circular sector between angles from and to (radians).
func wedge(dst *image.RGBA, cx, cy, r float32, from, to float64, col color.Color) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())

	steps := int(math.Ceil((to - from) / (math.Pi / 90)))
	if steps < 1 {
		steps = 1
	}

	z.MoveTo(cx, cy)
	for s := 0; s <= steps; s++ {
		a := from + (to-from)*float64(s)/float64(steps)
		z.LineTo(cx+r*float32(math.Cos(a)), cy+r*float32(math.Sin(a)))
	}
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(col), image.Point{})
}
