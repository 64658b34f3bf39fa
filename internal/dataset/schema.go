package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fidde/churn_dashboard/pkg/models"
)

// Schema maps model variants to the columns holding their predictions.
// The base customer columns are fixed.
type Schema struct {
	Models [models.NumModelVariants]models.ModelColumns
}

// DefaultSchema returns the static column mapping
// (Logistic_*, Smote_*, XGB_*).
func DefaultSchema() Schema {
	var s Schema
	for _, m := range models.AllModelVariants() {
		s.Models[m], _ = m.DefaultColumns()
	}
	return s
}

// baseColumns are required regardless of the model mapping.
var baseColumns = []string{
	models.ColumnCustomerID,
	models.ColumnGender,
	models.ColumnSeniorCitizen,
	models.ColumnTenure,
	models.ColumnMonthlyCharges,
	models.ColumnTotalCharges,
	models.ColumnPhoneService,
	models.ColumnInternetService,
	models.ColumnPaymentMethod,
	models.ColumnActual,
}

// Columns returns every required column in a fixed order: the base columns
// followed by the pred/prob pair of each variant.
func (s Schema) Columns() []string {
	cols := make([]string, 0, len(baseColumns)+2*models.NumModelVariants)
	cols = append(cols, baseColumns...)
	for _, mc := range s.Models {
		cols = append(cols, mc.Pred, mc.Prob)
	}
	return cols
}

// Decoder turns positional string values into CustomerRecords.
// It is shared by every source so all backends apply the same validation.
type Decoder struct {
	schema Schema
	idx    map[string]int
}

// NewDecoder binds a header to the schema. It fails with ErrDataLoad
// listing every required column the header lacks.
func NewDecoder(schema Schema, header []string) (*Decoder, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}

	var missing []string
	for _, c := range schema.Columns() {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s", models.ErrDataLoad, strings.Join(missing, ", "))
	}

	return &Decoder{schema: schema, idx: idx}, nil
}

// Decode parses one row. line is used in error messages only.
func (d *Decoder) Decode(line int, values []string) (models.CustomerRecord, error) {
	var r models.CustomerRecord
	p := rowParser{d: d, line: line, values: values}

	r.CustomerID = p.str(models.ColumnCustomerID)
	if r.CustomerID == "" && p.err == nil {
		p.fail(models.ColumnCustomerID, "empty customer ID")
	}
	r.Gender = p.str(models.ColumnGender)
	r.SeniorCitizen = p.flag(models.ColumnSeniorCitizen)
	r.Tenure = p.count(models.ColumnTenure)
	r.MonthlyCharges = p.amount(models.ColumnMonthlyCharges)
	r.TotalCharges = p.optionalAmount(models.ColumnTotalCharges)
	r.PhoneService = p.str(models.ColumnPhoneService)
	r.InternetService = p.str(models.ColumnInternetService)
	r.PaymentMethod = p.str(models.ColumnPaymentMethod)
	r.Actual = p.flag(models.ColumnActual)

	for i, mc := range d.schema.Models {
		r.Predictions[i] = models.Prediction{
			Label:       p.flag(mc.Pred),
			Probability: p.probability(mc.Prob),
		}
	}

	if p.err != nil {
		return models.CustomerRecord{}, p.err
	}
	return r, nil
}

// rowParser keeps the first error so Decode reads straight through.
type rowParser struct {
	d      *Decoder
	line   int
	values []string
	err    error
}

func (p *rowParser) fail(column, msg string) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: line %d, column %s: %s", models.ErrDataLoad, p.line, column, msg)
	}
}

func (p *rowParser) raw(column string) string {
	i := p.d.idx[column]
	if i >= len(p.values) {
		p.fail(column, "row has too few fields")
		return ""
	}
	return strings.TrimSpace(p.values[i])
}

func (p *rowParser) str(column string) string {
	return p.raw(column)
}

func (p *rowParser) flag(column string) bool {
	v := p.raw(column)
	b, err := parseFlag(v)
	if err != nil {
		p.fail(column, err.Error())
	}
	return b
}

func (p *rowParser) count(column string) int {
	v := p.raw(column)
	n, err := strconv.Atoi(v)
	if err != nil {
		// Some exports write integral columns as floats ("12.0").
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil || f != float64(int(f)) {
			p.fail(column, fmt.Sprintf("invalid integer %q", v))
			return 0
		}
		n = int(f)
	}
	if n < 0 {
		p.fail(column, fmt.Sprintf("negative value %d", n))
	}
	return n
}

func (p *rowParser) amount(column string) float64 {
	v := p.raw(column)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		p.fail(column, fmt.Sprintf("invalid number %q", v))
		return 0
	}
	if f < 0 {
		p.fail(column, fmt.Sprintf("negative amount %v", f))
	}
	return f
}

func (p *rowParser) optionalAmount(column string) models.NullFloat {
	v := p.raw(column)
	if v == "" || strings.EqualFold(v, "nan") || strings.EqualFold(v, "null") {
		return models.NullFloat{}
	}
	return models.NullFloat{Value: p.amount(column), Valid: true}
}

func (p *rowParser) probability(column string) float64 {
	v := p.raw(column)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) {
		p.fail(column, fmt.Sprintf("invalid probability %q", v))
		return 0
	}
	if f < 0 || f > 1 {
		p.fail(column, fmt.Sprintf("probability %v outside [0,1]", f))
	}
	return f
}

func parseFlag(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "1.0", "true", "yes":
		return true, nil
	case "0", "0.0", "false", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid 0/1 value %q", v)
	}
}
