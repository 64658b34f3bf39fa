// Package models defines the core data structures for churn analytics.
//
// This package contains the domain models shared by the dataset loader,
// the metrics pipeline and the HTTP layer. All types are plain values so a
// copy never aliases state held by a loaded dataset.
package models

import (
	"encoding/json"
	"strconv"
)

// Column names of the source table.
const (
	ColumnCustomerID      = "customerID"
	ColumnGender          = "gender"
	ColumnSeniorCitizen   = "SeniorCitizen"
	ColumnTenure          = "tenure"
	ColumnMonthlyCharges  = "MonthlyCharges"
	ColumnTotalCharges    = "TotalCharges"
	ColumnPhoneService    = "PhoneService"
	ColumnInternetService = "InternetService"
	ColumnPaymentMethod   = "PaymentMethod"
	ColumnActual          = "Actual"
)

// CategoricalColumns lists the columns that can be filtered on and
// enumerated with DistinctValues.
var CategoricalColumns = []string{
	ColumnGender,
	ColumnInternetService,
	ColumnPaymentMethod,
	ColumnPhoneService,
}

// IsCategorical reports whether column is one of CategoricalColumns.
func IsCategorical(column string) bool {
	for _, c := range CategoricalColumns {
		if c == column {
			return true
		}
	}
	return false
}

// NullFloat is a float that may be missing in the source.
type NullFloat struct {
	Value float64
	Valid bool
}

// MarshalJSON encodes a missing value as null.
func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// UnmarshalJSON accepts a number or null.
func (n *NullFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = NullFloat{}
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*n = NullFloat{Value: v, Valid: true}
	return nil
}

// Prediction is one model's output for a customer.
type Prediction struct {
	Label       bool    `json:"label"`
	Probability float64 `json:"probability"`
}

// CustomerRecord is one row of the churn prediction table.
type CustomerRecord struct {
	CustomerID      string    `json:"customerID"`
	Gender          string    `json:"gender"`
	SeniorCitizen   bool      `json:"SeniorCitizen"`
	Tenure          int       `json:"tenure"`
	MonthlyCharges  float64   `json:"MonthlyCharges"`
	TotalCharges    NullFloat `json:"TotalCharges"`
	PhoneService    string    `json:"PhoneService"`
	InternetService string    `json:"InternetService"`
	PaymentMethod   string    `json:"PaymentMethod"`
	Actual          bool      `json:"Actual"`

	// Predictions is indexed by ModelVariant.
	Predictions [NumModelVariants]Prediction `json:"predictions"`
}

// Category returns the value of a categorical column.
// The second return value is false if column is not categorical.
func (r *CustomerRecord) Category(column string) (string, bool) {
	switch column {
	case ColumnGender:
		return r.Gender, true
	case ColumnInternetService:
		return r.InternetService, true
	case ColumnPaymentMethod:
		return r.PaymentMethod, true
	case ColumnPhoneService:
		return r.PhoneService, true
	default:
		return "", false
	}
}

// Prediction returns the prediction of the given model variant.
func (r *CustomerRecord) Prediction(m ModelVariant) Prediction {
	if !m.Valid() {
		return Prediction{}
	}
	return r.Predictions[m]
}
