package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ModelVariant identifies one of the prediction sources compared by the dashboard.
type ModelVariant int

const (
	LogisticRegression ModelVariant = iota
	SmoteLogistic
	XGBoost

	// NumModelVariants is the number of supported variants.
	NumModelVariants = 3
)

// ModelColumns names the predicted-label and predicted-probability columns of a variant.
type ModelColumns struct {
	Pred string `json:"pred" yaml:"pred"`
	Prob string `json:"prob" yaml:"prob"`
}

var variantNames = [NumModelVariants]string{
	LogisticRegression: "LogisticRegression",
	SmoteLogistic:      "SmoteLogistic",
	XGBoost:            "XGBoost",
}

var variantLabels = [NumModelVariants]string{
	LogisticRegression: "Logistic Regression",
	SmoteLogistic:      "SMOTE Logistic",
	XGBoost:            "XGBoost",
}

var defaultColumns = [NumModelVariants]ModelColumns{
	LogisticRegression: {Pred: "Logistic_Pred", Prob: "Logistic_Prob"},
	SmoteLogistic:      {Pred: "Smote_Pred", Prob: "Smote_Prob"},
	XGBoost:            {Pred: "XGB_Pred", Prob: "XGB_Prob"},
}

// variantAliases maps lowercased accepted spellings to variants.
var variantAliases = map[string]ModelVariant{
	"logisticregression":  LogisticRegression,
	"logistic regression": LogisticRegression,
	"logistic_regression": LogisticRegression,
	"logistic":            LogisticRegression,
	"smotelogistic":       SmoteLogistic,
	"smote logistic":      SmoteLogistic,
	"smote_logistic":      SmoteLogistic,
	"smote":               SmoteLogistic,
	"xgboost":             XGBoost,
	"xgb":                 XGBoost,
}

// AllModelVariants returns every variant in declaration order.
func AllModelVariants() []ModelVariant {
	return []ModelVariant{LogisticRegression, SmoteLogistic, XGBoost}
}

// ParseModelVariant resolves a variant from its canonical name, its display
// label or a short key. Matching is case-insensitive.
func ParseModelVariant(s string) (ModelVariant, error) {
	if v, ok := variantAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownModel, s)
}

// Valid reports whether m is one of the enumerated variants.
func (m ModelVariant) Valid() bool {
	return m >= 0 && m < NumModelVariants
}

// String returns the canonical name.
func (m ModelVariant) String() string {
	if !m.Valid() {
		return fmt.Sprintf("ModelVariant(%d)", int(m))
	}
	return variantNames[m]
}

// Label returns the human-readable name shown in the dashboard.
func (m ModelVariant) Label() string {
	if !m.Valid() {
		return m.String()
	}
	return variantLabels[m]
}

// DefaultColumns returns the static column mapping of the variant.
func (m ModelVariant) DefaultColumns() (ModelColumns, error) {
	if !m.Valid() {
		return ModelColumns{}, fmt.Errorf("%w: %s", ErrUnknownModel, m)
	}
	return defaultColumns[m], nil
}

// MarshalJSON encodes the canonical name.
func (m ModelVariant) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts any spelling ParseModelVariant accepts.
func (m *ModelVariant) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseModelVariant(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
