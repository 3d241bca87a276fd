// Package wine describes a red wine sample and the form fields used to collect it.
package wine

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field form metadata for one physicochemical measurement
type Field struct {
	Column  string  `json:"column"`
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Default float64 `json:"default"`
	Integer bool    `json:"integer"`
	Layout  int     `json:"layout"`
}

// Contains reports whether value lies inside the field's declared range.
func (f Field) Contains(value float64) bool {
	return value >= f.Min && value <= f.Max
}

var fields = []Field{
	{Column: "fixed acidity", Key: "fixed_acidity", Label: "Fixed Acidity", Min: 4.0, Max: 16.0, Step: 0.1, Default: 7.4, Layout: 0},
	{Column: "volatile acidity", Key: "volatile_acidity", Label: "Volatile Acidity", Min: 0.1, Max: 1.5, Step: 0.01, Default: 0.7, Layout: 1},
	{Column: "citric acid", Key: "citric_acid", Label: "Citric Acid", Min: 0.0, Max: 1.0, Step: 0.01, Default: 0.0, Layout: 2},
	{Column: "residual sugar", Key: "residual_sugar", Label: "Residual Sugar", Min: 0.5, Max: 15.0, Step: 0.1, Default: 1.9, Layout: 0},
	{Column: "chlorides", Key: "chlorides", Label: "Chlorides", Min: 0.01, Max: 0.2, Step: 0.001, Default: 0.076, Layout: 1},
	{Column: "free sulfur dioxide", Key: "free_sulfur_dioxide", Label: "Free Sulfur Dioxide", Min: 1, Max: 72, Step: 1, Default: 11, Integer: true, Layout: 2},
	{Column: "total sulfur dioxide", Key: "total_sulfur_dioxide", Label: "Total Sulfur Dioxide", Min: 6, Max: 300, Step: 1, Default: 34, Integer: true, Layout: 0},
	{Column: "density", Key: "density", Label: "Density", Min: 0.990, Max: 1.004, Step: 0.0001, Default: 0.9978, Layout: 1},
	{Column: "pH", Key: "ph", Label: "pH", Min: 2.5, Max: 4.5, Step: 0.01, Default: 3.51, Layout: 2},
	{Column: "sulphates", Key: "sulphates", Label: "Sulphates", Min: 0.3, Max: 2.0, Step: 0.01, Default: 0.56, Layout: 0},
	{Column: "alcohol", Key: "alcohol", Label: "Alcohol", Min: 8.0, Max: 15.0, Step: 0.1, Default: 9.4, Layout: 1},
}

// FieldCount number of measurements in a sample
const FieldCount = 11

// LabelColumn dataset column holding the quality score
const LabelColumn = "quality"

// Fields returns the form fields in canonical column order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// Columns returns the dataset column names in canonical order.
func Columns() []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Column
	}
	return names
}

// FieldByColumn looks a field up by its dataset column name, ignoring case.
func FieldByColumn(column string) (Field, int, bool) {
	column = strings.TrimSpace(column)
	for i, f := range fields {
		if strings.EqualFold(f.Column, column) {
			return f, i, true
		}
	}
	return Field{}, -1, false
}

// Sample one wine measured on the eleven physicochemical properties
type Sample struct {
	FixedAcidity       float64 `json:"fixed acidity"`
	VolatileAcidity    float64 `json:"volatile acidity"`
	CitricAcid         float64 `json:"citric acid"`
	ResidualSugar      float64 `json:"residual sugar"`
	Chlorides          float64 `json:"chlorides"`
	FreeSulfurDioxide  float64 `json:"free sulfur dioxide"`
	TotalSulfurDioxide float64 `json:"total sulfur dioxide"`
	Density            float64 `json:"density"`
	PH                 float64 `json:"pH"`
	Sulphates          float64 `json:"sulphates"`
	Alcohol            float64 `json:"alcohol"`
}

// DefaultSample returns the sample shown when the form is first opened.
func DefaultSample() Sample {
	values := make([]float64, len(fields))
	for i, f := range fields {
		values[i] = f.Default
	}
	s, _ := FromVector(values)
	return s
}

// Vector returns the measurements in canonical column order.
func (s Sample) Vector() []float64 {
	return []float64{
		s.FixedAcidity,
		s.VolatileAcidity,
		s.CitricAcid,
		s.ResidualSugar,
		s.Chlorides,
		s.FreeSulfurDioxide,
		s.TotalSulfurDioxide,
		s.Density,
		s.PH,
		s.Sulphates,
		s.Alcohol,
	}
}

// FromVector builds a sample from values in canonical column order.
func FromVector(values []float64) (Sample, error) {
	if len(values) != FieldCount {
		return Sample{}, fmt.Errorf("expected %d values, got %d", FieldCount, len(values))
	}
	return Sample{
		FixedAcidity:       values[0],
		VolatileAcidity:    values[1],
		CitricAcid:         values[2],
		ResidualSugar:      values[3],
		Chlorides:          values[4],
		FreeSulfurDioxide:  values[5],
		TotalSulfurDioxide: values[6],
		Density:            values[7],
		PH:                 values[8],
		Sulphates:          values[9],
		Alcohol:            values[10],
	}, nil
}

// Map returns the measurements keyed by dataset column name.
func (s Sample) Map() map[string]float64 {
	values := s.Vector()
	out := make(map[string]float64, len(values))
	for i, f := range fields {
		out[f.Column] = values[i]
	}
	return out
}

// FromMap builds a sample from values keyed by column name. Missing columns take the default.
func FromMap(values map[string]float64) (Sample, error) {
	vector := DefaultSample().Vector()
	for column, value := range values {
		_, idx, ok := FieldByColumn(column)
		if !ok {
			return Sample{}, fmt.Errorf("unknown column %q", column)
		}
		vector[idx] = value
	}
	return FromVector(vector)
}

// Validate checks every measurement against its declared range.
func (s Sample) Validate() error {
	var errs ValidationErrors
	for i, value := range s.Vector() {
		if err := checkValue(fields[i], value); err != nil {
			errs = append(errs, *err)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ParseValues parses submitted form values keyed by field key.
func ParseValues(values map[string][]string) (Sample, error) {
	vector := make([]float64, len(fields))
	var errs ValidationErrors
	for i, f := range fields {
		vector[i] = f.Default
		raw := ""
		if v, ok := values[f.Key]; ok && len(v) > 0 {
			raw = strings.TrimSpace(v[0])
		}
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, ValidationError{Field: f.Label, Message: fmt.Sprintf("%q is not a number", raw)})
			continue
		}
		if verr := checkValue(f, value); verr != nil {
			errs = append(errs, *verr)
			continue
		}
		vector[i] = value
	}
	sample, err := FromVector(vector)
	if err != nil {
		return Sample{}, err
	}
	if len(errs) > 0 {
		return sample, errs
	}
	return sample, nil
}

func checkValue(f Field, value float64) *ValidationError {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &ValidationError{Field: f.Label, Message: "must be a finite number"}
	}
	if !f.Contains(value) {
		return &ValidationError{
			Field:   f.Label,
			Message: fmt.Sprintf("must be between %s and %s", formatBound(f.Min), formatBound(f.Max)),
		}
	}
	if f.Integer && value != math.Trunc(value) {
		return &ValidationError{Field: f.Label, Message: "must be a whole number"}
	}
	return nil
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ValidationError a single rejected field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// ValidationErrors all fields rejected in one submission
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, err := range e {
		parts[i] = err.Error()
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err carries field validation errors.
func IsValidation(err error) bool {
	var verrs ValidationErrors
	return errors.As(err, &verrs)
}
