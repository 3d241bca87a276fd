package wine

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultSampleIsValid(t *testing.T) {
	sample := DefaultSample()
	if err := sample.Validate(); err != nil {
		t.Fatalf("default sample should validate: %v", err)
	}
	want := Sample{
		FixedAcidity:       7.4,
		VolatileAcidity:    0.7,
		CitricAcid:         0,
		ResidualSugar:      1.9,
		Chlorides:          0.076,
		FreeSulfurDioxide:  11,
		TotalSulfurDioxide: 34,
		Density:            0.9978,
		PH:                 3.51,
		Sulphates:          0.56,
		Alcohol:            9.4,
	}
	if diff := cmp.Diff(want, sample); diff != "" {
		t.Fatalf("default sample mismatch (-want +got):\n%s", diff)
	}
}

func TestParseValuesForwardsInRangeValuesUnchanged(t *testing.T) {
	form := url.Values{
		"fixed_acidity":        {"8.1"},
		"volatile_acidity":     {"0.38"},
		"citric_acid":          {"0.28"},
		"residual_sugar":       {"2.1"},
		"chlorides":            {"0.066"},
		"free_sulfur_dioxide":  {"13"},
		"total_sulfur_dioxide": {"30"},
		"density":              {"0.9968"},
		"ph":                   {"3.23"},
		"sulphates":            {"0.73"},
		"alcohol":              {"9.7"},
	}
	sample, err := ParseValues(form)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{8.1, 0.38, 0.28, 2.1, 0.066, 13, 30, 0.9968, 3.23, 0.73, 9.7}
	if diff := cmp.Diff(want, sample.Vector()); diff != "" {
		t.Fatalf("vector mismatch (-want +got):\n%s", diff)
	}
}

func TestParseValuesBoundsAreInclusive(t *testing.T) {
	form := url.Values{}
	for _, f := range Fields() {
		form.Set(f.Key, formatBound(f.Max))
	}
	sample, err := ParseValues(form)
	if err != nil {
		t.Fatalf("max bounds should be accepted: %v", err)
	}
	for i, f := range Fields() {
		if sample.Vector()[i] != f.Max {
			t.Fatalf("%s: expected %v, got %v", f.Column, f.Max, sample.Vector()[i])
		}
	}
}

func TestParseValuesMissingFieldsUseDefaults(t *testing.T) {
	sample, err := ParseValues(url.Values{"alcohol": {"12.5"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := DefaultSample()
	want.Alcohol = 12.5
	if diff := cmp.Diff(want, sample); diff != "" {
		t.Fatalf("sample mismatch (-want +got):\n%s", diff)
	}
}

func TestParseValuesRejects(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		field string
	}{
		{name: "not a number", key: "density", value: "abc", field: "Density"},
		{name: "below min", key: "ph", value: "2.4", field: "pH"},
		{name: "above max", key: "alcohol", value: "15.01", field: "Alcohol"},
		{name: "fraction for integer field", key: "free_sulfur_dioxide", value: "11.5", field: "Free Sulfur Dioxide"},
		{name: "not finite", key: "chlorides", value: "NaN", field: "Chlorides"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseValues(url.Values{tt.key: {tt.value}})
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsValidation(err) {
				t.Fatalf("expected validation error, got %T", err)
			}
			errs := err.(ValidationErrors)
			if len(errs) != 1 || errs[0].Field != tt.field {
				t.Fatalf("unexpected errors: %v", errs)
			}
		})
	}
}

func TestParseValuesCollectsEveryError(t *testing.T) {
	_, err := ParseValues(url.Values{
		"fixed_acidity": {"100"},
		"sulphates":     {"0"},
	})
	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}
}

func TestFromMap(t *testing.T) {
	sample, err := FromMap(map[string]float64{"pH": 3.0, "Alcohol": 11})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sample.PH != 3.0 || sample.Alcohol != 11 {
		t.Fatalf("unexpected sample: %+v", sample)
	}
	if sample.Density != DefaultSample().Density {
		t.Fatalf("missing column should keep default")
	}

	if _, err := FromMap(map[string]float64{"colour": 1}); err == nil {
		t.Fatal("expected error for unknown column")
	}
}

func TestSampleMapUsesColumnNames(t *testing.T) {
	values := DefaultSample().Map()
	if len(values) != FieldCount {
		t.Fatalf("expected %d columns, got %d", FieldCount, len(values))
	}
	if values["total sulfur dioxide"] != 34 {
		t.Fatalf("unexpected value: %v", values["total sulfur dioxide"])
	}
}

func TestFromVectorLength(t *testing.T) {
	if _, err := FromVector([]float64{1, 2}); err == nil {
		t.Fatal("expected error for short vector")
	}
}
