package core

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestPeriodValidate(t *testing.T) {
	cases := []struct {
		fy, q string
		err   error
	}{
		{"2024", "1", nil},
		{" 2023 ", "4 ", nil},
		{"", "1", ErrInvalidFiscalYear},
		{"24", "1", ErrInvalidFiscalYear},
		{"20x4", "1", ErrInvalidFiscalYear},
		{"../x", "1", ErrInvalidFiscalYear},
		{"2024", "", ErrInvalidQuarter},
		{"2024", "5", ErrInvalidQuarter},
		{"2024", "0", ErrInvalidQuarter},
	}
	for _, tc := range cases {
		_, err := NewPeriod(tc.fy, tc.q)
		if !errors.Is(err, tc.err) {
			t.Fatalf("NewPeriod(%q, %q) err=%v, want %v", tc.fy, tc.q, err, tc.err)
		}
	}
}

func TestPeriodKey(t *testing.T) {
	p := Period{FiscalYear: "2024", Quarter: "2"}
	if got := p.Key(); got != "fy2024_q2" {
		t.Fatalf("Key() = %q", got)
	}
	if got := p.String(); got != "FY2024 Q2" {
		t.Fatalf("String() = %q", got)
	}
}

func TestCleanName(t *testing.T) {
	cases := map[string]string{
		"Acme Corp, LLC":   "Acme Corp",
		"Acme Corp, Inc":   "Acme Corp",
		"Zeta":             "Zeta",
		",leading":         "",
		"a,b,c":            "a",
		"":                 "",
		"Trailing,":        "Trailing",
		"Dept. of Energy ": "Dept. of Energy ",
	}
	for in, want := range cases {
		got := CleanName(in)
		if got != want {
			t.Fatalf("CleanName(%q) = %q, want %q", in, got, want)
		}
		if again := CleanName(got); again != got {
			t.Fatalf("CleanName not idempotent for %q: %q", got, again)
		}
	}
}

func TestRecordCell(t *testing.T) {
	r := Record{
		"name":   "Acme",
		"amount": json.Number("12.50"),
		"id":     float64(7),
		"flag":   true,
		"nested": map[string]any{"a": 1},
		"none":   nil,
	}
	cases := []struct {
		col  string
		want string
		ok   bool
	}{
		{"name", "Acme", true},
		{"amount", "12.50", true},
		{"id", "7", true},
		{"flag", "true", true},
		{"nested", `{"a":1}`, true},
		{"none", "", false},
		{"missing", "", false},
	}
	for _, tc := range cases {
		got, ok := r.Cell(tc.col)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("Cell(%q) = %q,%v want %q,%v", tc.col, got, ok, tc.want, tc.ok)
		}
	}
}

func TestColumns(t *testing.T) {
	got := Columns([]Record{{"name": "a", "code": "1"}, {"id": 2}})
	want := []string{"amount", "code", "id", "name"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Columns() = %v, want %v", got, want)
	}
	if got := Columns(nil); !reflect.DeepEqual(got, []string{"amount", "name"}) {
		t.Fatalf("Columns(nil) = %v", got)
	}
}

func TestRankingsTitles(t *testing.T) {
	var r Rankings
	if got := r.TopTitle(); got != "Top 10 Highest Spending" {
		t.Errorf("TopTitle() = %q", got)
	}
	r.Size = 3
	if got := r.TopTitle(); got != "Top 3 Highest Spending" {
		t.Errorf("TopTitle() = %q", got)
	}
	if got := r.BottomTitle(); got != "Top 3 Lowest Spending (Excluding Zero)" {
		t.Errorf("BottomTitle() = %q", got)
	}
}
