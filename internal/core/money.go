// Package core provides amount parsing utilities.
//
// Upstream amounts arrive as JSON numbers or strings; both are coerced through
// a decimal so that a value like "1e3" or " 12.50 " is accepted and anything
// non-numeric is rejected instead of silently becoming zero.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmountMagnitude bounds accepted amounts below 1e300, leaving headroom so
// group sums stay finite in float64.
const maxAmountMagnitude = 300

// ParseAmount converts a textual amount to a float64.
//
// Examples:
//
//	ParseAmount("100")      -> 100, nil
//	ParseAmount("-12.5")    -> -12.5, nil
//	ParseAmount("1.5e3")    -> 1500, nil
//	ParseAmount("n/a")      -> 0, *DataQualityError
//	ParseAmount("1e400")    -> 0, *DataQualityError
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &DataQualityError{Column: ColumnAmount, Value: s, Reason: "empty amount"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, &DataQualityError{Column: ColumnAmount, Value: s, Reason: "not a number"}
	}
	// Checked before conversion: huge exponents make the float conversion slow.
	exp := int64(d.Exponent())
	if exp > maxAmountMagnitude || exp < -2*maxAmountMagnitude ||
		(!d.IsZero() && int64(d.NumDigits())+exp > maxAmountMagnitude) {
		return 0, &DataQualityError{Column: ColumnAmount, Value: s, Reason: "out of range"}
	}
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, &DataQualityError{Column: ColumnAmount, Value: s, Reason: "out of range"}
	}
	return f, nil
}
