// Package http provides HTTP server and handler implementations.
//
// This file implements parsing and validation of the report form.

package http

import (
	"errors"
	"net/url"
	"reflect"

	"github.com/go-playground/validator/v10"

	"spending/internal/core"
)

// ReportForm holds the submitted report selection.
type ReportForm struct {
	FiscalYear string `form:"fy" validate:"required,number,len=4"`
	Quarter    string `form:"quarter" validate:"required,oneof=1 2 3 4"`
}

// FormErrors maps a form field name to its inline message.
type FormErrors map[string]string

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	return v
}

// ParseReportForm reads and validates fy and quarter. A nil FormErrors means the form is valid.
func ParseReportForm(form url.Values) (ReportForm, FormErrors) {
	f := ReportForm{
		FiscalYear: sanitizeInput(form.Get("fy")),
		Quarter:    sanitizeInput(form.Get("quarter")),
	}

	err := validate.Struct(f)
	if err == nil {
		return f, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return f, FormErrors{"form": err.Error()}
	}
	out := make(FormErrors, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = fieldMessage(fe)
		}
	}
	return f, out
}

// Period converts a validated form into a core.Period.
func (f ReportForm) Period() (core.Period, error) {
	return core.NewPeriod(f.FiscalYear, f.Quarter)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "fy":
		if fe.Tag() == "required" {
			return "Fiscal year is required"
		}
		return "Fiscal year must be a 4-digit year"
	case "quarter":
		if fe.Tag() == "required" {
			return "Quarter is required"
		}
		return "Quarter must be 1, 2, 3 or 4"
	default:
		return fe.Error()
	}
}

// formErrorsFrom converts a ValidationError raised further down the pipeline.
func formErrorsFrom(ve *core.ValidationError) FormErrors {
	return FormErrors{ve.Field: ve.Message}
}
