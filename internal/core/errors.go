package core

import (
	"fmt"
	"strings"
)

// ValidationError reports a missing or malformed form field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FetchError reports a non-success response from the spending API.
type FetchError struct {
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("Error fetching data: %d - %s", e.StatusCode, e.Body)
}

// DataQualityError describes a single value that could not be coerced to its column type.
type DataQualityError struct {
	Column string
	Value  string
	Reason string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("column %s: %s (%q)", e.Column, e.Reason, e.Value)
}

// SchemaError reports a tabular file whose header lacks declared columns.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "table is missing required columns: " + strings.Join(e.Missing, ", ")
}

// StorageError wraps a cache I/O failure.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
