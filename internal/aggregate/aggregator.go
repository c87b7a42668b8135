// Package aggregate turns a cached spending table into top and bottom spender rankings.
package aggregate

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"spending/internal/core"
	"spending/internal/engine"
)

// DefaultSize is the number of entries in each ranking.
const DefaultSize = 10

// Aggregator cleans, groups and ranks spending rows using an injected engine.
type Aggregator struct {
	engine *engine.Engine
	size   int
}

// New returns an aggregator producing rankings of the given size.
func New(e *engine.Engine, size int) *Aggregator {
	if size <= 0 {
		size = DefaultSize
	}
	return &Aggregator{engine: e, size: size}
}

// Size returns the ranking length.
func (a *Aggregator) Size() int {
	return a.size
}

// AggregateRecords flattens raw records into a table and aggregates it.
func (a *Aggregator) AggregateRecords(ctx context.Context, recs []core.Record) (core.Rankings, error) {
	var buf bytes.Buffer
	if err := core.WriteTable(&buf, recs); err != nil {
		return core.Rankings{}, fmt.Errorf("flatten records: %w", err)
	}
	return a.Aggregate(ctx, &buf)
}

// Aggregate loads a flattened table, drops incomplete or malformed rows,
// groups by cleaned name and returns the top and bottom rankings.
func (a *Aggregator) Aggregate(ctx context.Context, table io.Reader) (core.Rankings, error) {
	rows, dropped, err := Load(ctx, table)
	if err != nil {
		return core.Rankings{}, err
	}

	frame, err := a.engine.Load(ctx, rows)
	if err != nil {
		return core.Rankings{}, fmt.Errorf("stage rows: %w", err)
	}
	defer func() {
		if err := frame.Release(context.WithoutCancel(ctx)); err != nil {
			slog.WarnContext(ctx, "Failed to release engine frame", "error", err)
		}
	}()

	groups, err := frame.GroupCount(ctx)
	if err != nil {
		return core.Rankings{}, err
	}
	top, err := frame.Top(ctx, a.size)
	if err != nil {
		return core.Rankings{}, fmt.Errorf("rank top: %w", err)
	}
	bottom, err := frame.Bottom(ctx, a.size)
	if err != nil {
		return core.Rankings{}, fmt.Errorf("rank bottom: %w", err)
	}

	return core.Rankings{
		Top:     top,
		Bottom:  bottom,
		Rows:    len(rows),
		Dropped: dropped,
		Groups:  groups,
		Size:    a.size,
	}, nil
}

// Load reads a CSV table against SpendingSchema and returns cleaned rows in file order.
//
// A row is dropped when any cell (declared or not) is empty, when its width
// differs from the header, or when a Number column does not parse. The header
// must contain every declared column.
func Load(ctx context.Context, table io.Reader) (rows []engine.Row, dropped int, err error) {
	schema := SpendingSchema

	r := csv.NewReader(table)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, schema.missingAll()
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read table header: %w", err)
	}
	idx, err := schema.resolve(header)
	if err != nil {
		return nil, 0, err
	}
	nameAt := idx[core.ColumnName]

	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, 0, fmt.Errorf("read table line %d: %w", line, err)
		}

		if len(rec) != len(header) || hasEmpty(rec) {
			dropped++
			continue
		}
		amount, err := coerce(rec, schema, idx)
		if err != nil {
			slog.DebugContext(ctx, "Dropping row with malformed value", "line", line, "error", err)
			dropped++
			continue
		}
		rows = append(rows, engine.Row{Name: core.CleanName(rec[nameAt]), Amount: amount})
	}
	return rows, dropped, nil
}

// coerce validates every Number column of rec and returns the amount.
func coerce(rec []string, schema Schema, idx map[string]int) (float64, error) {
	var amount float64
	for _, c := range schema {
		if c.Type != Number {
			continue
		}
		v, err := core.ParseAmount(rec[idx[c.Name]])
		if err != nil {
			return 0, err
		}
		if c.Name == core.ColumnAmount {
			amount = v
		}
	}
	return amount, nil
}

func hasEmpty(rec []string) bool {
	for _, v := range rec {
		if v == "" {
			return true
		}
	}
	return false
}

func (s Schema) missingAll() error {
	missing := make([]string, len(s))
	for i, c := range s {
		missing[i] = c.Name
	}
	return &core.SchemaError{Missing: missing}
}
