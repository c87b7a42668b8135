package aggregate

import (
	"spending/internal/core"
)

// ColumnType is the declared type of a table column.
type ColumnType int

const (
	String ColumnType = iota
	Number
)

// Column declares one required column.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is the explicit column contract of the flattened spending table.
// Columns not named here are carried through but still count for the
// missing-value check.
type Schema []Column

// SpendingSchema is the schema of the cached spending table.
var SpendingSchema = Schema{
	{Name: core.ColumnName, Type: String},
	{Name: core.ColumnAmount, Type: Number},
}

// resolve maps declared columns to header positions.
func (s Schema) resolve(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	idx := make(map[string]int, len(s))
	var missing []string
	for _, c := range s {
		i, ok := pos[c.Name]
		if !ok {
			missing = append(missing, c.Name)
			continue
		}
		idx[c.Name] = i
	}
	if len(missing) > 0 {
		return nil, &core.SchemaError{Missing: missing}
	}
	return idx, nil
}
