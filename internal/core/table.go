package core

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteTable flattens records into CSV: a header of Columns(recs) followed by
// one row per record. Absent values are written as empty cells.
func WriteTable(w io.Writer, recs []Record) error {
	cols := Columns(recs)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(cols))
	for i, r := range recs {
		for j, c := range cols {
			row[j], _ = r.Cell(c)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
