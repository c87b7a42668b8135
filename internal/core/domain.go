package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultRankSize is the length of each ranked list unless configured otherwise.
const DefaultRankSize = 10

// Column names of the declared spending schema.
const (
	ColumnName   = "name"
	ColumnAmount = "amount"
)

type (
	// Period identifies a fiscal year/quarter dataset. It is the cache key.
	Period struct {
		FiscalYear string
		Quarter    string
	}

	// Record is one raw result entry as returned by the spending API.
	Record map[string]any

	// Entry is the total spending for one cleaned recipient name.
	Entry struct {
		Name  string  `json:"name"`
		Total float64 `json:"total"`
	}

	// Rankings holds the top and bottom spenders for a dataset plus load statistics.
	Rankings struct {
		Top     []Entry
		Bottom  []Entry
		Rows    int // rows that survived cleaning
		Dropped int // rows dropped for missing or malformed values
		Groups  int // distinct cleaned names
		Size    int // configured list length, DefaultRankSize when zero
	}

	// Report is the outcome of one pipeline run.
	Report struct {
		Period      Period
		Rankings    Rankings
		ChartFile   string // file name under the static dir, empty when rendering failed
		CacheHit    bool
		GeneratedAt time.Time
	}
)

var (
	ErrInvalidFiscalYear = errors.New("invalid fiscal year")
	ErrInvalidQuarter    = errors.New("invalid quarter")
)

// NewPeriod trims and validates fiscal year and quarter.
func NewPeriod(fy, quarter string) (Period, error) {
	p := Period{FiscalYear: strings.TrimSpace(fy), Quarter: strings.TrimSpace(quarter)}
	return p, p.Validate()
}

// Validate checks the period is safe to use as a path component and as an API filter.
func (p Period) Validate() error {
	if len(p.FiscalYear) != 4 {
		return ErrInvalidFiscalYear
	}
	for _, r := range p.FiscalYear {
		if r < '0' || r > '9' {
			return ErrInvalidFiscalYear
		}
	}
	switch p.Quarter {
	case "1", "2", "3", "4":
	default:
		return ErrInvalidQuarter
	}
	return nil
}

// Key returns the stable identifier used for cache directories and artifacts.
func (p Period) Key() string {
	return "fy" + p.FiscalYear + "_q" + p.Quarter
}

func (p Period) String() string {
	return fmt.Sprintf("FY%s Q%s", p.FiscalYear, p.Quarter)
}

// Cell returns the textual value of a column and whether it is present.
// Missing keys and JSON nulls are reported as absent.
func (r Record) Cell(column string) (string, bool) {
	v, ok := r[column]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val), true
		}
		return string(b), true
	}
}

// Columns returns the sorted union of keys across records, always including
// the declared schema columns.
func Columns(recs []Record) []string {
	seen := map[string]struct{}{ColumnName: {}, ColumnAmount: {}}
	for _, r := range recs {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// CleanName truncates a recipient name at its first comma.
func CleanName(name string) string {
	if i := strings.IndexByte(name, ','); i >= 0 {
		return name[:i]
	}
	return name
}
