package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"spending/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var testReport = core.Report{
	Period: core.Period{FiscalYear: "2024", Quarter: "1"},
	Rankings: core.Rankings{
		Top:    []core.Entry{{Name: "Acme Corp", Total: 150}, {Name: "Zeta", Total: 0}},
		Bottom: []core.Entry{{Name: "Acme Corp", Total: 150}},
		Groups: 2,
	},
	GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Config{SpreadsheetID: "test-id"})
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "test-id", ServiceAccountFile: "/non/existent/sa.json"})
	if err == nil {
		t.Fatal("expected error for missing credentials file")
	}
	if !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSheetName(t *testing.T) {
	if got := SheetName(core.Period{FiscalYear: "2024", Quarter: "3"}); got != "FY2024 Q3" {
		t.Errorf("SheetName() = %q, want %q", got, "FY2024 Q3")
	}
	if got := quote("FY2024 Q3"); got != "'FY2024 Q3'" {
		t.Errorf("quote() = %q", got)
	}
	if got := quote("it's"); got != "'it''s'" {
		t.Errorf("quote() = %q", got)
	}
}

func TestRankingRows(t *testing.T) {
	rows := rankingRows(testReport)

	want := [][]any{
		{"Fiscal year", "2024", "Quarter", "1"},
		{"Generated", "2024-03-01 12:00:00", "Groups", 2},
		{},
		{"Top Highest Spending"},
		{"Rank", "Name", "Total Spending"},
		{1, "Acme Corp", 150.0},
		{2, "Zeta", 0.0},
		{},
		{"Lowest Spending (Excluding Zero)"},
		{"Rank", "Name", "Total Spending"},
		{1, "Acme Corp", 150.0},
	}
	if len(rows) != len(want) {
		t.Fatalf("rankingRows() returned %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		if len(rows[i]) != len(want[i]) {
			t.Fatalf("row %d = %v, want %v", i, rows[i], want[i])
		}
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Errorf("row %d col %d = %v, want %v", i, j, rows[i][j], want[i][j])
			}
		}
	}
}

// fakeSheets records the calls made by the exporter.
type fakeSheets struct {
	mu       sync.Mutex
	titles   []string
	added    []string
	cleared  int
	updated  *gsheet.ValueRange
	rangeArg string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/test-id"):
		var sheets []*gsheet.Sheet
		for _, title := range f.titles {
			sheets = append(sheets, &gsheet.Sheet{Properties: &gsheet.SheetProperties{Title: title}})
		}
		_ = json.NewEncoder(w).Encode(gsheet.Spreadsheet{Sheets: sheets})
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.added = append(f.added, rq.AddSheet.Properties.Title)
				f.titles = append(f.titles, rq.AddSheet.Properties.Title)
			}
		}
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.cleared++
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.updated = &vr
		f.rangeArg = path[strings.Index(path, "/values/")+len("/values/"):]
		_, _ = w.Write([]byte(`{}`))
	default:
		http.Error(w, "unexpected call "+r.Method+" "+path, http.StatusNotFound)
	}
}

func newFakeClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return NewWithService(svc, "test-id")
}

func TestExportRankings_CreatesSheet(t *testing.T) {
	f := &fakeSheets{titles: []string{"Sheet1"}}
	c := newFakeClient(t, f)

	if err := c.ExportRankings(context.Background(), testReport); err != nil {
		t.Fatalf("ExportRankings() error = %v", err)
	}

	if len(f.added) != 1 || f.added[0] != "FY2024 Q1" {
		t.Errorf("added sheets = %v, want [FY2024 Q1]", f.added)
	}
	if f.cleared != 1 {
		t.Errorf("cleared = %d, want 1", f.cleared)
	}
	if f.rangeArg != "'FY2024 Q1'!A1" {
		t.Errorf("update range = %q", f.rangeArg)
	}
	if f.updated == nil || len(f.updated.Values) != len(rankingRows(testReport)) {
		t.Fatalf("unexpected update body: %+v", f.updated)
	}
}

func TestExportRankings_ReusesExistingSheet(t *testing.T) {
	f := &fakeSheets{titles: []string{"FY2024 Q1"}}
	c := newFakeClient(t, f)

	if err := c.ExportRankings(context.Background(), testReport); err != nil {
		t.Fatalf("ExportRankings() error = %v", err)
	}
	if len(f.added) != 0 {
		t.Errorf("added sheets = %v, want none", f.added)
	}
}

func TestExportRankings_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test-id"}
	if err := c.ExportRankings(context.Background(), testReport); err == nil {
		t.Error("expected error with nil service")
	}
}
