// Package google exports report rankings to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"spending/internal/core"
	"spending/internal/log"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Config selects the spreadsheet and service account credentials.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// Client writes one tab per fiscal period, replacing its contents on every export.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Falls back to GOOGLE_APPLICATION_CREDENTIALS when neither JSON nor file is configured.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// SheetName returns the tab title for a period, e.g. "FY2024 Q1".
func SheetName(p core.Period) string {
	return p.String()
}

// ExportRankings writes the report's rankings to the period's tab, creating it if needed.
func (c *Client) ExportRankings(ctx context.Context, rep core.Report) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	sheet := SheetName(rep.Period)
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return err
	}

	all := quote(sheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, all, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to clear sheet %s: %w", sheet, err)
	}

	vr := &gsheet.ValueRange{Values: rankingRows(rep)}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, all+"!A1", vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to update sheet %s: %w", sheet, err)
	}

	slog.InfoContext(ctx, "Exported rankings to Google Sheets",
		log.FieldComponent, log.ComponentSheets,
		"sheet", sheet,
		"top", len(rep.Rankings.Top),
		"bottom", len(rep.Rankings.Bottom))
	return nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", title, err)
	}
	return nil
}

// rankingRows lays out a period summary followed by the two ranked tables.
func rankingRows(rep core.Report) [][]any {
	rows := [][]any{
		{"Fiscal year", rep.Period.FiscalYear, "Quarter", rep.Period.Quarter},
		{"Generated", rep.GeneratedAt.UTC().Format("2006-01-02 15:04:05"), "Groups", rep.Rankings.Groups},
		{},
		{"Top Highest Spending"},
		{"Rank", "Name", "Total Spending"},
	}
	rows = appendEntries(rows, rep.Rankings.Top)
	rows = append(rows,
		[]any{},
		[]any{"Lowest Spending (Excluding Zero)"},
		[]any{"Rank", "Name", "Total Spending"},
	)
	return appendEntries(rows, rep.Rankings.Bottom)
}

func appendEntries(rows [][]any, entries []core.Entry) [][]any {
	for i, e := range entries {
		rows = append(rows, []any{i + 1, e.Name, e.Total})
	}
	return rows
}

// quote wraps a sheet title for use in A1 notation.
func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
