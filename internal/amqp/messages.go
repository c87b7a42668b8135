package amqp

import (
	"encoding/json"
	"time"

	"spending/internal/core"
)

// ReportGeneratedMessage announces a finished report with its rankings.
type ReportGeneratedMessage struct {
	FiscalYear  string       `json:"fiscal_year"`
	Quarter     string       `json:"quarter"`
	CacheHit    bool         `json:"cache_hit"`
	Top         []core.Entry `json:"top"`
	Bottom      []core.Entry `json:"bottom"`
	ChartFile   string       `json:"chart_file,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// NewReportGeneratedMessage builds the event for rep. Empty rankings encode as [].
func NewReportGeneratedMessage(rep core.Report) *ReportGeneratedMessage {
	top, bottom := rep.Rankings.Top, rep.Rankings.Bottom
	if top == nil {
		top = []core.Entry{}
	}
	if bottom == nil {
		bottom = []core.Entry{}
	}
	generated := rep.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	return &ReportGeneratedMessage{
		FiscalYear:  rep.Period.FiscalYear,
		Quarter:     rep.Period.Quarter,
		CacheHit:    rep.CacheHit,
		Top:         top,
		Bottom:      bottom,
		ChartFile:   rep.ChartFile,
		GeneratedAt: generated.UTC(),
	}
}

// Period returns the fiscal period of the event.
func (m *ReportGeneratedMessage) Period() core.Period {
	return core.Period{FiscalYear: m.FiscalYear, Quarter: m.Quarter}
}

// ToJSON converts the message to JSON bytes
func (m *ReportGeneratedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportGeneratedMessageFromJSON decodes a message and checks its period.
func ReportGeneratedMessageFromJSON(data []byte) (*ReportGeneratedMessage, error) {
	var msg ReportGeneratedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Period().Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
