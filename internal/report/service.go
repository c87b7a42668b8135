// Package report runs the spending pipeline for one fiscal period:
// cache-or-fetch, aggregate, chart, and the optional side effects.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"spending/internal/cache"
	"spending/internal/core"
	"spending/internal/log"
	"spending/internal/metrics"
)

// Fetcher retrieves raw records for a period from the upstream API.
type Fetcher interface {
	Fetch(ctx context.Context, p core.Period) ([]core.Record, error)
}

// Aggregator ranks a flattened spending table.
type Aggregator interface {
	Aggregate(ctx context.Context, table io.Reader) (core.Rankings, error)
}

// ChartRenderer draws the rankings and returns the artifact file name.
type ChartRenderer interface {
	Render(rk core.Rankings, p core.Period) (string, error)
}

// HistoryRecorder stores a row per generated report.
type HistoryRecorder interface {
	RecordReport(ctx context.Context, rep core.Report) error
}

// Publisher announces generated reports.
type Publisher interface {
	PublishReportGenerated(ctx context.Context, rep core.Report) error
}

// Exporter copies rankings to an external destination.
type Exporter interface {
	ExportRankings(ctx context.Context, rep core.Report) error
}

// Outcomes recorded per Generate call.
const (
	OutcomeOK         = "ok"
	OutcomeFetchError = "fetch_error"
	OutcomeError      = "error"
)

// Service orchestrates report generation. Store, Fetcher and Aggregator are required;
// everything else is optional and failures there never fail a report.
type Service struct {
	store     cache.Store
	fetcher   Fetcher
	agg       Aggregator
	chart     ChartRenderer
	history   HistoryRecorder
	publisher Publisher
	exporter  Exporter
	memo      *cache.RankingsMemo
	metrics   metrics.Recorder
	logger    *log.Logger
	now       func() time.Time

	loads singleflight.Group
}

// Option configures optional collaborators.
type Option func(*Service)

func WithChart(r ChartRenderer) Option { return func(s *Service) { s.chart = r } }
func WithHistory(h HistoryRecorder) Option { return func(s *Service) { s.history = h } }
func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }
func WithExporter(e Exporter) Option { return func(s *Service) { s.exporter = e } }
func WithMemo(m *cache.RankingsMemo) Option { return func(s *Service) { s.memo = m } }
func WithMetrics(m metrics.Recorder) Option { return func(s *Service) { s.metrics = m } }
func WithLogger(l *log.Logger) Option { return func(s *Service) { s.logger = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(store cache.Store, fetcher Fetcher, agg Aggregator, opts ...Option) *Service {
	s := &Service{
		store:   store,
		fetcher: fetcher,
		agg:     agg,
		metrics: (*metrics.Metrics)(nil),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = (*metrics.Metrics)(nil)
	}
	if s.logger == nil {
		s.logger = log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentReport})
	}
	return s
}

// Generate produces the report for p. Upstream failures surface as *core.FetchError
// and cache failures as *core.StorageError; in both cases nothing partial is returned.
func (s *Service) Generate(ctx context.Context, p core.Period) (core.Report, error) {
	start := time.Now()
	rep, err := s.generate(ctx, p)

	outcome := OutcomeOK
	var fe *core.FetchError
	switch {
	case errors.As(err, &fe):
		outcome = OutcomeFetchError
	case err != nil:
		outcome = OutcomeError
	}
	s.metrics.RecordReport(outcome, time.Since(start))
	return rep, err
}

func (s *Service) generate(ctx context.Context, p core.Period) (core.Report, error) {
	if err := p.Validate(); err != nil {
		return core.Report{}, periodError(err)
	}
	fields := log.NewFields().WithPeriod(p.FiscalYear, p.Quarter)

	hit, err := s.load(ctx, p)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load spending records", fields.WithError(err).WithOperation(log.OpFetch).ToSlice()...)
		return core.Report{}, err
	}

	rankings, err := s.rank(ctx, p, hit)
	if err != nil {
		return core.Report{}, err
	}

	rep := core.Report{
		Period:      p,
		Rankings:    rankings,
		CacheHit:    hit,
		GeneratedAt: s.now(),
	}
	rep.ChartFile = s.render(ctx, rep)

	s.logger.InfoContext(ctx, "Report generated",
		fields.WithReport(hit, rankings.Rows, rankings.Dropped, rankings.Groups, rep.ChartFile).ToSlice()...)

	s.afterGenerate(ctx, rep)
	return rep, nil
}

// load makes sure the cache holds records for p and reports whether they were
// already there. Concurrent loads of the same period share one fetch.
func (s *Service) load(ctx context.Context, p core.Period) (bool, error) {
	if s.store.Exists(p) {
		s.metrics.RecordCacheLookup(true)
		return true, nil
	}
	s.metrics.RecordCacheLookup(false)

	// The shared fetch outlives any single caller's cancellation.
	fetchCtx := context.WithoutCancel(ctx)
	_, err, _ := s.loads.Do(p.Key(), func() (any, error) {
		if s.store.Exists(p) {
			return nil, nil
		}
		start := time.Now()
		recs, err := s.fetcher.Fetch(fetchCtx, p)
		s.metrics.RecordFetch(fetchStatus(err), time.Since(start))
		if err != nil {
			return nil, err
		}
		return nil, s.store.Write(p, recs)
	})
	return false, err
}

// rank aggregates the cached table for p. Rankings of a dataset that was
// already cached may come from the memo.
func (s *Service) rank(ctx context.Context, p core.Period, hit bool) (core.Rankings, error) {
	if hit {
		if r, ok := s.memo.Get(p); ok {
			return r, nil
		}
	}

	table, err := s.store.Table(p)
	if err != nil {
		return core.Rankings{}, err
	}
	defer table.Close()

	rankings, err := s.agg.Aggregate(ctx, table)
	if err != nil {
		return core.Rankings{}, fmt.Errorf("aggregate %s: %w", p.Key(), err)
	}
	s.metrics.RecordDroppedRows(rankings.Dropped)
	s.memo.Put(p, rankings)
	return rankings, nil
}

func (s *Service) render(ctx context.Context, rep core.Report) string {
	if s.chart == nil {
		return ""
	}
	name, err := s.chart.Render(rep.Rankings, rep.Period)
	if err != nil {
		s.logger.WarnContext(ctx, "Chart rendering failed, continuing without chart",
			log.NewFields().WithPeriod(rep.Period.FiscalYear, rep.Period.Quarter).WithOperation(log.OpRender).WithError(err).ToSlice()...)
		return ""
	}
	return name
}

// afterGenerate runs the optional side effects. They log and never fail the request.
func (s *Service) afterGenerate(ctx context.Context, rep core.Report) {
	fields := func(op string, err error) []any {
		return log.NewFields().WithPeriod(rep.Period.FiscalYear, rep.Period.Quarter).WithOperation(op).WithError(err).ToSlice()
	}

	if s.history != nil {
		if err := s.history.RecordReport(ctx, rep); err != nil {
			s.logger.ErrorContext(ctx, "Failed to record report history", fields(log.OpRecord, err)...)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishReportGenerated(ctx, rep); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish report event", fields(log.OpPublish, err)...)
		}
	}
	if s.exporter != nil {
		if err := s.exporter.ExportRankings(ctx, rep); err != nil {
			s.logger.ErrorContext(ctx, "Failed to export rankings", fields(log.OpExport, err)...)
		}
	}
}

func fetchStatus(err error) int {
	if err == nil {
		return 200
	}
	var fe *core.FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

func periodError(err error) error {
	switch {
	case errors.Is(err, core.ErrInvalidFiscalYear):
		return &core.ValidationError{Field: "fy", Message: "fiscal year must be a 4-digit year"}
	case errors.Is(err, core.ErrInvalidQuarter):
		return &core.ValidationError{Field: "quarter", Message: "quarter must be 1, 2, 3 or 4"}
	default:
		return &core.ValidationError{Field: "period", Message: err.Error()}
	}
}
