package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"spending/internal/core"
	"spending/internal/log"
	"spending/internal/storage"
)

const genericErrorMessage = "An internal error occurred while generating the report. Please try again later."

type indexPage struct {
	Form    ReportForm
	Errors  FormErrors
	History []storage.ReportSummary
}

type reportPage struct {
	Report      core.Report
	ChartURL    string
	TopTotal    float64
	BottomTotal float64
}

type errorPage struct {
	Status  int
	Title   string
	Message string
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.engine == nil:
		checks["engine"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	default:
		if err := s.engine.Ping(ctx); err != nil {
			checks["engine"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["engine"] = "ok"
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, r, http.StatusOK, ReportForm{}, nil)
}

// handleReport validates the submitted period and renders its report.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		logger.WarnContext(ctx, "Parse form error", log.FieldError, err.Error())
		s.renderError(w, r, http.StatusBadRequest, "Bad request", "The submitted form could not be read.")
		return
	}

	form, formErrs := ParseReportForm(r.PostForm)
	if formErrs != nil {
		logger.InfoContext(ctx, "Report form rejected", "fields", len(formErrs))
		s.renderIndex(w, r, http.StatusUnprocessableEntity, form, formErrs)
		return
	}

	p, err := form.Period()
	if err != nil {
		s.renderIndex(w, r, http.StatusUnprocessableEntity, form, FormErrors{"form": err.Error()})
		return
	}

	rep, err := s.reports.Generate(ctx, p)
	if err != nil {
		s.handleGenerateError(w, r, form, p, err)
		return
	}

	page := reportPage{
		Report:      rep,
		TopTotal:    core.TotalOf(rep.Rankings.Top),
		BottomTotal: core.TotalOf(rep.Rankings.Bottom),
	}
	if rep.ChartFile != "" {
		page.ChartURL = "/static/" + rep.ChartFile
	}
	s.render(w, r, http.StatusOK, "spending.html", page)
}

func (s *Server) handleGenerateError(w http.ResponseWriter, r *http.Request, form ReportForm, p core.Period, err error) {
	ctx := r.Context()
	fields := log.NewFields().WithPeriod(p.FiscalYear, p.Quarter)

	var ve *core.ValidationError
	var fe *core.FetchError
	switch {
	case errors.As(err, &ve):
		s.renderIndex(w, r, http.StatusUnprocessableEntity, form, formErrorsFrom(ve))
	case errors.As(err, &fe):
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Upstream fetch failed", err, log.OpFetch, fields)
		s.renderError(w, r, http.StatusBadGateway, "Upstream error", fe.Error())
	default:
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Report generation failed", err, log.OpAggregate, fields)
		s.renderError(w, r, http.StatusInternalServerError, "Internal error", genericErrorMessage)
	}
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, form ReportForm, formErrs FormErrors) {
	page := indexPage{Form: form, Errors: formErrs}
	if s.history != nil && s.historyLimit > 0 {
		history, err := s.history.RecentReports(r.Context(), s.historyLimit)
		if err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Report history unavailable", log.FieldError, err.Error())
		}
		page.History = history
	}
	s.render(w, r, status, "index.html", page)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, title, message string) {
	s.render(w, r, status, "error.html", errorPage{Status: status, Title: title, Message: message})
}

// render executes into a buffer first so a template failure never sends a partial page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).ErrorContext(r.Context(), "Template execution failed",
			"template", name,
			log.FieldError, err.Error())
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
