package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"spending/internal/core"
	"spending/internal/log"
	"spending/internal/storage"
	appweb "spending/web"
)

// ReportGenerator runs the report pipeline for one period.
type ReportGenerator interface {
	Generate(ctx context.Context, p core.Period) (core.Report, error)
}

// HistoryLister lists recently generated periods.
type HistoryLister interface {
	RecentReports(ctx context.Context, limit int) ([]storage.ReportSummary, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server. Reports is required; everything else is optional.
type Options struct {
	Addr                string
	StaticDir           string
	Reports             ReportGenerator
	History             HistoryLister
	HistoryLimit        int
	Engine              Pinger
	Metrics             http.Handler
	SubmitRatePerMinute int
	Logger              *log.Logger
}

type Server struct {
	http.Server
	templates    *template.Template
	reports      ReportGenerator
	history      HistoryLister
	historyLimit int
	engine       Pinger
	rateLimiter  *rateLimiter
	logger       *log.Logger
	started      time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		templates:    t,
		reports:      opts.Reports,
		history:      opts.History,
		historyLimit: opts.HistoryLimit,
		engine:       opts.Engine,
		rateLimiter:  newRateLimiter(opts.SubmitRatePerMinute),
		logger:       logger,
		started:      time.Now(),
	}

	// Generated charts, re-rendered in place, so never cached by the browser.
	if opts.StaticDir != "" {
		charts := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-cache")
			charts.ServeHTTP(w, r)
		}))
	}

	// Embedded stylesheet.
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, err
	}
	assets := http.StripPrefix("/assets/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /assets/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		assets.ServeHTTP(w, r)
	}))

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /{$}", s.handleReport)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	var handler http.Handler = s.withSecurityHeaders(mux)
	handler = log.RequestIDMiddleware(generateRequestID)(handler)
	handler = log.Middleware(logger)(handler)
	s.Handler = handler

	return s, nil
}

// withSecurityHeaders logs every request, applies the POST rate limit and sets response headers.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		logger := log.FromContext(ctx)
		clientIP := extractClientIP(r)

		if reason := suspiciousReason(r); reason != "" {
			logger.WithComponent(log.ComponentSecurity).WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				"reason", reason)
		}

		setSecurityHeaders(w, r)
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			logger.WithComponent(log.ComponentRateLimit).WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path)
			rw.Header().Set("Retry-After", "60")
			http.Error(rw, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		} else {
			next.ServeHTTP(rw, r)
		}

		log.NewStructuredLogger(logger).LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

// Shutdown stops background work and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
