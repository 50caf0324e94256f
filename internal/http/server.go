package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ledgerdash/internal/core"
	"ledgerdash/internal/log"
	"ledgerdash/internal/middleware/ratelimit"
	"ledgerdash/internal/middleware/security"
	"ledgerdash/internal/middleware/trace"
	"ledgerdash/internal/services"
)

const defaultMaxUpload = 10 << 20

// SyncRequester queues a sync of a target. *amqp.Client satisfies it.
type SyncRequester interface {
	PublishSyncRequest(ctx context.Context, target string) error
}

// Deps are the collaborators of the server. Sync and Ready may be nil.
type Deps struct {
	Reports  *services.ReportService
	Ledger   *services.LedgerService
	Sync     SyncRequester
	Ready    func(context.Context) error
	Location *time.Location
	Logger   *log.Logger

	RateLimit      ratelimit.Config
	MaxUploadBytes int64
}

type Server struct {
	http.Server
	reports   *services.ReportService
	ledger    *services.LedgerService
	sync      SyncRequester
	ready     func(context.Context) error
	loc       *time.Location
	logger    *log.Logger
	maxUpload int64

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUpload
	}

	s := &Server{
		reports:   deps.Reports,
		ledger:    deps.Ledger,
		sync:      deps.Sync,
		ready:     deps.Ready,
		loc:       deps.Location,
		logger:    deps.Logger.WithComponent(log.ComponentHTTP),
		maxUpload: deps.MaxUploadBytes,
		limiter:   ratelimit.NewLimiter(deps.RateLimit),
		detector:  security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	for _, book := range []core.Book{core.Actual, core.Budget} {
		base := "/api/" + string(book)
		mux.HandleFunc("GET "+base, s.handleListEntries(book))
		mux.HandleFunc("POST "+base, s.handleCreateEntries(book))
		mux.HandleFunc("GET "+base+"/{id}", s.handleGetEntry(book))
		mux.HandleFunc("PUT "+base+"/{id}", s.handleUpdateEntry(book))
		mux.HandleFunc("DELETE "+base+"/{id}", s.handleDeleteEntry(book))
	}
	mux.HandleFunc("GET /api/index-values", s.handleListIndexValues)
	mux.HandleFunc("POST /api/index-values", s.handleUpsertIndexValue)
	mux.HandleFunc("DELETE /api/index-values/{year}/{month}", s.handleDeleteIndexValue)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/insights", s.handleInsights)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("GET /api/variance", s.handleVariance)
	mux.HandleFunc("GET /api/chart-data", s.handleChartData)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("POST /api/sync", s.handleSync)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.chain(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// chain wraps the mux, outermost first: tracing, security headers, scanner
// logging, then rate limiting of writes.
func (s *Server) chain(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
	}, http.MethodPost, http.MethodPut, http.MethodDelete)(next)

	scans := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldMethod, r.Method, log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}
		limited.ServeHTTP(w, r)
	})

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(scans)
	return s.tracer.Middleware(headers)
}

// Shutdown stops background goroutines and the HTTP server. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
