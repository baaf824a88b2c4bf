package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"presupuesto/internal/log"
	"presupuesto/internal/middleware/ratelimit"
	"presupuesto/internal/middleware/security"
	"presupuesto/internal/middleware/trace"
	"presupuesto/internal/services"
)

// Options configures NewServer.
type Options struct {
	Addr               string
	Ledger             *services.LedgerService
	Logger             *log.Logger
	RateLimitPerMinute int
	TrustedProxies     []string
}

// Server serves the ledger API. Mutating requests are rate limited per
// client; every request is traced and gets the security headers.
type Server struct {
	http.Server
	ledger   *services.LedgerService
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// Metrics collects the middleware counters.
type Metrics struct {
	Requests  trace.Metrics
	RateLimit ratelimit.Metrics
	Security  security.DetectionMetrics
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server. The rate limiter cleanup goroutine runs until Shutdown.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, "error", err)
		}
	}

	s := &Server{
		ledger:   opts.Ledger,
		logger:   logger,
		detector: detector,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
	}
	s.tracer = trace.NewMiddleware(detector.ExtractClientIP)

	limit := s.limiter.Middleware(detector.ExtractClientIP, s.onRateLimited,
		http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = s.routes()
	handler = limit(handler)
	handler = detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/budget", s.handleGetBudget)
	mux.HandleFunc("PUT /api/budget", s.handleSetBudget)
	mux.HandleFunc("POST /api/budget", s.handleSetBudget)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PATCH /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("POST /api/expenses/{id}/tags", s.handleAddTags)
	mux.HandleFunc("DELETE /api/expenses/{id}/tags", s.handleRemoveTags)

	mux.HandleFunc("GET /api/reports/{period}", s.handleReport)

	mux.HandleFunc("GET /api/snapshot", s.handleGetSnapshot)
	mux.HandleFunc("PUT /api/snapshot", s.handleRestoreSnapshot)

	return mux
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError("rate limit exceeded, try again later").Write(w)
}

// Metrics returns a snapshot of the middleware counters.
func (s *Server) Metrics() Metrics {
	return Metrics{
		Requests:  s.tracer.GetMetrics(),
		RateLimit: s.limiter.GetMetrics(),
		Security:  s.detector.GetMetrics(),
	}
}

// Shutdown gracefully shuts down the server and its cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
