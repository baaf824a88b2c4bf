package trace

import (
	"net/http"
	"sync/atomic"
	"time"

	"presupuesto/internal/log"
)

// Middleware logs every completed request through the request-scoped logger
// and keeps simple counters.
type Middleware struct {
	extractIP func(*http.Request) string

	totalRequests atomic.Int64
	serverErrors  atomic.Int64
	lastDuration  atomic.Int64
}

// Metrics is a point-in-time copy of the counters.
type Metrics struct {
	TotalRequests      int64
	ServerErrors       int64
	LastResponseTimeUs int64
}

func NewMiddleware(extractIP func(*http.Request) string) *Middleware {
	return &Middleware{extractIP: extractIP}
}

// Middleware must run inside log.Middleware so the completion line carries
// the request id.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		ctx := r.Context()
		log.FromContext(ctx).DebugContext(ctx, "HTTP request started",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.totalRequests.Add(1)
		m.lastDuration.Store(duration.Microseconds())
		if rw.statusCode >= http.StatusInternalServerError {
			m.serverErrors.Add(1)
		}
		log.NewStructuredLogger(log.FromContext(ctx)).LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	})
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:      m.totalRequests.Load(),
		ServerErrors:       m.serverErrors.Load(),
		LastResponseTimeUs: m.lastDuration.Load(),
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}
