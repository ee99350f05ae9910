package logger

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// HTTPMiddleware logs all HTTP requests with timing and request ID
func HTTPMiddleware(next http.Handler) http.Handler {
	return Middleware(nil)(next)
}

// Middleware is HTTPMiddleware with an explicit base logger. A nil base uses
// Default at request time.
func Middleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			serve(base, next, w, r)
		})
	}
}

func serve(base *slog.Logger, next http.Handler, w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if base == nil {
		base = Default()
	}

	// Generate or extract request ID
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = GenerateRequestID()
	}

	w.Header().Set("X-Request-ID", requestID)

	// Create context with request ID and logger
	ctx := WithRequestID(r.Context(), requestID)
	reqLogger := base.With("request_id", requestID)
	ctx = WithLogger(ctx, reqLogger)

	// Wrap response writer to capture status
	wrapped := newResponseWriter(w)

	next.ServeHTTP(wrapped, r.WithContext(ctx))

	duration := time.Since(start)

	// Skip health checks and scrapes
	if isQuietPath(r.URL.Path) {
		return
	}

	// Determine log level based on status code
	level := slog.LevelInfo
	if wrapped.status >= 500 {
		level = slog.LevelError
	} else if wrapped.status >= 400 {
		level = slog.LevelWarn
	}

	reqLogger.Log(r.Context(), level, "http_request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", wrapped.status,
		"duration_ms", duration.Milliseconds(),
		"remote_addr", r.RemoteAddr,
	)
}

// isQuietPath reports paths polled by infrastructure, which are not logged.
func isQuietPath(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/healthz")
}
