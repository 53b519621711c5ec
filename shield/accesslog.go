package shield

import (
	"net/http"
	"time"

	"github.com/hazyhaar/canvasd/audit"
)

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// AccessLog returns middleware that logs every request to slog and, when
// logger is non-nil, persists a row in the audit store. The trace ID set
// by TraceID becomes the audit request ID.
func AccessLog(logger *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			dur := time.Since(start)
			GetLogger(r.Context()).Info("request",
				"status", rec.status,
				"duration_ms", dur.Milliseconds(),
			)
			if logger != nil {
				logger.LogRequest(r.Context(), GetTraceID(r.Context()),
					r.Method, r.URL.Path, rec.status, dur)
			}
		})
	}
}
