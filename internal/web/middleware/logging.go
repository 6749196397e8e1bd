// Package middleware holds the HTTP middleware in front of the archive API:
// proxy-aware client addressing, API-key auth for writes, and the request
// log line.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nkhelifi/radiogate/internal/logging"
)

// RequestLogger emits one structured line per request after it completes.
// The archive routes carry the category and index in the URL, so when chi
// has resolved them the line includes both; that makes a day of ingest and
// lookup traffic greppable per entry.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		}
		// Route params exist only after the mux has matched, i.e. here.
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if cat := rctx.URLParam("category"); cat != "" {
				attrs = append(attrs, "category", cat)
			}
			if idx := rctx.URLParam("index"); idx != "" {
				attrs = append(attrs, "index", idx)
			}
		}
		logging.FromContext(r.Context()).Info("request", attrs...)
	})
}

// statusRecorder captures the status code written by the handler chain.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
