package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/axecheck/idgen"
	"github.com/hazyhaar/axecheck/kit"
)

// Trace assigns a trace ID to each request and stores it in the context,
// the X-Trace-ID response header and a per-request logger. A request ID set
// earlier by chi's RequestID middleware is carried along.
func Trace(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	newID := idgen.Prefixed("trc_", idgen.Default)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := newID()
			ctx := kit.WithTraceID(r.Context(), traceID)
			w.Header().Set("X-Trace-ID", traceID)

			attrs := []any{"trace_id", traceID, "method", r.Method, "path", r.URL.Path}
			if rid := middleware.GetReqID(ctx); rid != "" {
				ctx = kit.WithRequestID(ctx, rid)
				attrs = append(attrs, "request_id", rid)
			}
			reqLogger := logger.With(attrs...)
			ctx = context.WithValue(ctx, LoggerKey, reqLogger)
			reqLogger.Debug("shield: request")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
