package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ridehouse/api/internal/platform/requestctx"
)

// RequestLogger attaches a request-scoped logger to the context and emits one
// structured line per request. Trace identifiers come from the active otel
// span when one is recording.
func RequestLogger(base *zap.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			}
			if reqID := middleware.GetReqID(ctx); reqID != "" {
				fields = append(fields, zap.String("request_id", reqID))
			}

			if span := trace.SpanContextFromContext(ctx); span.IsValid() {
				info := requestctx.TraceInfo{
					TraceID: span.TraceID().String(),
					SpanID:  span.SpanID().String(),
					Sampled: span.IsSampled(),
				}
				ctx = requestctx.WithTrace(ctx, info)
				fields = append(fields, zap.String("trace_id", info.TraceID))
			}

			logger := base.With(fields...)
			ctx = requestctx.WithLogger(ctx, logger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			logger.Info("request completed",
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
