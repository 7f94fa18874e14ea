package obs

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TraceHeader carries the trace id back to HTTP callers so a sweep report can
// be matched with its spans and logs.
const TraceHeader = "X-Trace-Id"

// TraceID returns the id of the span in ctx, or "" when there is none.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// WithTrace tags log with the trace and span ids of ctx.
func WithTrace(ctx context.Context, log *zap.Logger) *zap.Logger {
	if log == nil {
		return nil
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return log
	}
	return log.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
		zap.Bool("sampled", sc.IsSampled()),
	)
}

// EchoTraceID sets TraceHeader on every response that runs under a span.
func EchoTraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := TraceID(r.Context()); id != "" {
			w.Header().Set(TraceHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
