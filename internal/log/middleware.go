package log

import (
	"context"
	"log/slog"
	"net/http"
)

type ctxKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger, or the default logger when none is set.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger
	}
	return wrap(slog.Default().Handler(), "unknown")
}

// Middleware stores a per-request logger in the context, tagged with method,
// path and the request id when requestID finds one.
func Middleware(logger *Logger, requestID func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := logger.With(FieldMethod, r.Method, FieldPath, r.URL.Path)
			if requestID != nil {
				if id := requestID(r); id != "" {
					reqLogger = reqLogger.With(FieldRequestID, id)
				}
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), reqLogger)))
		})
	}
}

// StructuredLogger writes the ledger's recurring log events with consistent fields.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// forContext prefers the request-scoped logger so events carry the request id.
func (sl *StructuredLogger) forContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return logger.Logger
	}
	return sl.logger.Logger
}

// probePaths are logged at debug level when they succeed.
var probePaths = map[string]bool{"/healthz": true, "/readyz": true, "/api/healthz": true, "/api/readyz": true}

// LogHTTPEnd logs a finished request: 5xx at error, 4xx at warn, successful
// probes at debug and the rest at info.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	case probePaths[r.URL.Path]:
		level = slog.LevelDebug
	}

	attrs := []slog.Attr{
		slog.String(FieldComponent, ComponentHTTP),
		slog.String(FieldMethod, r.Method),
		slog.String(FieldPath, r.URL.Path),
		slog.Int(FieldStatusCode, statusCode),
		slog.Int64(FieldDuration, durationMs),
		slog.Bool(FieldSuccess, statusCode < 400),
	}
	if r.URL.RawQuery != "" {
		attrs = append(attrs, slog.String(FieldQuery, r.URL.RawQuery))
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, slog.String(FieldUserAgent, ua))
	}
	if clientIP != "" {
		attrs = append(attrs, slog.String(FieldClientIP, clientIP))
	}
	sl.logger.LogAttrs(ctx, level, "HTTP request completed", attrs...)
}

var creditMessages = map[string]string{
	OpCreate: "Credit created",
	OpUpdate: "Credit updated",
	OpDelete: "Credit deleted",
}

// LogCreditChange logs a successful ledger write. date and amountCents are
// omitted when empty (deletes only know the id). Descriptions are user text
// and never logged.
func (sl *StructuredLogger) LogCreditChange(ctx context.Context, op string, id int64, date string, amountCents int64) {
	msg, ok := creditMessages[op]
	if !ok {
		msg = "Credit changed"
	}
	attrs := []slog.Attr{
		slog.String(FieldComponent, ComponentCredit),
		slog.String(FieldOperation, op),
		slog.Int64(FieldCreditID, id),
	}
	if date != "" {
		attrs = append(attrs, slog.String(FieldCreditDate, date))
	}
	if amountCents != 0 {
		attrs = append(attrs, slog.Int64(FieldAmountCents, amountCents))
	}
	sl.forContext(ctx).LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

// LogAuth logs a login or logout attempt. Failures are warnings.
func (sl *StructuredLogger) LogAuth(ctx context.Context, op string, success bool, clientIP string) {
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	sl.forContext(ctx).LogAttrs(ctx, level, "Authentication "+op,
		slog.String(FieldComponent, ComponentAuth),
		slog.String(FieldOperation, op),
		slog.Bool(FieldSuccess, success),
		slog.String(FieldClientIP, clientIP))
}

// LogError logs a failed operation on behalf of component.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, op string) {
	attrs := []slog.Attr{
		slog.String(FieldComponent, component),
		slog.String(FieldOperation, op),
	}
	if err != nil {
		attrs = append(attrs, slog.String(FieldError, err.Error()))
	}
	sl.forContext(ctx).LogAttrs(ctx, slog.LevelError, msg, attrs...)
}
