package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context threaded through a single
// client operation as it crosses the NS and SS boundary (spec.md §5: one
// goroutine per connection, so a context value is the natural way to carry
// correlation fields without a parameter on every handler).
type LogContext struct {
	TraceID   string    // correlates one client operation across NS and SS
	SpanID    string    // this leg of that operation
	Operation string    // VIEW, CREATE, DELETE, READ, WRITE, UNDO, CHECKPOINT, EXEC, ...
	Filename  string    // owner+filename the operation targets
	ClientIP  string    // client IP address (without port)
	Username  string    // acting username
	SSID      uint32    // storage server id, when the leg is NS<->SS or SS<->SS
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext with the given client IP
func NewLogContext(clientIP string) *LogContext {
	return &LogContext{
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		Operation: lc.Operation,
		Filename:  lc.Filename,
		ClientIP:  lc.ClientIP,
		Username:  lc.Username,
		SSID:      lc.SSID,
		StartTime: lc.StartTime,
	}
}

// WithOperation returns a copy with the operation name set
func (lc *LogContext) WithOperation(op string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Operation = op
	}
	return clone
}

// WithFilename returns a copy with the target filename set
func (lc *LogContext) WithFilename(filename string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Filename = filename
	}
	return clone
}

// WithIdentity returns a copy with the acting username and storage server id set
func (lc *LogContext) WithIdentity(username string, ssid uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Username = username
		clone.SSID = ssid
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
