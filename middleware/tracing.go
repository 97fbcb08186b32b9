package middleware

import (
	"context"

	"github.com/shrek82/torm/core"
)

// ContextKey is the type of the context keys TracingMiddleware reads.
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	UserIPKey    ContextKey = "user_ip"
	TraceIDKey   ContextKey = "trace_id"
)

var tracingKeys = []ContextKey{RequestIDKey, UserIPKey, TraceIDKey}

// TracingMiddleware adds tracing information to the statement log.
// It extracts information like Request ID or User IP from the context
// and attaches it to the SQL log fields of the statement.
type TracingMiddleware struct{}

func NewTracing() *TracingMiddleware {
	return &TracingMiddleware{}
}

func (m *TracingMiddleware) Name() string {
	return "Tracing"
}

func (m *TracingMiddleware) Init(db *core.DB) error {
	return nil
}

func (m *TracingMiddleware) Shutdown() error {
	return nil
}

func (m *TracingMiddleware) Process(ctx context.Context, stmt *core.Statement, next core.Handler) (*core.Result, error) {
	fields := make(map[string]any)
	for _, key := range tracingKeys {
		if v := ctx.Value(key); v != nil {
			fields[string(key)] = v
		}
	}
	if len(fields) > 0 {
		stmt.WithFields(fields)
	}

	return next(ctx, stmt)
}
