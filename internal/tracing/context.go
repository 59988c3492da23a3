package tracing

import (
	"context"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RequestIDKey is the context key for the inbound request ID
	RequestIDKey ContextKey = "request_id"
	// SessionIDKey is the context key for the chat session ID
	SessionIDKey ContextKey = "session_id"
	// DomainKey is the context key for the session domain
	DomainKey ContextKey = "domain"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	RequestID string
	SessionID string
	Domain    string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRequestID generates a short request ID for log correlation
func NewRequestID() string {
	id, err := gonanoid.New(12)
	if err != nil {
		return uuid.New().String()
	}
	return id
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithSessionID adds a session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithDomain adds the session domain to the context
func WithDomain(ctx context.Context, domain string) context.Context {
	return context.WithValue(ctx, DomainKey, domain)
}

func value(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string { return value(ctx, TraceIDKey) }

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string { return value(ctx, RequestIDKey) }

// GetSessionID retrieves the session ID from the context
func GetSessionID(ctx context.Context) string { return value(ctx, SessionIDKey) }

// GetDomain retrieves the domain from the context
func GetDomain(ctx context.Context) string { return value(ctx, DomainKey) }

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		RequestID: GetRequestID(ctx),
		SessionID: GetSessionID(ctx),
		Domain:    GetDomain(ctx),
	}
}

// NewRequestContext returns ctx carrying a fresh trace ID and request ID.
// Existing values are kept.
func NewRequestContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	if GetRequestID(ctx) == "" {
		ctx = WithRequestID(ctx, NewRequestID())
	}
	return ctx
}
