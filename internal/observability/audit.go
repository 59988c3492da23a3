package observability

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditEvent represents a structured event for the audit log
type AuditEvent struct {
	Type      string         `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Actor     string         `json:"actor,omitempty"` // session ID or client address
	Action    string         `json:"action"`          // e.g. "session_created", "auth_rejected"
	Status    string         `json:"status"`          // "success" or "failure"
	Metadata  map[string]any `json:"metadata,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
}

// AuditLogger writes audit events as JSON lines
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

var (
	auditMu   sync.RWMutex
	auditInst *AuditLogger
)

// GetAuditLogger returns the global audit logger, writing to stderr until
// InitAuditLogger or SetAuditOutput is called.
func GetAuditLogger() *AuditLogger {
	auditMu.RLock()
	inst := auditInst
	auditMu.RUnlock()
	if inst != nil {
		return inst
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditInst == nil {
		auditInst = newAuditLogger(os.Stderr, nil)
	}
	return auditInst
}

func newAuditLogger(w io.Writer, file *os.File) *AuditLogger {
	return &AuditLogger{
		logger: zerolog.New(w).With().Timestamp().Str("log", "audit").Logger(),
		file:   file,
	}
}

// InitAuditLogger sends audit events to path, closing any previous audit file
func InitAuditLogger(path string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	swapAuditLogger(newAuditLogger(file, file))
	return nil
}

// SetAuditOutput sends audit events to w
func SetAuditOutput(w io.Writer) {
	swapAuditLogger(newAuditLogger(w, nil))
}

func swapAuditLogger(next *AuditLogger) {
	auditMu.Lock()
	prev := auditInst
	auditInst = next
	auditMu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
}

// Record emits an audit event to the log and, when ctx carries a span, as a span event
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if ctx != nil {
		span := trace.SpanFromContext(ctx)
		if span.SpanContext().IsValid() {
			event.TraceID = span.SpanContext().TraceID().String()

			span.AddEvent(event.Action, trace.WithAttributes(
				attribute.String("audit.type", event.Type),
				attribute.String("audit.status", event.Status),
				attribute.String("audit.actor", event.Actor),
			))
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("type", event.Type).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", event.Status)

	if event.TraceID != "" {
		entry.Str("trace_id", event.TraceID)
	}
	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit logger's file handle
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		return err
	}
	return nil
}

// Helper methods for common events

func RecordSessionAudit(ctx context.Context, action, sessionID, status string, metadata map[string]any) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "session",
		Actor:    sessionID,
		Action:   action,
		Status:   status,
		Metadata: metadata,
	})
}

func RecordSecurityAudit(ctx context.Context, action, actor, status string, metadata map[string]any) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "security",
		Actor:    actor,
		Action:   action,
		Status:   status,
		Metadata: metadata,
	})
}

func RecordConfigAudit(ctx context.Context, action, actor string, metadata map[string]any) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Type:     "config",
		Actor:    actor,
		Action:   action,
		Status:   "success",
		Metadata: metadata,
	})
}
