package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewTraceID(t *testing.T) {
	id1 := NewTraceID()
	id2 := NewTraceID()

	if id1 == "" {
		t.Error("NewTraceID returned empty string")
	}

	if id1 == id2 {
		t.Error("NewTraceID returned duplicate IDs")
	}
}

func TestNewRequestID(t *testing.T) {
	id1 := NewRequestID()
	id2 := NewRequestID()

	if len(id1) != 12 {
		t.Errorf("Expected 12 character request ID, got %q", id1)
	}

	if id1 == id2 {
		t.Error("NewRequestID returned duplicate IDs")
	}
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace")
	ctx = WithRequestID(ctx, "req")
	ctx = WithSessionID(ctx, "sess")
	ctx = WithDomain(ctx, "VulnScan")

	tc := FromContext(ctx)
	if tc.TraceID != "trace" || tc.RequestID != "req" || tc.SessionID != "sess" || tc.Domain != "VulnScan" {
		t.Errorf("Unexpected trace context: %+v", tc)
	}
}

func TestGettersOnEmptyContext(t *testing.T) {
	if GetTraceID(context.Background()) != "" {
		t.Error("Expected empty trace ID")
	}
	if GetSessionID(nil) != "" {
		t.Error("Expected empty session ID for nil context")
	}
}

func TestNewRequestContextKeepsExisting(t *testing.T) {
	ctx := WithRequestID(context.Background(), "fixed")
	ctx = NewRequestContext(ctx)

	if GetRequestID(ctx) != "fixed" {
		t.Errorf("Expected request ID to be kept, got %s", GetRequestID(ctx))
	}
	if GetTraceID(ctx) == "" {
		t.Error("Expected a trace ID to be generated")
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithSessionID(WithRequestID(context.Background(), "req-1"), "sess-1")
	logger := LoggerFromContext(ctx, base)
	logger.Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-1"`) {
		t.Errorf("Expected request_id in log output: %s", out)
	}
	if !strings.Contains(out, `"session_id":"sess-1"`) {
		t.Errorf("Expected session_id in log output: %s", out)
	}
	if strings.Contains(out, "trace_id") {
		t.Errorf("Did not expect trace_id in log output: %s", out)
	}
}

func TestStartSpanSetsTraceID(t *testing.T) {
	if err := InitOpenTelemetry("copilot-test", "test"); err != nil {
		t.Fatalf("InitOpenTelemetry failed: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "copilot.test", "test.span")
	defer span.End()

	if GetTraceID(ctx) == "" {
		t.Error("Expected StartSpan to propagate trace ID")
	}
}
