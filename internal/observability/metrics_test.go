package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesRecordedSeries(t *testing.T) {
	RecordSessionCreated("VulnScan")
	SetActiveSessions(3)
	RecordMessageAppended("user")
	RecordSessionsEvicted(2)
	RecordTurn("VulnScan", "new", "success", 10*time.Millisecond)
	RecordUpstreamCall("openai", 200*time.Millisecond, true)
	RecordHTTPRequest("http", 404)
	SetQueueWaiting(2)
	RecordQueueWait(5 * time.Millisecond)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `copilot_sessions_created_total{domain="VulnScan"}`)
	assert.Contains(t, text, "copilot_active_sessions 3")
	assert.Contains(t, text, `copilot_turns_total{domain="VulnScan",outcome="success",turn="new"}`)
	assert.Contains(t, text, `copilot_upstream_calls_total{provider="openai",status="success"}`)
	assert.Contains(t, text, `copilot_http_requests_total{code="4xx",transport="http"}`)
	assert.Contains(t, text, "copilot_turn_queue_waiting 2")
	assert.Contains(t, text, "copilot_turn_queue_wait_seconds_count")
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "2xx", statusLabel(200))
	assert.Equal(t, "3xx", statusLabel(302))
	assert.Equal(t, "4xx", statusLabel(400))
	assert.Equal(t, "5xx", statusLabel(502))
}
