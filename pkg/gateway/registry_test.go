package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRegistry(t *testing.T) {
	registry := NewClientRegistry()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	registry.Add(&Client{ID: "late", IPAddress: "10.0.0.2", ConnectedAt: base.Add(time.Minute)})
	registry.Add(&Client{ID: "early", IPAddress: "10.0.0.1", ConnectedAt: base})
	assert.Equal(t, 2, registry.Count())
	assert.Len(t, registry.Connections(), 2)

	registry.MarkFrame("early", base.Add(2*time.Minute))
	registry.MarkFrame("early", base.Add(3*time.Minute))
	registry.MarkFrame("missing", base)

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "early", snapshot[0].ID)
	assert.Equal(t, 2, snapshot[0].Frames)
	assert.Equal(t, base.Add(3*time.Minute), snapshot[0].LastActivity)
	assert.Equal(t, "late", snapshot[1].ID)
	assert.Zero(t, snapshot[1].Frames)

	registry.Remove("early")
	assert.Equal(t, 1, registry.Count())
}
