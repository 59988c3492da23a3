package session

import (
	"testing"
	"time"

	"github.com/aegis/copilot/pkg/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNewSweeper_DefaultSchedule(t *testing.T) {
	sweeper := NewSweeper(NewStore(nil), "")
	assert.Equal(t, DefaultSweepSchedule, sweeper.schedule)
}

func TestSweeperStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	sweeper := NewSweeper(NewStore(IdleTTL{TTL: time.Hour}), "@every 1h")

	require.NoError(t, sweeper.Start())
	assert.True(t, sweeper.IsRunning())

	assert.Error(t, sweeper.Start())

	require.NoError(t, sweeper.Stop())
	assert.False(t, sweeper.IsRunning())

	assert.Error(t, sweeper.Stop())
}

func TestSweeperInvalidSchedule(t *testing.T) {
	sweeper := NewSweeper(NewStore(nil), "not a schedule")

	assert.Error(t, sweeper.Start())
	assert.False(t, sweeper.IsRunning())
}

func TestSweeperSweep(t *testing.T) {
	store := NewStore(MaxMessages{Limit: 2})

	small, err := store.Create(systemOnly("sys"), prompt.DomainGeneric)
	require.NoError(t, err)
	big, err := store.Create(systemOnly("sys"), prompt.DomainGeneric)
	require.NoError(t, err)
	require.NoError(t, store.Append(big, RoleUser, "a"))
	require.NoError(t, store.Append(big, RoleAssistant, "b"))

	assert.Equal(t, 1, NewSweeper(store, "").Sweep())
	assert.True(t, store.Exists(small))
	assert.False(t, store.Exists(big))
}

func TestSweeperRunsOnSchedule(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewStore(MaxMessages{Limit: 1})
	id, err := store.Create([]Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hi"},
	}, prompt.DomainGeneric)
	require.NoError(t, err)

	sweeper := NewSweeper(store, "@every 1s")
	require.NoError(t, sweeper.Start())

	assert.Eventually(t, func() bool {
		return !store.Exists(id)
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, sweeper.Stop())
}
