package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aegis/copilot/internal/config"
	"github.com/aegis/copilot/internal/logger"
	"github.com/aegis/copilot/internal/observability"
	"github.com/aegis/copilot/pkg/chat"
	"github.com/aegis/copilot/pkg/commandqueue"
	"github.com/aegis/copilot/pkg/llm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second
	cfg.LLM.Provider = "mock"
	cfg.Tracing.Enabled = false
	return cfg
}

// createTestDaemon creates a daemon backed by the mock provider
func createTestDaemon(t *testing.T) (*Daemon, *logger.Logger) {
	t.Helper()
	return createTestDaemonWith(t, testConfig(), Options{})
}

func createTestDaemonWith(t *testing.T, cfg *config.Config, opts Options) (*Daemon, *logger.Logger) {
	t.Helper()

	log, err := logger.New(logger.Config{
		Level:   "info",
		Console: false,
		Output:  &bytes.Buffer{},
	})
	require.NoError(t, err)

	daemon, err := New(cfg, log, opts)
	require.NoError(t, err)

	return daemon, log
}

func withProvider(t *testing.T, provider llm.Provider) {
	t.Helper()
	original := newProvider
	newProvider = func(llm.Profile) (llm.Provider, error) { return provider, nil }
	t.Cleanup(func() { newProvider = original })
}

func TestNew(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	assert.NotNil(t, daemon.provider)
	assert.NotNil(t, daemon.store)
	assert.NotNil(t, daemon.dispatcher)
	assert.NotNil(t, daemon.gatewayServer)
	assert.NotNil(t, daemon.lifecycle)
	assert.Nil(t, daemon.sweeper, "retention is off by default")
	assert.Nil(t, daemon.watcher)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	log, err := logger.New(logger.Config{Output: &bytes.Buffer{}})
	require.NoError(t, err)
	defer log.Close()

	cfg := testConfig()
	cfg.LLM.Provider = "groq"
	cfg.LLM.APIKey = ""

	_, err = New(cfg, log, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GROQ_API_KEY")
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testConfig()
	cfg.Sessions.IdleTTL = time.Hour
	pidFile := filepath.Join(t.TempDir(), "copilot.pid")

	daemon, log := createTestDaemonWith(t, cfg, Options{PIDFile: pidFile})
	defer log.Close()

	require.NoError(t, daemon.Start())
	assert.Error(t, daemon.Start())

	status := daemon.Status()
	assert.True(t, status.Running)
	assert.NotEmpty(t, status.Addr)
	assert.True(t, daemon.sweeper.IsRunning())

	pid, err := ReadPID(pidFile)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, daemon.Stop())
	assert.False(t, daemon.Status().Running)
	assert.False(t, daemon.sweeper.IsRunning())

	_, err = os.Stat(pidFile)
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, daemon.Stop())
}

func TestDaemonStatus(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	status := daemon.Status()
	assert.False(t, status.Running)
	assert.Equal(t, time.Duration(0), status.Uptime)

	require.NoError(t, daemon.Start())
	defer daemon.Stop()

	time.Sleep(10 * time.Millisecond)
	status = daemon.Status()
	assert.True(t, status.Running)
	assert.Greater(t, status.Uptime, time.Duration(0))
	assert.Equal(t, 0, status.Sessions)
}

func TestDaemonServesConversation(t *testing.T) {
	withProvider(t, llm.NewMockProvider("Which CI system do you use?", "Use a GitHub Actions job."))

	daemon, log := createTestDaemon(t)
	defer log.Close()

	require.NoError(t, daemon.Start())
	defer daemon.Stop()

	url := fmt.Sprintf("http://%s/chat", daemon.Status().Addr)

	post := func(body string) map[string]any {
		resp, err := http.Post(url, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	first := post(`{"domain":"PipelineIntegration","context":{"repository":"acme/api"}}`)
	assert.Equal(t, "Which CI system do you use?", first["response"])
	id, _ := first["session_id"].(string)
	require.NotEmpty(t, id)

	second := post(fmt.Sprintf(`{"domain":"PipelineIntegration","session_id":%q,"user_message":"GitHub Actions"}`, id))
	assert.Equal(t, "Use a GitHub Actions job.", second["response"])
	assert.Equal(t, id, second["session_id"])

	history, err := daemon.GetSessionStore().ReadAll(id)
	require.NoError(t, err)
	assert.Len(t, history, 4)
	assert.Equal(t, 1, daemon.Status().Sessions)
}

func TestDaemonSerializeTurns(t *testing.T) {
	cfg := testConfig()
	cfg.Sessions.SerializeTurns = true

	daemon, log := createTestDaemonWith(t, cfg, Options{})
	defer log.Close()
	require.NotNil(t, daemon.lanes)

	require.NoError(t, daemon.Start())

	result, err := daemon.GetDispatcher().HandleTurn(context.Background(), chat.TurnRequest{Domain: "Generic"})
	require.NoError(t, err)

	_, err = daemon.GetDispatcher().HandleTurn(context.Background(), chat.TurnRequest{
		Domain:      "Generic",
		SessionID:   result.SessionID,
		UserMessage: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, daemon.lanes.LaneCount())

	require.NoError(t, daemon.Stop())

	_, err = daemon.GetDispatcher().HandleTurn(context.Background(), chat.TurnRequest{
		Domain:      "Generic",
		SessionID:   result.SessionID,
		UserMessage: "again",
	})
	assert.ErrorIs(t, err, commandqueue.ErrClosed)
}

func TestDaemonAuditFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	cfg := testConfig()
	cfg.Logging.AuditFile = path

	daemon, log := createTestDaemonWith(t, cfg, Options{})
	defer log.Close()
	t.Cleanup(func() { observability.SetAuditOutput(os.Stderr) })

	_, err := daemon.GetDispatcher().HandleTurn(context.Background(), chat.TurnRequest{Domain: "Generic"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"session_created"`)
}

func TestDaemonWaitStopsOnContext(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	require.NoError(t, daemon.Start())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		daemon.Wait(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after cancel")
	}
	assert.False(t, daemon.Status().Running)
}

func TestDaemonReloadsLogLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	path := filepath.Join(t.TempDir(), "copilot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: mock\nlogging:\n  level: info\n"), 0o644))

	daemon, log := createTestDaemonWith(t, testConfig(), Options{ConfigPath: path})
	defer log.Close()
	require.NotNil(t, daemon.watcher)

	require.NoError(t, daemon.Start())
	defer daemon.Stop()

	require.NoError(t, os.WriteFile(path, []byte("llm:\n  provider: mock\nlogging:\n  level: warn\n"), 0o644))

	assert.Eventually(t, func() bool {
		return zerolog.GlobalLevel() == zerolog.WarnLevel
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDaemonGetters(t *testing.T) {
	daemon, log := createTestDaemon(t)
	defer log.Close()

	assert.NotNil(t, daemon.GetConfig())
	assert.NotNil(t, daemon.GetLogger())
	assert.NotNil(t, daemon.GetSessionStore())
	assert.NotNil(t, daemon.GetDispatcher())
	assert.NotNil(t, daemon.GetGatewayServer())
}
