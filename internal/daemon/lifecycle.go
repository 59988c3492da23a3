package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LifecycleManager manages the daemon PID file
type LifecycleManager struct {
	daemon  *Daemon
	pidFile string
}

// NewLifecycleManager creates a new lifecycle manager. An empty pidFile
// makes Start and Stop no-ops.
func NewLifecycleManager(d *Daemon, pidFile string) *LifecycleManager {
	return &LifecycleManager{
		daemon:  d,
		pidFile: pidFile,
	}
}

// Start writes the PID file, refusing to overwrite one owned by a live process
func (l *LifecycleManager) Start() error {
	if l.pidFile == "" {
		return nil
	}

	if pid, err := ReadPID(l.pidFile); err == nil && pid != os.Getpid() && ProcessAlive(pid) {
		return fmt.Errorf("daemon is already running (PID %d, PID file: %s)", pid, l.pidFile)
	}

	if err := os.MkdirAll(filepath.Dir(l.pidFile), 0o755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}

	if err := l.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	l.daemon.logger.Info().
		Str("pid_file", l.pidFile).
		Int("pid", os.Getpid()).
		Msg("Lifecycle manager started")

	return nil
}

// Stop removes the PID file
func (l *LifecycleManager) Stop() error {
	if l.pidFile == "" {
		return nil
	}

	if err := os.Remove(l.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}

	l.daemon.logger.Info().Msg("Lifecycle manager stopped")

	return nil
}

func (l *LifecycleManager) writePIDFile() error {
	return os.WriteFile(l.pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// GetUptime returns the daemon uptime
func (l *LifecycleManager) GetUptime() time.Duration {
	return l.daemon.Status().Uptime
}

// GetPID returns the daemon PID from the PID file
func (l *LifecycleManager) GetPID() (int, error) {
	return ReadPID(l.pidFile)
}

// IsRunning checks if the process named in the PID file is alive
func (l *LifecycleManager) IsRunning() bool {
	pid, err := l.GetPID()
	if err != nil {
		return false
	}
	return ProcessAlive(pid)
}

// ReadPID parses a PID file
func ReadPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID file: non-positive pid %d", pid)
	}

	return pid, nil
}

// ProcessAlive reports whether pid names a running process
func ProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds, so probe with signal 0
	return process.Signal(syscall.Signal(0)) == nil
}
