package cli

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/aegis/copilot/internal/daemon"
	"github.com/spf13/cobra"
)

var (
	stopTimeout int
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running copilot gateway",
	Long: `Stop a copilot gateway started with serve.
Sends SIGTERM to the process in the PID file and waits for it to drain
in-flight turns before exiting.`,
	RunE: runStop,
}

func init() {
	stopCmd.Flags().IntVar(&stopTimeout, "timeout", 30, "timeout in seconds to wait for the gateway to stop")
	stopCmd.Flags().StringVar(&pidFile, "pid-file", getPIDFilePath(), "PID file written by serve")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	pid, err := stopDaemon(pidFile)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(time.Duration(stopTimeout) * time.Second)
	for time.Now().Before(deadline) {
		if !daemon.ProcessAlive(pid) {
			fmt.Fprintln(out, "Gateway stopped successfully")
			os.Remove(pidFile)
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Fprintln(out, "Timeout reached, sending SIGKILL...")

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to send SIGKILL: %w", err)
	}

	os.Remove(pidFile)
	fmt.Fprintln(out, "Gateway killed")
	return nil
}

// stopDaemon sends SIGTERM to the process named in pidFile and returns its PID
func stopDaemon(pidFile string) (int, error) {
	pid, err := daemon.ReadPID(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("gateway is not running (no PID file at %s)", pidFile)
		}
		return 0, err
	}

	if !daemon.ProcessAlive(pid) {
		os.Remove(pidFile)
		return 0, fmt.Errorf("gateway is not running (stale PID file removed)")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return 0, fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	return pid, nil
}
