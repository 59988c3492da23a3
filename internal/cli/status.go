package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aegis/copilot/internal/config"
	"github.com/aegis/copilot/internal/daemon"
	"github.com/spf13/cobra"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show gateway status",
	Long: `Show the status of a running copilot gateway by querying /healthz.
The address defaults to the configured host and port.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "gateway address (host:port)")
	statusCmd.Flags().StringVar(&pidFile, "pid-file", getPIDFilePath(), "PID file written by serve")
	rootCmd.AddCommand(statusCmd)
}

type healthReport struct {
	Status      string  `json:"status"`
	Uptime      float64 `json:"uptime"`
	Connections int     `json:"connections"`
	Sessions    *int    `json:"sessions"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	addr := statusAddr
	if addr == "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		host := cfg.Server.Host
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "127.0.0.1"
		}
		addr = net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
	}

	report, err := fetchHealth(addr)
	if err != nil {
		fmt.Fprintln(out, "Status: stopped")
		fmt.Fprintf(out, "Address: %s (%v)\n", addr, err)
		return nil
	}

	fmt.Fprintf(out, "Status: %s\n", report.Status)
	fmt.Fprintf(out, "Address: %s\n", addr)
	if pid, err := daemon.ReadPID(pidFile); err == nil && daemon.ProcessAlive(pid) {
		fmt.Fprintf(out, "PID: %d\n", pid)
	}
	fmt.Fprintf(out, "Uptime: %s\n", formatDuration(time.Duration(report.Uptime*float64(time.Second))))
	fmt.Fprintf(out, "Connections: %d\n", report.Connections)
	if report.Sessions != nil {
		fmt.Fprintf(out, "Sessions: %d\n", *report.Sessions)
	}

	return nil
}

func fetchHealth(addr string) (*healthReport, error) {
	client := &http.Client{Timeout: 3 * time.Second}

	resp, err := client.Get("http://" + addr + "/healthz")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("healthz returned %s", resp.Status)
	}

	var report healthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("invalid healthz response: %w", err)
	}
	return &report, nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
