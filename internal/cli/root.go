package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aegis-copilot",
	Short: "Aegis Copilot - security assistant chat service",
	Long: `Aegis Copilot serves the chat assistant behind the Aegis security scanner.
It keeps multi-turn conversations in memory, builds a domain-specific system
prompt for pipeline integration, vulnerability fixes and full repository scans,
and relays each turn to an LLM provider over HTTP and WebSocket.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.aegis/copilot.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(home, ".aegis")
}

func getPIDFilePath() string {
	return filepath.Join(dataDir(), "copilot.pid")
}
