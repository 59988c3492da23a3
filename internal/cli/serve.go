package cli

import (
	"fmt"

	"github.com/aegis/copilot/internal/config"
	"github.com/aegis/copilot/internal/daemon"
	"github.com/aegis/copilot/internal/logger"
	"github.com/spf13/cobra"
)

var pidFile string

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"start"},
	Short:   "Run the copilot gateway in the foreground",
	Long: `Run the copilot gateway in the foreground until SIGINT or SIGTERM.
The gateway exposes POST /chat, GET /ws, GET /healthz and GET /metrics.
Edits to the config file's logging.level apply without a restart.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&pidFile, "pid-file", getPIDFilePath(), "PID file used by stop and status (empty disables it)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
		Output:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	for _, warning := range config.NewValidator().ValidateConfig(cfg) {
		log.Warn().Err(warning).Msg("Configuration warning")
	}

	d, err := daemon.New(cfg, log, daemon.Options{
		ConfigPath: loader.GetConfigPath(),
		PIDFile:    pidFile,
		Version:    version,
	})
	if err != nil {
		return err
	}

	if err := d.Start(); err != nil {
		return err
	}

	d.Wait(cmd.Context())
	return nil
}
