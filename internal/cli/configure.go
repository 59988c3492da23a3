package cli

import (
	"fmt"

	"github.com/aegis/copilot/internal/config"
	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Run interactive configuration wizard",
	Long: `Run an interactive configuration wizard to set up the copilot.
The wizard asks for the LLM provider, API key, model, gateway port and log
level, starting from the current config file when one exists.`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	loader := config.NewLoader(cfgFile)

	base, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load existing configuration: %w", err)
	}

	cfg, err := config.NewWizard(cmd.InOrStdin(), out).Run(base)
	if err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(out, "\nConfiguration saved to: %s\n", loader.GetConfigPath())
	fmt.Fprintln(out, "\nYou can now start the gateway with: aegis-copilot serve")

	return nil
}
