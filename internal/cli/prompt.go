package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aegis/copilot/pkg/prompt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	promptDomain  string
	promptContext string
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the system prompt for a domain",
	Long: `Print the system prompt a new session would start with.
The context file may be JSON or YAML; "-" reads it from stdin.`,
	RunE: runPrompt,
}

func init() {
	promptCmd.Flags().StringVar(&promptDomain, "domain", "", `domain tag, e.g. "Vuln Scan" or FullRepoScan`)
	promptCmd.Flags().StringVar(&promptContext, "context", "", "context file (JSON or YAML)")
	_ = promptCmd.MarkFlagRequired("domain")
	rootCmd.AddCommand(promptCmd)
}

func runPrompt(cmd *cobra.Command, args []string) error {
	context, err := readContext(cmd.InOrStdin(), promptContext)
	if err != nil {
		return err
	}

	domain := prompt.ParseDomain(promptDomain)
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, prompt.BuildSystemPrompt(domain, context))
	if question := prompt.ClarifyingQuestion(domain); question != "" {
		fmt.Fprintf(out, "\nOpening question: %s\n", question)
	}
	return nil
}

func readContext(stdin io.Reader, path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read context: %w", err)
	}

	context := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &context)
	default:
		// YAML is a superset of JSON, so stdin may hold either.
		err = yaml.Unmarshal(data, &context)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse context: %w", err)
	}

	return context, nil
}
