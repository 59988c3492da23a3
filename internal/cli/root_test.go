package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns everything written to
// stdout and stderr. Flags keep their values between runs, so callers pass
// every flag they depend on.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return executeContext(context.Background(), t, stdin, args...)
}

func executeContext(ctx context.Context, t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { resetCommands(context.Background()) })

	// Cobra only hands the root context to a subcommand whose own context is
	// nil, so a context left over from an earlier run would otherwise win.
	resetCommands(ctx)

	cmd := GetRootCmd()
	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(output)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	return output.String(), err
}

// resetCommands clears the help flag and installs ctx on every command
func resetCommands(ctx context.Context) {
	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		if f := c.Flags().Lookup("help"); f != nil {
			_ = f.Value.Set("false")
			f.Changed = false
		}
		c.SetContext(ctx)
		for _, child := range c.Commands() {
			walk(child)
		}
	}
	walk(GetRootCmd())
}

type ctxKey struct{}

func TestExecuteContextReachesSubcommand(t *testing.T) {
	first := context.WithValue(context.Background(), ctxKey{}, "first")
	_, err := executeContext(first, t, "", "prompt", "--domain", "Generic", "--context", "")
	require.NoError(t, err)
	assert.Equal(t, "first", promptCmd.Context().Value(ctxKey{}))

	second := context.WithValue(context.Background(), ctxKey{}, "second")
	_, err = executeContext(second, t, "", "prompt", "--domain", "Generic", "--context", "")
	require.NoError(t, err)
	assert.Equal(t, "second", promptCmd.Context().Value(ctxKey{}))
}

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		output, err := execute(t, "", "--version")
		require.NoError(t, err)

		assert.Contains(t, output, "aegis-copilot version")
		assert.Contains(t, output, GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		output, err := execute(t, "", "--help")
		require.NoError(t, err)

		assert.Contains(t, output, "Aegis Copilot")
		assert.Contains(t, output, "serve")
		assert.Contains(t, output, "prompt")
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "", logLevelFlag.DefValue)
	})

	t.Run("subcommands", func(t *testing.T) {
		names := map[string]bool{}
		for _, c := range GetRootCmd().Commands() {
			names[c.Name()] = true
		}
		for _, name := range []string{"serve", "stop", "status", "configure", "prompt"} {
			assert.True(t, names[name], "%s command should exist", name)
		}
	})
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}

func TestGetPIDFilePath(t *testing.T) {
	assert.Contains(t, getPIDFilePath(), "copilot.pid")
}
