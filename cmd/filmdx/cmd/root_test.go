package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/filmdx/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags puts every flag of cmd and its children back to its default.
// rootCmd is shared between tests and keeps parsed values otherwise.
func resetFlags(cmd *cobra.Command) {
	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				var def []string
				if s := strings.Trim(f.DefValue, "[]"); s != "" {
					def = strings.Split(s, ",")
				}
				_ = sv.Replace(def)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}
	reset(cmd.PersistentFlags())
	reset(cmd.Flags())
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// executeCommand runs rootCmd with args and returns stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	globalConfig = nil

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "filmdx", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Same(t, rootCmd, GetRootCommand())
}

func TestRootCommandHelp(t *testing.T) {
	out, _, err := executeCommand(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "DX barcode printed along the edge")
	assert.Contains(t, out, "Available Commands:")
	assert.Contains(t, out, "Usage:")
}

func TestRootCommandWithoutArgsShowsHelp(t *testing.T) {
	out, _, err := executeCommand(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Available Commands:")
}

func TestRootCommandVersion(t *testing.T) {
	out, _, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", out)
}

func TestRootCommandSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"image", "pdf", "batch", "serve", "generate", "history", "config", "version", "test", "bench"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	_, _, err := executeCommand(t, "--no-such-flag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestRootCommandMissingConfigFile(t *testing.T) {
	_, _, err := executeCommand(t, "version", "--config", "/no/such/filmdx.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file does not exist")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", out)

	out, _, err = executeCommand(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", out)
}

func TestSetupLoggingLevels(t *testing.T) {
	cfg, err := GetConfig()
	require.NoError(t, err)
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg.LogLevel = level
		assert.NotPanics(t, func() { setupLogging(cfg) })
	}
}

// useConfigFile runs the next commands with --config path. viper keeps the
// file once set, so the global instance is reset afterwards.
func useConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filmdx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Cleanup(func() {
		viper.Reset()
		mustBind(rootCmd.PersistentFlags(), rootFlagBindings)
		configLoader = nil
	})
	return path
}

func TestConfigFileAndEnvironment(t *testing.T) {
	path := useConfigFile(t, "output:\n  format: yaml\nbarcode:\n  min_line_count: 3\n")

	out, _, err := executeCommand(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "format: yaml")
	assert.Contains(t, out, "min_line_count: 3")

	t.Setenv("FILMDX_BARCODE_MIN_LINE_COUNT", "4")
	out, _, err = executeCommand(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "min_line_count: 4")
}
