package support

import (
	"fmt"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/filmdx/internal/server"
	"github.com/MeKo-Tech/filmdx/internal/testutil"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastError    error
	LastExitCode int
	LastDuration time.Duration

	// Test environment
	WorkingDir string
	TempDir    string
	EnvVars    []string

	// In-process decode server
	HTTPServer   *httptest.Server
	DecodeServer *server.Server

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    map[string]string
}

// NewTestContext creates a scenario context with its own temp directory.
func NewTestContext() (*TestContext, error) {
	root, err := testutil.GetProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}
	tempDir, err := os.MkdirTemp("", "filmdx-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{
		WorkingDir: root,
		TempDir:    tempDir,
		// keep scenarios away from the user's history and config
		EnvVars: []string{
			"FILMDX_RECORDER_PATH=" + tempDir + "/history.db",
		},
		LastHTTPHeaders: map[string]string{},
	}, nil
}

// Cleanup stops the server and removes the temp directory.
func (testCtx *TestContext) Cleanup() error {
	testCtx.StopServer()
	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}

// StopServer shuts the in-process server down if one is running.
func (testCtx *TestContext) StopServer() {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.DecodeServer != nil {
		_ = testCtx.DecodeServer.Close()
		testCtx.DecodeServer = nil
	}
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// substitute replaces {tmp} with the scenario temp directory.
func (testCtx *TestContext) substitute(s string) string {
	return strings.ReplaceAll(s, "{tmp}", testCtx.TempDir)
}
