package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "filmdx.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil || loader.v == nil {
		t.Fatal("NewLoader() returned no viper instance")
	}
	if loader.GetViper() != viper.GetViper() {
		t.Error("NewLoader() should use the global viper instance")
	}
	if NewLoaderWithViper(nil).v == nil {
		t.Error("NewLoaderWithViper(nil) should create a viper instance")
	}
}

func TestLoadWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	want := DefaultConfig()
	if cfg.Server.Port != want.Server.Port || cfg.Barcode.MinLineCount != want.Barcode.MinLineCount {
		t.Errorf("Load() did not return defaults: %+v", cfg)
	}
}

func TestLoadFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "log_level: debug\nbarcode:\n  try_harder: true\n  binarizer: global\n")
	t.Chdir(dir)

	loader := NewLoaderWithViper(viper.New())
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" || !cfg.Barcode.TryHarder || cfg.Barcode.Binarizer != "global" {
		t.Errorf("Config file values not applied: %+v", cfg)
	}
	// untouched keys keep their defaults
	if cfg.Barcode.MinLineCount != 2 {
		t.Errorf("Expected default min line count, got %d", cfg.Barcode.MinLineCount)
	}
	if !strings.HasSuffix(loader.GetConfigFileUsed(), "filmdx.yaml") {
		t.Errorf("Unexpected config file used: %q", loader.GetConfigFileUsed())
	}
}

func TestLoadWithFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
server:
  port: 9090
  rate_limit_enabled: true
batch:
  include: ["*.tif", "*.png"]
  max_file_size: 20MB
recorder:
  enabled: true
  path: /tmp/filmdx-test.db
synth:
  unit: 6
  negative: true
`)

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 || !cfg.Server.RateLimitEnabled {
		t.Errorf("Unexpected server config: %+v", cfg.Server)
	}
	if len(cfg.Batch.Include) != 2 || cfg.Batch.Include[0] != "*.tif" {
		t.Errorf("Unexpected include patterns: %v", cfg.Batch.Include)
	}
	if !cfg.Recorder.Enabled || cfg.Recorder.Path != "/tmp/filmdx-test.db" {
		t.Errorf("Unexpected recorder config: %+v", cfg.Recorder)
	}
	if cfg.Synth.Unit != 6 || !cfg.Synth.Negative || cfg.Synth.Margin != 40 {
		t.Errorf("Unexpected synth config: %+v", cfg.Synth)
	}
}

func TestLoadWithFileErrors(t *testing.T) {
	_, err := NewLoaderWithViper(viper.New()).LoadWithFile("/nonexistent/filmdx.yaml")
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Expected missing file error, got %v", err)
	}

	broken := writeConfig(t, t.TempDir(), "server: [not a map\n")
	if _, err := NewLoaderWithViper(viper.New()).LoadWithFile(broken); err == nil {
		t.Error("Expected parse error for broken YAML")
	}

	invalid := writeConfig(t, t.TempDir(), "server:\n  port: 0\n")
	_, err = NewLoaderWithViper(viper.New()).LoadWithFile(invalid)
	if err == nil || !strings.Contains(err.Error(), "configuration validation failed") {
		t.Errorf("Expected validation error, got %v", err)
	}

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFileWithoutValidation(invalid)
	if err != nil {
		t.Fatalf("LoadWithFileWithoutValidation() unexpected error: %v", err)
	}
	if cfg.Server.Port != 0 {
		t.Errorf("Expected port 0, got %d", cfg.Server.Port)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FILMDX_SERVER_PORT", "7070")
	t.Setenv("FILMDX_BARCODE_TRY_ROTATE", "true")
	t.Setenv("FILMDX_LOG_LEVEL", "warn")

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Expected port 7070 from env, got %d", cfg.Server.Port)
	}
	if !cfg.Barcode.TryRotate {
		t.Error("Expected try_rotate from env")
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Expected log level warn from env, got %q", cfg.LogLevel)
	}
}

func TestLoaderAccessors(t *testing.T) {
	loader := NewLoaderWithViper(viper.New())
	loader.Set("output.format", "json")
	if loader.GetString("output.format") != "json" || loader.Get("output.format") != "json" {
		t.Error("Set/Get round trip failed")
	}
	loader.setDefaults()
	if _, ok := loader.GetResolvedConfig()["server"]; !ok {
		t.Error("Resolved config misses the server section")
	}

	var buf bytes.Buffer
	loader.PrintConfigInfo(&buf)
	if !strings.Contains(buf.String(), "Environment prefix: FILMDX") {
		t.Errorf("Unexpected config info: %q", buf.String())
	}
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := GenerateDefaultConfigFile(path); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() error: %v", err)
	}

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	if err != nil {
		t.Fatalf("Generated file does not load: %v", err)
	}
	if cfg.Server.Port != DefaultConfig().Server.Port {
		t.Errorf("Generated file lost defaults: %+v", cfg.Server)
	}
}

func TestGetConfigSearchPaths(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	paths := GetConfigSearchPaths()
	if paths[0] != "." {
		t.Errorf("Expected current directory first, got %v", paths)
	}
	if paths[len(paths)-1] != "/etc/filmdx" {
		t.Errorf("Expected /etc/filmdx last, got %v", paths)
	}
	found := false
	for _, p := range paths {
		if p == filepath.Join(xdg, "filmdx") {
			found = true
		}
	}
	if !found {
		t.Errorf("XDG path missing from %v", paths)
	}
}
