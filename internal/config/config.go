package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/filmdx/internal/barcode"
	"github.com/MeKo-Tech/filmdx/internal/pipeline"
	"github.com/MeKo-Tech/filmdx/internal/scan"
	"github.com/MeKo-Tech/filmdx/internal/synth"
	"github.com/MeKo-Tech/filmdx/internal/utils"
	"github.com/dustin/go-humanize"
)

// DefaultRecorderPath is where the decode log lives unless configured.
func DefaultRecorderPath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "filmdx", "history.db")
	}
	return "filmdx-history.db"
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	scanDefaults := scan.DefaultOptions()
	constraints := utils.DefaultImageConstraints()
	return Config{
		LogLevel: "info",
		Barcode: BarcodeConfig{
			Formats:      []string{barcode.FormatDXFilmEdge.String()},
			MinLineCount: scanDefaults.MinLineCount,
			Binarizer:    string(scanDefaults.Binarizer),
		},
		Pipeline: PipelineConfig{
			Parallel:  ParallelConfig{MaxWorkers: pipeline.DefaultParallelConfig().MaxWorkers},
			MinWidth:  constraints.MinWidth,
			MinHeight: constraints.MinHeight,
			MaxPixels: constraints.MaxPixels,
		},
		Output: OutputConfig{
			Format:       pipeline.FormatText,
			OverlayColor: "#FF0000",
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxUploadMB:       50,
			TimeoutSec:        30,
			ShutdownTimeout:   10,
			OverlayEnabled:    true,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			MaxRequestsPerDay: 5000,
			MaxDataPerDay:     100 * 1024 * 1024,
		},
		Batch: BatchConfig{
			Workers: 4,
		},
		Recorder: RecorderConfig{
			Path: DefaultRecorderPath(),
		},
		Synth: synth.DefaultOptions(),
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validFormats := []string{"text", "json", "csv", "yaml"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if _, err := ParseColor(c.Output.OverlayColor); err != nil {
		return fmt.Errorf("invalid overlay color: %w", err)
	}

	if _, err := c.Barcode.formats(); err != nil {
		return err
	}
	if _, err := scan.ParseBinarizer(c.Barcode.Binarizer); err != nil {
		return err
	}
	if c.Barcode.MinLineCount < 1 {
		return fmt.Errorf("invalid min line count: %d (must be at least 1)", c.Barcode.MinLineCount)
	}
	if c.Barcode.MaxSymbols < 0 {
		return fmt.Errorf("invalid max symbols: %d (must not be negative)", c.Barcode.MaxSymbols)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Pipeline.Parallel.MaxWorkers <= 0 {
		return fmt.Errorf("invalid parallel max workers: %d (must be positive)", c.Pipeline.Parallel.MaxWorkers)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.Batch.MaxFileSize != "" {
		if _, err := humanize.ParseBytes(c.Batch.MaxFileSize); err != nil {
			return fmt.Errorf("invalid batch max file size: %w", err)
		}
	}
	if c.Recorder.Enabled && c.Recorder.Path == "" {
		return errors.New("recorder enabled without a path")
	}
	if err := c.Synth.Validate(); err != nil {
		return fmt.Errorf("invalid synth options: %w", err)
	}
	return nil
}

func (b BarcodeConfig) formats() ([]barcode.Format, error) {
	return barcode.ParseFormats(strings.Join(b.Formats, ","))
}

// ToBarcodeOptions converts to the backend options.
func (c *Config) ToBarcodeOptions() barcode.Options {
	formats, _ := c.Barcode.formats()
	return barcode.Options{
		Formats:      formats,
		TryHarder:    c.Barcode.TryHarder,
		TryRotate:    c.Barcode.TryRotate,
		TryInvert:    c.Barcode.TryInvert,
		MinLineCount: c.Barcode.MinLineCount,
		MaxSymbols:   c.Barcode.MaxSymbols,
		Binarizer:    c.Barcode.Binarizer,
	}
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Barcode = c.ToBarcodeOptions()
	cfg.Constraints = utils.ImageConstraints{
		MinWidth:  c.Pipeline.MinWidth,
		MinHeight: c.Pipeline.MinHeight,
		MaxPixels: c.Pipeline.MaxPixels,
	}
	cfg.Parallel.MaxWorkers = c.Pipeline.Parallel.MaxWorkers
	return cfg
}

// ParseColor parses "#RRGGBB" or "#RGB". The empty string yields the
// default overlay color.
func ParseColor(s string) (color.RGBA, error) {
	if s == "" {
		return pipeline.OverlayColor, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("color %q must have the form #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil //nolint:gosec // G115: masked to 24 bits
}
