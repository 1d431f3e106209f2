//nolint:lll
package config

import "github.com/MeKo-Tech/filmdx/internal/synth"

// Config represents the complete configuration for filmdx. It covers every
// command (image, pdf, batch, serve, generate, history) and is loaded from
// configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Decoder settings
	Barcode BarcodeConfig `mapstructure:"barcode" yaml:"barcode" json:"barcode"`

	// Pipeline configuration
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Decode log
	Recorder RecorderConfig `mapstructure:"recorder" yaml:"recorder" json:"recorder"`

	// Synthetic image geometry (for generate command)
	Synth synth.Options `mapstructure:"synth" yaml:"synth" json:"synth"`
}

// BarcodeConfig contains scanner settings.
type BarcodeConfig struct {
	Formats      []string `mapstructure:"formats" yaml:"formats" json:"formats"`
	TryHarder    bool     `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	TryRotate    bool     `mapstructure:"try_rotate" yaml:"try_rotate" json:"try_rotate"`
	TryInvert    bool     `mapstructure:"try_invert" yaml:"try_invert" json:"try_invert"`
	MinLineCount int      `mapstructure:"min_line_count" yaml:"min_line_count" json:"min_line_count"`
	MaxSymbols   int      `mapstructure:"max_symbols" yaml:"max_symbols" json:"max_symbols"`
	Binarizer    string   `mapstructure:"binarizer" yaml:"binarizer" json:"binarizer"`
}

// PipelineConfig contains pipeline settings.
type PipelineConfig struct {
	// Parallel processing
	Parallel ParallelConfig `mapstructure:"parallel" yaml:"parallel" json:"parallel"`

	// Input image limits
	MinWidth  int `mapstructure:"min_width" yaml:"min_width" json:"min_width"`
	MinHeight int `mapstructure:"min_height" yaml:"min_height" json:"min_height"`
	MaxPixels int `mapstructure:"max_pixels" yaml:"max_pixels" json:"max_pixels"`
}

// ParallelConfig contains parallel processing settings.
type ParallelConfig struct {
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format       string `mapstructure:"format" yaml:"format" json:"format"`
	File         string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir   string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
	OverlayColor string `mapstructure:"overlay_color" yaml:"overlay_color" json:"overlay_color"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool   `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`

	// Rate limiting, per client IP
	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include         []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude         []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	MaxFileSize     string   `mapstructure:"max_file_size" yaml:"max_file_size" json:"max_file_size"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}

// RecorderConfig contains the decode log settings.
type RecorderConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" yaml:"path" json:"path"`
}
