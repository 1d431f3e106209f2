package batch

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"time"

	"github.com/MeKo-Tech/filmdx/internal/barcode"
	"github.com/MeKo-Tech/filmdx/internal/pipeline"
	"github.com/dustin/go-humanize"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Decoder settings
	TryHarder    bool
	TryRotate    bool
	TryInvert    bool
	MinLineCount int
	MaxSymbols   int
	Binarizer    string
	Formats      []barcode.Format
	ROI          image.Rectangle

	OverlayDir   string
	OverlayColor color.Color // nil uses pipeline.OverlayColor
	Format     string
	OutputFile string

	// Parallel processing settings
	Workers         int
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
	// MaxFileSize skips larger files, in humanize form ("25MB"). Empty
	// means no limit.
	MaxFileSize string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ShowStats        bool
	ProgressInterval time.Duration
	ProgressWriter   io.Writer

	// Recorder is optional.
	Recorder pipeline.Recorder
}

// DefaultConfig returns the batch defaults.
func DefaultConfig() *Config {
	return &Config{
		MinLineCount:     2,
		Binarizer:        "row",
		Format:           pipeline.FormatText,
		Workers:          pipeline.DefaultParallelConfig().MaxWorkers,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.MinLineCount < 0 {
		return fmt.Errorf("min line count must not be negative, got %d", c.MinLineCount)
	}
	if c.MaxSymbols < 0 {
		return fmt.Errorf("max symbols must not be negative, got %d", c.MaxSymbols)
	}
	_, err := c.maxFileSize()
	return err
}

func (c *Config) maxFileSize() (uint64, error) {
	if c.MaxFileSize == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("invalid max file size %q: %w", c.MaxFileSize, err)
	}
	return n, nil
}

// Failure is an image that could not be decoded.
type Failure struct {
	Path string
	Err  error
}

// Result holds the result of batch processing.
type Result struct {
	// Results is parallel to ImagePaths; failed images are nil.
	Results     []*pipeline.ImageResult
	ImagePaths  []string
	Failures    []Failure
	Skipped     []string
	TotalBytes  uint64
	Duration    time.Duration
	WorkerCount int
}

// Stats summarizes the run.
func (r *Result) Stats() pipeline.ParallelStats {
	return pipeline.CalculateParallelStats(r.Results, r.Duration, r.WorkerCount)
}

// FormatResults formats the batch processing results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Results, r.ImagePaths, format)
}

// SaveResults writes the formatted results to outputFile, or to w when no
// file is given.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile == "" {
		_, err := io.WriteString(w, output)
		return err
	}
	if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if !quiet {
		_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
	}
	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer, quiet bool) {
	if quiet {
		return
	}
	stats := r.Stats()
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %s (%s)\n", humanize.Comma(int64(len(r.ImagePaths))), humanize.Bytes(r.TotalBytes))
	_, _ = fmt.Fprintf(w, "  Processed: %s\n", humanize.Comma(int64(stats.ProcessedImages)))
	_, _ = fmt.Fprintf(w, "  Failed: %s\n", humanize.Comma(int64(stats.FailedImages)))
	if len(r.Skipped) > 0 {
		_, _ = fmt.Fprintf(w, "  Skipped (too large): %s\n", humanize.Comma(int64(len(r.Skipped))))
	}
	_, _ = fmt.Fprintf(w, "  Codes: %s\n", humanize.Comma(int64(stats.Codes)))
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", stats.AveragePerImage.Round(time.Microsecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %s images/sec\n", humanize.FormatFloat("#,###.#", stats.ThroughputPerSec))
}
