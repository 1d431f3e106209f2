// Package batch decodes DX edge codes in many image files at once.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/filmdx/internal/pipeline"
)

// ProcessBatch discovers the image files below paths and decodes them in
// parallel.
func ProcessBatch(ctx context.Context, paths []string, config *Config) (*Result, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch config: %w", err)
	}
	maxSize, err := config.maxFileSize()
	if err != nil {
		return nil, err
	}

	files, err := discoverImageFiles(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	files, skipped, totalBytes := filterBySize(files, maxSize)
	if len(files) == 0 {
		return nil, errors.New("no image files found")
	}

	var progressCallback pipeline.ProgressCallback
	if config.ShowProgress && !config.Quiet {
		progressCallback = pipeline.NewConsoleProgressCallback(config.ProgressWriter, "Decoding: ").
			WithUpdateInterval(config.ProgressInterval)
	}

	result := &Result{
		ImagePaths: files,
		Skipped:    skipped,
		TotalBytes: totalBytes,
	}

	pl, err := buildPipeline(config, progressCallback, func(i int, _ image.Image, err error) {
		result.Failures = append(result.Failures, Failure{Path: files[i], Err: err})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	result.WorkerCount = pl.Config().Parallel.MaxWorkers
	defer func() {
		if err := pl.Close(); err != nil {
			slog.Error("Error closing pipeline", "error", err)
		}
	}()

	start := time.Now()
	results, err := pl.ProcessFilesParallel(ctx, files)
	result.Duration = time.Since(start)
	if err != nil {
		if results == nil || !config.ContinueOnError {
			return nil, fmt.Errorf("batch processing failed: %w", err)
		}
		for _, f := range result.Failures {
			slog.Warn("Skipping failed image", "file", f.Path, "error", f.Err)
		}
	}
	result.Results = results

	if config.OverlayDir != "" {
		writeOverlays(results, config.OverlayDir, config.OverlayColor)
	}
	return result, nil
}
