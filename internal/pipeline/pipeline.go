package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/filmdx/internal/barcode"
	"github.com/MeKo-Tech/filmdx/internal/recorder"
	"github.com/MeKo-Tech/filmdx/internal/scan"
	"github.com/MeKo-Tech/filmdx/internal/utils"
)

// Recorder receives every decoded code. *recorder.Recorder implements it.
type Recorder interface {
	Record(ctx context.Context, e recorder.Entry) (bool, error)
}

// Config holds configuration for the decode pipeline.
type Config struct {
	Barcode     barcode.Options
	Constraints utils.ImageConstraints

	// Parallel processing configuration
	Parallel ParallelConfig

	// Recorder is optional; nil disables the decode log.
	Recorder Recorder
}

// DefaultConfig returns a default pipeline config.
func DefaultConfig() Config {
	return Config{
		Barcode:     barcode.DefaultOptions(),
		Constraints: utils.DefaultImageConstraints(),
		Parallel:    DefaultParallelConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg     Config
	backend barcode.Backend
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderWithConfig starts from cfg instead of the defaults.
func NewBuilderWithConfig(cfg Config) *Builder { return &Builder{cfg: cfg} }

// WithTryHarder scans every row and keeps looking after the first code.
func (b *Builder) WithTryHarder(enabled bool) *Builder {
	b.cfg.Barcode.TryHarder = enabled
	return b
}

// WithTryRotate also scans the image rotated by 90 degrees.
func (b *Builder) WithTryRotate(enabled bool) *Builder {
	b.cfg.Barcode.TryRotate = enabled
	return b
}

// WithTryInvert also scans the inverted image, for negatives.
func (b *Builder) WithTryInvert(enabled bool) *Builder {
	b.cfg.Barcode.TryInvert = enabled
	return b
}

// WithMinLineCount sets how many rows have to agree on a code.
func (b *Builder) WithMinLineCount(n int) *Builder {
	if n > 0 {
		b.cfg.Barcode.MinLineCount = n
	}
	return b
}

// WithMaxSymbols stops after n codes per image; 0 means no limit.
func (b *Builder) WithMaxSymbols(n int) *Builder {
	if n >= 0 {
		b.cfg.Barcode.MaxSymbols = n
	}
	return b
}

// WithBinarizer selects "row" or "global" thresholding.
func (b *Builder) WithBinarizer(name string) *Builder {
	if name != "" {
		b.cfg.Barcode.Binarizer = strings.ToLower(name)
	}
	return b
}

// WithFormats restricts the symbologies to search.
func (b *Builder) WithFormats(formats ...barcode.Format) *Builder {
	b.cfg.Barcode.Formats = formats
	return b
}

// WithROI restricts decoding to r; an empty rectangle scans everything.
func (b *Builder) WithROI(r image.Rectangle) *Builder {
	b.cfg.Barcode.ROI = r
	return b
}

// WithImageConstraints overrides the accepted image size range.
func (b *Builder) WithImageConstraints(c utils.ImageConstraints) *Builder {
	b.cfg.Constraints = c
	return b
}

// WithParallelWorkers sets the number of parallel workers for batch processing.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithProgressCallback sets the progress callback for batch processing.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = callback
	return b
}

// WithErrorHandler is called once per failed image after a parallel run.
func (b *Builder) WithErrorHandler(handler func(int, image.Image, error)) *Builder {
	b.cfg.Parallel.ErrorHandler = handler
	return b
}

// WithRecorder logs every decoded code to r.
func (b *Builder) WithRecorder(r Recorder) *Builder {
	b.cfg.Recorder = r
	return b
}

// WithBackend replaces the barcode backend.
func (b *Builder) WithBackend(backend barcode.Backend) *Builder {
	b.backend = backend
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the configuration looks sane.
func (b *Builder) Validate() error {
	o := b.cfg.Barcode
	bin, err := scan.ParseBinarizer(o.Binarizer)
	if err != nil {
		return err
	}
	opts := scan.Options{MinLineCount: o.MinLineCount, MaxSymbols: o.MaxSymbols, Binarizer: bin}
	if err := opts.Validate(); err != nil {
		return err
	}
	if b.cfg.Parallel.MaxWorkers < 0 {
		return errors.New("parallel workers must not be negative")
	}
	return nil
}

// Pipeline decodes DX edge codes from images and documents.
type Pipeline struct {
	cfg      Config
	backend  barcode.Backend
	recorder Recorder
}

// Build initializes the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	backend := b.backend
	if backend == nil {
		var err error
		if backend, err = barcode.NewBackend(); err != nil {
			return nil, fmt.Errorf("init barcode backend: %w", err)
		}
	}
	return &Pipeline{cfg: b.cfg, backend: backend, recorder: b.cfg.Recorder}, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }

// Close releases all resources. The recorder belongs to the caller and
// stays open.
func (p *Pipeline) Close() error { return nil }

// Info returns a summary of the pipeline configuration.
func (p *Pipeline) Info() map[string]any {
	if p == nil {
		return map[string]any{}
	}
	o := p.cfg.Barcode
	formats := make([]string, 0, len(o.Formats))
	for _, f := range o.Formats {
		formats = append(formats, f.String())
	}
	return map[string]any{
		"barcode": map[string]any{
			"formats":        formats,
			"try_harder":     o.TryHarder,
			"try_rotate":     o.TryRotate,
			"try_invert":     o.TryInvert,
			"min_line_count": o.MinLineCount,
			"max_symbols":    o.MaxSymbols,
			"binarizer":      o.Binarizer,
		},
		"parallel": map[string]any{
			"max_workers": p.cfg.Parallel.MaxWorkers,
		},
		"recorder": p.recorder != nil,
		"memory":   GetMemStats(),
	}
}
