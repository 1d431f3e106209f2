package batch

import (
	"image"

	"github.com/MeKo-Tech/filmdx/internal/pipeline"
)

// buildPipeline creates a decode pipeline from the batch configuration.
func buildPipeline(config *Config, progressCallback pipeline.ProgressCallback,
	onError func(int, image.Image, error),
) (*pipeline.Pipeline, error) {
	b := pipeline.NewBuilder().
		WithTryHarder(config.TryHarder).
		WithTryRotate(config.TryRotate).
		WithTryInvert(config.TryInvert).
		WithMinLineCount(config.MinLineCount).
		WithMaxSymbols(config.MaxSymbols).
		WithParallelWorkers(config.Workers).
		WithProgressCallback(progressCallback).
		WithErrorHandler(onError)

	if config.Binarizer != "" {
		b = b.WithBinarizer(config.Binarizer)
	}
	if len(config.Formats) > 0 {
		b = b.WithFormats(config.Formats...)
	}
	if !config.ROI.Empty() {
		b = b.WithROI(config.ROI)
	}
	if config.Recorder != nil {
		b = b.WithRecorder(config.Recorder)
	}
	return b.Build()
}
