package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"
)

// ParallelConfig holds configuration for parallel processing.
type ParallelConfig struct {
	MaxWorkers       int                           // Number of parallel workers (0 = runtime.NumCPU())
	ProgressCallback ProgressCallback              // Optional progress reporting
	ErrorHandler     func(int, image.Image, error) // Optional per-image error handler
}

// DefaultParallelConfig returns sensible defaults for parallel processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU()}
}

type imageResult struct {
	index  int
	result *ImageResult
	err    error
}

// ProcessImagesParallel decodes images with a worker pool. Results come back
// in input order; a failed image leaves a nil entry and the first failure is
// returned as error.
func (p *Pipeline) ProcessImagesParallel(ctx context.Context, images []image.Image) ([]*ImageResult, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	return p.runParallel(ctx, len(images), "image",
		func(ctx context.Context, i int) (*ImageResult, error) { return p.ProcessImage(ctx, images[i]) },
		func(i int) image.Image { return images[i] })
}

// ProcessFilesParallel is ProcessImagesParallel for image files. Each
// worker loads its own file, so only the images in flight are held in
// memory. The ErrorHandler receives a nil image.
func (p *Pipeline) ProcessFilesParallel(ctx context.Context, paths []string) ([]*ImageResult, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files provided")
	}
	return p.runParallel(ctx, len(paths), "file",
		func(ctx context.Context, i int) (*ImageResult, error) {
			res, err := p.ProcessFile(ctx, paths[i])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", paths[i], err)
			}
			return res, nil
		},
		func(int) image.Image { return nil })
}

func (p *Pipeline) runParallel(ctx context.Context, n int, kind string,
	process func(context.Context, int) (*ImageResult, error),
	imageAt func(int) image.Image,
) ([]*ImageResult, error) {
	if p == nil || p.backend == nil {
		return nil, errors.New("pipeline not initialized")
	}

	config := p.cfg.Parallel
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = runtime.NumCPU()
	}
	workers := min(config.MaxWorkers, n)

	if config.ProgressCallback != nil {
		config.ProgressCallback.OnStart(n)
		defer config.ProgressCallback.OnComplete()
	}

	jobs := make(chan int, n)
	results := make(chan imageResult, n)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go worker(ctx, process, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)
		for i := range n {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*ImageResult, n)
	errs := make([]error, n)
	processed := 0
	for r := range results {
		ordered[r.index] = r.result
		errs[r.index] = r.err
		processed++
		if config.ProgressCallback != nil {
			if r.err != nil {
				config.ProgressCallback.OnError(r.index, r.err)
			}
			config.ProgressCallback.OnProgress(processed, n)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var firstError error
	for i, err := range errs {
		if err == nil {
			continue
		}
		if firstError == nil {
			firstError = fmt.Errorf("%s %d: %w", kind, i, err)
		}
		if config.ErrorHandler != nil {
			config.ErrorHandler(i, imageAt(i), err)
		}
	}
	return ordered, firstError
}

func worker(ctx context.Context, process func(context.Context, int) (*ImageResult, error),
	jobs <-chan int, results chan<- imageResult, wg *sync.WaitGroup,
) {
	defer wg.Done()

	for {
		select {
		case i, ok := <-jobs:
			if !ok {
				return
			}
			result, err := process(ctx, i)
			select {
			case results <- imageResult{index: i, result: result, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// ParallelStats holds statistics about parallel processing performance.
type ParallelStats struct {
	TotalImages      int           `json:"total_images"`
	ProcessedImages  int           `json:"processed_images"`
	FailedImages     int           `json:"failed_images"`
	Codes            int           `json:"codes"`
	WorkerCount      int           `json:"worker_count"`
	TotalDuration    time.Duration `json:"total_duration_ns"`
	AveragePerImage  time.Duration `json:"average_per_image_ns"`
	ThroughputPerSec float64       `json:"throughput_per_sec"`
}

// CalculateParallelStats calculates performance statistics for a run.
func CalculateParallelStats(results []*ImageResult, duration time.Duration, workerCount int) ParallelStats {
	s := ParallelStats{
		TotalImages:   len(results),
		WorkerCount:   workerCount,
		TotalDuration: duration,
	}
	for _, r := range results {
		if r == nil {
			s.FailedImages++
			continue
		}
		s.ProcessedImages++
		s.Codes += len(r.Codes)
	}
	if s.ProcessedImages > 0 && duration > 0 {
		s.AveragePerImage = duration / time.Duration(s.ProcessedImages)
		s.ThroughputPerSec = float64(s.ProcessedImages) / duration.Seconds()
	}
	return s
}
