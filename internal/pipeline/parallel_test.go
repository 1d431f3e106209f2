package pipeline

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/filmdx/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParallelConfig(t *testing.T) {
	config := DefaultParallelConfig()
	assert.Positive(t, config.MaxWorkers)
	assert.Nil(t, config.ProgressCallback)
	assert.Nil(t, config.ErrorHandler)
}

func TestProcessImagesParallelKeepsOrder(t *testing.T) {
	texts := []string{"32-5", "115-10/11A", "18-3/5", "80-2", "1-0", "127-15"}
	images := make([]image.Image, len(texts))
	for i, text := range texts {
		images[i] = testutil.DXEdgeImage(t, text)
	}

	progress := &recordingProgress{}
	p := buildPipeline(t, NewBuilder().WithParallelWorkers(3).WithProgressCallback(progress))

	results, err := p.ProcessImagesParallel(context.Background(), images)
	require.NoError(t, err)
	require.Len(t, results, len(texts))
	for i, res := range results {
		require.Len(t, res.Codes, 1, "image %d", i)
		assert.Equal(t, texts[i], res.Codes[0].Text)
	}

	assert.Equal(t, len(texts), progress.started)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, progress.progress)
	assert.True(t, progress.completed)
	assert.Empty(t, progress.errors)
}

func TestProcessImagesParallelErrors(t *testing.T) {
	images := []image.Image{
		testutil.CreateTestImage(50, 10, color.White),
		testutil.CreateTestImage(100, 10, color.White),
		testutil.CreateTestImage(60, 10, color.White),
	}

	var (
		mu      sync.Mutex
		handled []int
	)
	b := NewBuilder().WithBackend(&stubBackend{failWidth: 100}).WithParallelWorkers(2)
	b.WithErrorHandler(func(i int, _ image.Image, _ error) {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, i)
	})
	progress := &recordingProgress{}
	b.WithProgressCallback(progress)
	p := buildPipeline(t, b)

	results, err := p.ProcessImagesParallel(context.Background(), images)
	require.ErrorIs(t, err, errStub)
	assert.ErrorContains(t, err, "image 1")

	require.Len(t, results, 3)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.NotNil(t, results[2])
	assert.Equal(t, []int{1}, handled)
	assert.Equal(t, []int{1}, progress.errors)

	stats := CalculateParallelStats(results, time.Second, 2)
	assert.Equal(t, 3, stats.TotalImages)
	assert.Equal(t, 2, stats.ProcessedImages)
	assert.Equal(t, 1, stats.FailedImages)
	assert.Equal(t, 2, stats.Codes)
	assert.Equal(t, 500*time.Millisecond, stats.AveragePerImage)
	assert.InDelta(t, 2.0, stats.ThroughputPerSec, 1e-9)
}

func TestProcessImagesParallelInvalidInput(t *testing.T) {
	p := buildPipeline(t, NewBuilder())
	_, err := p.ProcessImagesParallel(context.Background(), nil)
	assert.ErrorContains(t, err, "no images provided")

	var nilPipeline *Pipeline
	_, err = nilPipeline.ProcessImagesParallel(context.Background(), []image.Image{testutil.DXEdgeImage(t, "32-5")})
	assert.ErrorContains(t, err, "pipeline not initialized")
}

func TestProcessImagesParallelCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := buildPipeline(t, NewBuilder().WithParallelWorkers(2))
	_, err := p.ProcessImagesParallel(ctx, []image.Image{
		testutil.DXEdgeImage(t, "32-5"),
		testutil.DXEdgeImage(t, "80-2"),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateParallelStatsEmpty(t *testing.T) {
	stats := CalculateParallelStats(nil, 0, 1)
	assert.Zero(t, stats.ProcessedImages)
	assert.Zero(t, stats.ThroughputPerSec)
}

func TestProcessFilesParallel(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		testutil.WriteDXEdgeImage(t, dir, "a.png", "32-5"),
		filepath.Join(dir, "missing.png"),
		testutil.WriteDXEdgeImage(t, dir, "c.png", "80-2"),
	}

	b := NewBuilder().WithParallelWorkers(2)
	var handled []int
	b.WithErrorHandler(func(i int, img image.Image, _ error) {
		assert.Nil(t, img)
		handled = append(handled, i)
	})
	p := buildPipeline(t, b)

	results, err := p.ProcessFilesParallel(context.Background(), paths)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file 1")
	assert.Contains(t, err.Error(), "missing.png")
	require.Len(t, results, 3)
	assert.Nil(t, results[1])
	assert.Equal(t, []int{1}, handled)

	assert.Equal(t, paths[0], results[0].Source)
	assert.Equal(t, "32-5", results[0].Codes[0].Text)
	assert.Equal(t, "80-2", results[2].Codes[0].Text)

	_, err = p.ProcessFilesParallel(context.Background(), nil)
	assert.Error(t, err)
}
