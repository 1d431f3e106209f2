package batch

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/filmdx/internal/recorder"
	"github.com/MeKo-Tech/filmdx/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietConfig() *Config {
	config := DefaultConfig()
	config.Workers = 2
	config.Quiet = true
	return config
}

func TestProcessBatch_NoImageFiles(t *testing.T) {
	result, err := ProcessBatch(context.Background(), []string{t.TempDir()}, quietConfig())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "no image files found")
}

func TestProcessBatch_InvalidPath(t *testing.T) {
	result, err := ProcessBatch(context.Background(), []string{"/nonexistent/file.png"}, quietConfig())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestProcessBatch_InvalidConfig(t *testing.T) {
	config := quietConfig()
	config.Binarizer = "hybrid"
	dir := t.TempDir()
	testutil.WriteDXEdgeImage(t, dir, "a.png", "80-2")

	_, err := ProcessBatch(context.Background(), []string{dir}, config)
	assert.ErrorContains(t, err, "failed to build pipeline")

	config = quietConfig()
	config.Workers = -3
	_, err = ProcessBatch(context.Background(), []string{dir}, config)
	assert.ErrorContains(t, err, "invalid batch config")
}

func TestProcessBatch_Directory(t *testing.T) {
	dir := t.TempDir()
	testutil.GenerateTestImages(t, dir)

	config := quietConfig()
	config.TryHarder = true
	config.IncludePatterns = []string{"*.png"}
	config.ExcludePatterns = []string{"negative_*"}

	result, err := ProcessBatch(context.Background(), []string{dir}, config)
	require.NoError(t, err)

	var fixtures []testutil.TestFixture
	for _, f := range testutil.SampleFixtures() {
		if !f.Negative {
			fixtures = append(fixtures, f)
		}
	}
	require.Len(t, result.ImagePaths, len(fixtures))
	byFile := make(map[string][]string)
	for i, res := range result.Results {
		require.NotNil(t, res, result.ImagePaths[i])
		assert.Equal(t, result.ImagePaths[i], res.Source)
		for _, c := range res.Codes {
			byFile[filepath.Base(res.Source)] = append(byFile[filepath.Base(res.Source)], c.Text)
		}
	}
	for _, f := range fixtures {
		assert.Equal(t, f.Codes, byFile[f.InputFile], f.Name)
	}

	assert.Positive(t, result.TotalBytes)
	assert.Equal(t, 2, result.WorkerCount)
	assert.Empty(t, result.Failures)
	assert.Equal(t, len(fixtures), result.Stats().ProcessedImages)
}

func TestProcessBatch_FailedImage(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDXEdgeImage(t, dir, "a_good.png", "80-2")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_broken.png"), []byte("not a png"), 0o600))

	_, err := ProcessBatch(context.Background(), []string{dir}, quietConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b_broken.png")

	config := quietConfig()
	config.ContinueOnError = true
	result, err := ProcessBatch(context.Background(), []string{dir}, config)
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "80-2", result.Results[0].Codes[0].Text)
	assert.Nil(t, result.Results[1])
	require.Len(t, result.Failures, 1)
	assert.Equal(t, filepath.Join(dir, "b_broken.png"), result.Failures[0].Path)
}

func TestProcessBatch_SkipsLargeFiles(t *testing.T) {
	dir := t.TempDir()
	small := testutil.WriteDXEdgeImage(t, dir, "small.png", "80-2")
	large := testutil.WriteDXEdgeImage(t, dir, "wide.png", "115-10/11A", "32-5", "18-3/5", "127-15")

	info, err := os.Stat(small)
	require.NoError(t, err)

	config := quietConfig()
	config.MaxFileSize = fmt.Sprintf("%dB", info.Size())
	result, err := ProcessBatch(context.Background(), []string{dir}, config)
	require.NoError(t, err)
	assert.Equal(t, []string{small}, result.ImagePaths)
	assert.Equal(t, []string{large}, result.Skipped)
}

func TestProcessBatch_OverlaysAndProgress(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDXEdgeImage(t, dir, "roll.png", "115-10/11A")
	testutil.SaveImage(t, testutil.CreateTestImage(200, 100, color.White), filepath.Join(dir, "blank.png"))
	overlayDir := filepath.Join(t.TempDir(), "overlays")

	var progress bytes.Buffer
	config := quietConfig()
	config.Quiet = false
	config.ShowProgress = true
	config.ProgressWriter = &progress
	config.OverlayDir = overlayDir

	result, err := ProcessBatch(context.Background(), []string{dir}, config)
	require.NoError(t, err)
	require.Len(t, result.Results, 2)

	assert.Contains(t, progress.String(), "Decoding: 0/2")
	assert.Contains(t, progress.String(), "Completed")

	assert.True(t, testutil.FileExists(filepath.Join(overlayDir, "roll_overlay.png")))
	assert.False(t, testutil.FileExists(filepath.Join(overlayDir, "blank_overlay.png")))
}

func TestProcessBatch_Recorder(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDXEdgeImage(t, dir, "a.png", "80-2")
	testutil.WriteDXEdgeImage(t, dir, "b.png", "32-5")

	rec, err := recorder.Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = rec.Close() }()

	config := quietConfig()
	config.Recorder = rec
	for range 2 {
		_, err := ProcessBatch(context.Background(), []string{dir}, config)
		require.NoError(t, err)
	}

	stats, err := rec.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, 2, stats.Images)

	entries, err := rec.ByProduct(context.Background(), 80)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Join(dir, "a.png"), entries[0].Source)
}

func TestProcessBatch_Cancelled(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDXEdgeImage(t, dir, "a.png", "80-2")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ProcessBatch(ctx, []string{dir}, quietConfig())
	assert.ErrorIs(t, err, context.Canceled)
}
