package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/filmdx/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, size int) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
	return path
}

func TestDiscoverImageFiles_EmptyArgs(t *testing.T) {
	files, err := discoverImageFiles([]string{}, false, []string{"*.png"}, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverImageFiles_SingleFile(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	pngFile := touch(t, filepath.Join(dir, "test.png"), 1)
	txtFile := touch(t, filepath.Join(dir, "test.txt"), 1)
	jpgFile := touch(t, filepath.Join(dir, "test.jpg"), 1)

	files, err := discoverImageFiles([]string{pngFile, txtFile, jpgFile}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{pngFile, jpgFile}, files)
}

func TestDiscoverImageFiles_Directory(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	jpgFile := touch(t, filepath.Join(dir, "a_photo.jpg"), 1)
	pngFile := touch(t, filepath.Join(dir, "b_image.png"), 1)
	tifFile := touch(t, filepath.Join(dir, "c_scan.tiff"), 1)
	touch(t, filepath.Join(dir, "notes.txt"), 1)

	files, err := discoverImageFiles([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{jpgFile, pngFile, tifFile}, files)
}

func TestDiscoverImageFiles_Recursion(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	top := touch(t, filepath.Join(dir, "top.png"), 1)
	nested := touch(t, filepath.Join(dir, "roll1", "deep", "nested.png"), 1)

	files, err := discoverImageFiles([]string{dir}, true, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{top, nested}, files)

	files, err = discoverImageFiles([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{top}, files)
}

func TestDiscoverImageFiles_IncludeExcludePatterns(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	keep := touch(t, filepath.Join(dir, "roll_01.png"), 1)
	touch(t, filepath.Join(dir, "roll_02_thumb.png"), 1)
	touch(t, filepath.Join(dir, "cover.png"), 1)

	files, err := discoverImageFiles([]string{dir}, false, []string{"roll_*"}, []string{"*_thumb.*"})
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, files)
}

func TestDiscoverImageFiles_NonExistent(t *testing.T) {
	_, err := discoverImageFiles([]string{"/nonexistent/directory"}, false, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestMatchesAnyPattern(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		patterns []string
		want     bool
	}{
		{"no patterns", "/a/b.png", nil, false},
		{"base name", "/a/b.png", []string{"*.png"}, true},
		{"directory is ignored", "/scans/b.png", []string{"scans*"}, false},
		{"second pattern", "/a/b.tif", []string{"*.png", "*.tif"}, true},
		{"bad pattern", "/a/b.png", []string{"["}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesAnyPattern(tt.path, tt.patterns))
		})
	}
}

func TestFilterBySize(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	small := touch(t, filepath.Join(dir, "small.png"), 10)
	large := touch(t, filepath.Join(dir, "large.png"), 2000)
	missing := filepath.Join(dir, "missing.png")

	kept, skipped, total := filterBySize([]string{small, large, missing}, 1000)
	assert.Equal(t, []string{small, missing}, kept)
	assert.Equal(t, []string{large}, skipped)
	assert.Equal(t, uint64(10), total)

	kept, skipped, total = filterBySize([]string{small, large}, 0)
	assert.Len(t, kept, 2)
	assert.Empty(t, skipped)
	assert.Equal(t, uint64(2010), total)
}
