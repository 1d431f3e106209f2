package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/filmdx/internal/dxedge"
	"github.com/MeKo-Tech/filmdx/internal/synth"
	"github.com/stretchr/testify/require"
)

// DXEdgeImage renders the codes, given in "115-10/11A" form, side by side
// with the default geometry.
func DXEdgeImage(t *testing.T, texts ...string) *image.NRGBA {
	t.Helper()
	return DXEdgeImageWith(t, synth.DefaultOptions(), texts...)
}

// DXEdgeImageWith renders the codes with custom geometry.
func DXEdgeImageWith(t *testing.T, opts synth.Options, texts ...string) *image.NRGBA {
	t.Helper()

	codes := make([]dxedge.Code, 0, len(texts))
	for _, text := range texts {
		code, err := dxedge.ParseText(text)
		require.NoError(t, err, "invalid code %q", text)
		codes = append(codes, code)
	}

	img, err := synth.RenderStrip(codes, opts)
	require.NoError(t, err, "Failed to render %v", texts)
	return img
}

// SaveImage saves an image to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	err = png.Encode(file, img)
	require.NoError(t, err, "Failed to encode PNG image")
}

// WriteDXEdgeImage renders the codes into dir/name and returns the path.
func WriteDXEdgeImage(t *testing.T, dir, name string, texts ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	SaveImage(t, DXEdgeImage(t, texts...), path)
	return path
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")

	return img
}

// EncodePNG returns img as PNG bytes, for upload tests.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// CreateTestImage creates a plain image with the specified dimensions and color.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// GenerateTestImages writes one image per sample fixture into dir and
// returns the paths.
func GenerateTestImages(t *testing.T, dir string) []string {
	t.Helper()

	require.NoError(t, EnsureDir(dir))
	paths := make([]string, 0, len(SampleFixtures()))
	for _, f := range SampleFixtures() {
		opts := synth.DefaultOptions()
		opts.Negative = f.Negative
		path := filepath.Join(dir, f.InputFile)
		SaveImage(t, DXEdgeImageWith(t, opts, f.Codes...), path)
		paths = append(paths, path)
	}
	return paths
}

// ImageName returns the file name used for a fixture image.
func ImageName(name string) string {
	return fmt.Sprintf("%s.png", name)
}
