package testutil

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/filmdx/internal/dxedge"
	"github.com/MeKo-Tech/filmdx/internal/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDXEdgeImage(t *testing.T) {
	img := DXEdgeImage(t, "115-10/11A")
	opts := synth.DefaultOptions()
	assert.Equal(t, 2*opts.Margin+dxedge.ClockModulesHF*opts.Unit, img.Bounds().Dx())
}

func TestSaveAndLoadImage(t *testing.T) {
	dir := CreateTempDir(t)
	path := WriteDXEdgeImage(t, dir, "code.png", "32-5")
	require.True(t, FileExists(path))

	loaded := LoadImage(t, path)
	assert.Equal(t, DXEdgeImage(t, "32-5").Bounds(), loaded.Bounds())
}

func TestEncodePNG(t *testing.T) {
	data := EncodePNG(t, CreateTestImage(4, 4, color.White))
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}

func TestGenerateTestImages(t *testing.T) {
	dir := CreateTempDir(t)
	paths := GenerateTestImages(t, filepath.Join(dir, "images"))
	require.Len(t, paths, len(SampleFixtures()))
	for _, p := range paths {
		assert.True(t, FileExists(p), p)
	}
}
