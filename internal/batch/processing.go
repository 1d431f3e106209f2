package batch

import (
	"image/color"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/filmdx/internal/pipeline"
	"github.com/MeKo-Tech/filmdx/internal/utils"
)

// overlayPath returns the overlay file name for an input image.
func overlayPath(overlayDir, source string) string {
	base := filepath.Base(source)
	return filepath.Join(overlayDir, strings.TrimSuffix(base, filepath.Ext(base))+"_overlay.png")
}

// writeOverlays saves a marked up copy of every image with at least one
// code. Failures are logged and do not fail the batch.
func writeOverlays(results []*pipeline.ImageResult, overlayDir string, col color.Color) {
	for _, res := range results {
		if res == nil || len(res.Codes) == 0 {
			continue
		}
		if _, err := WriteOverlay(res, overlayDir, col); err != nil {
			slog.Warn("Failed to write overlay", "file", res.Source, "error", err)
		}
	}
}

// WriteOverlay reloads the source image of res, marks its codes in col and
// saves the copy to overlayDir as <name>_overlay.png. A nil col uses
// pipeline.OverlayColor. It returns the written path.
func WriteOverlay(res *pipeline.ImageResult, overlayDir string, col color.Color) (string, error) {
	img, _, err := utils.LoadImage(res.Source)
	if err != nil {
		return "", err
	}
	if col == nil {
		col = pipeline.OverlayColor
	}
	out := overlayPath(overlayDir, res.Source)
	return out, utils.SaveImage(out, pipeline.RenderOverlay(img, res, col))
}
