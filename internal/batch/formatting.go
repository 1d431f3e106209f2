package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/filmdx/internal/pipeline"
)

// formatBatchResults formats the batch processing results in the specified format.
func formatBatchResults(results []*pipeline.ImageResult, imagePaths []string, format string) (string, error) {
	switch strings.ToLower(format) {
	case pipeline.FormatJSON:
		return formatJSON(results, imagePaths)
	case pipeline.FormatText, "":
		return formatText(results, imagePaths), nil
	default:
		return pipeline.FormatImageResults(results, format)
	}
}

type batchImage struct {
	File   string                `json:"file"`
	Failed bool                  `json:"failed,omitempty"`
	Result *pipeline.ImageResult `json:"result,omitempty"`
}

// formatJSON wraps every result with its file, so failed images still
// show up.
func formatJSON(results []*pipeline.ImageResult, imagePaths []string) (string, error) {
	batchResult := struct {
		Images []batchImage `json:"images"`
	}{Images: make([]batchImage, len(results))}

	for i, res := range results {
		batchResult.Images[i] = batchImage{File: imagePaths[i], Failed: res == nil, Result: res}
	}

	bts, err := json.MarshalIndent(batchResult, "", "  ")
	return string(bts), err
}

// formatText lists the codes below a "# file" heading per image.
func formatText(results []*pipeline.ImageResult, imagePaths []string) string {
	var output strings.Builder
	for i, res := range results {
		if i > 0 {
			output.WriteString("\n")
		}
		fmt.Fprintf(&output, "# %s\n", imagePaths[i])
		if res == nil {
			output.WriteString("(failed)\n")
			continue
		}
		for _, c := range res.Codes {
			output.WriteString(c.Text)
			output.WriteString("\n")
		}
	}
	return output.String()
}
