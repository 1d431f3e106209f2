package pipeline

import "github.com/MeKo-Tech/filmdx/internal/barcode"

// Box is an axis-aligned rectangle in image coordinates.
type Box struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// CodeResult is one DX edge code found in an image.
type CodeResult struct {
	Text            string          `json:"text" yaml:"text"`
	Product         int             `json:"product" yaml:"product"`
	Generation      int             `json:"generation" yaml:"generation"`
	HasHalfFrame    bool            `json:"has_half_frame" yaml:"has_half_frame"`
	Frame           int             `json:"frame,omitempty" yaml:"frame,omitempty"`
	HalfFrameLetter bool            `json:"half_frame_letter,omitempty" yaml:"half_frame_letter,omitempty"`
	Format          string          `json:"format" yaml:"format"`
	Symbology       string          `json:"symbology" yaml:"symbology"`
	LineCount       int             `json:"line_count" yaml:"line_count"`
	Rotation        int             `json:"rotation" yaml:"rotation"`
	Box             Box             `json:"box" yaml:"box"`
	Points          []barcode.Point `json:"points,omitempty" yaml:"points,omitempty"`
}

// Timing holds per-stage durations in nanoseconds.
type Timing struct {
	DecodeNs int64 `json:"decode_ns" yaml:"decode_ns"`
	TotalNs  int64 `json:"total_ns" yaml:"total_ns"`
}

// ImageResult is the per-image output.
type ImageResult struct {
	Source     string       `json:"source,omitempty" yaml:"source,omitempty"`
	Width      int          `json:"width" yaml:"width"`
	Height     int          `json:"height" yaml:"height"`
	Codes      []CodeResult `json:"codes" yaml:"codes"`
	Processing Timing       `json:"processing" yaml:"processing"`
}

// PDFResult is the output for a PDF document.
type PDFResult struct {
	Filename   string          `json:"filename" yaml:"filename"`
	TotalPages int             `json:"total_pages" yaml:"total_pages"`
	Pages      []PDFPageResult `json:"pages" yaml:"pages"`
	Processing struct {
		ExtractionNs int64 `json:"extraction_ns" yaml:"extraction_ns"`
		TotalNs      int64 `json:"total_ns" yaml:"total_ns"`
	} `json:"processing" yaml:"processing"`
}

// PDFPageResult holds the images of one page.
type PDFPageResult struct {
	PageNumber int              `json:"page_number" yaml:"page_number"`
	Width      int              `json:"width" yaml:"width"`
	Height     int              `json:"height" yaml:"height"`
	Images     []PDFImageResult `json:"images" yaml:"images"`
	Processing struct {
		TotalNs int64 `json:"total_ns" yaml:"total_ns"`
	} `json:"processing" yaml:"processing"`
}

// PDFImageResult is one image embedded in a page.
type PDFImageResult struct {
	ImageIndex int          `json:"image_index" yaml:"image_index"`
	Width      int          `json:"width" yaml:"width"`
	Height     int          `json:"height" yaml:"height"`
	Codes      []CodeResult `json:"codes" yaml:"codes"`
}

// Codes returns every code of the document in page order.
func (r *PDFResult) Codes() []CodeResult {
	var out []CodeResult
	for _, p := range r.Pages {
		for _, img := range p.Images {
			out = append(out, img.Codes...)
		}
	}
	return out
}

func codeFromBarcode(r barcode.Result) CodeResult {
	return CodeResult{
		Text:            r.Value,
		Product:         r.Product,
		Generation:      r.Generation,
		HasHalfFrame:    r.HasHalfFrame,
		Frame:           r.Frame,
		HalfFrameLetter: r.HalfFrameLetter,
		Format:          r.Type.String(),
		Symbology:       r.Symbology,
		LineCount:       r.LineCount,
		Rotation:        int(r.Rotation),
		Box: Box{
			X: r.BBox.Min.X,
			Y: r.BBox.Min.Y,
			W: r.BBox.Dx(),
			H: r.BBox.Dy(),
		},
		Points: r.Points,
	}
}
