package barcode

import (
	"context"
	"image"
	"image/draw"

	"github.com/MeKo-Tech/filmdx/internal/scan"
)

// newDefaultBackend returns the DX edge scanner.
func newDefaultBackend() (Backend, error) { return &dxEdgeBackend{}, nil }

type dxEdgeBackend struct{}

func (b *dxEdgeBackend) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	if !opts.wants(FormatDXFilmEdge) {
		return nil, nil
	}

	// points stay in the coordinates of the full image
	if !opts.ROI.Empty() {
		if roiImg, ok := subImage(img, opts.ROI); ok {
			img = roiImg
		}
	}

	dets, err := scan.Scan(ctx, img, scan.Options{
		TryHarder:    opts.TryHarder,
		TryRotate:    opts.TryRotate,
		TryInvert:    opts.TryInvert,
		MinLineCount: opts.MinLineCount,
		MaxSymbols:   opts.MaxSymbols,
		Binarizer:    scan.Binarizer(opts.Binarizer),
	})
	if err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(dets))
	for _, d := range dets {
		points := make([]Point, 0, len(d.Points))
		for _, p := range d.Points {
			points = append(points, Point{X: p.X, Y: p.Y})
		}
		out = append(out, Result{
			Type:            FormatDXFilmEdge,
			Value:           d.Text,
			Points:          points,
			BBox:            d.Box,
			Rotation:        float64(d.Rotation),
			Confidence:      -1,
			Symbology:       d.SymbologyIdentifier(),
			LineCount:       d.LineCount,
			Product:         d.Product,
			Generation:      d.Generation,
			HasHalfFrame:    d.HasHalfFrame,
			Frame:           d.Frame,
			HalfFrameLetter: d.HalfFrameLetter,
		})
	}
	return out, nil
}

// subImage returns the part of img inside r. Coordinates stay those of img.
func subImage(img image.Image, r image.Rectangle) (image.Image, bool) {
	rb := r.Intersect(img.Bounds())
	if rb.Empty() {
		return nil, false
	}
	type subImager interface{ SubImage(r image.Rectangle) image.Image }
	if s, ok := img.(subImager); ok {
		return s.SubImage(rb), true
	}
	dst := image.NewRGBA(rb)
	draw.Draw(dst, rb, img, rb.Min, draw.Src)
	return dst, true
}
