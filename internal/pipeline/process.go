package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/filmdx/internal/recorder"
	"github.com/MeKo-Tech/filmdx/internal/utils"
)

// ProcessImage decodes all DX edge codes in img.
func (p *Pipeline) ProcessImage(ctx context.Context, img image.Image) (*ImageResult, error) {
	return p.processImage(ctx, "", img)
}

// ProcessFile loads the image at path and decodes it. The path ends up in
// the result and the decode log.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*ImageResult, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return p.processImage(ctx, path, img)
}

// ProcessImages processes multiple images sequentially and returns results.
func (p *Pipeline) ProcessImages(ctx context.Context, images []image.Image) ([]*ImageResult, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	results := make([]*ImageResult, 0, len(images))
	for i, img := range images {
		res, err := p.ProcessImage(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (p *Pipeline) processImage(ctx context.Context, source string, img image.Image) (*ImageResult, error) {
	if p == nil || p.backend == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if err := utils.ValidateImageConstraints(img, p.cfg.Constraints); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	totalStart := time.Now()
	b := img.Bounds()
	res := &ImageResult{
		Source: source,
		Width:  b.Dx(),
		Height: b.Dy(),
		Codes:  []CodeResult{},
	}

	decodeStart := time.Now()
	found, err := p.backend.Decode(ctx, img, p.cfg.Barcode)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	res.Processing.DecodeNs = time.Since(decodeStart).Nanoseconds()

	for _, r := range found {
		res.Codes = append(res.Codes, codeFromBarcode(r))
	}

	if p.recorder != nil && len(res.Codes) > 0 {
		if err := p.record(ctx, img, res); err != nil {
			return nil, err
		}
	}

	res.Processing.TotalNs = time.Since(totalStart).Nanoseconds()
	slog.Debug("Decoded image", "source", source, "codes", len(res.Codes), "decode_ns", res.Processing.DecodeNs)
	return res, nil
}

func (p *Pipeline) record(ctx context.Context, img image.Image, res *ImageResult) error {
	hash := recorder.HashImage(img)
	for _, c := range res.Codes {
		_, err := p.recorder.Record(ctx, recorder.Entry{
			Source:          res.Source,
			ImageHash:       hash,
			Text:            c.Text,
			Product:         c.Product,
			Generation:      c.Generation,
			HasHalfFrame:    c.HasHalfFrame,
			Frame:           c.Frame,
			HalfFrameLetter: c.HalfFrameLetter,
			LineCount:       c.LineCount,
			Rotation:        c.Rotation,
			Extra: map[string]any{
				"binarizer": p.cfg.Barcode.Binarizer,
				"box":       c.Box,
			},
		})
		if err != nil {
			return fmt.Errorf("record %s: %w", c.Text, err)
		}
	}
	return nil
}
