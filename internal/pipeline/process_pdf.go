package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"time"

	"github.com/MeKo-Tech/filmdx/internal/pdf"
	"github.com/MeKo-Tech/filmdx/internal/utils"
)

// ProcessPDF decodes the images embedded in a PDF file. pageRange uses the
// "1-3,5" form; empty selects all pages.
func (p *Pipeline) ProcessPDF(ctx context.Context, filename string, pageRange string) (*PDFResult, error) {
	return p.ProcessPDFWithCredentials(ctx, filename, pageRange, nil)
}

// ProcessPDFWithCredentials is ProcessPDF for encrypted documents.
func (p *Pipeline) ProcessPDFWithCredentials(ctx context.Context, filename, pageRange string,
	creds *pdf.Credentials,
) (*PDFResult, error) {
	if filename == "" {
		return nil, errors.New("filename cannot be empty")
	}
	if p == nil || p.backend == nil {
		return nil, errors.New("pipeline not initialized")
	}

	totalStart := time.Now()
	pageImages, err := pdf.ExtractImagesWithCredentials(filename, pageRange, creds)
	if err != nil {
		return nil, err
	}
	extractNs := time.Since(totalStart).Nanoseconds()

	pageNumbers := make([]int, 0, len(pageImages))
	for n := range pageImages {
		pageNumbers = append(pageNumbers, n)
	}
	slices.Sort(pageNumbers)

	result := &PDFResult{Filename: filename, Pages: make([]PDFPageResult, 0, len(pageNumbers))}
	for _, n := range pageNumbers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := p.processPDFPage(ctx, filename, n, pageImages[n])
		if err != nil {
			return nil, fmt.Errorf("failed to process page %d: %w", n, err)
		}
		result.Pages = append(result.Pages, *page)
	}

	result.TotalPages = len(result.Pages)
	result.Processing.ExtractionNs = extractNs
	result.Processing.TotalNs = time.Since(totalStart).Nanoseconds()
	slog.Debug("Decoded PDF", "file", filename, "pages", result.TotalPages, "codes", len(result.Codes()))
	return result, nil
}

func (p *Pipeline) processPDFPage(ctx context.Context, filename string, pageNum int,
	images []image.Image,
) (*PDFPageResult, error) {
	start := time.Now()
	page := &PDFPageResult{PageNumber: pageNum, Images: make([]PDFImageResult, 0, len(images))}

	for i, img := range images {
		b := img.Bounds()
		page.Width = max(page.Width, b.Dx())
		page.Height = max(page.Height, b.Dy())

		entry := PDFImageResult{ImageIndex: i, Width: b.Dx(), Height: b.Dy(), Codes: []CodeResult{}}

		// logos and thumbnails cannot hold a code
		if err := utils.ValidateImageConstraints(img, p.cfg.Constraints); err != nil {
			slog.Debug("Skipping PDF image", "page", pageNum, "image", i, "error", err)
			page.Images = append(page.Images, entry)
			continue
		}

		res, err := p.processImage(ctx, fmt.Sprintf("%s#page=%d", filename, pageNum), img)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		entry.Codes = res.Codes
		page.Images = append(page.Images, entry)
	}

	page.Processing.TotalNs = time.Since(start).Nanoseconds()
	return page, nil
}
