// Package pdf pulls the embedded raster images out of PDF files, typically
// film scans saved as PDF by a flatbed scanner.
package pdf

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/filmdx/internal/utils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Credentials unlock encrypted documents.
type Credentials struct {
	UserPassword  string
	OwnerPassword string
}

// ExtractImages extracts all images from a PDF file, grouped by 1-based
// page number. Within a page the images keep the order pdfcpu names them in.
func ExtractImages(filename string, pageRange string) (map[int][]image.Image, error) {
	return ExtractImagesWithCredentials(filename, pageRange, nil)
}

// ExtractImagesWithCredentials is ExtractImages for encrypted documents.
func ExtractImagesWithCredentials(filename, pageRange string, creds *Credentials) (map[int][]image.Image, error) {
	pageNumbers, err := ParsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "filmdx-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pageStrings []string
	for _, n := range pageNumbers {
		pageStrings = append(pageStrings, strconv.Itoa(n))
	}

	if err := api.ExtractImagesFile(filename, tempDir, pageStrings, configuration(creds)); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	result, err := collectExtractedImages(tempDir, fileBase(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	return result, nil
}

// PageCount returns the number of pages in the document.
func PageCount(filename string) (int, error) {
	n, err := api.PageCountFile(filename)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	return n, nil
}

func configuration(creds *Credentials) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	if creds != nil {
		conf.UserPW = creds.UserPassword
		conf.OwnerPW = creds.OwnerPassword
	}
	return conf
}

// IsPasswordError reports whether err looks like a missing or wrong password.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, keyword := range []string{"password", "encrypted", "decrypt", "authentication"} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

// fileBase is the prefix pdfcpu puts in front of extracted image names.
func fileBase(filename string) string {
	return strings.TrimSuffix(filepath.Base(filename), ".pdf")
}

// collectExtractedImages groups the images in dir by page number. pdfcpu
// names them <base>_<page>_<name>.<ext> or <base>_<page>.<ext>.
func collectExtractedImages(dir, base string) (map[int][]image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	result := make(map[int][]image.Image)
	for _, name := range names {
		pageNum, err := parsePageFromFilename(base, name)
		if err != nil {
			continue
		}
		img, _, err := utils.LoadImage(filepath.Join(dir, name))
		if err != nil {
			// pdfcpu also writes formats Go cannot decode (e.g. JPX)
			continue
		}
		result[pageNum] = append(result[pageNum], img)
	}
	return result, nil
}

// parsePageFromFilename extracts the page number from an extracted image name.
func parsePageFromFilename(base, filename string) (int, error) {
	rest, ok := strings.CutPrefix(filename, base+"_")
	if !ok {
		return 0, errors.New("not a page file")
	}
	end := strings.IndexAny(rest, "_.")
	if end <= 0 {
		return 0, errors.New("invalid filename format")
	}
	pageNum, err := strconv.Atoi(rest[:end])
	if err != nil || pageNum < 1 {
		return 0, errors.New("invalid page number")
	}
	return pageNum, nil
}

// ParsePageRange parses a page range string like "1-5" or "1,3,5". Pages
// are 1-based; an empty range selects all pages and returns nil.
func ParsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either "3" or "1-5".
func parseRangeToken(part string) ([]int, error) {
	startStr, endStr, isRange := strings.Cut(part, "-")
	start, err := parsePage(startStr)
	if err != nil {
		return nil, err
	}
	if !isRange {
		return []int{start}, nil
	}
	end, err := parsePage(endStr)
	if err != nil {
		return nil, err
	}
	if start > end {
		return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out, nil
}

func parsePage(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid page number: %q", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("page numbers start at 1, got %d", n)
	}
	return n, nil
}
