package utils

import (
	"errors"
	"fmt"
	"image"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ImageConstraints bounds the images accepted for decoding.
type ImageConstraints struct {
	MinWidth  int
	MinHeight int
	// MaxPixels caps width*height; 0 disables the check.
	MaxPixels int
}

// DefaultImageConstraints returns limits that fit a scanned film strip. A
// short code is 23 modules wide, so nothing narrower than that can hold one.
func DefaultImageConstraints() ImageConstraints {
	return ImageConstraints{
		MinWidth:  23,
		MinHeight: 1,
		MaxPixels: 64 << 20,
	}
}

// ValidateImageConstraints checks dimensions against the provided constraints.
func ValidateImageConstraints(img image.Image, constraints ImageConstraints) error {
	if img == nil {
		return &ImageProcessingError{Operation: "validate", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < constraints.MinWidth || h < constraints.MinHeight {
		return &ImageProcessingError{
			Operation: "validate",
			Err:       fmt.Errorf("image too small: %dx%d < %dx%d", w, h, constraints.MinWidth, constraints.MinHeight),
		}
	}
	if constraints.MaxPixels > 0 && w*h > constraints.MaxPixels {
		return &ImageProcessingError{
			Operation: "validate",
			Err:       fmt.Errorf("image too large: %dx%d exceeds %d pixels", w, h, constraints.MaxPixels),
		}
	}
	return nil
}

// ImageQuality summarizes basic image properties.
type ImageQuality struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	IsGrayscale bool    `json:"is_grayscale"`
	HasAlpha    bool    `json:"has_alpha"`
}

// AssessImageQuality analyzes basic image properties.
func AssessImageQuality(img image.Image) ImageQuality {
	if img == nil {
		return ImageQuality{}
	}

	b := img.Bounds()
	q := ImageQuality{Width: b.Dx(), Height: b.Dy(), IsGrayscale: true}
	if q.Height > 0 {
		q.AspectRatio = float64(q.Width) / float64(q.Height)
	}

	for y := b.Min.Y; y < b.Max.Y && (q.IsGrayscale || !q.HasAlpha); y++ {
		for x := b.Min.X; x < b.Max.X && (q.IsGrayscale || !q.HasAlpha); x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a < 0xffff {
				q.HasAlpha = true
			}
			if r != g || g != bl {
				q.IsGrayscale = false
			}
		}
	}
	return q
}
