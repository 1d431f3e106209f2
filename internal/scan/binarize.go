package scan

import (
	"image"

	"github.com/MeKo-Tech/filmdx/internal/pattern"
)

// minRowContrast is the smallest spread between the darkest and the lightest
// pixel of a line the row binarizer accepts.
const minRowContrast = 24

// luminance is an 8-bit gray plane.
type luminance struct {
	width, height int
	pix           []uint8
}

// newLuminance takes the red channel of an already gray image.
func newLuminance(gray *image.NRGBA) *luminance {
	b := gray.Bounds()
	l := &luminance{width: b.Dx(), height: b.Dy(), pix: make([]uint8, b.Dx()*b.Dy())}
	for y := range l.height {
		src := gray.Pix[y*gray.Stride:]
		dst := l.pix[y*l.width : (y+1)*l.width]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return l
}

func (l *luminance) row(y int) []uint8 {
	return l.pix[y*l.width : (y+1)*l.width]
}

// otsuThreshold returns the gray level that best separates the histogram in
// two classes. Pixels at or below it are dark.
func otsuThreshold(hist *[256]int) int {
	total, sum := 0, 0
	for v, n := range hist {
		total += n
		sum += v * n
	}
	if total == 0 {
		return 0
	}

	best, threshold := -1.0, 0
	wBack, sumBack := 0, 0
	for t := range 256 {
		wBack += hist[t]
		if wBack == 0 {
			continue
		}
		wFore := total - wBack
		if wFore == 0 {
			break
		}
		sumBack += t * hist[t]
		mBack := float64(sumBack) / float64(wBack)
		mFore := float64(sum-sumBack) / float64(wFore)
		between := float64(wBack) * float64(wFore) * (mBack - mFore) * (mBack - mFore)
		if between > best {
			best, threshold = between, t
		}
	}
	return threshold
}

func histogram(pix []uint8) *[256]int {
	var h [256]int
	for _, v := range pix {
		h[v]++
	}
	return &h
}

// binarizer turns the lines of a plane into run-length rows.
type binarizer struct {
	lum       *luminance
	kind      Binarizer
	threshold int
	bits      []bool
}

func newBinarizer(lum *luminance, kind Binarizer) *binarizer {
	b := &binarizer{lum: lum, kind: kind, bits: make([]bool, lum.width)}
	if kind == BinarizerGlobal {
		b.threshold = otsuThreshold(histogram(lum.pix))
	}
	return b
}

// row returns the runs of line y, or false when the line has too little
// contrast to carry a code.
func (b *binarizer) row(y int) (pattern.Row, bool) {
	line := b.lum.row(y)

	threshold := b.threshold
	if b.kind == BinarizerRow {
		lo, hi := uint8(255), uint8(0)
		for _, v := range line {
			lo = min(lo, v)
			hi = max(hi, v)
		}
		if int(hi)-int(lo) < minRowContrast {
			return nil, false
		}
		threshold = otsuThreshold(histogram(line))
	}

	for x, v := range line {
		b.bits[x] = int(v) <= threshold
	}
	return pattern.FromBits(b.bits), true
}
