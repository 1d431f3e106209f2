package server

import (
	"fmt"
	"image"
	"net/http"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/filmdx/internal/barcode"
	"github.com/MeKo-Tech/filmdx/internal/pipeline"
	"github.com/MeKo-Tech/filmdx/internal/utils"
)

// RequestOptions holds per-request overrides of the scanner settings.
// Nil fields keep the server defaults.
type RequestOptions struct {
	TryHarder    *bool
	TryRotate    *bool
	TryInvert    *bool
	MinLineCount *int
	MaxSymbols   *int
	Binarizer    string
	Formats      []barcode.Format
	ROI          image.Rectangle
}

func (o RequestOptions) empty() bool {
	return o.TryHarder == nil && o.TryRotate == nil && o.TryInvert == nil &&
		o.MinLineCount == nil && o.MaxSymbols == nil && o.Binarizer == "" &&
		len(o.Formats) == 0 && o.ROI.Empty()
}

// optionKeys lists the accepted option names, both as form fields and as
// JSON keys.
var optionKeys = []string{
	"try_harder", "try_rotate", "try_invert", "min_line_count", "max_symbols", "binarizer", "formats", "roi",
}

// parseFormOptions reads the options from the form fields of r.
func parseFormOptions(r *http.Request) (RequestOptions, error) {
	values := make(map[string]string, len(optionKeys))
	for _, k := range optionKeys {
		if v := r.FormValue(k); v != "" {
			values[k] = v
		}
	}
	return parseOptionValues(values)
}

// optionsFromMap converts options decoded from JSON.
func optionsFromMap(m map[string]any) (RequestOptions, error) {
	values := make(map[string]string, len(m))
	for _, k := range optionKeys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch tv := v.(type) {
		case string:
			values[k] = tv
		case bool:
			values[k] = strconv.FormatBool(tv)
		case float64:
			values[k] = strconv.FormatFloat(tv, 'f', -1, 64)
		case []any:
			parts := make([]string, 0, len(tv))
			for _, p := range tv {
				parts = append(parts, fmt.Sprint(p))
			}
			values[k] = strings.Join(parts, ",")
		default:
			return RequestOptions{}, fmt.Errorf("option %s: unsupported value %v", k, v)
		}
	}
	return parseOptionValues(values)
}

func parseOptionValues(values map[string]string) (RequestOptions, error) {
	var o RequestOptions
	for k, v := range values {
		var err error
		switch k {
		case "try_harder":
			o.TryHarder, err = parseBool(v)
		case "try_rotate":
			o.TryRotate, err = parseBool(v)
		case "try_invert":
			o.TryInvert, err = parseBool(v)
		case "min_line_count":
			o.MinLineCount, err = parseInt(v, 1)
		case "max_symbols":
			o.MaxSymbols, err = parseInt(v, 0)
		case "binarizer":
			o.Binarizer = strings.ToLower(strings.TrimSpace(v))
		case "formats":
			o.Formats, err = barcode.ParseFormats(v)
		case "roi":
			o.ROI, err = utils.ParseRect(v)
		}
		if err != nil {
			return RequestOptions{}, fmt.Errorf("option %s: %w", k, err)
		}
	}
	return o, nil
}

func parseBool(s string) (*bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func parseInt(s string, lowest int) (*int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if n < lowest {
		return nil, fmt.Errorf("must be at least %d, got %d", lowest, n)
	}
	return &n, nil
}

// decoderFor returns the shared pipeline, or a new one when the request
// overrides any setting.
func (s *Server) decoderFor(o RequestOptions) (decoder, error) {
	if o.empty() {
		if s.pipeline == nil {
			return nil, errPipelineMissing
		}
		return s.pipeline, nil
	}

	b := pipeline.NewBuilderWithConfig(s.baseConfig)
	if o.TryHarder != nil {
		b = b.WithTryHarder(*o.TryHarder)
	}
	if o.TryRotate != nil {
		b = b.WithTryRotate(*o.TryRotate)
	}
	if o.TryInvert != nil {
		b = b.WithTryInvert(*o.TryInvert)
	}
	if o.MinLineCount != nil {
		b = b.WithMinLineCount(*o.MinLineCount)
	}
	if o.MaxSymbols != nil {
		b = b.WithMaxSymbols(*o.MaxSymbols)
	}
	if o.Binarizer != "" {
		b = b.WithBinarizer(o.Binarizer)
	}
	if len(o.Formats) > 0 {
		b = b.WithFormats(o.Formats...)
	}
	if !o.ROI.Empty() {
		b = b.WithROI(o.ROI)
	}
	return b.Build()
}
