package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats understood by FormatImageResult.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatText = "text"
	FormatYAML = "yaml"
)

// ToJSONImage serializes a single ImageResult to pretty JSON.
func ToJSONImage(res *ImageResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToJSONImages serializes multiple results to pretty JSON.
func ToJSONImages(results []*ImageResult) (string, error) {
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToPlainTextImage lists one code per line, in the "115-10/11A" form.
func ToPlainTextImage(res *ImageResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	lines := make([]string, 0, len(res.Codes))
	for _, c := range res.Codes {
		lines = append(lines, c.Text)
	}
	return strings.Join(lines, "\n"), nil
}

var csvHeader = []string{
	"source", "text", "product", "generation", "frame", "half_frame_letter",
	"line_count", "rotation", "x", "y", "w", "h",
}

// ToCSVImage exports one row per code, with header.
func ToCSVImage(res *ImageResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	return ToCSVImages([]*ImageResult{res})
}

// ToCSVImages exports the codes of several images under one header. Nil
// entries are skipped.
func ToCSVImages(results []*ImageResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, c := range res.Codes {
			frame := ""
			if c.HasHalfFrame {
				frame = strconv.Itoa(c.Frame)
			}
			if err := w.Write([]string{
				res.Source,
				c.Text,
				strconv.Itoa(c.Product),
				strconv.Itoa(c.Generation),
				frame,
				strconv.FormatBool(c.HalfFrameLetter),
				strconv.Itoa(c.LineCount),
				strconv.Itoa(c.Rotation),
				strconv.Itoa(c.Box.X),
				strconv.Itoa(c.Box.Y),
				strconv.Itoa(c.Box.W),
				strconv.Itoa(c.Box.H),
			}); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}

// ToYAMLImage serializes a single ImageResult to YAML.
func ToYAMLImage(res *ImageResult) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	b, err := yaml.Marshal(res)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToYAMLImages serializes multiple results to YAML.
func ToYAMLImages(results []*ImageResult) (string, error) {
	b, err := yaml.Marshal(results)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FormatImageResult renders res in one of the output formats.
func FormatImageResult(res *ImageResult, format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return ToJSONImage(res)
	case FormatCSV:
		return ToCSVImage(res)
	case FormatText, "":
		return ToPlainTextImage(res)
	case FormatYAML, "yml":
		return ToYAMLImage(res)
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}

// FormatImageResults renders several results in one document.
func FormatImageResults(results []*ImageResult, format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return ToJSONImages(results)
	case FormatCSV:
		return ToCSVImages(results)
	case FormatYAML, "yml":
		return ToYAMLImages(results)
	case FormatText, "":
		var sb strings.Builder
		for _, res := range results {
			if res == nil {
				continue
			}
			for _, c := range res.Codes {
				if res.Source != "" {
					sb.WriteString(res.Source)
					sb.WriteString(": ")
				}
				sb.WriteString(c.Text)
				sb.WriteByte('\n')
			}
		}
		return sb.String(), nil
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}

// FormatPDFResult renders a document result; text lists "page N: code".
func FormatPDFResult(res *PDFResult, format string) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	switch strings.ToLower(format) {
	case FormatJSON:
		b, err := json.MarshalIndent(res, "", "  ")
		return string(b), err
	case FormatYAML, "yml":
		b, err := yaml.Marshal(res)
		return string(b), err
	case FormatCSV:
		return ToCSVImages(res.pageImages())
	case FormatText, "":
		var sb strings.Builder
		for _, p := range res.Pages {
			for _, img := range p.Images {
				for _, c := range img.Codes {
					fmt.Fprintf(&sb, "page %d: %s\n", p.PageNumber, c.Text)
				}
			}
		}
		return sb.String(), nil
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}

// pageImages flattens the document into one result per embedded image,
// with "file#page=N" as the source.
func (r *PDFResult) pageImages() []*ImageResult {
	var out []*ImageResult
	for _, p := range r.Pages {
		for _, img := range p.Images {
			out = append(out, &ImageResult{
				Source: fmt.Sprintf("%s#page=%d", r.Filename, p.PageNumber),
				Width:  img.Width,
				Height: img.Height,
				Codes:  img.Codes,
			})
		}
	}
	return out
}

// FormatPDFResults renders several documents. JSON and YAML produce a
// list, CSV a single table, and text prefixes each line with the file.
func FormatPDFResults(results []*PDFResult, format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		b, err := json.MarshalIndent(results, "", "  ")
		return string(b), err
	case FormatYAML, "yml":
		b, err := yaml.Marshal(results)
		return string(b), err
	case FormatCSV:
		var images []*ImageResult
		for _, res := range results {
			if res != nil {
				images = append(images, res.pageImages()...)
			}
		}
		return ToCSVImages(images)
	case FormatText, "":
		var sb strings.Builder
		for _, res := range results {
			if res == nil {
				continue
			}
			text, err := FormatPDFResult(res, FormatText)
			if err != nil {
				return "", err
			}
			for line := range strings.Lines(text) {
				sb.WriteString(res.Filename)
				sb.WriteString(" ")
				sb.WriteString(line)
			}
		}
		return sb.String(), nil
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}
