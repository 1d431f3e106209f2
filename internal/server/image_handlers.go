package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/filmdx/internal/config"
	"github.com/MeKo-Tech/filmdx/internal/pipeline"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const formatOverlay = "overlay"

var errPipelineMissing = errors.New("decode pipeline not initialized")

// decodeImageHandler decodes the DX edge codes of an uploaded image.
func (s *Server) decodeImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, filename, ok := s.parseImageRequest(w, r)
	if !ok {
		decodeRequestsTotal.WithLabelValues("image", "error").Inc()
		return
	}

	opts, err := parseFormOptions(r)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	dec, err := s.decoderFor(opts)
	if err != nil {
		s.writeDecoderError(w, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	res, err := dec.ProcessImage(ctx, img)
	if err != nil {
		observeDecode("image", 0, 0, err)
		s.writeErrorResponse(w, fmt.Sprintf("Decoding failed: %v", err), processingStatus(err))
		return
	}
	res.Source = filename
	observeDecode("image", time.Since(start).Seconds(), len(res.Codes), nil)

	s.writeImageResponse(w, r, img, res)
}

// parseImageRequest reads the "image" upload. On failure the error response
// has already been written.
func (s *Server) parseImageRequest(w http.ResponseWriter, r *http.Request) (image.Image, string, bool) {
	data, filename, ok := s.readUpload(w, r, "image")
	if !ok {
		return nil, "", false
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.writeErrorResponse(w, "Invalid image format", http.StatusBadRequest)
		return nil, "", false
	}
	return img, filename, true
}

// readUpload parses the multipart form and returns the content of field.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, string, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, "", false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("No %s file provided", field), http.StatusBadRequest)
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	if header.Size > limit {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return nil, "", false
	}
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read upload", http.StatusInternalServerError)
		return nil, "", false
	}
	return data, header.Filename, true
}

// writeDecoderError reports a failure to set up a pipeline for the request.
func (s *Server) writeDecoderError(w http.ResponseWriter, err error) {
	if errors.Is(err, errPipelineMissing) {
		s.writeErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	s.writeErrorResponse(w, fmt.Sprintf("Invalid decode options: %v", err), http.StatusBadRequest)
}

// requestFormat reads "format" from the form or the query string.
func requestFormat(r *http.Request) string {
	if f := r.FormValue("format"); f != "" {
		return f
	}
	return r.URL.Query().Get("format")
}

func (s *Server) writeImageResponse(w http.ResponseWriter, r *http.Request, img image.Image, res *pipeline.ImageResult) {
	format := requestFormat(r)
	if format == formatOverlay || r.FormValue("overlay") == "1" {
		s.handleOverlayOutput(w, r, img, res)
		return
	}

	switch format {
	case "", pipeline.FormatJSON:
		writeJSON(w, http.StatusOK, DecodeResponse{Success: true, Result: res})
	case pipeline.FormatCSV, pipeline.FormatText, pipeline.FormatYAML:
		out, err := pipeline.FormatImageResult(res, format)
		if err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType(format))
		_, _ = io.WriteString(w, out)
	default:
		s.writeErrorResponse(w, fmt.Sprintf("unsupported format %q", format), http.StatusBadRequest)
	}
}

func contentType(format string) string {
	switch format {
	case pipeline.FormatCSV:
		return "text/csv"
	case pipeline.FormatYAML:
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}

// handleOverlayOutput answers with a PNG of the image and the found codes.
func (s *Server) handleOverlayOutput(w http.ResponseWriter, r *http.Request, img image.Image, res *pipeline.ImageResult) {
	if !s.overlayEnabled {
		http.Error(w, "overlay output disabled", http.StatusForbidden)
		return
	}

	colorName := r.FormValue("color")
	if colorName == "" {
		colorName = s.overlayColor
	}
	col, err := config.ParseColor(colorName)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ov := pipeline.RenderOverlay(img, res, col)
	if ov == nil {
		http.Error(w, "overlay failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_ = png.Encode(w, ov)
}
