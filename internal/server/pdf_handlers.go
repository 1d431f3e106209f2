package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/MeKo-Tech/filmdx/internal/pipeline"
)

// decodePDFHandler decodes the images embedded in an uploaded PDF.
func (s *Server) decodePDFHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, filename, ok := s.readUpload(w, r, "pdf")
	if !ok {
		decodeRequestsTotal.WithLabelValues("pdf", "error").Inc()
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

	// pdfcpu reads from disk
	path, cleanup, err := writeTempFile(data, "filmdx-*.pdf")
	if err != nil {
		s.writeErrorResponse(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}
	defer cleanup()

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	res, err := dec.ProcessPDF(ctx, path, r.FormValue("pages"))
	if err != nil {
		observeDecode("pdf", 0, 0, err)
		s.writeErrorResponse(w, fmt.Sprintf("Decoding failed: %v", err), processingStatus(err))
		return
	}
	res.Filename = filename
	observeDecode("pdf", time.Since(start).Seconds(), len(res.Codes()), nil)

	s.writePDFResponse(w, r, res)
}

func (s *Server) writePDFResponse(w http.ResponseWriter, r *http.Request, res *pipeline.PDFResult) {
	format := requestFormat(r)
	switch format {
	case "", pipeline.FormatJSON:
		writeJSON(w, http.StatusOK, PDFDecodeResponse{Success: true, Result: res})
	case pipeline.FormatCSV, pipeline.FormatText, pipeline.FormatYAML:
		out, err := pipeline.FormatPDFResult(res, format)
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

// writeTempFile stores data in a new temporary file. cleanup removes it.
func writeTempFile(data []byte, pattern string) (string, func(), error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, err
	}
	cleanup := func() {
		if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove temporary file", "path", f.Name(), "error", err)
		}
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}
