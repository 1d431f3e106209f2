package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"
)

const maxBatchItems = 10

// BatchRequest carries several uploads in one JSON body. Data fields are
// base64 encoded.
type BatchRequest struct {
	Images  []BatchItem    `json:"images,omitempty"`
	PDFs    []BatchItem    `json:"pdfs,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// BatchItem is one image or PDF of a batch request.
type BatchItem struct {
	Name    string         `json:"name"`
	Data    []byte         `json:"data"`
	Pages   string         `json:"pages,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// BatchResponse represents the response for batch processing.
type BatchResponse struct {
	Success bool              `json:"success"`
	Results []BatchItemResult `json:"results,omitempty"`
	Error   string            `json:"error,omitempty"`
	Summary BatchSummary      `json:"summary"`
}

// BatchItemResult represents a single result in batch processing.
type BatchItemResult struct {
	Type     string  `json:"type"` // "image" or "pdf"
	Name     string  `json:"name"`
	Success  bool    `json:"success"`
	Result   any     `json:"result,omitempty"`
	Error    string  `json:"error,omitempty"`
	Codes    int     `json:"codes"`
	Duration float64 `json:"duration_seconds"`
}

// BatchSummary provides summary statistics for batch processing.
type BatchSummary struct {
	TotalItems    int     `json:"total_items"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	TotalCodes    int     `json:"total_codes"`
	TotalDuration float64 `json:"total_duration_seconds"`
	AvgItemTime   float64 `json:"avg_item_time_seconds"`
}

// decodeBatchHandler processes batch decode requests.
func (s *Server) decodeBatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadMB*1024*1024)
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, "Request too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, fmt.Sprintf("Failed to parse JSON request: %v", err), http.StatusBadRequest)
		return
	}

	total := len(req.Images) + len(req.PDFs)
	if total == 0 {
		s.writeErrorResponse(w, "No images or PDFs provided in batch request", http.StatusBadRequest)
		return
	}
	if total > maxBatchItems {
		s.writeErrorResponse(w, fmt.Sprintf("Batch size too large (maximum %d items)", maxBatchItems),
			http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	results, summary := s.processBatchRequest(ctx, req)
	elapsed := time.Since(start)

	summary.TotalDuration = elapsed.Seconds()
	summary.AvgItemTime = summary.TotalDuration / float64(summary.TotalItems)
	observeDecode("batch", elapsed.Seconds(), summary.TotalCodes, nil)

	writeJSON(w, http.StatusOK, BatchResponse{
		Success: summary.Failed == 0,
		Results: results,
		Summary: summary,
	})
}

func (s *Server) processBatchRequest(ctx context.Context, req BatchRequest) ([]BatchItemResult, BatchSummary) {
	results := make([]BatchItemResult, 0, len(req.Images)+len(req.PDFs))
	summary := BatchSummary{TotalItems: len(req.Images) + len(req.PDFs)}

	add := func(res BatchItemResult) {
		results = append(results, res)
		if res.Success {
			summary.Successful++
			summary.TotalCodes += res.Codes
		} else {
			summary.Failed++
		}
	}
	for _, item := range req.Images {
		add(s.processBatchItem(ctx, "image", item, req.Options))
	}
	for _, item := range req.PDFs {
		add(s.processBatchItem(ctx, "pdf", item, req.Options))
	}
	return results, summary
}

// processBatchItem decodes one item. Item options override request options.
func (s *Server) processBatchItem(ctx context.Context, kind string, item BatchItem,
	shared map[string]any,
) (result BatchItemResult) {
	result = BatchItemResult{Type: kind, Name: item.Name}
	if len(item.Data) == 0 {
		result.Error = "No data provided"
		return result
	}

	merged := make(map[string]any, len(shared)+len(item.Options))
	for k, v := range shared {
		merged[k] = v
	}
	for k, v := range item.Options {
		merged[k] = v
	}
	opts, err := optionsFromMap(merged)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	dec, err := s.decoderFor(opts)
	if err != nil {
		result.Error = fmt.Sprintf("Invalid decode options: %v", err)
		return result
	}

	start := time.Now()
	defer func() { result.Duration = time.Since(start).Seconds() }()

	switch kind {
	case "image":
		img, _, err := image.Decode(bytes.NewReader(item.Data))
		if err != nil {
			result.Error = fmt.Sprintf("Failed to decode image: %v", err)
			return result
		}
		res, err := dec.ProcessImage(ctx, img)
		if err != nil {
			result.Error = fmt.Sprintf("Decoding failed: %v", err)
			return result
		}
		res.Source = item.Name
		result.Result, result.Codes = res, len(res.Codes)
	default:
		path, cleanup, err := writeTempFile(item.Data, "filmdx-batch-*.pdf")
		if err != nil {
			result.Error = fmt.Sprintf("Failed to store PDF: %v", err)
			return result
		}
		defer cleanup()
		res, err := dec.ProcessPDF(ctx, path, item.Pages)
		if err != nil {
			result.Error = fmt.Sprintf("Decoding failed: %v", err)
			return result
		}
		res.Filename = item.Name
		result.Result, result.Codes = res, len(res.Codes())
	}
	result.Success = true
	return result
}
