package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/MeKo-Tech/filmdx/internal/config"
	"github.com/MeKo-Tech/filmdx/internal/pipeline"
	"github.com/MeKo-Tech/filmdx/internal/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// decoder defines the methods needed by the server from a pipeline.
type decoder interface {
	ProcessImage(ctx context.Context, img image.Image) (*pipeline.ImageResult, error)
	ProcessPDF(ctx context.Context, filename string, pageRange string) (*pipeline.PDFResult, error)
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline       decoder
	baseConfig     pipeline.Config
	corsOrigin     string
	maxUploadMB    int64
	timeoutSec     int
	overlayEnabled bool
	overlayColor   string
	rateLimiter    *RateLimiter
	started        time.Time
}

// RateLimitConfig holds the per-client limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config
	OverlayEnabled bool
	OverlayColor   string
	RateLimit      RateLimitConfig
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
	Uptime  string `json:"uptime,omitempty"`
}

type InfoResponse struct {
	Version   string         `json:"version"`
	GitCommit string         `json:"git_commit"`
	BuildDate string         `json:"build_date"`
	Pipeline  map[string]any `json:"pipeline"`
	Endpoints []string       `json:"endpoints"`
	Limits    struct {
		MaxUploadMB int64 `json:"max_upload_mb"`
		TimeoutSec  int   `json:"timeout_sec"`
	} `json:"limits"`
}

type DecodeResponse struct {
	Success bool                  `json:"success"`
	Result  *pipeline.ImageResult `json:"result,omitempty"`
	Error   string                `json:"error,omitempty"`
}

type PDFDecodeResponse struct {
	Success bool                `json:"success"`
	Result  *pipeline.PDFResult `json:"result,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

var endpoints = []string{
	"GET /health",
	"GET /info",
	"GET /metrics",
	"POST /decode/image",
	"POST /decode/pdf",
	"POST /decode/batch",
	"GET /ws/decode",
}

// ConfigFrom maps the application config onto a server config.
func ConfigFrom(c *config.Config) Config {
	return Config{
		Host:           c.Server.Host,
		Port:           c.Server.Port,
		CORSOrigin:     c.Server.CORSOrigin,
		MaxUploadMB:    int64(c.Server.MaxUploadMB),
		TimeoutSec:     c.Server.TimeoutSec,
		PipelineConfig: c.ToPipelineConfig(),
		OverlayEnabled: c.Server.OverlayEnabled,
		OverlayColor:   c.Output.OverlayColor,
		RateLimit: RateLimitConfig{
			Enabled:           c.Server.RateLimitEnabled,
			RequestsPerMinute: c.Server.RequestsPerMinute,
			RequestsPerHour:   c.Server.RequestsPerHour,
			MaxRequestsPerDay: c.Server.MaxRequestsPerDay,
			MaxDataPerDay:     c.Server.MaxDataPerDay,
		},
	}
}

// NewServer creates a new decode server instance.
func NewServer(cfg Config) (*Server, error) {
	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("invalid max upload size: %d", cfg.MaxUploadMB)
	}
	if cfg.TimeoutSec < 0 {
		return nil, fmt.Errorf("invalid timeout: %d", cfg.TimeoutSec)
	}
	if _, err := config.ParseColor(cfg.OverlayColor); err != nil {
		return nil, fmt.Errorf("invalid overlay color: %w", err)
	}

	pl, err := pipeline.NewBuilderWithConfig(cfg.PipelineConfig).Build()
	if err != nil {
		return nil, err
	}

	s := &Server{
		pipeline:       pl,
		baseConfig:     cfg.PipelineConfig,
		corsOrigin:     cfg.CORSOrigin,
		maxUploadMB:    cfg.MaxUploadMB,
		timeoutSec:     cfg.TimeoutSec,
		overlayEnabled: cfg.OverlayEnabled,
		overlayColor:   cfg.OverlayColor,
		started:        time.Now(),
	}
	if rl := cfg.RateLimit; rl.Enabled {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.pipeline != nil {
		return s.pipeline.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/info", s.corsMiddleware(s.infoHandler))
	mux.HandleFunc("/decode/image", s.corsMiddleware(s.rateLimitMiddleware(s.decodeImageHandler)))
	mux.HandleFunc("/decode/pdf", s.corsMiddleware(s.rateLimitMiddleware(s.decodePDFHandler)))
	mux.HandleFunc("/decode/batch", s.corsMiddleware(s.rateLimitMiddleware(s.decodeBatchHandler)))
	// the upgrade needs the raw ResponseWriter, so no status capturing here
	mux.HandleFunc("/ws/decode", s.rateLimitMiddleware(s.decodeWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// requestContext bounds processing by the configured timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeoutSec > 0 {
		return context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
	}
	return context.WithCancel(r.Context())
}

// processingStatus maps a pipeline error to an HTTP status.
func processingStatus(err error) int {
	var imgErr *utils.ImageProcessingError
	switch {
	case errors.As(err, &imgErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
