package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/filmdx/internal/config"
	"github.com/MeKo-Tech/filmdx/internal/recorder"
	"github.com/MeKo-Tech/filmdx/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the decode API",
	Long: `Start an HTTP server that decodes DX edge codes from uploads.

The server provides the following endpoints:
  GET  /health        - Health check
  GET  /info          - Version, scanner settings and limits
  POST /decode/image  - Decode an uploaded image (multipart field "image")
  POST /decode/pdf    - Decode the images of an uploaded PDF (field "pdf")
  POST /decode/batch  - Decode several base64 encoded images and PDFs
  GET  /ws/decode     - WebSocket: send image frames, receive results
  GET  /metrics       - Prometheus metrics

Examples:
  filmdx serve
  filmdx serve --port 8080
  filmdx serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	SilenceUsage: true,
	RunE:         runServeCommand,
}

var serveFlagBindings = []flagBinding{
	{"server.host", "host"},
	{"server.port", "port"},
	{"server.cors_origin", "cors-origin"},
	{"server.max_upload_mb", "max-upload-size"},
	{"server.timeout_sec", "timeout"},
	{"server.shutdown_timeout", "shutdown-timeout"},
	{"server.overlay_enabled", "overlay-enable"},
	{"output.overlay_color", "overlay-color"},
	{"server.rate_limit_enabled", "rate-limit-enabled"},
	{"server.requests_per_minute", "requests-per-minute"},
	{"server.requests_per_hour", "requests-per-hour"},
	{"server.max_requests_per_day", "max-requests-per-day"},
	{"server.max_data_per_day", "max-data-per-day"},
}

// newHTTPServer builds the decode server and the http.Server around it.
// The caller closes the returned decode server.
func newHTTPServer(cfg *config.Config, rec *recorder.Recorder, roi image.Rectangle) (*http.Server, *server.Server, error) {
	sc := server.ConfigFrom(cfg)
	if rec != nil {
		sc.PipelineConfig.Recorder = rec
	}
	sc.PipelineConfig.Barcode.ROI = roi

	s, err := server.NewServer(sc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	timeout := time.Duration(sc.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		// leave headroom to write the timeout response
		WriteTimeout: timeout + 5*time.Second,
	}
	return httpServer, s, nil
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	roi, err := roiFlag(cmd)
	if err != nil {
		return err
	}
	rec, err := openRecorder(cfg)
	if err != nil {
		return err
	}
	defer closeRecorder(rec)

	httpServer, decodeServer, err := newHTTPServer(cfg, rec, roi)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting decode server", "host", cfg.Server.Host, "port", cfg.Server.Port,
			"rate_limit", cfg.Server.RateLimitEnabled, "recording", rec != nil)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", cfg.Server.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	if err := decodeServer.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	default:
	}
	slog.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)

	d := config.DefaultConfig()
	serveCmd.Flags().StringP("host", "H", d.Server.Host, "server host")
	serveCmd.Flags().IntP("port", "p", d.Server.Port, "server port")
	serveCmd.Flags().String("cors-origin", d.Server.CORSOrigin, "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", d.Server.MaxUploadMB, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", d.Server.TimeoutSec, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", d.Server.ShutdownTimeout, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("overlay-enable", d.Server.OverlayEnabled, "enable overlay image responses")
	serveCmd.Flags().String("overlay-color", d.Output.OverlayColor, "default overlay color (hex)")
	addDecodeFlags(serveCmd)

	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", d.Server.RequestsPerMinute, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", d.Server.RequestsPerHour, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", d.Server.MaxRequestsPerDay, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", d.Server.MaxDataPerDay,
		"maximum data processed per day per client (bytes)")

	bindOnRun(serveCmd, decodeFlagBindings, serveFlagBindings)
}
