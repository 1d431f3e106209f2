package support

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/filmdx/internal/config"
	"github.com/MeKo-Tech/filmdx/internal/server"
	"github.com/cucumber/godog"
)

// startServer runs the decode server in-process on an httptest listener.
func (testCtx *TestContext) startServer(mutate func(*config.Config)) error {
	testCtx.StopServer()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := server.NewServer(server.ConfigFrom(&cfg))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.DecodeServer = s
	testCtx.HTTPServer = httptest.NewServer(s.Handler())
	return nil
}

func (testCtx *TestContext) theDecodeServerIsRunning() error {
	return testCtx.startServer(nil)
}

func (testCtx *TestContext) theDecodeServerIsRunningWithOverlays() error {
	return testCtx.startServer(func(c *config.Config) { c.Server.OverlayEnabled = true })
}

func (testCtx *TestContext) theDecodeServerIsRunningWithRequestsPerMinute(n int) error {
	return testCtx.startServer(func(c *config.Config) {
		c.Server.RateLimitEnabled = true
		c.Server.RequestsPerMinute = n
	})
}

func (testCtx *TestContext) do(req *http.Request) error {
	if testCtx.HTTPServer == nil {
		return errors.New("server is not running")
	}
	resp, err := testCtx.HTTPServer.Client().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) iGET(endpoint string) error {
	if testCtx.HTTPServer == nil {
		return errors.New("server is not running")
	}
	req, err := http.NewRequest(http.MethodGet, testCtx.HTTPServer.URL+endpoint, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// upload posts a file from the temp directory as multipart field.
func (testCtx *TestContext) upload(name, field, endpoint string) error {
	if testCtx.HTTPServer == nil {
		return errors.New("server is not running")
	}
	data, err := os.ReadFile(filepath.Join(testCtx.TempDir, name))
	if err != nil {
		return err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, name)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, testCtx.HTTPServer.URL+endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) iUploadTheImageTo(name, endpoint string) error {
	return testCtx.upload(name, "image", endpoint)
}

func (testCtx *TestContext) iUploadThePDFTo(name, endpoint string) error {
	return testCtx.upload(name, "pdf", endpoint)
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatusCode != status {
		return fmt.Errorf("expected status %d, got %d\nBody: %s",
			status, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseJSONShouldContain(field string) error {
	return checkJSONField(testCtx.LastHTTPResponse, field)
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != value {
		return fmt.Errorf("header %s is %q, want %q", name, got, value)
	}
	return nil
}

// RegisterServerSteps registers the HTTP steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the decode server is running$`, testCtx.theDecodeServerIsRunning)
	sc.Step(`^the decode server is running with overlays enabled$`, testCtx.theDecodeServerIsRunningWithOverlays)
	sc.Step(`^the decode server is running with a limit of (\d+) requests? per minute$`,
		testCtx.theDecodeServerIsRunningWithRequestsPerMinute)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I upload the image "([^"]*)" to "([^"]*)"$`, testCtx.iUploadTheImageTo)
	sc.Step(`^I upload the PDF "([^"]*)" to "([^"]*)"$`, testCtx.iUploadThePDFTo)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response JSON should contain "([^"]*)"$`, testCtx.theResponseJSONShouldContain)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
}
