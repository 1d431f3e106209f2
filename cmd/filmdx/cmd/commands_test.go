package cmd

import (
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/filmdx/internal/config"
	"github.com/MeKo-Tech/filmdx/internal/pipeline"
	"github.com/MeKo-Tech/filmdx/internal/recorder"
	"github.com/MeKo-Tech/filmdx/internal/testutil"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageCommand(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteDXEdgeImage(t, dir, "strip.png", "115-10/11A")

	out, _, err := executeCommand(t, "image", path)
	require.NoError(t, err)
	assert.Equal(t, "115-10/11A\n", out)

	out, _, err = executeCommand(t, "image", path, "--format", "json")
	require.NoError(t, err)
	var res pipeline.ImageResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, path, res.Source)
	require.Len(t, res.Codes, 1)
	assert.Equal(t, 115, res.Codes[0].Product)
	assert.Equal(t, 10, res.Codes[0].Generation)
	assert.Equal(t, 11, res.Codes[0].Frame)
	assert.True(t, res.Codes[0].HalfFrameLetter)
}

func TestImageCommandSeveralFiles(t *testing.T) {
	dir := t.TempDir()
	first := testutil.WriteDXEdgeImage(t, dir, "a.png", "115-10/11A")
	second := testutil.WriteDXEdgeImage(t, dir, "b.png", "80-2")

	out, _, err := executeCommand(t, "image", first, second, "--format", "json")
	require.NoError(t, err)
	var results []pipeline.ImageResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "80-2", results[1].Codes[0].Text)
}

func TestImageCommandOutputAndOverlay(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteDXEdgeImage(t, dir, "strip.png", "32-5")
	outFile := filepath.Join(dir, "codes.csv")
	overlays := filepath.Join(dir, "overlays")

	out, _, err := executeCommand(t, "image", path, "-f", "csv", "-o", outFile, "--overlay-dir", overlays)
	require.NoError(t, err)
	assert.Contains(t, out, "Results written to "+outFile)

	b, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "source,text,product"))
	assert.Contains(t, string(b), "32-5")

	entries, err := os.ReadDir(overlays)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestImageCommandErrors(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteDXEdgeImage(t, dir, "strip.png", "32-5")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no files", []string{"image"}, "no input files provided"},
		{"unsupported", []string{"image", filepath.Join(dir, "notes.txt")}, "unsupported image format"},
		{"missing", []string{"image", filepath.Join(dir, "missing.png")}, "decoding"},
		{"bad roi", []string{"image", path, "--roi", "1,2,3"}, "invalid --roi"},
		{"bad format", []string{"image", path, "--format", "xml"}, "invalid output format: xml"},
		{"bad binarizer", []string{"image", path, "--binarizer", "hybrid"}, `unknown binarizer "hybrid"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestImageCommandTryInvert(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "negative.png")
	_, _, err := executeCommand(t, "generate", "80-2", "--negative", "-o", path)
	require.NoError(t, err)

	out, _, err := executeCommand(t, "image", path)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))

	out, _, err = executeCommand(t, "image", path, "--try-invert")
	require.NoError(t, err)
	assert.Equal(t, "80-2\n", out)
}

func TestPDFCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping PDF round trip in short mode")
	}
	dir := t.TempDir()
	first := testutil.WriteDXEdgeImage(t, dir, "first.png", "115-10/11A")
	second := testutil.WriteDXEdgeImage(t, dir, "second.png", "32-5")
	pdfPath := filepath.Join(dir, "roll.pdf")
	require.NoError(t, api.ImportImagesFile([]string{first, second}, pdfPath, nil, nil))

	out, _, err := executeCommand(t, "pdf", pdfPath, "--format", "json")
	require.NoError(t, err)
	var res pipeline.PDFResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Codes(), 2)

	out, _, err = executeCommand(t, "pdf", pdfPath, "--pages", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "32-5")
	assert.NotContains(t, out, "115-10/11A")
}

func TestPDFCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no files", []string{"pdf"}, "no input files provided"},
		{"not a pdf", []string{"pdf", "scan.png"}, "not a PDF file"},
		{"bad pages", []string{"pdf", "roll.pdf", "--pages", "x"}, "invalid --pages"},
		{"missing", []string{"pdf", "/no/such/roll.pdf"}, "decoding /no/such/roll.pdf failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteDXEdgeImage(t, dir, "a.png", "115-10/11A")
	testutil.WriteDXEdgeImage(t, dir, "b.png", "80-2")
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	testutil.WriteDXEdgeImage(t, sub, "c.png", "32-5")

	out, stderr, err := executeCommand(t, "batch", dir, "--format", "json", "--workers", "2", "--stats")
	require.NoError(t, err)
	var res struct {
		Images []struct {
			File   string                `json:"file"`
			Result *pipeline.ImageResult `json:"result"`
		} `json:"images"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Images, 2)
	assert.Contains(t, stderr, "Processing Statistics")

	out, _, err = executeCommand(t, "batch", dir, "--recursive", "--quiet")
	require.NoError(t, err)
	assert.Contains(t, out, "115-10/11A")
	assert.Contains(t, out, "80-2")
	assert.Contains(t, out, "32-5")

	out, _, err = executeCommand(t, "batch", dir, "--recursive", "--exclude", "a.png")
	require.NoError(t, err)
	assert.NotContains(t, out, "115-10/11A")
}

func TestBatchCommandErrors(t *testing.T) {
	_, _, err := executeCommand(t, "batch")
	require.Error(t, err)

	_, _, err = executeCommand(t, "batch", t.TempDir(), "--overlay-color", "nope")
	require.Error(t, err)
}

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roll.png")

	out, _, err := executeCommand(t, "generate", "115-10/11A", "32-5", "--label", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)
	assert.Contains(t, out, "2 codes")
	assert.True(t, testutil.FileExists(path))

	out, _, err = executeCommand(t, "image", path, "--try-harder")
	require.NoError(t, err)
	assert.Contains(t, out, "115-10/11A")
	assert.Contains(t, out, "32-5")
}

func TestGenerateCommandErrors(t *testing.T) {
	out := filepath.Join(t.TempDir(), "x.png")
	for _, args := range [][]string{
		{"generate"},
		{"generate", "banana", "-o", out},
		{"generate", "200-1", "-o", out},
		{"generate", "80-2", "--unit", "0", "-o", out},
	} {
		_, _, err := executeCommand(t, args...)
		assert.Error(t, err, "%v", args)
	}
}

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "history.db")
	path := testutil.WriteDXEdgeImage(t, dir, "strip.png", "115-10/11A")

	out, _, err := executeCommand(t, "history", "--history-db", db)
	require.NoError(t, err)
	assert.Equal(t, "No decodes recorded\n", out)

	_, _, err = executeCommand(t, "image", path, "--record", "--history-db", db)
	require.NoError(t, err)

	out, _, err = executeCommand(t, "history", "--history-db", db, "--format", "json")
	require.NoError(t, err)
	var entries []recorder.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "115-10/11A", entries[0].Text)
	assert.Equal(t, path, entries[0].Source)

	out, _, err = executeCommand(t, "history", "--history-db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "CODE")
	assert.Contains(t, out, "115-10/11A")

	out, _, err = executeCommand(t, "history", "--history-db", db, "--product", "80")
	require.NoError(t, err)
	assert.Equal(t, "No decodes recorded\n", out)

	out, _, err = executeCommand(t, "history", "--history-db", db, "--stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Codes: 1")
	assert.Contains(t, out, "Runs: 1")

	_, _, err = executeCommand(t, "history", "--history-db", db, "--format", "csv")
	assert.ErrorContains(t, err, "invalid output format")
}

func TestConfigCommands(t *testing.T) {
	out, _, err := executeCommand(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "barcode:")
	assert.Contains(t, out, "binarizer: row")

	file := filepath.Join(t.TempDir(), "filmdx.yaml")
	out, _, err = executeCommand(t, "config", "init", file)
	require.NoError(t, err)
	assert.Equal(t, "Wrote "+file+"\n", out)

	loaded, err := config.NewLoaderWithViper(nil).LoadWithFile(file)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Barcode, loaded.Barcode)

	_, _, err = executeCommand(t, "config", "init", file)
	assert.ErrorContains(t, err, "already exists")

	_, _, err = executeCommand(t, "config", "init", file, "--force")
	require.NoError(t, err)

	out, _, err = executeCommand(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file used")
}

func TestTestCommand(t *testing.T) {
	out, _, err := executeCommand(t, "test")
	require.NoError(t, err)
	assert.Contains(t, out, "ok   positive strip")
	assert.Contains(t, out, "ok   negative strip")
	assert.Contains(t, out, "All checks passed.")
}

func TestNewHTTPServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Port = 9123

	httpServer, decodeServer, err := newHTTPServer(&cfg, nil, image.Rect(0, 0, 8, 8))
	require.NoError(t, err)
	t.Cleanup(func() { _ = decodeServer.Close() })
	assert.Equal(t, "localhost:9123", httpServer.Addr)
	assert.Greater(t, httpServer.WriteTimeout, httpServer.ReadTimeout)

	ts := httptest.NewServer(httpServer.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "healthy")
}

func TestBenchCommand(t *testing.T) {
	out, _, err := executeCommand(t, "bench", "-n", "1", "--scenario", "single", "--setting", "default,global")
	require.NoError(t, err)
	assert.Contains(t, out, "Decode Benchmark Results")
	assert.Contains(t, out, "single/default")
	assert.Contains(t, out, "single/global")
	assert.NotContains(t, out, "single/try-rotate")

	out, _, err = executeCommand(t, "bench", "-n", "1", "--scenario", "single", "--setting", "default", "--json")
	require.NoError(t, err)
	var results []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "single/default", results[0]["name"])

	_, _, err = executeCommand(t, "bench", "--scenario", "huge")
	assert.ErrorContains(t, err, "invalid --scenario")

	_, _, err = executeCommand(t, "bench", "-n", "0")
	assert.ErrorContains(t, err, "invalid --iterations")
}
