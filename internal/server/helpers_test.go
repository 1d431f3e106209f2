package server

import (
	"bytes"
	"context"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/filmdx/internal/pipeline"
	"github.com/stretchr/testify/require"
)

// mockDecoder returns a fixed code for every image, or err.
type mockDecoder struct {
	err    error
	closed bool
}

func (m *mockDecoder) ProcessImage(_ context.Context, img image.Image) (*pipeline.ImageResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	b := img.Bounds()
	return &pipeline.ImageResult{
		Width:  b.Dx(),
		Height: b.Dy(),
		Codes: []pipeline.CodeResult{{
			Text:       "115-10/11A",
			Product:    115,
			Generation: 10,
			Format:     "DXFilmEdge",
			LineCount:  3,
			Box:        pipeline.Box{X: 2, Y: 2, W: 10, H: 4},
		}},
	}, nil
}

func (m *mockDecoder) ProcessPDF(_ context.Context, filename, _ string) (*pipeline.PDFResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	res := &pipeline.PDFResult{Filename: filename, TotalPages: 1}
	res.Pages = []pipeline.PDFPageResult{{
		PageNumber: 1,
		Images: []pipeline.PDFImageResult{{
			Codes: []pipeline.CodeResult{{Text: "32-5", Product: 32, Generation: 5}},
		}},
	}}
	return res, nil
}

func (m *mockDecoder) Close() error {
	m.closed = true
	return nil
}

// newTestServer returns a server backed by the real decode pipeline.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(Config{
		CORSOrigin:     "*",
		MaxUploadMB:    10,
		TimeoutSec:     30,
		PipelineConfig: pipeline.DefaultConfig(),
		OverlayEnabled: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// newMockServer returns a server whose shared pipeline is a mockDecoder.
func newMockServer(dec *mockDecoder) *Server {
	return &Server{
		pipeline:       dec,
		baseConfig:     pipeline.DefaultConfig(),
		maxUploadMB:    10,
		overlayEnabled: true,
	}
}

// multipartRequest builds a POST with a single file field and extra fields.
func multipartRequest(t *testing.T, target, field, filename string, data []byte,
	fields map[string]string,
) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if field != "" {
		part, err := writer.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
