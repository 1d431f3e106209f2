package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/filmdx/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_DecodeImageHandler_MethodValidation(t *testing.T) {
	server := &Server{maxUploadMB: 10}

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.decodeImageHandler(w, httptest.NewRequest(method, "/decode/image", nil))
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		})
	}
}

func TestServer_DecodeImageHandler(t *testing.T) {
	server := newTestServer(t)
	data := testutil.EncodePNG(t, testutil.DXEdgeImage(t, "115-10/11A"))

	w := httptest.NewRecorder()
	server.decodeImageHandler(w, multipartRequest(t, "/decode/image", "image", "roll.png", data, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var response DecodeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.True(t, response.Success)
	require.NotNil(t, response.Result)
	assert.Equal(t, "roll.png", response.Result.Source)
	require.Len(t, response.Result.Codes, 1)

	code := response.Result.Codes[0]
	assert.Equal(t, "115-10/11A", code.Text)
	assert.Equal(t, 115, code.Product)
	assert.Equal(t, 10, code.Generation)
	assert.Equal(t, 11, code.Frame)
	assert.True(t, code.HalfFrameLetter)
	assert.Equal(t, "DXFilmEdge", code.Format)
}

func TestServer_DecodeImageHandler_Formats(t *testing.T) {
	server := newTestServer(t)
	data := testutil.EncodePNG(t, testutil.DXEdgeImage(t, "32-5"))

	tests := []struct {
		format      string
		contentType string
		contains    string
	}{
		{format: "text", contentType: "text/plain; charset=utf-8", contains: "32-5"},
		{format: "csv", contentType: "text/csv", contains: "32-5"},
		{format: "yaml", contentType: "application/yaml", contains: "text: 32-5"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := multipartRequest(t, "/decode/image", "image", "a.png", data, map[string]string{"format": tt.format})
			server.decodeImageHandler(w, req)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"))
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}

	t.Run("format in query", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := multipartRequest(t, "/decode/image?format=text", "image", "a.png", data, nil)
		server.decodeImageHandler(w, req)
		assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	})

	t.Run("unknown format", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := multipartRequest(t, "/decode/image", "image", "a.png", data, map[string]string{"format": "xml"})
		server.decodeImageHandler(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServer_DecodeImageHandler_Options(t *testing.T) {
	server := newTestServer(t)
	data := testutil.EncodePNG(t, testutil.DXEdgeImage(t, "115-10/11A", "32-5"))

	decode := func(fields map[string]string) (int, *DecodeResponse) {
		w := httptest.NewRecorder()
		server.decodeImageHandler(w, multipartRequest(t, "/decode/image", "image", "a.png", data, fields))
		var response DecodeResponse
		_ = json.Unmarshal(w.Body.Bytes(), &response)
		return w.Code, &response
	}

	code, res := decode(nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, res.Result.Codes, 1)

	code, res = decode(map[string]string{"try_harder": "true"})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, res.Result.Codes, 2)

	code, res = decode(map[string]string{"try_harder": "1", "max_symbols": "1"})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, res.Result.Codes, 1)

	code, res = decode(map[string]string{"try_harder": "maybe"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, res.Error, "try_harder")

	code, res = decode(map[string]string{"binarizer": "hybrid"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, res.Error, "Invalid decode options")
}

func TestServer_DecodeImageHandler_Errors(t *testing.T) {
	t.Run("missing image file", func(t *testing.T) {
		w := httptest.NewRecorder()
		newMockServer(&mockDecoder{}).decodeImageHandler(w, multipartRequest(t, "/decode/image", "", "", nil, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.False(t, response.Success)
		assert.Contains(t, response.Error, "No image file provided")
	})

	t.Run("invalid multipart form", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/decode/image", bytes.NewBufferString("not a form"))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=nothing")
		w := httptest.NewRecorder()
		newMockServer(&mockDecoder{}).decodeImageHandler(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid image data", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := multipartRequest(t, "/decode/image", "image", "a.png", []byte("not an image"), nil)
		newMockServer(&mockDecoder{}).decodeImageHandler(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid image format")
	})

	t.Run("file too large", func(t *testing.T) {
		server := newMockServer(&mockDecoder{})
		server.maxUploadMB = 1
		w := httptest.NewRecorder()
		req := multipartRequest(t, "/decode/image", "image", "a.png", make([]byte, 2*1024*1024), nil)
		server.decodeImageHandler(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("pipeline failure", func(t *testing.T) {
		data := testutil.EncodePNG(t, testutil.CreateTestImage(40, 20, color.White))
		w := httptest.NewRecorder()
		req := multipartRequest(t, "/decode/image", "image", "a.png", data, nil)
		newMockServer(&mockDecoder{err: errors.New("boom")}).decodeImageHandler(w, req)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "boom")
	})

	t.Run("image below constraints", func(t *testing.T) {
		data := testutil.EncodePNG(t, testutil.CreateTestImage(10, 10, color.White))
		w := httptest.NewRecorder()
		req := multipartRequest(t, "/decode/image", "image", "a.png", data, nil)
		newTestServer(t).decodeImageHandler(w, req)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("no pipeline", func(t *testing.T) {
		data := testutil.EncodePNG(t, testutil.CreateTestImage(40, 20, color.White))
		w := httptest.NewRecorder()
		req := multipartRequest(t, "/decode/image", "image", "a.png", data, nil)
		(&Server{maxUploadMB: 1}).decodeImageHandler(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestServer_DecodeImageHandler_Overlay(t *testing.T) {
	data := testutil.EncodePNG(t, testutil.CreateTestImage(40, 20, color.White))

	t.Run("png with drawn box", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := multipartRequest(t, "/decode/image", "image", "a.png", data,
			map[string]string{"format": "overlay", "color": "#00FF00"})
		newMockServer(&mockDecoder{}).decodeImageHandler(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

		img, err := png.Decode(w.Body)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 40, 20), img.Bounds())
		// the mock box starts at x=2, the outline two pixels further out
		r, g, b, _ := img.At(0, 4).RGBA()
		assert.Equal(t, [3]uint32{0, 0xffff, 0}, [3]uint32{r, g, b})
	})

	t.Run("overlay flag", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := multipartRequest(t, "/decode/image", "image", "a.png", data, map[string]string{"overlay": "1"})
		newMockServer(&mockDecoder{}).decodeImageHandler(w, req)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	})

	t.Run("bad color", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := multipartRequest(t, "/decode/image", "image", "a.png", data,
			map[string]string{"format": "overlay", "color": "green"})
		newMockServer(&mockDecoder{}).decodeImageHandler(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("disabled", func(t *testing.T) {
		server := newMockServer(&mockDecoder{})
		server.overlayEnabled = false
		w := httptest.NewRecorder()
		req := multipartRequest(t, "/decode/image", "image", "a.png", data, map[string]string{"format": "overlay"})
		server.decodeImageHandler(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
