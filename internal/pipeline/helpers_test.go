package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/MeKo-Tech/filmdx/internal/barcode"
	"github.com/MeKo-Tech/filmdx/internal/recorder"
	"github.com/stretchr/testify/require"
)

func buildPipeline(t *testing.T, b *Builder) *Pipeline {
	t.Helper()
	p, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// stubBackend fails for images of a given width and returns one fixed
// result otherwise.
type stubBackend struct {
	failWidth int
}

var errStub = errors.New("stub failure")

func (s *stubBackend) Decode(_ context.Context, img image.Image, _ barcode.Options) ([]barcode.Result, error) {
	if img.Bounds().Dx() == s.failWidth {
		return nil, errStub
	}
	return []barcode.Result{{Type: barcode.FormatDXFilmEdge, Value: "1-0", Product: 1, Symbology: "]I0"}}, nil
}

type memRecorder struct {
	mu      sync.Mutex
	entries []recorder.Entry
	err     error
}

func (m *memRecorder) Record(_ context.Context, e recorder.Entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	m.entries = append(m.entries, e)
	return true, nil
}

type recordingProgress struct {
	mu        sync.Mutex
	started   int
	progress  []int
	errors    []int
	completed bool
}

func (r *recordingProgress) OnStart(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = total
}

func (r *recordingProgress) OnProgress(current, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, current)
}

func (r *recordingProgress) OnComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = true
}

func (r *recordingProgress) OnError(index int, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, index)
}
