// Package benchmark measures decode throughput for different scanner
// settings on synthetic DX edge images.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/MeKo-Tech/filmdx/internal/dxedge"
	"github.com/MeKo-Tech/filmdx/internal/pipeline"
	"github.com/MeKo-Tech/filmdx/internal/synth"
	"github.com/dustin/go-humanize"
)

// Timer measures one named span.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer starts a timer.
func NewTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration { return t.duration }

func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64
	TotalAllocBytes uint64
	NumGC           uint32
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{AllocBytes: m.Alloc, TotalAllocBytes: m.TotalAlloc, NumGC: m.NumGC}
}

// Result holds the outcome of one benchmark.
type Result struct {
	Name       string        `json:"name"`
	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"duration_ns"`
	// Allocated is the number of bytes allocated during the run.
	Allocated uint64 `json:"allocated_bytes"`
	// Codes is the number of codes found by the last iteration.
	Codes int   `json:"codes"`
	Error error `json:"-"`
}

// PerOp returns the average duration of one iteration.
func (r Result) PerOp() time.Duration {
	if r.Iterations == 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, total: %v, alloc: %s/op, codes: %d",
		r.Name, r.Iterations, r.PerOp(), r.Duration.Round(time.Microsecond),
		humanize.Bytes(r.Allocated/uint64(max(r.Iterations, 1))), r.Codes)
}

// Func is one iteration of a benchmark. It returns the number of codes
// found.
type Func func(ctx context.Context) (int, error)

// Case is a named benchmark.
type Case struct {
	Name string
	Func Func
}

// Suite runs benchmarks in the order they were added.
type Suite struct {
	cases   []Case
	results []Result
}

// NewSuite creates an empty suite.
func NewSuite() *Suite { return &Suite{} }

// Add adds a benchmark.
func (s *Suite) Add(name string, fn Func) {
	s.cases = append(s.cases, Case{Name: name, Func: fn})
}

// Names lists the benchmarks of the suite.
func (s *Suite) Names() []string {
	names := make([]string, len(s.cases))
	for i, c := range s.cases {
		names[i] = c.Name
	}
	return names
}

// Run runs the benchmark called name.
func (s *Suite) Run(ctx context.Context, name string, iterations int) Result {
	for _, c := range s.cases {
		if c.Name == name {
			return runCase(ctx, c, iterations)
		}
	}
	return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
}

// RunAll runs every benchmark. A cancelled context stops the run and
// marks the remaining benchmarks as failed.
func (s *Suite) RunAll(ctx context.Context, iterations int) []Result {
	s.results = make([]Result, 0, len(s.cases))
	for _, c := range s.cases {
		s.results = append(s.results, runCase(ctx, c, iterations))
	}
	return s.results
}

// Results returns the results of the last RunAll.
func (s *Suite) Results() []Result { return s.results }

func runCase(ctx context.Context, c Case, iterations int) Result {
	if iterations < 1 {
		return Result{Name: c.Name, Error: errors.New("iterations must be at least 1")}
	}
	// warm up outside the measurement
	if _, err := c.Func(ctx); err != nil {
		return Result{Name: c.Name, Error: err}
	}

	runtime.GC()
	before := GetMemoryStats()
	timer := NewTimer(c.Name)

	res := Result{Name: c.Name}
	for range iterations {
		if err := ctx.Err(); err != nil {
			res.Error = err
			break
		}
		n, err := c.Func(ctx)
		if err != nil {
			res.Error = err
			break
		}
		res.Codes = n
		res.Iterations++
	}
	res.Duration = timer.Stop()
	res.Allocated = GetMemoryStats().TotalAllocBytes - before.TotalAllocBytes
	return res
}

// Scenario is a synthetic input: codes rendered with the given geometry.
type Scenario struct {
	Name   string
	Codes  []string
	Render synth.Options
}

// Setting is a named scanner configuration.
type Setting struct {
	Name  string
	Build func(*pipeline.Builder) *pipeline.Builder
}

// DefaultScenarios covers a single code, a full strip and a negative.
func DefaultScenarios() []Scenario {
	negative := synth.DefaultOptions()
	negative.Negative = true
	large := synth.DefaultOptions()
	large.Unit = 8
	large.TrackHeight = 48
	return []Scenario{
		{Name: "single", Codes: []string{"115-10/11A"}, Render: synth.DefaultOptions()},
		{Name: "strip", Codes: []string{"115-10/11A", "80-2", "32-5", "115-10/12"}, Render: synth.DefaultOptions()},
		{Name: "large", Codes: []string{"115-10/11A"}, Render: large},
		{Name: "negative", Codes: []string{"80-2"}, Render: negative},
	}
}

// DefaultSettings compares the default scan with the expensive options.
func DefaultSettings() []Setting {
	return []Setting{
		{Name: "default", Build: func(b *pipeline.Builder) *pipeline.Builder { return b }},
		{Name: "try-harder", Build: func(b *pipeline.Builder) *pipeline.Builder { return b.WithTryHarder(true) }},
		{Name: "try-rotate", Build: func(b *pipeline.Builder) *pipeline.Builder { return b.WithTryRotate(true) }},
		{Name: "try-invert", Build: func(b *pipeline.Builder) *pipeline.Builder { return b.WithTryInvert(true) }},
		{Name: "global", Build: func(b *pipeline.Builder) *pipeline.Builder { return b.WithBinarizer("global") }},
	}
}

// Render draws the scenario image.
func (sc Scenario) Render() (image.Image, error) {
	codes := make([]dxedge.Code, 0, len(sc.Codes))
	for _, s := range sc.Codes {
		c, err := dxedge.ParseText(s)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		codes = append(codes, c)
	}
	return synth.RenderStrip(codes, sc.Render)
}

// NewDecodeSuite adds one benchmark per scenario and setting, named
// "scenario/setting". Images are rendered once up front. Pipelines belong
// to the suite and are released by the returned close function.
func NewDecodeSuite(base pipeline.Config, scenarios []Scenario, settings []Setting) (*Suite, func(), error) {
	suite := NewSuite()
	var pipelines []*pipeline.Pipeline
	closeAll := func() {
		for _, p := range pipelines {
			_ = p.Close()
		}
	}

	for _, sc := range scenarios {
		img, err := sc.Render()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		for _, st := range settings {
			pl, err := st.Build(pipeline.NewBuilderWithConfig(base)).Build()
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("setting %s: %w", st.Name, err)
			}
			pipelines = append(pipelines, pl)
			suite.Add(sc.Name+"/"+st.Name, func(ctx context.Context) (int, error) {
				res, err := pl.ProcessImage(ctx, img)
				if err != nil {
					return 0, err
				}
				return len(res.Codes), nil
			})
		}
	}
	return suite, closeAll, nil
}

// PrintResults writes a report of results to w.
func PrintResults(w io.Writer, results []Result) {
	_, _ = fmt.Fprintln(w, "Decode Benchmark Results")
	_, _ = fmt.Fprintln(w, strings.Repeat("=", 24))
	_, _ = fmt.Fprintf(w, "GOOS: %s, GOARCH: %s, NumCPU: %d, Go: %s\n\n",
		runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.Version())
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "  %s\n", r.String())
	}
}
