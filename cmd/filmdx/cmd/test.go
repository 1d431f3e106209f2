package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/filmdx/internal/dxedge"
	"github.com/MeKo-Tech/filmdx/internal/pipeline"
	"github.com/MeKo-Tech/filmdx/internal/synth"
	"github.com/spf13/cobra"
)

// selfTestCase renders codes and expects the pipeline to read them back.
type selfTestCase struct {
	name    string
	codes   []string
	render  func(*synth.Options)
	builder func(*pipeline.Builder) *pipeline.Builder
}

var selfTestCases = []selfTestCase{
	{name: "positive strip", codes: []string{"115-10/11A"}},
	{
		name:    "negative strip",
		codes:   []string{"80-2"},
		render:  func(o *synth.Options) { o.Negative = true },
		builder: func(b *pipeline.Builder) *pipeline.Builder { return b.WithTryInvert(true) },
	},
	{
		name:    "two codes",
		codes:   []string{"115-10/11A", "32-5"},
		builder: func(b *pipeline.Builder) *pipeline.Builder { return b.WithTryHarder(true) },
	},
}

// testCmd represents the test command.
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Check that the decoder reads synthetic DX edge codes",
	Long: `Render known DX codes into images and decode them again. A failing
check points at a broken build or unusual scanner settings.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, "Testing DX edge decoder...")

		failed := 0
		for _, tc := range selfTestCases {
			if err := runSelfTest(commandContext(cmd), tc); err != nil {
				failed++
				_, _ = fmt.Fprintf(out, "FAIL %s: %v\n", tc.name, err)
				continue
			}
			_, _ = fmt.Fprintf(out, "ok   %s: %s\n", tc.name, strings.Join(tc.codes, " "))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d checks failed", failed, len(selfTestCases))
		}
		_, _ = fmt.Fprintln(out, "All checks passed.")
		return nil
	},
}

func runSelfTest(ctx context.Context, tc selfTestCase) error {
	codes := make([]dxedge.Code, 0, len(tc.codes))
	for _, s := range tc.codes {
		c, err := dxedge.ParseText(s)
		if err != nil {
			return err
		}
		codes = append(codes, c)
	}
	opts := synth.DefaultOptions()
	if tc.render != nil {
		tc.render(&opts)
	}
	img, err := synth.RenderStrip(codes, opts)
	if err != nil {
		return err
	}

	b := pipeline.NewBuilder()
	if tc.builder != nil {
		b = tc.builder(b)
	}
	pl, err := b.Build()
	if err != nil {
		return err
	}
	defer func() { _ = pl.Close() }()

	res, err := pl.ProcessImage(ctx, img)
	if err != nil {
		return err
	}
	got := make([]string, 0, len(res.Codes))
	for _, c := range res.Codes {
		got = append(got, c.Text)
	}
	want := slices.Clone(tc.codes)
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		return fmt.Errorf("decoded %q, want %q", got, want)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(testCmd)
}
