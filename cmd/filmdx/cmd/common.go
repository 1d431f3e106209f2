package cmd

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strings"

	"github.com/MeKo-Tech/filmdx/internal/config"
	"github.com/MeKo-Tech/filmdx/internal/pipeline"
	"github.com/MeKo-Tech/filmdx/internal/recorder"
	"github.com/MeKo-Tech/filmdx/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagBinding ties a config key to a flag name.
type flagBinding struct {
	key  string
	flag string
}

var decodeFlagBindings = []flagBinding{
	{"barcode.formats", "formats"},
	{"barcode.try_harder", "try-harder"},
	{"barcode.try_rotate", "try-rotate"},
	{"barcode.try_invert", "try-invert"},
	{"barcode.min_line_count", "min-line-count"},
	{"barcode.max_symbols", "max-symbols"},
	{"barcode.binarizer", "binarizer"},
}

func bindFlags(flags *pflag.FlagSet, bindings []flagBinding) error {
	for _, b := range bindings {
		f := flags.Lookup(b.flag)
		if f == nil {
			return fmt.Errorf("no flag %q to bind to %s", b.flag, b.key)
		}
		if err := viper.BindPFlag(b.key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", b.flag, err)
		}
	}
	return nil
}

func mustBind(flags *pflag.FlagSet, bindings []flagBinding) {
	if err := bindFlags(flags, bindings); err != nil {
		panic(err)
	}
}

// bindOnRun binds the flags when the command runs. Several commands share
// config keys, so binding in init would let the last one win.
func bindOnRun(cmd *cobra.Command, bindings ...[]flagBinding) {
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		for _, b := range bindings {
			if err := bindFlags(cmd.Flags(), b); err != nil {
				return err
			}
		}
		return nil
	}
}

// addDecodeFlags adds the scanner flags shared by the decoding commands.
func addDecodeFlags(cmd *cobra.Command) {
	d := config.DefaultConfig().Barcode
	cmd.Flags().StringSlice("formats", d.Formats, "barcode formats to report")
	cmd.Flags().Bool("try-harder", d.TryHarder, "scan every row and keep going after the first code")
	cmd.Flags().Bool("try-rotate", d.TryRotate, "also scan the image rotated by 90, 180 and 270 degrees")
	cmd.Flags().Bool("try-invert", d.TryInvert, "also scan the inverted image (film negatives)")
	cmd.Flags().Int("min-line-count", d.MinLineCount, "rows that must agree before a code is reported")
	cmd.Flags().Int("max-symbols", d.MaxSymbols, "stop after this many codes per image (0 = no limit)")
	cmd.Flags().String("binarizer", d.Binarizer, "binarizer: row or global")
	cmd.Flags().String("roi", "", "only scan this region, as x,y,w,h")
}

// commandContext returns the context of cmd, which is nil when RunE is
// called directly.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// roiFlag reads --roi.
func roiFlag(cmd *cobra.Command) (image.Rectangle, error) {
	s, _ := cmd.Flags().GetString("roi")
	if s == "" {
		return image.Rectangle{}, nil
	}
	r, err := utils.ParseRect(s)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("invalid --roi: %w", err)
	}
	return r, nil
}

// openRecorder opens the history database when recording is enabled. A nil
// recorder means recording is off.
func openRecorder(cfg *config.Config) (*recorder.Recorder, error) {
	if !cfg.Recorder.Enabled {
		return nil, nil
	}
	rec, err := recorder.Open(cfg.Recorder.Path)
	if err != nil {
		return nil, err
	}
	slog.Debug("Recording decodes", "path", cfg.Recorder.Path, "run_id", rec.RunID())
	return rec, nil
}

func closeRecorder(rec *recorder.Recorder) {
	if rec == nil {
		return
	}
	if err := rec.Close(); err != nil {
		slog.Error("Error closing history database", "error", err)
	}
}

// buildPipeline creates the decode pipeline for cfg.
func buildPipeline(cfg *config.Config, rec *recorder.Recorder, roi image.Rectangle) (*pipeline.Pipeline, error) {
	b := pipeline.NewBuilderWithConfig(cfg.ToPipelineConfig())
	if rec != nil {
		b = b.WithRecorder(rec)
	}
	if !roi.Empty() {
		b = b.WithROI(roi)
	}
	pl, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build decode pipeline: %w", err)
	}
	return pl, nil
}

// writeOutput prints text or writes it to file.
func writeOutput(cmd *cobra.Command, text, file string) error {
	if file == "" {
		if text != "" && !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		_, err := fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	}
	if err := os.WriteFile(file, []byte(text), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", file)
	return err
}
