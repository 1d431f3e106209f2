package cmd

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/MeKo-Tech/filmdx/internal/barcode"
	"github.com/MeKo-Tech/filmdx/internal/batch"
	"github.com/MeKo-Tech/filmdx/internal/config"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command for parallel image processing.
var batchCmd = &cobra.Command{
	Use:   "batch [paths...]",
	Short: "Decode DX edge codes in many images in parallel",
	Long: `Decode the DX film edge barcodes of many image files in parallel.
Directories are searched for supported images; --recursive descends into
subdirectories.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  filmdx batch *.png
  filmdx batch scans/ --recursive --workers 8
  filmdx batch scans/ --format csv --output codes.csv
  filmdx batch scans/ --include "roll-*" --max-file-size 20MB --progress --stats`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

var batchFlagBindings = []flagBinding{
	{"output.format", "format"},
	{"output.file", "output"},
	{"output.overlay_dir", "overlay-dir"},
	{"output.overlay_color", "overlay-color"},
	{"batch.workers", "workers"},
	{"batch.recursive", "recursive"},
	{"batch.include", "include"},
	{"batch.exclude", "exclude"},
	{"batch.max_file_size", "max-file-size"},
	{"batch.continue_on_error", "continue-on-error"},
}

// configToBatchConfig maps the configuration and the progress flags to a
// batch.Config.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) (*batch.Config, error) {
	formats, err := barcode.ParseFormats(strings.Join(cfg.Barcode.Formats, ","))
	if err != nil {
		return nil, err
	}
	overlayColor, err := config.ParseColor(cfg.Output.OverlayColor)
	if err != nil {
		return nil, err
	}
	roi, err := roiFlag(cmd)
	if err != nil {
		return nil, err
	}

	bc := &batch.Config{
		TryHarder:    cfg.Barcode.TryHarder,
		TryRotate:    cfg.Barcode.TryRotate,
		TryInvert:    cfg.Barcode.TryInvert,
		MinLineCount: cfg.Barcode.MinLineCount,
		MaxSymbols:   cfg.Barcode.MaxSymbols,
		Binarizer:    cfg.Barcode.Binarizer,
		Formats:      formats,
		ROI:          roi,

		OverlayDir:   cfg.Output.OverlayDir,
		OverlayColor: overlayColor,
		Format:       cfg.Output.Format,
		OutputFile:   cfg.Output.File,

		Workers:         cfg.Batch.Workers,
		ContinueOnError: cfg.Batch.ContinueOnError,
		Recursive:       cfg.Batch.Recursive,
		IncludePatterns: cfg.Batch.Include,
		ExcludePatterns: cfg.Batch.Exclude,
		MaxFileSize:     cfg.Batch.MaxFileSize,

		ProgressWriter: cmd.ErrOrStderr(),
	}
	bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	bc.ShowStats, _ = cmd.Flags().GetBool("stats")
	bc.ProgressInterval, _ = cmd.Flags().GetDuration("progress-interval")
	return bc, nil
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	bc, err := configToBatchConfig(cfg, cmd)
	if err != nil {
		return err
	}

	rec, err := openRecorder(cfg)
	if err != nil {
		return err
	}
	defer closeRecorder(rec)
	// a nil *Recorder must not end up in the interface
	if rec != nil {
		bc.Recorder = rec
	}

	result, err := batch.ProcessBatch(commandContext(cmd), args, bc)
	if err != nil {
		return fmt.Errorf("batch processing failed: %w", err)
	}

	if err := result.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return err
	}
	if bc.ShowStats {
		result.PrintStats(cmd.ErrOrStderr(), bc.Quiet)
	}
	if len(result.Failures) > 0 && !bc.Quiet {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d images failed\n", len(result.Failures), len(result.ImagePaths))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	d := config.DefaultConfig()
	addOutputFlags(batchCmd)
	addDecodeFlags(batchCmd)
	batchCmd.Flags().String("overlay-dir", "", "directory to save overlay images")
	batchCmd.Flags().String("overlay-color", d.Output.OverlayColor, "overlay color (hex)")

	batchCmd.Flags().IntP("workers", "w", d.Batch.Workers,
		fmt.Sprintf("number of parallel workers (up to %d CPUs)", runtime.NumCPU()))
	batchCmd.Flags().Bool("continue-on-error", false, "keep going when an image fails to decode")
	batchCmd.Flags().BoolP("recursive", "r", false, "recursively scan directories")
	batchCmd.Flags().StringSlice("include", nil, "file name patterns to include (e.g. \"*.png\")")
	batchCmd.Flags().StringSlice("exclude", nil, "file name patterns to exclude")
	batchCmd.Flags().String("max-file-size", "", "skip files larger than this (e.g. 25MB)")

	batchCmd.Flags().Bool("progress", false, "show progress on stderr")
	batchCmd.Flags().BoolP("quiet", "q", false, "suppress progress and status output")
	batchCmd.Flags().Bool("stats", false, "print processing statistics to stderr")
	batchCmd.Flags().Duration("progress-interval", 500*time.Millisecond, "progress update interval")

	bindOnRun(batchCmd, decodeFlagBindings, batchFlagBindings)
}
