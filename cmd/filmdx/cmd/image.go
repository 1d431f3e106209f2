package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/filmdx/internal/batch"
	"github.com/MeKo-Tech/filmdx/internal/config"
	"github.com/MeKo-Tech/filmdx/internal/pipeline"
	"github.com/MeKo-Tech/filmdx/internal/utils"
	"github.com/spf13/cobra"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image [file...]",
	Short: "Decode DX edge codes in image files",
	Long: `Decode the DX film edge barcodes in one or more image files.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  filmdx image scan.png
  filmdx image strip1.png strip2.png --format json
  filmdx image negative.tif --try-invert --try-rotate
  filmdx image scan.png --overlay-dir overlays/`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runImageCommand,
}

var imageFlagBindings = []flagBinding{
	{"output.format", "format"},
	{"output.file", "output"},
	{"output.overlay_dir", "overlay-dir"},
	{"output.overlay_color", "overlay-color"},
}

func runImageCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no input files provided")
	}
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	roi, err := roiFlag(cmd)
	if err != nil {
		return err
	}
	overlayColor, err := config.ParseColor(cfg.Output.OverlayColor)
	if err != nil {
		return err
	}

	rec, err := openRecorder(cfg)
	if err != nil {
		return err
	}
	defer closeRecorder(rec)

	pl, err := buildPipeline(cfg, rec, roi)
	if err != nil {
		return err
	}
	defer func() { _ = pl.Close() }()

	ctx := commandContext(cmd)
	results := make([]*pipeline.ImageResult, 0, len(args))
	for _, path := range args {
		if !utils.IsSupportedImage(path) {
			return fmt.Errorf("unsupported image format: %s", path)
		}
		res, err := pl.ProcessFile(ctx, path)
		if err != nil {
			return fmt.Errorf("decoding %s failed: %w", path, err)
		}
		slog.Debug("Decoded image", "file", path, "codes", len(res.Codes))
		if len(res.Codes) == 0 {
			slog.Info("No DX code found", "file", path)
		} else if cfg.Output.OverlayDir != "" {
			out, err := batch.WriteOverlay(res, cfg.Output.OverlayDir, overlayColor)
			if err != nil {
				return fmt.Errorf("writing overlay for %s: %w", path, err)
			}
			slog.Info("Saved overlay", "file", out)
		}
		results = append(results, res)
	}

	var text string
	if len(results) == 1 {
		text, err = pipeline.FormatImageResult(results[0], cfg.Output.Format)
	} else {
		text, err = pipeline.FormatImageResults(results, cfg.Output.Format)
	}
	if err != nil {
		return err
	}
	return writeOutput(cmd, text, cfg.Output.File)
}

func addOutputFlags(cmd *cobra.Command) {
	d := config.DefaultConfig().Output
	cmd.Flags().StringP("format", "f", d.Format, "output format (text, json, csv, yaml)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
}

func init() {
	rootCmd.AddCommand(imageCmd)

	addOutputFlags(imageCmd)
	addDecodeFlags(imageCmd)
	imageCmd.Flags().String("overlay-dir", "", "write a copy of each image with the codes marked to this directory")
	imageCmd.Flags().String("overlay-color", config.DefaultConfig().Output.OverlayColor, "overlay color (hex)")
	bindOnRun(imageCmd, decodeFlagBindings, imageFlagBindings)
}
