package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/filmdx/internal/pdf"
	"github.com/MeKo-Tech/filmdx/internal/pipeline"
	"github.com/spf13/cobra"
)

// pdfCmd represents the pdf command.
var pdfCmd = &cobra.Command{
	Use:   "pdf [file...]",
	Short: "Decode DX edge codes in the images of PDF files",
	Long: `Extract the images embedded in PDF files, such as scanned contact
sheets, and decode the DX film edge barcodes in them.

Examples:
  filmdx pdf contact-sheet.pdf
  filmdx pdf *.pdf --format csv
  filmdx pdf scan.pdf --pages 1-5
  filmdx pdf locked.pdf --password secret`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runPDFCommand,
}

var pdfFlagBindings = []flagBinding{
	{"output.format", "format"},
	{"output.file", "output"},
}

func runPDFCommand(cmd *cobra.Command, args []string) error {
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
	pages, _ := cmd.Flags().GetString("pages")
	if pages != "" {
		if _, err := pdf.ParsePageRange(pages); err != nil {
			return fmt.Errorf("invalid --pages: %w", err)
		}
	}
	var creds *pdf.Credentials
	userPW, _ := cmd.Flags().GetString("password")
	ownerPW, _ := cmd.Flags().GetString("owner-password")
	if userPW != "" || ownerPW != "" {
		creds = &pdf.Credentials{UserPassword: userPW, OwnerPassword: ownerPW}
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
	results := make([]*pipeline.PDFResult, 0, len(args))
	for _, path := range args {
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return fmt.Errorf("not a PDF file: %s", path)
		}
		res, err := pl.ProcessPDFWithCredentials(ctx, path, pages, creds)
		if err != nil {
			if creds == nil && pdf.IsPasswordError(err) {
				return fmt.Errorf("%s is encrypted, pass --password: %w", path, err)
			}
			return fmt.Errorf("decoding %s failed: %w", path, err)
		}
		results = append(results, res)
	}

	var text string
	if len(results) == 1 {
		text, err = pipeline.FormatPDFResult(results[0], cfg.Output.Format)
	} else {
		text, err = pipeline.FormatPDFResults(results, cfg.Output.Format)
	}
	if err != nil {
		return err
	}
	return writeOutput(cmd, text, cfg.Output.File)
}

func init() {
	rootCmd.AddCommand(pdfCmd)

	addOutputFlags(pdfCmd)
	addDecodeFlags(pdfCmd)
	pdfCmd.Flags().String("pages", "", "page range to process (e.g., '1-5', '1,3,5')")
	pdfCmd.Flags().StringP("password", "p", "", "user password for encrypted PDFs")
	pdfCmd.Flags().String("owner-password", "", "owner password for encrypted PDFs")
	bindOnRun(pdfCmd, decodeFlagBindings, pdfFlagBindings)
}
