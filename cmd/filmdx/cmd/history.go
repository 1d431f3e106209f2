package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/MeKo-Tech/filmdx/internal/recorder"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// historyCmd queries the decode history.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show previously decoded codes",
	Long: `Show the codes stored in the history database. Decoding commands
store their codes there when run with --record or recorder.enabled in the
configuration.

Examples:
  filmdx history
  filmdx history --limit 50
  filmdx history --product 115 --format json
  filmdx history --stats`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runHistoryCommand,
}

func runHistoryCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid output format: %s (must be one of: text, json)", format)
	}

	rec, err := recorder.Open(cfg.Recorder.Path)
	if err != nil {
		return err
	}
	defer closeRecorder(rec)

	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	if stats, _ := cmd.Flags().GetBool("stats"); stats {
		s, err := rec.Stats(ctx)
		if err != nil {
			return err
		}
		if format == "json" {
			return writeJSON(out, s)
		}
		return printStats(out, s)
	}

	var entries []recorder.Entry
	if cmd.Flags().Changed("product") {
		product, _ := cmd.Flags().GetInt("product")
		entries, err = rec.ByProduct(ctx, product)
	} else {
		limit, _ := cmd.Flags().GetInt("limit")
		entries, err = rec.Recent(ctx, limit)
	}
	if err != nil {
		return err
	}
	if format == "json" {
		if entries == nil {
			entries = []recorder.Entry{}
		}
		return writeJSON(out, entries)
	}
	return printEntries(out, entries)
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func printEntries(w io.Writer, entries []recorder.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No decodes recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "WHEN\tCODE\tPRODUCT\tGEN\tSOURCE")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			humanize.Time(e.CreatedAt), e.Text, e.Product, e.Generation, e.Source)
	}
	return tw.Flush()
}

func printStats(w io.Writer, s recorder.Stats) error {
	_, _ = fmt.Fprintf(w, "Codes: %s\n", humanize.Comma(int64(s.Entries)))
	_, _ = fmt.Fprintf(w, "Images: %s\n", humanize.Comma(int64(s.Images)))
	_, _ = fmt.Fprintf(w, "Runs: %s\n", humanize.Comma(int64(s.Runs)))
	if s.Entries == 0 {
		return nil
	}
	_, _ = fmt.Fprintf(w, "First: %s\n", humanize.Time(s.First))
	_, _ = fmt.Fprintf(w, "Last: %s\n", humanize.Time(s.Last))
	_, _ = fmt.Fprintln(w, "Products:")
	for _, p := range s.Products {
		_, _ = fmt.Fprintf(w, "  %4d  %s\n", p.Product, humanize.Comma(int64(p.Count)))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", 20, "number of recent codes to show")
	historyCmd.Flags().Int("product", 0, "show every code of this film product")
	historyCmd.Flags().Bool("stats", false, "show a summary instead of the codes")
	historyCmd.Flags().StringP("format", "f", "text", "output format (text, json)")
}
