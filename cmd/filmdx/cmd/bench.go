package cmd

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/MeKo-Tech/filmdx/internal/benchmark"
	"github.com/spf13/cobra"
)

// benchCmd measures decode speed on synthetic images.
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the decoder on synthetic images",
	Long: `Render synthetic DX edge images and time the decoder on them with the
default scan and with each of the expensive scanner options.

Examples:
  filmdx bench
  filmdx bench --iterations 50 --scenario strip
  filmdx bench --setting default,try-rotate --json`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runBenchCommand,
}

func runBenchCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	iterations, _ := cmd.Flags().GetInt("iterations")
	if iterations < 1 {
		return fmt.Errorf("invalid --iterations %d (must be at least 1)", iterations)
	}
	scenarioNames, _ := cmd.Flags().GetStringSlice("scenario")
	settingNames, _ := cmd.Flags().GetStringSlice("setting")

	scenarios, err := pick(benchmark.DefaultScenarios(), scenarioNames, func(s benchmark.Scenario) string { return s.Name })
	if err != nil {
		return fmt.Errorf("invalid --scenario: %w", err)
	}
	settings, err := pick(benchmark.DefaultSettings(), settingNames, func(s benchmark.Setting) string { return s.Name })
	if err != nil {
		return fmt.Errorf("invalid --setting: %w", err)
	}

	suite, closeAll, err := benchmark.NewDecodeSuite(cfg.ToPipelineConfig(), scenarios, settings)
	if err != nil {
		return err
	}
	defer closeAll()

	results := suite.RunAll(commandContext(cmd), iterations)
	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	benchmark.PrintResults(out, results)

	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("benchmark %s failed: %w", r.Name, r.Error)
		}
	}
	return nil
}

// pick keeps the items named in names, in the order of items. No names
// keeps everything.
func pick[T any](items []T, names []string, name func(T) string) ([]T, error) {
	if len(names) == 0 {
		return items, nil
	}
	known := make([]string, len(items))
	for i, it := range items {
		known[i] = name(it)
	}
	for _, n := range names {
		if !slices.Contains(known, n) {
			return nil, fmt.Errorf("unknown name %q (want one of %v)", n, known)
		}
	}
	var picked []T
	for _, it := range items {
		if slices.Contains(names, name(it)) {
			picked = append(picked, it)
		}
	}
	return picked, nil
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().IntP("iterations", "n", 20, "iterations per benchmark")
	benchCmd.Flags().StringSlice("scenario", nil, "scenarios to run (single, strip, large, negative)")
	benchCmd.Flags().StringSlice("setting", nil, "scanner settings to compare (default, try-harder, try-rotate, try-invert, global)")
	benchCmd.Flags().Bool("json", false, "print the results as JSON")
}
