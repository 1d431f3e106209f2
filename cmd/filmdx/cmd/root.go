package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/filmdx/internal/config"
	"github.com/MeKo-Tech/filmdx/internal/version"
	"github.com/spf13/cobra"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

var rootFlagBindings = []flagBinding{
	{"verbose", "verbose"},
	{"log_level", "log-level"},
	{"recorder.enabled", "record"},
	{"recorder.path", "history-db"},
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "filmdx",
	Short: "DX film edge barcode decoder",
	Long: `filmdx reads the DX barcode printed along the edge of 35mm film and
reports the product number, generation and frame of every code it finds.

This tool provides:
- Decoding of scanned film strips in JPEG, PNG, BMP, TIFF and WebP
- Decoding of images embedded in PDF contact sheets
- Parallel batch decoding of whole directories
- An HTTP and WebSocket decode server
- A synthetic image generator and a local decode history

Examples:
  filmdx image scan.png
  filmdx pdf contact-sheet.pdf --format json
  filmdx batch scans/ --recursive
  filmdx generate 115-10/11A -o strip.png
  filmdx serve --port 8080`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Interrupts cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/filmdx, /etc/filmdx)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("record", false, "store decoded codes in the history database")
	rootCmd.PersistentFlags().String("history-db", config.DefaultRecorderPath(), "history database path")
	rootCmd.Flags().Bool("version", false, "print version information and exit")

	mustBind(rootCmd.PersistentFlags(), rootFlagBindings)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		setupLogging(globalConfig)
		return nil
	}
}

// setupLogging installs the JSON logger. Logs go to stderr so that results
// on stdout stay machine readable.
func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	return nil
}

// GetConfig returns the configuration with the flags of the running
// command applied.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if err := initConfig(); err != nil {
			return nil, err
		}
	}

	// flags are bound after the first load, so unmarshal again
	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
