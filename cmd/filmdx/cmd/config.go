package cmd

import (
	"fmt"
	"os"

	"github.com/MeKo-Tech/filmdx/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd groups the configuration helpers.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create configuration files",
	Long: `Inspect the resolved configuration or write a default file.

Settings come from flags, FILMDX_* environment variables (FILMDX_SERVER_PORT
sets server.port), the config file and the built-in defaults, in that order.

Examples:
  filmdx config show
  filmdx config init filmdx.yaml
  filmdx config paths`,
	SilenceUsage: true,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}
		b, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a configuration file holding every default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			file = args[0]
		}
		if force, _ := cmd.Flags().GetBool("force"); !force {
			if _, err := os.Stat(file); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", file)
			}
		}
		if err := config.GenerateDefaultConfigFile(file); err != nil {
			return fmt.Errorf("writing %s: %w", file, err)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", file)
		return err
	},
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show where configuration is loaded from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		GetConfigLoader().PrintConfigInfo(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd, configPathsCmd)
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
