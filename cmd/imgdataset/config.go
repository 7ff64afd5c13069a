package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"imgdataset/pkg/config"
	"imgdataset/pkg/models"
	"imgdataset/pkg/ui"
)

const defaultConfigPath = ".imgdataset.yaml"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage imgdataset configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IMGDATASET_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with the default settings",
	Long: `Create a configuration file holding every option with its default value
and the built-in categories.

The file is created as '.imgdataset.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values,
including the category list (non-empty, unique, single path segment folders).`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = defaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	cfg := config.DefaultConfig()
	cfg.Dataset.Categories = models.DefaultCategories()
	if err := cfg.Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	out := ui.Output()
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Edit the categories under dataset.categories")
	fmt.Fprintln(out, "2. Run 'imgdataset config validate' to check the configuration")
	fmt.Fprintln(out, "3. Start downloading with 'imgdataset build'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := ui.Output()
	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(out)
	fmt.Fprint(out, string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none found)"
	}
	fmt.Fprintln(out, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "2. Environment variables (IMGDATASET_*)")
	fmt.Fprintln(out, "3. .env files")
	fmt.Fprintf(out, "4. Configuration file: %s\n", source)
	fmt.Fprintln(out, "5. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		return fmt.Errorf("no configuration file found, specify one with --config")
	}

	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		return err
	}

	if info, err := os.Stat(cfg.Dataset.Root); err == nil && !info.IsDir() {
		return fmt.Errorf("dataset root %s exists and is not a directory", cfg.Dataset.Root)
	}

	ui.PrintSuccess("Configuration is valid")

	out := ui.Output()
	fmt.Fprintln(out, "\nConfiguration summary:")
	fmt.Fprintf(out, "  Dataset root: %s\n", cfg.Dataset.Root)
	fmt.Fprintf(out, "  Images per category: %d\n", cfg.Dataset.MaxNum)
	fmt.Fprintf(out, "  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Fprintf(out, "  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Fprintf(out, "  Categories:\n")
	for _, cat := range cfg.Dataset.Categories {
		fmt.Fprintf(out, "    - %s: %q\n", cat.Folder, cat.Keyword)
	}
	return nil
}
