package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/jamesainslie/tend/pkg/tend/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage tend configuration settings.

Configuration is loaded from:
  1. $XDG_CONFIG_HOME/tend/config.yaml (if set)
  2. ~/.config/tend/config.yaml

Environment variables override config file settings using the TEND_ prefix:
  TEND_MANIFEST=~/dotfiles/tend.yaml
  TEND_USE_TRASH=true
  TEND_LOGGING_LEVEL=debug`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after defaults, file and environment.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipConfig,
	RunE:              runConfigEdit,
}

var configPathCmd = &cobra.Command{
	Use:               "path",
	Short:             "Show configuration file path",
	Long:              `Display the path to the configuration file.`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: skipConfig,
	RunE:              runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// configFilePath returns the config file in use, explicit or default.
func configFilePath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// runConfigShow prints the effective configuration as YAML.
func runConfigShow(cmd *cobra.Command, args []string) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "# config file: %s\n", path)
	} else {
		fmt.Fprintln(w, "# config file: (using defaults, no file found)")
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	return enc.Close()
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(cmd *cobra.Command, args []string) error {
	configPath := cfgFile
	if configPath == "" {
		var err error
		if configPath, err = config.WriteDefault(); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
