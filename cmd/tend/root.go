package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jamesainslie/tend/pkg/tend/config"
	"github.com/jamesainslie/tend/pkg/tend/logging"
	"github.com/jamesainslie/tend/pkg/tend/output"
	"github.com/jamesainslie/tend/pkg/tend/reconcile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	// cfg is loaded once per invocation by loadConfig.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "tend",
		Short: "Keep installed packages and leftover files in line with a manifest",
		Long: `Tend reconciles a Linux machine with a declarative manifest.

The manifest lists, per package source (apt, flatpak, snap) and per path
domain (filesystem, configs), what to keep and what to remove. Tend scans
what is installed, shows the difference, and applies it after confirmation.
Protected packages and paths are never touched.

Examples:
  tend init                  # Create a manifest from what is installed
  tend diff                  # Compare the system with the manifest
  tend apply --dry-run       # Show what apply would do
  tend apply --source apt    # Reconcile apt packages only
  tend orphans               # List leftover config directories
  tend clean --domain configs
  tend history               # View past changes`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/tend/config.yaml)")
	rootCmd.PersistentFlags().String("manifest", "", "manifest file (overrides the configured one)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "pretty",
		fmt.Sprintf("output format (%s)", strings.Join(output.Available(), ", ")))
	rootCmd.PersistentFlags().StringVar(&templateStr, "template", "", "Go template for -o template")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "mirror debug logs to stderr")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress the warning summary")

	_ = viper.BindPFlag("manifest", rootCmd.PersistentFlags().Lookup("manifest"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

// exitError reports a non-zero exit code whose cause was already rendered.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// exitCode converts a reconcile exit code into a command error.
func exitCode(code int) error {
	if code == reconcile.ExitOK {
		return nil
	}
	return exitError{code: code}
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	summarizeWarnings()
	_ = logging.Close()

	var ee exitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ee):
		return ee.code
	default:
		printError("%v", err)
		return 1
	}
}

// loadConfig loads configuration and starts logging before any command runs.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if m := viper.GetString("manifest"); m != "" {
		if loaded.Manifest, err = config.ExpandPath(m); err != nil {
			return err
		}
	}

	settings, err := loaded.LoggingSettings()
	if err != nil {
		return err
	}
	if getVerbose() {
		settings.ConsoleLevel = "debug"
	}
	if err := logging.Init(settings); err != nil {
		printError("logging disabled: %v", err)
	}

	cfg = loaded
	return nil
}

// skipConfig is used by commands that must work without a readable config.
func skipConfig(cmd *cobra.Command, args []string) error {
	return nil
}

// newApp builds the reconcile app for the running command.
func newApp(cmd *cobra.Command) (*reconcile.App, error) {
	app, err := reconcile.New(cfg, cmd.OutOrStdout(), outputFormat)
	if err != nil {
		return nil, err
	}
	if outputFormat == "template" && templateStr != "" {
		app.Formatter = output.NewTemplateFormatter(templateStr)
	}
	app.Confirm = terminalConfirm(cmd.InOrStdin(), cmd.ErrOrStderr())
	return app, nil
}

// summarizeWarnings points at the log when warnings were logged during the
// run but not shown on the console.
func summarizeWarnings() {
	if getQuiet() || getVerbose() {
		return
	}
	var warnings, errs int
	for _, e := range logging.Recent() {
		switch {
		case e.Level >= logging.LevelError:
			errs++
		case e.Level == logging.LevelWarn:
			warnings++
		}
	}
	if warnings+errs == 0 || cfg == nil {
		return
	}
	settings, err := cfg.LoggingSettings()
	if err != nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%d warning(s), %d error(s) logged; see %s\n", warnings, errs, settings.Path)
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Printf(format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
