package main

import (
	"github.com/jamesainslie/tend/pkg/tend/reconcile"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Install and remove packages to match the manifest",
	Long: `Install missing packages and remove extra ones.

The plan is shown and confirmed before anything runs; installs come first.
Protected packages are never removed. Successful changes are recorded in
the history log. The exit status is 1 when any action failed.`,
	Args: cobra.NoArgs,
	RunE: runApply,
}

var (
	applySource string
	applyPurge  bool
	applyDryRun bool
	applyYes    bool
)

func init() {
	applyCmd.Flags().StringVar(&applySource, "source", "", "limit to one source (apt, flatpak, snap)")
	applyCmd.Flags().BoolVar(&applyPurge, "purge", false, "remove configuration too where the source supports it")
	applyCmd.Flags().BoolVarP(&applyDryRun, "dry-run", "d", false, "show what would be done without doing it")
	applyCmd.Flags().BoolVarP(&applyYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(applyCmd)
}

// runApply reconciles packages.
func runApply(cmd *cobra.Command, args []string) error {
	src, err := parseSourceFlag(applySource)
	if err != nil {
		return err
	}
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	code, err := app.Apply(cmd.Context(), reconcile.ApplyOptions{
		Source: src,
		Purge:  applyPurge,
		DryRun: applyDryRun,
		Yes:    applyYes,
	})
	if err != nil {
		return err
	}
	return exitCode(code)
}
