package main

import (
	"context"
	"fmt"

	"github.com/jamesainslie/tend/pkg/tend/watch"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare installed packages with the manifest",
	Long: `Scan every available package source and compare it with the manifest.

Missing packages are kept in the manifest but not installed; extra packages
are marked for removal but still installed. Installed packages the manifest
does not mention are listed as new and never acted on. Nothing is changed.

With --watch the diff is shown again each time the manifest is saved,
until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runDiff,
}

var (
	diffSource string
	diffWatch  bool
)

func init() {
	diffCmd.Flags().StringVar(&diffSource, "source", "", "limit to one source (apt, flatpak, snap)")
	diffCmd.Flags().BoolVarP(&diffWatch, "watch", "w", false, "re-run whenever the manifest changes")
	rootCmd.AddCommand(diffCmd)
}

// runDiff renders the package diff.
func runDiff(cmd *cobra.Command, args []string) error {
	src, err := parseSourceFlag(diffSource)
	if err != nil {
		return err
	}
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	if _, err := app.Diff(cmd.Context(), src); err != nil {
		if !diffWatch {
			return err
		}
		printError("%v", err)
	}
	if !diffWatch {
		return nil
	}

	w, err := watch.New(cfg.Manifest, watch.DefaultDebounce)
	if err != nil {
		return err
	}
	defer w.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s (Ctrl-C to stop)\n", w.Path())
	return w.Run(cmd.Context(), func(ctx context.Context) error {
		fmt.Fprintln(cmd.OutOrStdout())
		_, err := app.Diff(ctx, src)
		return err
	})
}
