package main

import (
	"github.com/jamesainslie/tend/pkg/tend/reconcile"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete paths the manifest marks for removal",
	Long: `Delete the filesystem or configs paths listed under remove in the manifest.

Protected paths are withheld. Paths under your home directory are deleted
directly (or moved to the trash with use_trash); other paths go through
sudo. Deletions cannot be undone by tend.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List leftover paths no installed package owns",
	Long: `Scan the configured roots and classify every path by ownership.

Only unowned paths the manifest does not mention are listed, with a
confidence score. Add them to the manifest's remove list and run
'tend clean' to delete them. Nothing is changed.`,
	Args: cobra.NoArgs,
	RunE: runOrphans,
}

var (
	cleanDomain string
	cleanDryRun bool
	cleanYes    bool

	orphansDomain string
	orphansAll    bool
)

func init() {
	cleanCmd.Flags().StringVar(&cleanDomain, "domain", "", "path domain to clean (filesystem, configs)")
	cleanCmd.Flags().BoolVarP(&cleanDryRun, "dry-run", "d", false, "show what would be deleted without deleting")
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "do not ask for confirmation")
	_ = cleanCmd.MarkFlagRequired("domain")

	orphansCmd.Flags().StringVar(&orphansDomain, "domain", "", "limit to one path domain (filesystem, configs)")
	orphansCmd.Flags().BoolVarP(&orphansAll, "all", "a", false, "list every classified path, not just orphans")

	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(orphansCmd)
}

// runClean deletes manifest-listed paths.
func runClean(cmd *cobra.Command, args []string) error {
	domain, err := parsePathDomain(cleanDomain, false)
	if err != nil {
		return err
	}
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	code, err := app.Clean(cmd.Context(), reconcile.CleanOptions{
		Domain: domain,
		DryRun: cleanDryRun,
		Yes:    cleanYes,
	})
	if err != nil {
		return err
	}
	return exitCode(code)
}

// runOrphans lists orphaned paths.
func runOrphans(cmd *cobra.Command, args []string) error {
	domain, err := parsePathDomain(orphansDomain, true)
	if err != nil {
		return err
	}
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	_, err = app.Orphans(cmd.Context(), reconcile.OrphanOptions{Domain: domain, All: orphansAll})
	return err
}
