package main

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last scan and manifest summary",
	Long: `Show when the system was last scanned, how many packages each source
had, and how many entries the manifest declares. No scan is performed.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// runStatus renders the cached state.
func runStatus(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	_, err = app.Status()
	return err
}
