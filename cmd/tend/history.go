package main

import (
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View the history of changes",
	Long: `View the changes tend has made, newest first.

Each entry groups the successful actions of one kind from one run. Dry runs
and failed actions are not recorded.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of one entry",
	Long:  `Display one history entry by its ID or a unique ID prefix.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var (
	historyLimit int
	historySince string
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 0, "maximum number of entries to show (default from config)")
	historyCmd.Flags().StringVar(&historySince, "since", "", "only entries newer than this (36h, 7d, 2006-01-02)")

	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

// runHistory lists recent entries.
func runHistory(cmd *cobra.Command, args []string) error {
	since, err := parseSince(historySince, time.Now())
	if err != nil {
		return err
	}
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	entries, err := app.History(historyLimit, since)
	if err != nil {
		return err
	}
	if len(entries) == 0 && outputFormat == "pretty" {
		printInfo("No history entries found.")
	}
	return nil
}

// runHistoryShow displays one entry.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	_, err = app.HistoryShow(args[0])
	return err
}
