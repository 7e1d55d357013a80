package main

import (
	"github.com/jamesainslie/tend/pkg/tend/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a manifest from what is installed",
	Long: `Scan every available package source and write a manifest that keeps
everything currently installed. A default config file is created too if
none exists.

Edit the manifest afterwards: move packages you no longer want to the
remove list, then run 'tend apply'.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var initForce bool

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing manifest")
	rootCmd.AddCommand(initCmd)
}

// runInit writes the starting manifest.
func runInit(cmd *cobra.Command, args []string) error {
	configPath, err := config.WriteDefault()
	if err != nil {
		return err
	}
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	path, err := app.Init(cmd.Context(), initForce)
	if err != nil {
		return err
	}
	printInfo("Created manifest: %s", path)
	printInfo("Config file:      %s", configPath)
	return nil
}
