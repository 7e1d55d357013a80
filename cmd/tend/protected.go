package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jamesainslie/tend/pkg/tend/protect"
	"github.com/jamesainslie/tend/pkg/tend/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var protectedCmd = &cobra.Command{
	Use:   "protected",
	Short: "List protected packages and paths",
	Long: `List the patterns tend never removes: the built-in set plus the
protect section of the config file. Patterns may use glob syntax.`,
	Args: cobra.NoArgs,
	RunE: runProtected,
}

var protectedDomain string

func init() {
	protectedCmd.Flags().StringVar(&protectedDomain, "domain", "", "limit to one domain (packages, filesystem, configs)")
	rootCmd.AddCommand(protectedCmd)
}

// runProtected prints the protected patterns per domain.
func runProtected(cmd *cobra.Command, args []string) error {
	domains := []types.Domain{types.DomainPackages, types.DomainFilesystem, types.DomainConfigs}
	if protectedDomain != "" {
		d, err := types.ParseDomain(protectedDomain)
		if err != nil {
			return fmt.Errorf("invalid --domain %q: %w", protectedDomain, err)
		}
		domains = []types.Domain{d}
	}

	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	return writeProtected(cmd.OutOrStdout(), app.Registry, domains, outputFormat)
}

func writeProtected(w io.Writer, reg *protect.Registry, domains []types.Domain, format string) error {
	lists := make(map[types.Domain][]string, len(domains))
	for _, d := range domains {
		lists[d] = reg.List(d)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(lists)
	case "yaml":
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(lists); err != nil {
			return err
		}
		return enc.Close()
	}

	for i, d := range domains {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%d)\n", d, len(lists[d]))
		for _, p := range lists[d] {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	return nil
}
