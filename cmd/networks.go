package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/erc20-burn-relay/relayer/internal/config"
)

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List the built-in network presets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCONTRACT\tDEPLOY HEIGHT\tINDEXER")
		for _, n := range config.Networks() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", n.Name, n.Contract, n.DeployHeight, n.IndexerURL)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(networksCmd)
}
