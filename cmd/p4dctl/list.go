package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *cli) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(c.stdout, 8, 4, 1, ' ', 0)
			fmt.Fprintln(w, "Type\tOwner\tName\tConfig")
			for _, s := range c.reg.GetAll() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Config.ServerType, s.Config.Owner, s.Name(), s.Config.FilePath)
			}
			return w.Flush()
		},
	}
}
