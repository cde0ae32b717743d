package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func EnvsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "envs",
		Short: "List the registered environments",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCATEGORY\tOBS\tMAX STEPS\tACTIONS")
			for _, spec := range newRegistry().List() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					spec.Name, spec.Category, spec.ObservationSize, spec.MaxSteps,
					strings.Join(spec.ActionLabels, ","))
			}
			return w.Flush()
		},
	}
}
