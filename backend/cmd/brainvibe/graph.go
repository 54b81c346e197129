package main

import (
	"github.com/spf13/cobra"

	"brainvibe/backend/internal/brain"
)

func newGraphCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the project's topic graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			master, _ := cmd.Flags().GetBool("master")

			var g *brain.Graph
			var err error
			if master {
				g, err = a.client().MasterGraph(cmd.Context())
			} else {
				projectID, perr := a.projectID()
				if perr != nil {
					return perr
				}
				g, err = a.client().ProjectGraph(cmd.Context(), projectID)
			}
			if err != nil {
				return err
			}
			printGraph(cmd.OutOrStdout(), g)
			return nil
		},
	}
	cmd.Flags().Bool("master", false, "print the graph across all projects")
	return cmd
}
