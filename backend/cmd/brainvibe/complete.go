package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"brainvibe/backend/internal/topic"
)

func newCompleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <topic-id>",
		Short: "Mark a topic as learned",
		Long:  "complete marks a topic LEARNED everywhere, or only in this project with --local.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topicID := args[0]

			var status topic.Status
			if raw, _ := cmd.Flags().GetString("status"); raw != "" {
				parsed, err := topic.ParseStatus(raw)
				if err != nil {
					return err
				}
				status = parsed
			}

			if local, _ := cmd.Flags().GetBool("local"); local {
				projectID, err := a.projectID()
				if err != nil {
					return err
				}
				if status == "" {
					status = topic.Learned
				}
				if err := a.client().SetProjectStatus(cmd.Context(), projectID, topicID, status); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is %s in %s\n", topicID, statusLabel(status), projectID)
				return nil
			}

			t, err := a.client().CompleteTopic(cmd.Context(), topicID, status)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", t.ID, statusLabel(t.Status))
			return nil
		},
	}
	cmd.Flags().String("status", "", "status to set instead of LEARNED (not_learned, in_progress, learned)")
	cmd.Flags().Bool("local", false, "only set the status within the configured project")
	return cmd
}
