package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"brainvibe/backend/internal/topic"
)

func newInitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Register this repository as a project",
		Long:  "init creates the project on the server and writes .brainvibe.yaml so later commands know which project to use.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("path")
			abs, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			path := configPath(abs)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("project is already initialized (%s exists)", path)
			}

			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = filepath.Base(abs)
			}
			id := a.v.GetString("project")
			if id == "" {
				id = topic.Normalize(name)
			}
			if id == "" {
				return errors.New("cannot derive a project id from the directory name, pass --project")
			}

			p, err := a.client().CreateProject(cmd.Context(), id, name)
			if err != nil {
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.StatusCode != 409 {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Project %s already exists on the server, linking to it\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", p.ID, p.Name)
			}

			a.v.Set("project", id)
			a.v.Set("name", name)
			if err := a.v.WriteConfigAs(path); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().String("name", "", "project name (default: directory name)")
	return cmd
}
