// Command brainvibe records what a project teaches by sending its git diffs
// to the Brain Vibe server, and prints the resulting topic graphs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configName    = ".brainvibe"
	configType    = "yaml"
	defaultServer = "http://localhost:8000"
)

// app carries the state shared by every subcommand
type app struct {
	v *viper.Viper
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "brainvibe",
		Short:         "Track what you learn while you code",
		Long:          "brainvibe sends the changes in a repository to a Brain Vibe server, which turns them into a graph of topics and prerequisites.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "config file (default .brainvibe.yaml)")
	root.PersistentFlags().String("server", "", "Brain Vibe server URL")
	root.PersistentFlags().String("project", "", "project id")
	root.PersistentFlags().StringP("path", "C", ".", "repository directory")

	root.AddCommand(
		newInitCmd(a),
		newTrackCmd(a),
		newGraphCmd(a),
		newCompleteCmd(a),
	)
	return root
}

func (a *app) initConfig(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("path")

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		a.v.SetConfigName(configName)
		a.v.SetConfigType(configType)
		a.v.AddConfigPath(dir)
		home, err := os.UserHomeDir()
		if err == nil {
			a.v.AddConfigPath(home)
		}
	}

	a.v.SetDefault("server", defaultServer)
	a.v.SetEnvPrefix("BRAINVIBE")
	a.v.AutomaticEnv()

	if err := a.v.BindPFlag("server", cmd.Flags().Lookup("server")); err != nil {
		return err
	}
	if err := a.v.BindPFlag("project", cmd.Flags().Lookup("project")); err != nil {
		return err
	}

	// No config file is fine until a command needs the project id
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

func (a *app) client() *Client {
	return NewClient(a.v.GetString("server"))
}

// projectID returns the configured project or explains how to set one
func (a *app) projectID() (string, error) {
	id := a.v.GetString("project")
	if id == "" {
		return "", fmt.Errorf("no project configured: run \"brainvibe init\" or pass --project")
	}
	return id, nil
}

func configPath(dir string) string {
	return filepath.Join(dir, configName+"."+configType)
}
