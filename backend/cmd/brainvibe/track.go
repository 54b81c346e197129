package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
)

func newTrackCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Send the current changes for topic extraction",
		Long: "track collects the working tree diff (or a diff file) and asks the server which topics it teaches.\n" +
			"With --watch it keeps running and sends the diff again each time file changes settle.",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := a.projectID()
			if err != nil {
				return err
			}
			if watch, _ := cmd.Flags().GetBool("watch"); watch {
				return a.watchAndTrack(cmd, projectID)
			}

			diff, err := readDiff(cmd)
			if err != nil {
				return err
			}
			if strings.TrimSpace(diff) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes to analyze")
				return nil
			}
			return a.analyze(cmd, projectID, diff)
		},
	}
	cmd.Flags().String("prompt", "", "the prompt that produced the change")
	cmd.Flags().String("ai-output", "", "the assistant's answer that produced the change")
	cmd.Flags().Bool("staged", false, "use staged changes instead of the working tree")
	cmd.Flags().String("diff-file", "", "read the diff from a file (\"-\" for stdin) instead of git")
	cmd.Flags().Bool("watch", false, "keep watching the project and send the diff whenever changes settle")
	cmd.Flags().Duration("debounce", defaultDebounce, "quiet period before a watched change is sent")
	return cmd
}

func (a *app) analyze(cmd *cobra.Command, projectID, diff string) error {
	prompt, _ := cmd.Flags().GetString("prompt")
	aiOutput, _ := cmd.Flags().GetString("ai-output")

	result, err := a.client().AnalyzeDiff(cmd.Context(), projectID, diff, prompt, aiOutput)
	if err != nil {
		return err
	}
	printAnalysis(cmd.OutOrStdout(), result)
	return nil
}

// watchAndTrack sends the diff each time the tree settles, skipping diffs
// identical to the last one sent. Failed sends are reported and retried on
// the next change.
func (a *app) watchAndTrack(cmd *cobra.Command, projectID string) error {
	if file, _ := cmd.Flags().GetString("diff-file"); file == "-" {
		return fmt.Errorf("--watch cannot read the diff from stdin")
	}
	dir, _ := cmd.Flags().GetString("path")
	debounce, _ := cmd.Flags().GetDuration("debounce")

	w, err := newTreeWatcher(dir, debounce)
	if err != nil {
		return err
	}
	defer w.Close()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	fmt.Fprintf(out, "Watching %s for project %s (Ctrl+C to stop)\n", w.root, projectID)

	var last string
	err = w.Run(cmd.Context(), func(paths []string) {
		diff, err := readDiff(cmd)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return
		}
		if strings.TrimSpace(diff) == "" || diff == last {
			return
		}
		fmt.Fprintf(out, "%d file(s) changed\n", len(paths))
		if err := a.analyze(cmd, projectID, diff); err != nil {
			fmt.Fprintln(errOut, err)
			return
		}
		last = diff
	})
	fmt.Fprintln(out, "Stopped tracking")
	return err
}

func readDiff(cmd *cobra.Command) (string, error) {
	if file, _ := cmd.Flags().GetString("diff-file"); file != "" {
		var data []byte
		var err error
		if file == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(file)
		}
		if err != nil {
			return "", fmt.Errorf("failed to read diff: %w", err)
		}
		return string(data), nil
	}

	dir, _ := cmd.Flags().GetString("path")
	staged, _ := cmd.Flags().GetBool("staged")
	return gitDiff(cmd.Context(), dir, staged)
}

// gitDiff runs git in dir and returns the unified diff against HEAD
func gitDiff(ctx context.Context, dir string, staged bool) (string, error) {
	args := []string{"diff", "--no-color", "--no-ext-diff"}
	if staged {
		args = append(args, "--cached")
	} else {
		args = append(args, "HEAD")
	}
	c := exec.CommandContext(ctx, "git", args...)
	c.Dir = dir
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("git diff failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
