// File: cmd/logs.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/hpcloud/tail"
	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/uxpilot/internal/observability"
)

func newLogsCmd() *cobra.Command {
	var (
		runID  string
		file   string
		follow bool
	)

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the JSON application log, optionally for a single run",
		Long:  "Reads logger.log_file (or --file) and prints its records. With --run only records carrying that run_id are printed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Logger().LogFile
			}
			if file == "" {
				return fmt.Errorf("no log file configured (hint: set logger.log_file or pass --file)")
			}
			path, err := homedir.Expand(file)
			if err != nil {
				return fmt.Errorf("failed to expand log file path: %w", err)
			}
			return printLog(cmd.Context(), cmd.OutOrStdout(), path, runID, follow)
		},
	}

	f := logsCmd.Flags()
	f.StringVar(&runID, "run", "", "only print records of this run")
	f.StringVar(&file, "file", "", "log file to read (default logger.log_file)")
	f.BoolVarP(&follow, "follow", "f", false, "keep printing records as they are written")
	return logsCmd
}

// printLog copies matching records from path to w until the end of the file,
// or until ctx is done when follow is set.
func printLog(ctx context.Context, w io.Writer, path, runID string, follow bool) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() {
		_ = t.Stop()
		if follow {
			t.Cleanup()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				return fmt.Errorf("failed to read log file: %w", line.Err)
			}
			if !matchesRun(line.Text, runID) {
				continue
			}
			if _, err := fmt.Fprintln(w, line.Text); err != nil {
				return err
			}
		}
	}
}

// matchesRun reports whether a JSON record belongs to runID. An empty runID
// matches every line.
func matchesRun(text, runID string) bool {
	if runID == "" {
		return true
	}
	return jsoniter.Get([]byte(text), observability.FieldRunID).ToString() == runID
}
