package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/einsums/docpost/internal/config"
	"github.com/einsums/docpost/internal/inspect"
	"github.com/einsums/docpost/internal/journal"
	"github.com/einsums/docpost/internal/plan"
	"github.com/einsums/docpost/internal/rewrite"
)

func checkCmd(rootOpts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "check <mode> <file>...",
		Short: "Report which files a mode would change, without writing",
		Args:  modeAndFiles,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, stderr)
			if err != nil {
				return err
			}
			_, err = inspect.Run(e.registry, args[0], args[1:], stdout, e.logger)
			return err
		},
	}
}

func modesCmd(rootOpts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List registered modes and their transforms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, stderr)
			if err != nil {
				return err
			}
			return plan.Run(e.registry, stdout, e.logger)
		},
	}
}

func historyCmd(rootOpts *globalOptions, stdout, stderr io.Writer) *cobra.Command {
	var limit int
	var runID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show runs recorded in the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, stderr)
			if err != nil {
				return err
			}
			if e.journal == "" {
				return &rewrite.ConfigurationError{Reason: "no journal configured (use --journal or journal: in config)"}
			}
			j, err := journal.Open(cmd.Context(), e.journal)
			if err != nil {
				return err
			}
			defer j.Close()
			if runID != "" {
				return printFiles(cmd.Context(), j, runID, stdout)
			}
			return printRuns(cmd.Context(), j, limit, stdout)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "show the files of one run")
	return cmd
}

func printRuns(ctx context.Context, j *journal.Journal, limit int, out io.Writer) error {
	runs, err := j.Runs(ctx, limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %-14s  %-8s %-6s files=%d changed=%d failed=%d (%s)\n",
			r.ID, humanize.Time(r.StartedAt), r.Mode, r.Status, r.Files, r.Changed, r.Failed, r.Policy)
	}
	return nil
}

func printFiles(ctx context.Context, j *journal.Journal, runID string, out io.Writer) error {
	files, err := j.Files(ctx, runID)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("run %s: no files recorded", runID)
	}
	for _, f := range files {
		line := fmt.Sprintf("%-9s %s (%s -> %s)", f.Status, f.Path,
			humanize.Bytes(uint64(f.BytesBefore)), humanize.Bytes(uint64(f.BytesAfter)))
		if f.Error != "" {
			line += ": " + f.Error
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

// recordRun never changes the outcome of the rewrite it records.
func recordRun(ctx context.Context, e *env, report *rewrite.Report, keepGoing bool, runErr error) {
	policy := config.OnErrorAbort
	if keepGoing {
		policy = config.OnErrorContinue
	}
	j, err := journal.Open(context.WithoutCancel(ctx), e.journal)
	if err != nil {
		e.logger.Warnf("journal: %v", err)
		return
	}
	defer j.Close()
	id, err := j.Record(context.WithoutCancel(ctx), report, policy, runErr)
	if err != nil {
		e.logger.Warnf("journal: %v", err)
		return
	}
	e.logger.Infof("recorded run %s in %s", id, e.journal)
}
