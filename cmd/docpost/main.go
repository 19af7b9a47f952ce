package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/einsums/docpost/internal/config"
	"github.com/einsums/docpost/internal/log"
	"github.com/einsums/docpost/internal/rewrite"
	"github.com/einsums/docpost/internal/transform"
)

const (
	exitOK    = 0
	exitIO    = 1
	exitUsage = 2
)

type globalOptions struct {
	Verbose    int
	ConfigPath string
	Plugins    []string
	Journal    string
}

// env is what every command needs after flags and config are resolved.
type env struct {
	cfg      *config.Config
	registry *transform.Registry
	logger   *log.Logger
	journal  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "docpost: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var cfgErr *rewrite.ConfigurationError
	if errors.As(err, &cfgErr) {
		return exitUsage
	}
	return exitIO
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	rootOpts := &globalOptions{}
	var keepGoing bool
	var atomic bool
	root := &cobra.Command{
		Use:   "docpost <mode> <file>...",
		Short: "Post-process generated documentation files in place",
		Long: `docpost reads each file, applies the transform registered for <mode>
and overwrites the file with the result. The built-in "html" mode leaves
Sphinx HTML output unchanged; more modes can be declared in the config
file or loaded from plugins.`,
		Args:          modeAndFiles,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts, stderr)
			if err != nil {
				return err
			}
			opts := rewrite.Options{
				Mode:            args[0],
				Files:           args[1:],
				Registry:        e.registry,
				ContinueOnError: e.cfg.ContinueOnError(),
				Atomic:          e.cfg.AtomicWrites(),
				Logger:          e.logger,
			}
			if cmd.Flags().Changed("keep-going") {
				opts.ContinueOnError = keepGoing
			}
			if cmd.Flags().Changed("atomic") {
				opts.Atomic = atomic
			}
			report, runErr := rewrite.Run(cmd.Context(), opts)
			if report != nil && e.journal != "" {
				recordRun(cmd.Context(), e, report, opts.ContinueOnError, runErr)
			}
			return runErr
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &rewrite.ConfigurationError{Reason: "invalid flags", Err: err}
	})

	root.PersistentFlags().CountVarP(&rootOpts.Verbose, "verbose", "v", "increase logging (-v info, -vv debug)")
	root.PersistentFlags().StringVar(&rootOpts.ConfigPath, "config", "", "configuration file (yaml, json or jsonc)")
	root.PersistentFlags().StringSliceVar(&rootOpts.Plugins, "plugin", nil, "plugin .so path or directory (repeatable)")
	root.PersistentFlags().StringVar(&rootOpts.Journal, "journal", "", "sqlite journal recording every run")
	root.Flags().BoolVar(&keepGoing, "keep-going", false, "continue with the remaining files after a failure")
	root.Flags().BoolVar(&atomic, "atomic", true, "write through a temporary file and rename")

	root.AddCommand(checkCmd(rootOpts, stdout, stderr))
	root.AddCommand(modesCmd(rootOpts, stdout, stderr))
	root.AddCommand(historyCmd(rootOpts, stdout, stderr))
	return root
}

func modeAndFiles(cmd *cobra.Command, args []string) error {
	switch len(args) {
	case 0:
		return &rewrite.ConfigurationError{Reason: "missing mode and file arguments"}
	case 1:
		return &rewrite.ConfigurationError{Mode: args[0], Reason: "at least one file is required"}
	}
	return nil
}

// setup loads config and plugins and builds the mode registry. Every
// failure here happens before any file is opened.
func setup(opts *globalOptions, stderr io.Writer) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, &rewrite.ConfigurationError{Reason: "load config", Err: err}
	}
	logger := log.New(log.FromVerbosity(opts.Verbose), stderr)
	plugins := append(append([]string{}, cfg.Plugins...), opts.Plugins...)
	if err := transform.LoadPlugins(plugins); err != nil {
		return nil, &rewrite.ConfigurationError{Reason: "load plugins", Err: err}
	}
	reg := transform.NewRegistry()
	if err := reg.AddConfigModes(cfg); err != nil {
		return nil, &rewrite.ConfigurationError{Reason: "config modes", Err: err}
	}
	journal := cfg.Journal
	if opts.Journal != "" {
		journal = opts.Journal
	}
	logger.Debugf("modes: %v", reg.Modes())
	return &env{cfg: cfg, registry: reg, logger: logger, journal: journal}, nil
}
