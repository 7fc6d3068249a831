package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"crmextract/internal/config"
	"crmextract/internal/logging"
)

// usageError marks errors that should exit with code 2.
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

func usageErrorf(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// usageArgs wraps a cobra argument validator so its failures are usage errors.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// run is split out from main so we can unit test the command without spawning
// an OS process.
//
// It returns a Unix-style exit code:
//   - 0 for success
//   - 2 for usage/config errors
//   - 1 for operational/runtime errors
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	defer a.close()

	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "error: %v\n", err)

	var ue usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		return 2
	}
	return 1
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "crmextract",
		Short:         "Extract CRM records from rendered pages into a local store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file path (yaml or json)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log_level from config")
	root.PersistentFlags().StringVar(&a.selectorsPath, "selectors", "", "override selectors file from config")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	root.AddCommand(
		newExtractCommand(a),
		newDirCommand(a),
		newServeCommand(a),
		newTriggerCommand(a),
		newRecordsCommand(a),
		newStatusCommand(a),
		newDeleteCommand(a),
		newClearCommand(a),
		newExportCommand(a),
		newSelectCommand(a),
		newPlanCommand(a),
	)
	return root
}

// setup loads configuration and installs the logger. Config problems are
// usage errors.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return usageError{err}
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.selectorsPath != "" {
		cfg.Selectors = a.selectorsPath
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return usageError{errors.Join(errs...)}
	}

	restore, err := logging.Install(cfg.LogLevel)
	if err != nil {
		return usageError{err}
	}
	a.onClose(restore)
	a.cfg = cfg
	return nil
}
