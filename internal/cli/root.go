// SPDX-License-Identifier: Apache-2.0

// Package cli implements the keyrecon command line.
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sam-fredrickson/keyrecon"
	"github.com/sam-fredrickson/keyrecon/internal/config"
	"github.com/sam-fredrickson/keyrecon/internal/format"
	"github.com/sam-fredrickson/keyrecon/logging"
)

// ErrDifferences is returned by "diff --exit-code" when the documents differ.
var ErrDifferences = errors.New("documents differ")

// runtime is the state shared by all commands of one invocation.
type runtime struct {
	settings *config.Settings
	log      zerolog.Logger
	closer   io.Closer
}

// NewRootCommand builds the keyrecon command tree.
func NewRootCommand(version string) *cobra.Command {
	rt := &runtime{log: *logging.Default()}

	root := &cobra.Command{
		Use:   "keyrecon",
		Short: "Reconcile persisted documents with their benchmark",
		Long: `keyrecon compares a benchmark document (the canonical template) with a
test document (a persisted copy users may have changed) and brings the test
document up to date while keeping user changes the policy allows.

Documents may be YAML, JSON or TOML; the format is detected by extension.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return rt.closer.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default ./.keyrecon.yaml)")
	flags.StringP("profile", "p", "", "reconciliation profile (YAML)")
	flags.String("log-level", "", "log level [trace, debug, info, warn, error]")
	flags.String("log-format", "", "log format [auto, json, console]")
	flags.String("log-output", "", "log output [stderr, stdout, discard, or a file]")
	flags.Bool("no-color", false, "disable colored console logs")
	flags.Bool("strict-order", false, "compare lists element by element")

	root.AddCommand(
		newDiffCommand(rt),
		newUpdateCommand(rt),
		newVersionCommand(version),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(version string, args []string) int {
	root := NewRootCommand(version)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if !errors.Is(err, ErrDifferences) {
			logging.Default().Error().Err(err).Msg("command failed")
		}
		return 1
	}
	return 0
}

func (rt *runtime) init(cmd *cobra.Command) error {
	s, err := config.Load(".", cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	rt.settings = s
	rt.log, rt.closer = logging.NewLoggerFromConfig(&logging.Config{
		Level:   s.Log.Level,
		Format:  s.Log.Format,
		Output:  s.Log.Output,
		NoColor: s.Log.NoColor,
	})
	logging.SetDefault(rt.log)
	if s.ConfigFile != "" {
		rt.log.Debug().Str("config", s.ConfigFile).Msg("config loaded")
	}
	return nil
}

// job is one benchmark/test pair ready to be reconciled.
type job struct {
	bench      keyrecon.Map
	test       keyrecon.Map
	testFormat format.Format
	reconciler *keyrecon.Reconciler
}

// load reads both documents and builds a reconciler from the profile.
func (rt *runtime) load(benchPath, testPath, runID string) (*job, error) {
	bench, _, err := format.ReadFile(benchPath)
	if err != nil {
		return nil, err
	}
	test, testFormat, err := format.ReadFile(testPath)
	if err != nil {
		return nil, err
	}

	profile, err := config.LoadProfile(rt.settings.Profile)
	if err != nil {
		return nil, err
	}
	opts, err := profile.Options(test)
	if err != nil {
		return nil, err
	}
	opts.StrictOrder = opts.StrictOrder || rt.settings.StrictOrder
	if runID == "" {
		runID = uuid.New().String()
	}
	opts.DiffID = runID
	opts.Logger = logging.Zerolog(rt.log)

	r, err := keyrecon.NewReconciler(opts)
	if err != nil {
		return nil, err
	}
	rt.log.Debug().
		Str(keyrecon.FieldDiffID, runID).
		Str("benchmark", benchPath).
		Str("test", testPath).
		Msg("documents loaded")
	return &job{bench: bench, test: test, testFormat: testFormat, reconciler: r}, nil
}

// outputFormat is the configured format, or fallback when none is set.
func (rt *runtime) outputFormat(fallback format.Format) (format.Format, error) {
	var f format.Format
	if err := f.Set(rt.settings.Format); err != nil {
		return "", err
	}
	if f == "" {
		f = fallback
	}
	return f, nil
}
