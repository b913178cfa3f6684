// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/sam-fredrickson/keyrecon"
	"github.com/sam-fredrickson/keyrecon/internal/format"
)

const lockRetryDelay = 50 * time.Millisecond

func newUpdateCommand(rt *runtime) *cobra.Command {
	var (
		outPath     string
		inPlace     bool
		runID       string
		lockTimeout time.Duration
		outFormat   format.Format
	)

	cmd := &cobra.Command{
		Use:   "update BENCHMARK TEST",
		Short: "Reconcile TEST with BENCHMARK and write the result",
		Example: `  # print the updated document
  keyrecon update -p profile.yaml benchmark.yaml test.yaml

  # rewrite the test document, serialised against concurrent updates
  keyrecon update -p profile.yaml --in-place benchmark.yaml test.yaml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			benchPath, testPath := args[0], args[1]

			if inPlace {
				lock, err := lockFile(cmd.Context(), testPath, lockTimeout)
				if err != nil {
					return err
				}
				defer func() { _ = lock.Unlock() }()
			}

			j, err := rt.load(benchPath, testPath, runID)
			if err != nil {
				return err
			}
			res, err := j.reconciler.Result(j.bench, j.test)
			if err != nil {
				return err
			}
			keyrecon.Apply(j.test, res)

			f, err := rt.outputFormat(j.testFormat)
			if err != nil {
				return err
			}
			data, err := f.Encode(j.test)
			if err != nil {
				return fmt.Errorf("failed to marshal result as %s: %w", f, err)
			}

			switch {
			case inPlace:
				if res.IsEmpty() {
					rt.log.Info().Str("test", testPath).Msg("already up to date")
					return nil
				}
				return replaceFile(testPath, data)
			case outPath != "":
				return os.WriteFile(outPath, data, 0o644)
			default:
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&outPath, "out", "o", "", "output file path (defaults to stdout)")
	flags.BoolVarP(&inPlace, "in-place", "i", false, "rewrite TEST instead of printing the result")
	flags.StringVar(&runID, "id", "", "run id for log correlation (default a random UUID)")
	flags.DurationVar(&lockTimeout, "lock-timeout", 10*time.Second, "how long to wait for the lock on TEST")
	flags.Var(&outFormat, "format", "output format [json, yaml, toml] (defaults to TEST's format)")
	cmd.MarkFlagsMutuallyExclusive("out", "in-place")
	return cmd
}

// lockFile takes the cross-process lock guarding path, PATH.lock.
func lockFile(ctx context.Context, path string, timeout time.Duration) (*flock.Flock, error) {
	lock := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock %s", lock.Path())
	}
	return lock, nil
}

// replaceFile atomically replaces path with data, keeping its permissions.
func replaceFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
