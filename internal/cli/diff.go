// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sam-fredrickson/keyrecon/internal/format"
)

func newDiffCommand(rt *runtime) *cobra.Command {
	var (
		runID     string
		exitCode  bool
		summary   bool
		outFormat format.Format
	)

	cmd := &cobra.Command{
		Use:   "diff BENCHMARK TEST",
		Short: "Show what an update would change",
		Long: `Compares TEST with BENCHMARK and prints one line per decision:

  [+] key = value (branch)        key added
  [-] key (was value, branch)     key deleted
  [!] key: old ==> new (branch)   value reconciled

Neither file is modified.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := rt.load(args[0], args[1], runID)
			if err != nil {
				return err
			}
			res, err := j.reconciler.Result(j.bench, j.test)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if summary {
				f, err := rt.outputFormat(format.YAML)
				if err != nil {
					return err
				}
				data, err := f.Encode(res.Summary)
				if err != nil {
					return fmt.Errorf("failed to marshal summary as %s: %w", f, err)
				}
				if _, err := out.Write(data); err != nil {
					return err
				}
			} else {
				for _, c := range res.Changes {
					if _, err := fmt.Fprintln(out, c); err != nil {
						return err
					}
				}
			}

			if exitCode && !res.IsEmpty() {
				return ErrDifferences
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "id", "", "run id for log correlation (default a random UUID)")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "exit with status 1 when the documents differ")
	cmd.Flags().BoolVar(&summary, "summary", false, "print the change summary document instead of the change list")
	cmd.Flags().Var(&outFormat, "format", "summary format [json, yaml, toml] (default yaml)")
	return cmd
}
