package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danpilch/perfgraph/pkg/baseline"
)

func newCompareCmd(a *app) *cobra.Command {
	var (
		failOnRegression bool
		dirs             storeDirs
	)

	cmd := &cobra.Command{
		Use:   "compare BASELINE CHECKPOINT",
		Short: "Compare a checkpoint against a saved baseline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := baseline.Load(args[0], dirs.baselines)
			if err != nil {
				return err
			}
			rec, err := a.loadCheckpoints(dirs.checkpoints, args[1:])
			if err != nil {
				return err
			}

			comparisons := baseline.Compare(b, rec.Summaries())
			baseline.RenderComparison(cmd.OutOrStdout(), b, comparisons)

			if n := baseline.Regressions(comparisons); failOnRegression && n > 0 {
				return fmt.Errorf("%d regressions against baseline %q", n, b.Name)
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&failOnRegression, "fail-on-regression", false, "Exit non-zero when a regression is detected")
	addStoreFlags(fs, &dirs)
	return cmd
}
