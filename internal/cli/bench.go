package cli

import (
	"github.com/spf13/cobra"

	"github.com/danpilch/perfgraph/pkg/benchmark"
)

func newBenchCmd(a *app) *cobra.Command {
	opts := benchmark.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure the overhead of instrumenting a section",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Logger = a.log
			var results []benchmark.Result
			overhead := benchmark.MeasureOverhead(func() {
				results = benchmark.Run(benchmark.Scenarios(), opts)
			})
			benchmark.RenderResults(cmd.OutOrStdout(), results, overhead)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&opts.Iterations, "iterations", opts.Iterations, "Timed iterations per scenario")
	fs.IntVar(&opts.Warmup, "warmup", opts.Warmup, "Untimed warmup iterations per scenario")
	fs.IntVar(&opts.Ops, "ops", opts.Ops, "Push/pop pairs per iteration")
	return cmd
}
