package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danpilch/perfgraph/pkg/baseline"
	"github.com/danpilch/perfgraph/pkg/checkpoint"
)

func newListCmd(a *app) *cobra.Command {
	var dirs storeDirs

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved checkpoints and baselines",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			checkpoints, err := checkpoint.NewStore(dirs.checkpoints, a.log).List()
			if err != nil {
				return fmt.Errorf("cannot list checkpoints: %w", err)
			}
			baselines, err := baseline.List(dirs.baselines)
			if err != nil {
				return fmt.Errorf("cannot list baselines: %w", err)
			}

			fmt.Fprintf(out, "Checkpoints (%s):\n", dirs.checkpoints)
			for _, name := range checkpoints {
				fmt.Fprintf(out, "  %s\n", name)
			}
			fmt.Fprintf(out, "Baselines (%s):\n", dirs.baselines)
			for _, name := range baselines {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}

	addStoreFlags(cmd.Flags(), &dirs)
	return cmd
}
