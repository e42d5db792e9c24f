package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danpilch/perfgraph/pkg/checkpoint"
	"github.com/danpilch/perfgraph/pkg/debug"
	"github.com/danpilch/perfgraph/pkg/flamegraph"
	"github.com/danpilch/perfgraph/pkg/graph"
	"github.com/danpilch/perfgraph/pkg/output"
)

var reportFormats = append(append([]string{}, tableFormats...), "tree-json", "fold", "svg", "raw")

// loadCheckpoints sums the named checkpoints into a recorder that does not
// print live or collect further timings.
func (a *app) loadCheckpoints(dir string, names []string) (*graph.Recorder, error) {
	cfg := a.cfg
	cfg.LivePrintEnabled = false
	rec := a.newRecorder(cfg, nil)
	store := checkpoint.NewStore(dir, a.log)
	for _, name := range names {
		if _, err := store.Load(name, rec); err != nil {
			rec.Close()
			return nil, err
		}
	}
	rec.Close()
	return rec, nil
}

func newReportCmd(a *app) *cobra.Command {
	var (
		level    uint
		heaviest int
		format   string
		weight   string
		title    string
		dirs     storeDirs
	)

	cmd := &cobra.Command{
		Use:   "report CHECKPOINT [CHECKPOINT...]",
		Short: "Report on saved checkpoints",
		Long: `Load one or more checkpoints, summing them, and report on the combined call tree.

Examples:
  # Table report down to level 2
  perfgraph report run1 --level 2

  # Flame graph of self time
  perfgraph report run1 -o svg > run1.svg

  # Folded stacks for external tools
  perfgraph report run1 run2 -o fold --weight memory`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format, reportFormats); err != nil {
				return err
			}
			if !cmd.Flags().Changed("level") {
				level = a.cfg.PrintLevel
			}
			w := flamegraph.Weight(weight)
			if w != flamegraph.WeightTime && w != flamegraph.WeightMemory {
				return fmt.Errorf("unsupported weight %q, must be one of: time, memory", weight)
			}

			rec, err := a.loadCheckpoints(dirs.checkpoints, args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "tree-json":
				return rec.WriteJSON(out)
			case "fold":
				return flamegraph.Collapse(rec, out, w)
			case "svg":
				opts := flamegraph.DefaultSVGOptions()
				if title != "" {
					opts.Title = title
				}
				return flamegraph.Render(rec, out, w, opts)
			case "raw":
				debug.DumpRawTree(out, rec)
				return nil
			default:
				return report(out, rec, output.ParseFormat(format), level, heaviest)
			}
		},
	}

	fs := cmd.Flags()
	fs.UintVar(&level, "level", 1, "Deepest section level to print (default from config print_level)")
	fs.IntVar(&heaviest, "heaviest", 5, "Number of heaviest sections to list")
	addFormatFlag(fs, &format, string(output.FormatTable), reportFormats)
	fs.StringVar(&weight, "weight", string(flamegraph.WeightTime), "Flame graph weight (time, memory)")
	fs.StringVar(&title, "title", "", "Flame graph title")
	addStoreFlags(fs, &dirs)
	return cmd
}
