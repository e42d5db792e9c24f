package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danpilch/perfgraph/pkg/baseline"
	"github.com/danpilch/perfgraph/pkg/checkpoint"
	"github.com/danpilch/perfgraph/pkg/graph"
	"github.com/danpilch/perfgraph/pkg/output"
	"github.com/danpilch/perfgraph/pkg/registry"
)

var tableFormats = []string{string(output.FormatTable), string(output.FormatJSON), string(output.FormatTSV)}

// workload is a synthetic time-stepping simulation instrumented with sections.
type workload struct {
	rec  *graph.Recorder
	unit time.Duration

	execute, timestep, assemble, solve, linear, write registry.SectionID

	// retained keeps assembled buffers alive so memory growth is visible.
	retained [][]byte
}

func newWorkload(rec *graph.Recorder, unit time.Duration) *workload {
	scope := registry.NewScope(rec.Registry(), "Simulation")
	return &workload{
		rec:      rec,
		unit:     unit,
		execute:  scope.RegisterLive("execute", 1, "Executing", false),
		timestep: scope.Register("timestep", 1),
		assemble: scope.RegisterLive("assemble", 2, "Assembling system", true),
		solve:    scope.RegisterLive("solve", 1, "Solving nonlinear system", false),
		linear:   scope.Register("linear_solve", 2),
		write:    scope.RegisterLive("output", 1, "Writing output", true),
	}
}

func (w *workload) run(steps int) {
	defer w.rec.Begin(w.execute).End()
	for i := 0; i < steps; i++ {
		w.step(i)
	}
}

func (w *workload) step(i int) {
	defer w.rec.Begin(w.timestep).End()
	w.assembleSystem()
	w.solveSystem()
	if i%2 == 0 {
		w.writeOutput()
	}
}

func (w *workload) assembleSystem() {
	defer w.rec.Begin(w.assemble).End()
	buf := make([]byte, 1<<20)
	for i := range buf {
		buf[i] = byte(i)
	}
	w.retained = append(w.retained, buf)
	time.Sleep(w.unit)
}

func (w *workload) solveSystem() {
	defer w.rec.Begin(w.solve).End()
	for j := 0; j < 3; j++ {
		func() {
			defer w.rec.Begin(w.linear).End()
			time.Sleep(w.unit)
		}()
	}
	time.Sleep(w.unit / 2)
}

func (w *workload) writeOutput() {
	defer w.rec.Begin(w.write).End()
	time.Sleep(w.unit / 4)
}

func newDemoCmd(a *app) *cobra.Command {
	var (
		steps    int
		unit     time.Duration
		level    uint
		heaviest int
		format   string
		resume   string
		save     string
		saveBase string
		jsonPath string
		dirs     storeDirs
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run an instrumented synthetic simulation and report on it",
		Long: `Run a small time-stepping simulation instrumented with nested sections.

Long sections are announced live while they run; afterwards the call tree,
heaviest branch and heaviest sections are printed.

Examples:
  # Slow steps so the live printer announces them
  PERFGRAPH_LIVE_PRINT_TIME_LIMIT=200ms perfgraph demo --unit 100ms

  # Continue accumulating on top of a previous run and save the result
  perfgraph demo --resume run1 --save run2

  # Record a baseline for later comparison
  perfgraph demo --save-baseline nightly`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format, tableFormats); err != nil {
				return err
			}
			if !cmd.Flags().Changed("level") {
				level = a.cfg.PrintLevel
			}
			out := cmd.OutOrStdout()

			rec := a.newRecorder(a.cfg, out)
			store := checkpoint.NewStore(dirs.checkpoints, a.log)
			if resume != "" {
				if _, err := store.Load(resume, rec); err != nil {
					rec.Close()
					return err
				}
			}

			newWorkload(rec, unit).run(steps)
			rec.Close()

			if err := report(out, rec, output.ParseFormat(format), level, heaviest); err != nil {
				return err
			}

			if jsonPath != "" {
				if err := writeJSONFile(jsonPath, rec); err != nil {
					return err
				}
			}
			if save != "" {
				err := a.timed("checkpoint", "save", func() error {
					_, err := store.Save(save, rec)
					return err
				})
				if err != nil {
					return err
				}
			}
			if saveBase != "" {
				if err := baseline.NewBaseline(saveBase, rec).Save(dirs.baselines); err != nil {
					return err
				}
				a.log.WithField("name", saveBase).Info("Saved baseline")
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&steps, "steps", 5, "Number of simulated time steps")
	fs.DurationVar(&unit, "unit", 20*time.Millisecond, "Base duration of one unit of simulated work")
	fs.UintVar(&level, "level", 1, "Deepest section level to print (default from config print_level)")
	fs.IntVar(&heaviest, "heaviest", 5, "Number of heaviest sections to list")
	addFormatFlag(fs, &format, string(output.FormatTable), tableFormats)
	fs.StringVar(&resume, "resume", "", "Load this checkpoint before running")
	fs.StringVar(&save, "save", "", "Save the call tree as this checkpoint")
	fs.StringVar(&saveBase, "save-baseline", "", "Save section summaries as this baseline")
	fs.StringVar(&jsonPath, "json", "", "Write the call tree as JSON to this file")
	addStoreFlags(fs, &dirs)
	return cmd
}

// report prints the tree and, for table output, the heaviest branch and sections.
func report(w io.Writer, rec *graph.Recorder, format output.Format, level uint, heaviest int) error {
	if err := rec.PrintFormat(w, format, level); err != nil {
		return fmt.Errorf("cannot print call tree: %w", err)
	}
	if format != output.FormatTable {
		return nil
	}
	fmt.Fprintln(w)
	if err := rec.PrintHeaviestBranch(w); err != nil {
		return err
	}
	if heaviest > 0 {
		fmt.Fprintln(w)
		return rec.PrintHeaviestSections(w, heaviest)
	}
	return nil
}

func writeJSONFile(path string, rec *graph.Recorder) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %q: %w", path, err)
	}
	if err := rec.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("cannot write %q: %w", path, err)
	}
	return f.Close()
}
