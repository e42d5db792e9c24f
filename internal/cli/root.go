// Package cli implements the perfgraph command line.
package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/danpilch/perfgraph/pkg/config"
	"github.com/danpilch/perfgraph/pkg/debug"
	"github.com/danpilch/perfgraph/pkg/graph"
	"github.com/danpilch/perfgraph/pkg/live"
	"github.com/danpilch/perfgraph/pkg/registry"
)

// app is the state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	pprofAddr  string
	trace      bool

	cfg    config.Config
	log    *logrus.Logger
	tracer *debug.TraceLogger

	stopPprof func()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "perfgraph",
		Short: "Hierarchical call-stack profiler",
		Long: `perfgraph records wall-clock time and resident memory for nested,
named sections of a program, aggregates them into a call tree and reports on it.

Configuration is read from an optional YAML file and PERFGRAPH_* environment
variables:

` + config.Usage(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}

	fs := root.PersistentFlags()
	fs.StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	fs.StringVar(&a.logLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error)")
	fs.StringVar(&a.pprofAddr, "pprof", "", "Serve pprof on this address, e.g. :6060")
	fs.BoolVar(&a.trace, "trace", false, "Trace live printer events and step timings to stderr")

	root.AddCommand(newDemoCmd(a))
	root.AddCommand(newReportCmd(a))
	root.AddCommand(newBenchCmd(a))
	root.AddCommand(newCompareCmd(a))
	root.AddCommand(newListCmd(a))
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) setup(stderr io.Writer) error {
	level, err := logrus.ParseLevel(a.logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	a.log = logrus.New()
	a.log.SetOutput(stderr)
	a.log.SetLevel(level)

	a.cfg, err = config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.log.WithFields(logrus.Fields{
		"config":        a.configPath,
		"active":        a.cfg.Active,
		"live_print":    a.cfg.LivePrintEnabled,
		"track_memory":  a.cfg.TrackMemory,
		"max_depth":     a.cfg.MaxStackDepth,
		"event_log_cap": a.cfg.MaxEventLogSize,
	}).Debug("Loaded configuration")

	if a.trace {
		a.tracer = debug.NewTraceLogger(stderr)
	}

	if a.pprofAddr != "" {
		stop, err := debug.StartPprofServer(a.pprofAddr, a.log)
		if err != nil {
			return err
		}
		a.stopPprof = stop
	}
	return nil
}

func (a *app) teardown() {
	if a.stopPprof != nil {
		a.stopPprof()
	}
}

// liveTracer returns the tracer when tracing is on. The nil check keeps a
// typed-nil pointer out of the interface.
func (a *app) liveTracer() live.Tracer {
	if a.tracer == nil {
		return nil
	}
	return a.tracer
}

// newRecorder creates a recorder over a fresh registry with the loaded config.
func (a *app) newRecorder(cfg config.Config, liveOut io.Writer) *graph.Recorder {
	return graph.New(registry.New(), graph.Options{
		Config:      cfg,
		Coordinator: true,
		Logger:      a.log,
		LiveOutput:  liveOut,
		Tracer:      a.liveTracer(),
	})
}

// timed runs fn and traces how long it took.
func (a *app) timed(component, step string, fn func() error) error {
	start := time.Now()
	err := fn()
	if a.tracer != nil {
		a.tracer.LogDuration(component, step, time.Since(start))
	}
	return err
}
