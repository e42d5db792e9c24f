// Package benchmark measures the instrumentation overhead of Push/Pop.
package benchmark

import (
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/perfgraph/pkg/config"
	"github.com/danpilch/perfgraph/pkg/graph"
	"github.com/danpilch/perfgraph/pkg/output"
	"github.com/danpilch/perfgraph/pkg/registry"
)

// Options configures a benchmark run.
type Options struct {
	Iterations int
	Warmup     int
	// Ops is the number of push/pop pairs timed per iteration.
	Ops        int
	Logger     *logrus.Logger
}

// DefaultOptions returns sensible benchmark defaults.
func DefaultOptions() Options {
	return Options{
		Iterations: 20,
		Warmup:     3,
		Ops:        10000,
	}
}

// Scenario is one recorder configuration to benchmark.
type Scenario struct {
	Name        string
	Configure   func(*config.Config)
	Coordinator bool
	// LiveMessage is registered on the timed section so it feeds the live printer.
	LiveMessage string
}

// Scenarios returns the standard overhead scenarios.
func Scenarios() []Scenario {
	return []Scenario{
		{Name: "inactive", Configure: func(c *config.Config) { c.Active = false; c.LivePrintEnabled = false }},
		{Name: "timing", Configure: func(c *config.Config) { c.LivePrintEnabled = false }},
		{Name: "timing+memory", Configure: func(c *config.Config) { c.LivePrintEnabled = false; c.TrackMemory = true }},
		{Name: "live-print", Coordinator: true, LiveMessage: "Benchmarking", Configure: func(c *config.Config) { c.LivePrintTimeLimit = time.Hour }},
	}
}

// Result holds benchmark results for a single scenario.
type Result struct {
	Scenario  string
	// Latencies are per push/pop pair, sorted.
	Latencies []time.Duration
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	StdDevNS  float64
	// Trend is a sparkline of the latencies in iteration order.
	Trend     string
}

// Overhead holds the allocations made while benchmarking.
type Overhead struct {
	AllocBytes uint64
	AllocCount uint64
	GCPauses   uint32
}

var (
	bmTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	bmHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	bmDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Run benchmarks each scenario with the given options.
func Run(scenarios []Scenario, opts Options) []Result {
	if opts.Ops < 1 {
		opts.Ops = 1
	}
	var results []Result
	trends := output.NewSparklineTracker(opts.Iterations)

	for _, sc := range scenarios {
		cfg := config.Default()
		if sc.Configure != nil {
			sc.Configure(&cfg)
		}
		reg := registry.New()
		rec := graph.New(reg, graph.Options{
			Config:      cfg,
			Coordinator: sc.Coordinator,
			Logger:      opts.Logger,
			LiveOutput:  io.Discard,
		})
		id := reg.Register("benchmark::"+sc.Name, 1, sc.LiveMessage, false)

		// Warmup
		for i := 0; i < opts.Warmup; i++ {
			pushPop(rec, id, opts.Ops)
		}

		latencies := make([]time.Duration, opts.Iterations)
		values := make([]float64, opts.Iterations)
		for i := 0; i < opts.Iterations; i++ {
			start := time.Now()
			pushPop(rec, id, opts.Ops)
			latencies[i] = time.Since(start) / time.Duration(opts.Ops)
			values[i] = float64(latencies[i].Nanoseconds())
			trends.Record(sc.Name, values[i])
		}
		rec.Close()

		// Sort latencies for percentile calculation
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		results = append(results, Result{
			Scenario:  sc.Name,
			Latencies: latencies,
			P50:       percentile(latencies, 0.50),
			P95:       percentile(latencies, 0.95),
			P99:       percentile(latencies, 0.99),
			StdDevNS:  stddev(values),
			Trend:     trends.Sparkline(sc.Name),
		})
	}

	return results
}

func pushPop(rec *graph.Recorder, id registry.SectionID, n int) {
	for i := 0; i < n; i++ {
		rec.Push(id)
		rec.Pop()
	}
}

// MeasureOverhead runs fn and returns the allocations it made.
func MeasureOverhead(fn func()) Overhead {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	fn()
	runtime.ReadMemStats(&after)

	return Overhead{
		AllocBytes: after.TotalAlloc - before.TotalAlloc,
		AllocCount: after.Mallocs - before.Mallocs,
		GCPauses:   after.NumGC - before.NumGC,
	}
}

// RenderResults outputs styled benchmark results.
func RenderResults(w io.Writer, results []Result, overhead Overhead) {
	fmt.Fprintln(w, bmTitle.Render("Push/Pop Overhead"))
	fmt.Fprintln(w, bmDim.Render(strings.Repeat("═", 70)))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s %s %s %s %s %s\n",
		bmHeader.Render("SCENARIO           "),
		bmHeader.Render("P50        "),
		bmHeader.Render("P95        "),
		bmHeader.Render("P99        "),
		bmHeader.Render("STDDEV (ns)"),
		bmHeader.Render("TREND     "))
	fmt.Fprintln(w, "  "+bmDim.Render(strings.Repeat("─", 80)))

	for _, r := range results {
		fmt.Fprintf(w, "  %-20s %-12v %-12v %-12v %-13.1f %s\n",
			r.Scenario, r.P50, r.P95, r.P99, r.StdDevNS, r.Trend)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, bmTitle.Render("Benchmark Allocations"))
	fmt.Fprintln(w, bmDim.Render(strings.Repeat("─", 40)))
	fmt.Fprintf(w, "  Memory allocated: %s\n", lipgloss.NewStyle().Bold(true).Render(formatBytes(overhead.AllocBytes)))
	fmt.Fprintf(w, "  Allocations:      %s\n", lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%d", overhead.AllocCount)))
	fmt.Fprintf(w, "  GC pauses:        %s\n", lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%d", overhead.GCPauses)))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum, sumSq float64
	for _, v := range values {
		sum += v
		sumSq += v * v
	}
	n := float64(len(values))
	mean := sum / n
	variance := (sumSq / n) - (mean * mean)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
