package baseline

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/danpilch/perfgraph/pkg/graph"
)

// Severity indicates the magnitude of a metric drift.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityMajor    Severity = "major"
	SeverityRegress  Severity = "regression"
)

// Compared lists the statistics checked for every section.
var Compared = []graph.TimeKind{graph.Total, graph.Self, graph.TotalAvg}

// Comparison holds the drift analysis for a single section statistic.
type Comparison struct {
	Section     string
	Kind        graph.TimeKind
	BaselineVal float64
	CurrentVal  float64
	DeltaPct    float64
	Severity    Severity
}

var (
	blTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	blHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	blDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	blOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	blWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	blErr    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	blMinor  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// value extracts one statistic from a summary.
func value(s graph.SectionSummary, kind graph.TimeKind) float64 {
	switch kind {
	case graph.Self:
		return s.Self
	case graph.TotalAvg:
		if s.Calls == 0 {
			return 0
		}
		return s.Total / float64(s.Calls)
	default:
		return s.Total
	}
}

// Compare matches sections by name and calculates drift. Sections missing
// from either side are skipped.
func Compare(baseline *Baseline, current []graph.SectionSummary) []Comparison {
	baselineMap := make(map[string]graph.SectionSummary)
	for _, s := range baseline.Sections {
		baselineMap[s.Name] = s
	}

	var comparisons []Comparison
	for _, cur := range current {
		base, ok := baselineMap[cur.Name]
		if !ok || cur.Calls == 0 {
			continue
		}

		for _, kind := range Compared {
			b, c := value(base, kind), value(cur, kind)

			var deltaPct float64
			if b != 0 {
				deltaPct = ((c - b) / math.Abs(b)) * 100
			} else if c != 0 {
				deltaPct = 100
			}

			comparisons = append(comparisons, Comparison{
				Section:     cur.Name,
				Kind:        kind,
				BaselineVal: b,
				CurrentVal:  c,
				DeltaPct:    deltaPct,
				Severity:    classifySeverity(deltaPct),
			})
		}
	}

	return comparisons
}

func classifySeverity(deltaPct float64) Severity {
	absDelta := math.Abs(deltaPct)
	if absDelta < 5 {
		return SeverityNone
	}
	if absDelta < 15 {
		return SeverityMinor
	}
	if absDelta < 30 {
		return SeverityModerate
	}
	if deltaPct > 0 {
		return SeverityRegress
	}
	return SeverityMajor
}

// Regressions counts comparisons that slowed down past the moderate band.
func Regressions(comparisons []Comparison) int {
	n := 0
	for _, c := range comparisons {
		if c.Severity == SeverityRegress {
			n++
		}
	}
	return n
}

// RenderComparison outputs a styled comparison table.
func RenderComparison(w io.Writer, baseline *Baseline, comparisons []Comparison) {
	fmt.Fprintln(w, blTitle.Render("Baseline Comparison"))
	fmt.Fprintln(w, blDim.Render(strings.Repeat("═", 90)))
	fmt.Fprintf(w, "Comparing against %s (from %s)\n\n",
		lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%q", baseline.Name)),
		blDim.Render(baseline.Timestamp.Format("2006-01-02 15:04:05")))

	fmt.Fprintf(w, "  %s %s %s %s %s %s\n",
		blHeader.Render("SECTION                 "),
		blHeader.Render("STAT          "),
		blHeader.Render("BASELINE  "),
		blHeader.Render("CURRENT   "),
		blHeader.Render("DELTA    "),
		blHeader.Render("SEVERITY  "))
	fmt.Fprintln(w, "  "+blDim.Render(strings.Repeat("─", 90)))

	for _, c := range comparisons {
		deltaStr := fmt.Sprintf("%+.1f%%", c.DeltaPct)
		var sevStr string
		switch c.Severity {
		case SeverityRegress:
			sevStr = blErr.Render("REGRESSION")
		case SeverityMajor:
			sevStr = blOK.Render("FASTER")
		case SeverityModerate:
			sevStr = blWarn.Render("moderate")
		case SeverityMinor:
			sevStr = blMinor.Render("minor")
		default:
			sevStr = blOK.Render("none")
		}

		fmt.Fprintf(w, "  %-25s %-15s %-12.4f %-12.4f %-10s %s\n",
			c.Section, c.Kind, c.BaselineVal, c.CurrentVal, deltaStr, sevStr)
	}

	fmt.Fprintln(w)
	if n := Regressions(comparisons); n > 0 {
		fmt.Fprintf(w, "  %s\n", blErr.Render(fmt.Sprintf("%d potential regressions detected.", n)))
	} else {
		fmt.Fprintf(w, "  %s\n", blOK.Render("No significant regressions detected."))
	}
}
