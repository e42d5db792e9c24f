package debug

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/danpilch/perfgraph/pkg/graph"
)

// DumpRawTree outputs every node of the call tree with its unscaled
// accumulators: nanoseconds, call count and memory bytes.
func DumpRawTree(w io.Writer, rec *graph.Recorder) {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	fmt.Fprintln(w)
	fmt.Fprintln(w, title.Render("Raw Call Tree Dump"))
	fmt.Fprintln(w, dim.Render(strings.Repeat("═", 85)))
	fmt.Fprintf(w, "  %s %s %s %s %s\n",
		header.Render("PATH                                "),
		header.Render("CALLS     "),
		header.Render("TOTAL NS          "),
		header.Render("SELF NS           "),
		header.Render("MEMORY B  "))
	fmt.Fprintln(w, "  "+dim.Render(strings.Repeat("─", 85)))

	rec.Walk(func(path []string, n *graph.Node) {
		fmt.Fprintf(w, "  %-37s %-11d %-19d %-19d %d\n",
			strings.Join(path, "/"), n.NumCalls(),
			n.TotalTime().Nanoseconds(), n.SelfTime().Nanoseconds(), n.TotalMemory())
	})
}
