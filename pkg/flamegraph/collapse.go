// Package flamegraph exports a call tree as folded stacks and renders them
// as an SVG flame graph.
package flamegraph

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/danpilch/perfgraph/pkg/graph"
)

// Weight selects what a folded stack's value measures.
type Weight string

const (
	// WeightTime weighs each stack by self time in microseconds.
	WeightTime Weight = "time"
	// WeightMemory weighs each stack by self memory growth in KiB.
	WeightMemory Weight = "memory"
)

// Unit returns the label for values of this weight.
func (w Weight) Unit() string {
	if w == WeightMemory {
		return "KiB"
	}
	return "µs"
}

// Collapse writes the recorder's tree in folded stack format, one
// "Root;outer;inner value" line per node with a positive self value.
func Collapse(rec *graph.Recorder, w io.Writer, weight Weight) error {
	stacks := make(map[string]int64)
	rec.Walk(func(path []string, n *graph.Node) {
		var v int64
		if weight == WeightMemory {
			v = n.SelfMemory() / 1024
		} else {
			v = n.SelfTime().Microseconds()
		}
		if v <= 0 {
			return
		}
		stacks[strings.Join(path, ";")] += v
	})
	return writeCollapsed(w, stacks)
}

// ReadCollapsed parses folded stacks. Lines without a count weigh 1.
func ReadCollapsed(r io.Reader) (map[string]int64, error) {
	stacks := make(map[string]int64)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stack, count := line, int64(1)
		if idx := strings.LastIndexByte(line, ' '); idx > 0 {
			if n, err := strconv.ParseInt(line[idx+1:], 10, 64); err == nil {
				stack, count = line[:idx], n
			}
		}
		stacks[stack] += count
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read folded stacks: %w", err)
	}
	return stacks, nil
}

func writeCollapsed(w io.Writer, stacks map[string]int64) error {
	// Sort for deterministic output
	keys := make([]string, 0, len(stacks))
	for k := range stacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s %d\n", k, stacks[k]); err != nil {
			return err
		}
	}
	return nil
}
