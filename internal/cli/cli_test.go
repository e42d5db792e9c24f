package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/perfgraph/pkg/graph"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_DemoReportCompare(t *testing.T) {
	t.Setenv("PERFGRAPH_LIVE_PRINT", "false")
	dir := t.TempDir()
	stores := []string{
		"--checkpoint-dir", filepath.Join(dir, "checkpoints"),
		"--baseline-dir", filepath.Join(dir, "baselines"),
	}
	jsonPath := filepath.Join(dir, "tree.json")

	out, err := run(t, append([]string{"demo", "--steps", "2", "--unit", "1ms",
		"--save", "run1", "--save-baseline", "base", "--json", jsonPath, "--level", "2"}, stores...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Performance Graph:")
	assert.Contains(t, out, "Simulation::linear_solve")
	assert.Contains(t, out, "Heaviest Branch:")
	assert.Contains(t, out, "Heaviest Sections:")

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var tree graph.ExportNode
	require.NoError(t, json.Unmarshal(data, &tree))
	assert.Equal(t, graph.RootSection, tree.Name)
	require.Len(t, tree.Nodes, 1)
	assert.Equal(t, "Simulation::execute", tree.Nodes[0].Name)

	out, err = run(t, append([]string{"report", "run1", "-o", "tsv", "--level", "2"}, stores...)...)
	require.NoError(t, err)
	var timestep string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Simulation::timestep") {
			timestep = line
		}
	}
	require.NotEmpty(t, timestep)
	assert.Equal(t, "2", strings.Split(timestep, "\t")[1])

	out, err = run(t, append([]string{"report", "run1", "run1", "-o", "fold"}, stores...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Root;Simulation::execute;Simulation::timestep;Simulation::solve;Simulation::linear_solve ")

	out, err = run(t, append([]string{"report", "run1", "-o", "svg"}, stores...)...)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "<?xml"))

	out, err = run(t, append([]string{"compare", "base", "run1"}, stores...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Baseline Comparison")
	assert.Contains(t, out, "Simulation::solve")

	out, err = run(t, append([]string{"list"}, stores...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "  run1\n")
	assert.Contains(t, out, "  base\n")
}

func TestCLI_Errors(t *testing.T) {
	t.Setenv("PERFGRAPH_LIVE_PRINT", "false")
	dir := t.TempDir()

	_, err := run(t, "report", "missing", "--checkpoint-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checkpoint not found")

	_, err = run(t, "demo", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")

	_, err = run(t, "--log-level", "loud", "list", "--checkpoint-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --log-level")

	_, err = run(t, "report")
	assert.Error(t, err)
}

func TestCLI_Bench(t *testing.T) {
	out, err := run(t, "bench", "--iterations", "2", "--warmup", "0", "--ops", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Push/Pop Overhead")
	assert.Contains(t, out, "timing+memory")
}
