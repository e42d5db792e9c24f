package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("PERFGRAPH_LIVE_PRINT_TIME_LIMIT", "250ms")
	t.Setenv("PERFGRAPH_MAX_STACK_DEPTH", "12")
	t.Setenv("PERFGRAPH_ACTIVE", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.LivePrintTimeLimit)
	assert.Equal(t, 12, cfg.MaxStackDepth)
	assert.False(t, cfg.Active)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perfgraph.yaml")
	content := `active: true
live_print_all: true
live_print_time_limit: 2s
live_print_mem_limit: 50
max_event_log_size: 64
track_memory: true
print_level: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.LivePrintAll)
	assert.Equal(t, 2*time.Second, cfg.LivePrintTimeLimit)
	assert.InDelta(t, 50.0, cfg.LivePrintMemLimitMB, 1e-9)
	assert.Equal(t, 64, cfg.MaxEventLogSize)
	assert.Equal(t, 100, cfg.MaxStackDepth)
	assert.True(t, cfg.TrackMemory)
	assert.Equal(t, uint(3), cfg.PrintLevel)
}

func TestLoad_MissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.MaxStackDepth)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.MaxStackDepth = 0
	assert.ErrorIs(t, cfg.Validate(), ErrStackDepth)

	cfg = Default()
	cfg.MaxEventLogSize = 0
	assert.ErrorIs(t, cfg.Validate(), ErrEventLogSize)

	cfg = Default()
	cfg.LivePrintMemLimitMB = -1
	assert.ErrorIs(t, cfg.Validate(), ErrNegative)
}
