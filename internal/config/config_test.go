package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skipbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader(WithEnvPrefix("SKIPBENCH_TEST_DEFAULTS_")).Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
list:
  max_level: 8
  block_size: 128
workload:
  workers: 2
  mix:
    insert: 1
    remove: 0
    find: 0
    upsert: 0
log:
  format: json
`)
	cfg, err := NewLoader(WithConfigFile(path), WithEnvPrefix("SKIPBENCH_TEST_FILE_")).Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.List.MaxLevel)
	assert.Equal(t, 128, cfg.List.BlockSize)
	assert.Equal(t, 2, cfg.Workload.Workers)
	assert.Equal(t, Mix{Insert: 1}, cfg.Workload.Mix)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched keys keep their defaults
	assert.Equal(t, Default().Workload.KeySpace, cfg.Workload.KeySpace)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := NewLoader(WithConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))).Load(nil)
	require.Error(t, err)
}

func TestLoadPriority(t *testing.T) {
	path := writeFile(t, `
list:
  max_level: 8
workload:
  workers: 2
  key_space: 100
metrics:
  addr: ":9000"
`)
	t.Setenv("SKIPBENCH_PRIO_WORKLOAD__WORKERS", "6")
	t.Setenv("SKIPBENCH_PRIO_WORKLOAD__KEY_SPACE", "500")
	t.Setenv("SKIPBENCH_PRIO_LOG__LEVEL", "debug")

	l := NewLoader(WithConfigFile(path), WithEnvPrefix("SKIPBENCH_PRIO_"))
	cfg, err := l.Load(map[string]any{
		"workload.key_space": 1000,
		"metrics.addr":       ":9100",
	})
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.List.MaxLevel, "file only")
	assert.Equal(t, 6, cfg.Workload.Workers, "env over file")
	assert.Equal(t, 1000, cfg.Workload.KeySpace, "flag over env")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Contains(t, l.Keys(), "workload.workers")
}

func TestLoadRejectsInvalidWorkload(t *testing.T) {
	cases := []struct {
		name  string
		flags map[string]any
		err   error
	}{
		{"workers", map[string]any{"workload.workers": 0}, ErrInvalidWorkers},
		{"ops", map[string]any{"workload.ops_per_worker": -1}, ErrInvalidOps},
		{"keys", map[string]any{"workload.key_space": 0}, ErrInvalidKeys},
		{"negative mix", map[string]any{"workload.mix.find": -5}, ErrInvalidMix},
		{"empty mix", map[string]any{
			"workload.mix.insert": 0, "workload.mix.remove": 0,
			"workload.mix.find": 0, "workload.mix.upsert": 0,
		}, ErrInvalidMix},
		{"rate", map[string]any{"workload.rate": -1.5}, ErrInvalidRate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLoader(WithEnvPrefix("SKIPBENCH_TEST_INVALID_")).Load(tc.flags)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestListOptions(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.ListOptions(), 5)
	cfg.Workload.Seed = 0
	assert.Len(t, cfg.ListOptions(), 4)
}
