package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	scenarioDir = "../scenario/testdata/scenarios"
	goldenDir   = "../scenario/testdata/golden"
)

func TestRun_PassingScenarios(t *testing.T) {
	out, err := execute(t, t.TempDir(), "run", scenarioDir, "--golden-dir", goldenDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ ttl_expiry")
	assert.Contains(t, out, "✓ limits_and_duplicates")
	assert.Contains(t, out, "✓ sweep_and_optimize")
	assert.Contains(t, out, "Summary: 3 passed, 0 failed, 3 total")
}

func TestRun_SingleFileWithTrace(t *testing.T) {
	out, err := execute(t, t.TempDir(), "run", filepath.Join(scenarioDir, "ttl_expiry.yaml"), "--trace")
	require.NoError(t, err)

	assert.Contains(t, out, `{"pass":true,"scenario":"ttl_expiry","trace":[`)
	assert.Contains(t, out, "1 passed")
}

func TestRun_Filter(t *testing.T) {
	out, err := execute(t, t.TempDir(), "--format", "json", "run", scenarioDir, "--filter", "ttl_*")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "ttl_expiry", resp.Data.Scenarios[0].Name)
}

func TestRun_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wrong.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: wrong
description: "expects a missing key to be readable"
steps:
  - op: read
    key: nothing
    expect: {}
`), 0644))

	out, err := execute(t, dir, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "expected ok, got key_not_found")
}

func TestRun_InvalidScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: broken\nstepz: []\n"), 0644))

	out, err := execute(t, dir, "run", path)
	require.Error(t, err)
	assert.Contains(t, out, "failed to load scenario")
}

func TestRun_MissingPath(t *testing.T) {
	_, err := execute(t, t.TempDir(), "run", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_UpdateWritesGolden(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(filepath.Join(scenarioDir, "sweep_and_optimize.yaml"))
	require.NoError(t, err)
	path := filepath.Join(dir, "sweep_and_optimize.yaml")
	require.NoError(t, os.WriteFile(path, src, 0644))

	_, err = execute(t, dir, "run", path, "--update")
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(dir, "golden", "sweep_and_optimize.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(goldenDir, "sweep_and_optimize.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	// A tampered golden file fails the next run.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "sweep_and_optimize.golden"), []byte("{}"), 0644))
	out, err := execute(t, dir, "run", path)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}
