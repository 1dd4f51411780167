package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/quantengine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeBars escribe una serie que sube y luego baja para forzar cruces.
func writeBars(t *testing.T, dir string, n int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("time,open,high,low,close,volume\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range n {
		c := 100 + float64(i)
		if i > n/2 {
			c = 100 + float64(n-i)
		}
		fmt.Fprintf(&sb, "%s,%.2f,%.2f,%.2f,%.2f,100\n", start.Add(time.Duration(i)*time.Hour).Format(time.RFC3339), c, c+1, c-1, c)
	}
	path := filepath.Join(dir, "eurusd_h1.csv")
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&logs)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestBacktestCommand_SavesRun(t *testing.T) {
	dir := t.TempDir()
	csv := writeBars(t, dir, 40)
	db := filepath.Join(dir, "qe.db")
	t.Setenv("QE_STORAGE_DSN", db)

	out, err := execute(t, "backtest", "--config=", "--file", csv, "--fast", "3", "--slow", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "BACKTEST")
	assert.Contains(t, out, "SMA 3/8 on close")

	out, err = execute(t, "runs", "--config=")
	require.NoError(t, err)
	assert.Contains(t, out, "eurusd_h1.csv")
	assert.Contains(t, out, "3/8")
}

func TestBacktestCommand_InvalidWindows(t *testing.T) {
	csv := writeBars(t, t.TempDir(), 20)
	_, err := execute(t, "backtest", "--config=", "--file", csv, "--fast", "9", "--slow", "3", "--no-save")
	assert.Error(t, err)
}

func TestBacktestCommand_MissingFileFlag(t *testing.T) {
	_, err := execute(t, "backtest", "--config=")
	assert.Error(t, err)
}

func TestSweepCommand(t *testing.T) {
	csv := writeBars(t, t.TempDir(), 60)
	out, err := execute(t, "sweep", "--config=", "--file", csv,
		"--fast-grid", "2,3,5", "--slow-grid", "8,13", "--workers", "2", "--top", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "SWEEP (top 3)")
}

func TestLiveCommand_PaperReplay(t *testing.T) {
	dir := t.TempDir()
	csv := writeBars(t, dir, 30)
	db := filepath.Join(dir, "qe.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
strategy:
  fast_window: 3
  slow_window: 8
  min_confidence: 0.0001
broker:
  paper_mode: true
  replay:
    files:
      EURUSD: %s
    point: 0.01
    warmup: 8
storage:
  dsn: %s
`, csv, db)), 0o644))

	out, err := execute(t, "live", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "cycle_complete")
	assert.Contains(t, out, "paper equity 10000.00")

	out, err = execute(t, "report", "--config", cfgPath, "--days", "100000")
	require.NoError(t, err)
	assert.Contains(t, out, "TRADE REPORT")
}

func TestReportCommand_BadMode(t *testing.T) {
	t.Setenv("QE_STORAGE_DSN", ":memory:")
	_, err := execute(t, "report", "--config=", "--mode", "demo")
	assert.Error(t, err)
}

func TestConfigCommand_MasksToken(t *testing.T) {
	t.Setenv("QE_BRIDGE_TOKEN", "super-secret")
	out, err := execute(t, "config", "--config=")
	require.NoError(t, err)
	assert.Contains(t, out, "fast_window: 20")
	assert.NotContains(t, out, "super-secret")
	assert.Contains(t, out, "***")
}

func TestBacktestCommand_UnknownStrategy(t *testing.T) {
	dir := t.TempDir()
	csv := writeBars(t, dir, 20)
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("strategy:\n  name: rsi\n"), 0o644))

	_, err := execute(t, "backtest", "--config", cfgPath, "--file", csv, "--no-save")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
