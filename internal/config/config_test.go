package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, "info", c.Log.Level)
	assert.False(t, c.Log.JSON)
	assert.Equal(t, "canon.db", c.Store.Path)
	assert.Equal(t, 720*time.Hour, c.Guard.StaleAfter)
	assert.Equal(t, OracleRules, c.Oracle.Kind)
	assert.Equal(t, 2*time.Second, c.Oracle.Timeout)
	assert.Equal(t, BreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.6,
		MinRequests:  3,
	}, c.Oracle.Breaker)
	assert.Equal(t, "canon", c.Metrics.Namespace)
}

func TestLoadMissingFileIsDefault(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.cue"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	c, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadFull(t *testing.T) {
	c, err := Load("testdata/full.cue")
	require.NoError(t, err)

	assert.Equal(t, LogConfig{Level: "debug", JSON: true}, c.Log)
	assert.Equal(t, "/var/lib/canon/canon.db", c.Store.Path)
	assert.Equal(t, 168*time.Hour, c.Guard.StaleAfter)
	assert.Equal(t, OracleConfig{
		Kind:     OracleWasm,
		WasmPath: "solver.wasm",
		Timeout:  500 * time.Millisecond,
		Breaker: BreakerConfig{
			MaxRequests:  2,
			Interval:     30 * time.Second,
			Timeout:      10 * time.Second,
			FailureRatio: 0.5,
			MinRequests:  4,
		},
	}, c.Oracle)
	assert.Equal(t, "canon_prod", c.Metrics.Namespace)

	s := c.OracleSettings()
	assert.Equal(t, 500*time.Millisecond, s.Timeout)
	assert.Equal(t, 10*time.Second, s.OpenTimeout)
	assert.Equal(t, uint32(4), s.MinRequests)

	lo := c.LoggingOptions()
	assert.Equal(t, "debug", lo.Level)
	assert.True(t, lo.JSON)
}

func TestLoadJSONKeepsDefaults(t *testing.T) {
	c, err := Load("testdata/partial.json")
	require.NoError(t, err)

	assert.Equal(t, "warn", c.Log.Level)
	assert.Equal(t, OracleNone, c.Oracle.Kind)
	assert.Equal(t, 2*time.Second, c.Oracle.Timeout)
	assert.Equal(t, "canon.db", c.Store.Path)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown field", `log: colour: true`, "colour"},
		{"bad level", `log: level: "verbose"`, "level"},
		{"ratio out of range", `oracle: breaker: failure_ratio: 1.5`, "failure_ratio"},
		{"bad namespace", `metrics: namespace: "canon-prod"`, "namespace"},
		{"bad duration", `guard: stale_after: "30 days"`, "guard.stale_after"},
		{"negative duration", `oracle: timeout: "-1s"`, "oracle.timeout"},
		{"wasm without path", `oracle: kind: "wasm"`, "wasm_path"},
		{"syntax", `log: {`, "test.cue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "test.cue")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadUnreadable(t *testing.T) {
	dir := t.TempDir()
	// A directory cannot be read as a file.
	_, err := Load(dir)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalid))
	assert.False(t, errors.Is(err, os.ErrNotExist))
}
