package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/paircorr/internal/job"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{"debug": LevelDebug, "": LevelInfo, "INFO": LevelInfo, "warning": LevelWarn, "error": LevelError}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestNew_JSONWithRunAndJob(t *testing.T) {
	var buf bytes.Buffer
	l := WithJob(WithRun(New(&buf, LevelInfo, FormatJSON), "run-1"), job.Descriptor{NJobs: 4, IJob: 2})
	l.Info("partial written", "path", "out/x.json.xz")
	l.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "partial written", rec["msg"])
	assert.Equal(t, "run-1", rec["run_id"])
	assert.Equal(t, float64(2), rec["job"])
	assert.Equal(t, float64(4), rec["n_jobs"])

	_, err := time.Parse(time.RFC3339, rec["time"].(string))
	assert.NoError(t, err, "timestamps are RFC3339")
}

func TestNew_TextLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn, FormatText)
	l.Info("quiet")
	l.Warn("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}
