package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/paircorr/internal/job"
	"github.com/dusk-indust/paircorr/internal/logging"
)

func TestFormatProgress(t *testing.T) {
	d := job.Descriptor{NJobs: 4, IJob: 2}
	tests := []struct {
		ev   ProgressEvent
		want string
	}{
		{ProgressEvent{Job: d, Status: ProgressPending}, "job 2/4 queued"},
		{ProgressEvent{Job: d, Status: ProgressWorking}, "job 2/4 running"},
		{ProgressEvent{Job: d, Status: ProgressComplete, Elapsed: 1234567 * time.Microsecond}, "job 2/4 complete in 1.235s [3/4 finished]"},
		{ProgressEvent{Job: d, Status: ProgressFailed, Elapsed: 40 * time.Millisecond, Err: errors.New("disk full")}, "job 2/4 failed after 40ms: disk full [3/4 finished]"},
		{ProgressEvent{Job: d, Status: "bogus"}, `job 2/4 in unknown state "bogus"`},
	}
	for _, tt := range tests {
		t.Run(string(tt.ev.Status), func(t *testing.T) {
			assert.Equal(t, tt.want, FormatProgress(tt.ev, 3, 4))
		})
	}
}

func TestProgress_CountsFinishedJobs(t *testing.T) {
	p := NewProgress(nil, 3)
	p.Observe(ProgressEvent{Job: job.Descriptor{NJobs: 3, IJob: 0}, Status: ProgressPending})
	p.Observe(ProgressEvent{Job: job.Descriptor{NJobs: 3, IJob: 0}, Status: ProgressWorking})
	p.Observe(ProgressEvent{Job: job.Descriptor{NJobs: 3, IJob: 0}, Status: ProgressComplete})
	p.Observe(ProgressEvent{Job: job.Descriptor{NJobs: 3, IJob: 1}, Status: ProgressFailed, Err: errors.New("boom")})

	finished, failed := p.Counts()
	assert.Equal(t, 2, finished)
	assert.Equal(t, 1, failed)
}

func TestProgress_LogsTaggedLines(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	log := logging.New(&lockedWriter{w: &buf, mu: &mu}, logging.LevelInfo, logging.FormatJSON)

	units := buildInline(t, descriptors(2, 0, 1), func(ctx context.Context, d job.Descriptor) error {
		if d.IJob == 1 {
			return errors.New("disk full")
		}
		return nil
	})
	p := NewProgress(log, len(units))
	_, err := NewPool(2, p.Observe).Run(context.Background(), units)
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	var failedLine map[string]any
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	for _, l := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &rec))
		assert.NotContains(t, rec["msg"], "queued", "pending lines are debug only")
		if rec["level"] == "ERROR" {
			failedLine = rec
		}
	}
	require.NotNil(t, failedLine)
	assert.Equal(t, float64(1), failedLine["job"])
	assert.Equal(t, "disk full", failedLine["error"])
	assert.Contains(t, failedLine["msg"], "job 1/2 failed after")
	assert.Len(t, lines, 4, "running and finished lines for both jobs")
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
