package dispatch

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dusk-indust/paircorr/internal/job"
	"github.com/dusk-indust/paircorr/internal/logging"
)

// ProgressStatus is the state of one job within a dispatch.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// ProgressEvent reports a job changing state. Elapsed and Err are set once
// the job has finished.
type ProgressEvent struct {
	Job     job.Descriptor
	Status  ProgressStatus
	Elapsed time.Duration
	Err     error
}

func (ev ProgressEvent) finished() bool {
	return ev.Status == ProgressComplete || ev.Status == ProgressFailed
}

// Progress tallies the events of one dispatch and logs a line per event,
// tagged with the job. Observe is safe for concurrent use, so it can be
// handed to NewPool directly.
type Progress struct {
	log   *slog.Logger
	total int

	mu       sync.Mutex
	finished int
	failed   int
}

// NewProgress tracks a dispatch of total jobs.
func NewProgress(log *slog.Logger, total int) *Progress {
	if log == nil {
		log = logging.Discard()
	}
	return &Progress{log: log, total: total}
}

// Observe records ev and logs it.
func (p *Progress) Observe(ev ProgressEvent) {
	p.mu.Lock()
	if ev.finished() {
		p.finished++
		if ev.Status == ProgressFailed {
			p.failed++
		}
	}
	line := FormatProgress(ev, p.finished, p.total)
	p.mu.Unlock()

	l := logging.WithJob(p.log, ev.Job)
	switch ev.Status {
	case ProgressPending:
		l.Debug(line)
	case ProgressFailed:
		l.Error(line, "error", ev.Err)
	default:
		l.Info(line)
	}
}

// Counts returns how many jobs have finished and how many of those failed.
func (p *Progress) Counts() (finished, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished, p.failed
}

// FormatProgress renders ev as a status line. Lines for finished jobs carry
// the elapsed time and the running tally of finished jobs.
func FormatProgress(ev ProgressEvent, finished, total int) string {
	elapsed := ev.Elapsed.Round(time.Millisecond)
	switch ev.Status {
	case ProgressPending:
		return fmt.Sprintf("%s queued", ev.Job)
	case ProgressWorking:
		return fmt.Sprintf("%s running", ev.Job)
	case ProgressComplete:
		return fmt.Sprintf("%s complete in %s [%d/%d finished]", ev.Job, elapsed, finished, total)
	case ProgressFailed:
		return fmt.Sprintf("%s failed after %s: %v [%d/%d finished]", ev.Job, elapsed, ev.Err, finished, total)
	default:
		return fmt.Sprintf("%s in unknown state %q", ev.Job, ev.Status)
	}
}
