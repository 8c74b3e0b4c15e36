package combine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingPartial is the sentinel wrapped by MissingPartialOutputError.
var ErrMissingPartial = errors.New("missing partial output")

// MissingPartialOutputError lists the jobs whose partial outputs could not
// be found. Nothing is merged when it is returned.
type MissingPartialOutputError struct {
	NJobs   int
	Missing []int    // job indices, ascending
	Paths   []string // expected locations, parallel to Missing
}

func (e *MissingPartialOutputError) Error() string {
	idx := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		idx[i] = fmt.Sprint(m)
	}
	msg := fmt.Sprintf("missing partial outputs for %d of %d jobs (iJob %s)",
		len(e.Missing), e.NJobs, strings.Join(idx, ", "))
	if len(e.Paths) > 0 {
		msg += ": " + strings.Join(e.Paths, ", ")
	}
	return msg
}

func (e *MissingPartialOutputError) Unwrap() error { return ErrMissingPartial }
