package binning

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is the sentinel wrapped by InputError.
	ErrInvalidInput = errors.New("invalid binning input")
	// ErrPaddingInfeasible is the sentinel wrapped by PaddingInfeasibleError.
	ErrPaddingInfeasible = errors.New("overlap padding infeasible")
)

// InputError reports a malformed break or width sequence.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// PaddingInfeasibleError is returned under strict padding when the
// interaction distance reaches past the global axis extent.
type PaddingInfeasibleError struct {
	Range     int    // nominal range index
	Side      string // "low" or "high"
	MaxDelta  float64
	Needed    int // bins required to cover MaxDelta
	Available int // bins that fit before the global edge
}

func (e *PaddingInfeasibleError) Error() string {
	return fmt.Sprintf("range %d %s side: covering %g needs %d bins but only %d fit inside the axis",
		e.Range, e.Side, e.MaxDelta, e.Needed, e.Available)
}

func (e *PaddingInfeasibleError) Unwrap() error { return ErrPaddingInfeasible }
