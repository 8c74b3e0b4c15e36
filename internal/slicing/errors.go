package slicing

import (
	"errors"
	"fmt"
)

// ErrSliceIndex is the sentinel wrapped by SliceIndexError.
var ErrSliceIndex = errors.New("invalid slice index")

// SliceIndexError reports a missing or out-of-range slice selection.
type SliceIndexError struct {
	Axis      string
	Requested *int
	NSlices   int
}

func (e *SliceIndexError) Error() string {
	if e.Requested == nil {
		return fmt.Sprintf("please specify --iSlice%s (%d slices configured)", upper(e.Axis), e.NSlices)
	}
	return fmt.Sprintf("--iSlice%s %d out of range (%d slices configured, valid indices 0..%d)",
		upper(e.Axis), *e.Requested, e.NSlices, e.NSlices-1)
}

func (e *SliceIndexError) Unwrap() error { return ErrSliceIndex }

func upper(axis string) string {
	if axis == "" {
		return axis
	}
	b := []byte(axis)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
