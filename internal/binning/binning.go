// Package binning describes uniform one-dimensional binnings and computes
// overlap-padded slicings of an axis.
package binning

import (
	"fmt"
	"math"
)

// tol is the tolerance, in bins, used when converting a span into a whole
// number of bins, so that 0.3/0.1 counts as 3 bins and not 4, and when
// locating a value on a bin edge.
const tol = 1e-9

// Binning is a uniform binning of the half-open interval [Lo, Hi).
type Binning struct {
	Bins int     `json:"bins"`
	Lo   float64 `json:"lo"`
	Hi   float64 `json:"hi"`
}

// Validate reports whether b describes at least one bin over a non-empty range.
func (b Binning) Validate() error {
	if b.Bins < 1 {
		return &InputError{Field: "bins", Message: fmt.Sprintf("must be positive, got %d", b.Bins)}
	}
	if !(b.Hi > b.Lo) {
		return &InputError{Field: "range", Message: fmt.Sprintf("high edge %g must exceed low edge %g", b.Hi, b.Lo)}
	}
	return nil
}

// Width returns the width of a single bin.
func (b Binning) Width() float64 { return (b.Hi - b.Lo) / float64(b.Bins) }

// InvBinWidth returns the number of bins per unit length.
func (b Binning) InvBinWidth() float64 { return float64(b.Bins) / (b.Hi - b.Lo) }

// Index returns the bin holding x, or -1 if x lies outside [Lo, Hi).
// A value within tol of a bin's low edge belongs to that bin, so an edge
// falls in the same bin however Lo was rounded.
func (b Binning) Index(x float64) int {
	if x < b.Lo || x >= b.Hi {
		return -1
	}
	i := int(math.Floor((x-b.Lo)*b.InvBinWidth() + tol))
	if i >= b.Bins {
		i = b.Bins - 1
	}
	return i
}

func (b Binning) String() string {
	return fmt.Sprintf("%d bins on [%f, %f]", b.Bins, b.Lo, b.Hi)
}

// wholeBins returns the smallest bin count covering span with bins no wider
// than width. It never returns less than zero.
func wholeBins(span, width float64) int {
	if span <= 0 {
		return 0
	}
	n := int(math.Ceil(span/width - tol))
	if n < 1 {
		n = 1
	}
	return n
}
