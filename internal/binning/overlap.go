package binning

import (
	"fmt"
	"math"
)

// Overlap counts the padding bins on each side of a slice. Padding bins
// exist only to catch pairs reaching across the nominal boundary and are
// dropped when slice outputs are merged.
type Overlap struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// Slice is one overlap-padded sub-range of an axis.
type Slice struct {
	Binning Binning `json:"binning"`
	Overlap Overlap `json:"overlap"`
}

// Nominal returns the slice binning with the padding bins stripped.
func (s Slice) Nominal() Binning {
	w := s.Binning.Width()
	return Binning{
		Bins: s.Binning.Bins - s.Overlap.Low - s.Overlap.High,
		Lo:   s.Binning.Lo + float64(s.Overlap.Low)*w,
		Hi:   s.Binning.Hi - float64(s.Overlap.High)*w,
	}
}

// Masked reports whether bin i of the padded binning is a padding bin.
func (s Slice) Masked(i int) bool {
	return i < s.Overlap.Low || i >= s.Binning.Bins-s.Overlap.High
}

// Option configures OverlapBinnings.
type Option func(*overlapOptions)

type overlapOptions struct {
	strict bool
}

// WithStrictPadding makes OverlapBinnings fail with a PaddingInfeasibleError
// instead of capping padding at the global axis extent.
func WithStrictPadding() Option {
	return func(o *overlapOptions) { o.strict = true }
}

// OverlapBinnings slices the axis [first, rest[len(rest)-1]) at the given
// breaks. Range i spans [rest[i-1], rest[i]) (with rest[-1] = first) and is
// binned with bins no wider than maxWidths[i]. Interior sides are padded by
// the fewest whole bins covering maxDelta; the global extremes are never
// padded.
//
// Padding may reach across several neighbouring ranges. It is capped at the
// global axis extent, rounded up to a whole bin, since no data lies beyond
// it. With WithStrictPadding the cap is an error instead.
func OverlapBinnings(maxDelta, first float64, rest, maxWidths []float64, opts ...Option) ([]Slice, error) {
	var o overlapOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := validate(maxDelta, first, rest, maxWidths); err != nil {
		return nil, err
	}

	axisLo, axisHi := first, rest[len(rest)-1]
	slices := make([]Slice, len(rest))
	a := first
	for i, b := range rest {
		n := wholeBins(b-a, maxWidths[i])
		d := (b - a) / float64(n)

		var ov Overlap
		var err error
		if i > 0 {
			ov.Low, err = padding(i, "low", maxDelta, d, a-axisLo, o.strict)
			if err != nil {
				return nil, err
			}
		}
		if i < len(rest)-1 {
			ov.High, err = padding(i, "high", maxDelta, d, axisHi-b, o.strict)
			if err != nil {
				return nil, err
			}
		}

		slices[i] = Slice{
			Binning: Binning{
				Bins: n + ov.Low + ov.High,
				Lo:   a - float64(ov.Low)*d,
				Hi:   b + float64(ov.High)*d,
			},
			Overlap: ov,
		}
		a = b
	}
	return slices, nil
}

func padding(rng int, side string, maxDelta, width, room float64, strict bool) (int, error) {
	need := wholeBins(maxDelta, width)
	avail := wholeBins(room, width)
	if need <= avail {
		return need, nil
	}
	if strict {
		return 0, &PaddingInfeasibleError{
			Range:     rng,
			Side:      side,
			MaxDelta:  maxDelta,
			Needed:    need,
			Available: avail,
		}
	}
	return avail, nil
}

func validate(maxDelta, first float64, rest, maxWidths []float64) error {
	if math.IsNaN(maxDelta) || maxDelta < 0 {
		return &InputError{Field: "maxDelta", Message: fmt.Sprintf("must be non-negative, got %g", maxDelta)}
	}
	if len(rest) == 0 {
		return &InputError{Field: "breaks", Message: "need at least two breaks"}
	}
	if len(rest) != len(maxWidths) {
		return &InputError{
			Field:   "maxWidths",
			Message: fmt.Sprintf("have %d widths for %d ranges", len(maxWidths), len(rest)),
		}
	}
	prev := first
	for i, b := range rest {
		if !(b > prev) {
			return &InputError{
				Field:   "breaks",
				Message: fmt.Sprintf("must be strictly increasing, break %d (%g) follows %g", i+1, b, prev),
			}
		}
		prev = b
	}
	for i, w := range maxWidths {
		if !(w > 0) {
			return &InputError{Field: "maxWidths", Message: fmt.Sprintf("width %d must be positive, got %g", i, w)}
		}
	}
	return nil
}

// Tile checks that the nominal ranges of slices are contiguous and returns
// the axis range they cover.
func Tile(slices []Slice) (lo, hi float64, err error) {
	if len(slices) == 0 {
		return 0, 0, &InputError{Field: "slices", Message: "empty"}
	}
	lo = slices[0].Nominal().Lo
	hi = slices[0].Nominal().Hi
	for i := 1; i < len(slices); i++ {
		nom := slices[i].Nominal()
		if math.Abs(nom.Lo-hi) > tol*math.Max(1, math.Abs(hi)) {
			return 0, 0, &InputError{
				Field:   "slices",
				Message: fmt.Sprintf("slice %d starts at %g but slice %d ends at %g", i, nom.Lo, i-1, hi),
			}
		}
		hi = nom.Hi
	}
	return lo, hi, nil
}
