// Package slicing decorates configurations so that a single computation can
// run piecewise over overlapping slices of an axis.
package slicing

import (
	"fmt"
	"io"
	"sync"

	"github.com/dusk-indust/paircorr/internal/binning"
	"github.com/dusk-indust/paircorr/internal/config"
)

// Option configures a Z decorator.
type Option func(*Z)

// WithStrictPadding fails slice computation when overlap padding would
// reach past the axis instead of capping it.
func WithStrictPadding() Option {
	return func(z *Z) { z.strict = true }
}

// Z wraps a configuration and restricts its z binning to one slice. All
// methods other than the z-axis ones are delegated to the wrapped value.
type Z struct {
	config.Configuration

	axis   config.ZAxis
	iSlice *int
	strict bool

	once   sync.Once
	slices []binning.Slice
	err    error
}

// Compile-time checks.
var (
	_ config.Configuration = (*Z)(nil)
	_ config.ZAxis         = (*Z)(nil)
	_ config.Wrapper       = (*Z)(nil)
)

// NewZ composes z slicing onto base. iSlice selects the slice and may be
// nil; that is only an error once the sliced binning is requested. NewZ
// fails with a *config.TypeError if base does not bin the z axis.
func NewZ(base config.Configuration, iSlice *int, opts ...Option) (*Z, error) {
	if base == nil {
		return nil, &config.TypeError{Kind: "<nil>", Capability: "config.Configuration"}
	}
	axis, ok := config.As[config.ZAxis](base)
	if !ok {
		return nil, &config.TypeError{Kind: base.Name(), Capability: "config.ZAxis"}
	}
	z := &Z{Configuration: base, axis: axis}
	if iSlice != nil {
		i := *iSlice
		z.iSlice = &i
	}
	for _, opt := range opts {
		opt(z)
	}
	return z, nil
}

// Unwrap returns the wrapped configuration.
func (z *Z) Unwrap() config.Configuration { return z.Configuration }

// ZBreaks returns the slice breaks: the wrapped configuration's own, or the
// edges of its full z binning.
func (z *Z) ZBreaks() ([]float64, error) {
	if br, ok := config.As[config.ZBreaker](z.Configuration); ok {
		if breaks := br.ZBreaks(); len(breaks) > 0 {
			return breaks, nil
		}
	}
	b, err := z.axis.BinningZ()
	if err != nil {
		return nil, err
	}
	return []float64{b.Lo, b.Hi}, nil
}

// ZMaxBinWidths returns one maximum bin width per slice: the wrapped
// configuration's own, or its full binning's width for every slice.
func (z *Z) ZMaxBinWidths() ([]float64, error) {
	if br, ok := config.As[config.ZBreaker](z.Configuration); ok {
		if widths := br.ZMaxBinWidths(); len(widths) > 0 {
			return widths, nil
		}
	}
	b, err := z.axis.BinningZ()
	if err != nil {
		return nil, err
	}
	breaks, err := z.ZBreaks()
	if err != nil {
		return nil, err
	}
	widths := make([]float64, max(len(breaks)-1, 1))
	for i := range widths {
		widths[i] = 1 / b.InvBinWidth()
	}
	return widths, nil
}

// Slices returns every overlap-padded slice. They are computed on first use
// and the same result is returned for the lifetime of z.
func (z *Z) Slices() ([]binning.Slice, error) {
	z.once.Do(func() {
		z.slices, z.err = z.computeSlices()
	})
	return z.slices, z.err
}

func (z *Z) computeSlices() ([]binning.Slice, error) {
	breaks, err := z.ZBreaks()
	if err != nil {
		return nil, err
	}
	widths, err := z.ZMaxBinWidths()
	if err != nil {
		return nil, err
	}
	if len(breaks) < 2 {
		return nil, fmt.Errorf("z slicing needs at least two breaks, got %d", len(breaks))
	}
	var opts []binning.Option
	if z.strict {
		opts = append(opts, binning.WithStrictPadding())
	}
	slices, err := binning.OverlapBinnings(z.axis.MaxDeltaZ(), breaks[0], breaks[1:], widths, opts...)
	if err != nil {
		return nil, fmt.Errorf("z slicing: %w", err)
	}
	if _, _, err := binning.Tile(slices); err != nil {
		return nil, fmt.Errorf("z slicing: %w", err)
	}
	return slices, nil
}

// ISliceZ returns the selected slice index, or a *SliceIndexError if none
// was given or it is out of range.
func (z *Z) ISliceZ() (int, error) {
	slices, err := z.Slices()
	if err != nil {
		return 0, err
	}
	if z.iSlice == nil || *z.iSlice < 0 || *z.iSlice >= len(slices) {
		return 0, &SliceIndexError{Axis: "z", Requested: z.iSlice, NSlices: len(slices)}
	}
	return *z.iSlice, nil
}

// Slice returns the selected slice.
func (z *Z) Slice() (binning.Slice, error) {
	i, err := z.ISliceZ()
	if err != nil {
		return binning.Slice{}, err
	}
	return z.slices[i], nil
}

// BinningZ returns the selected slice's padded binning.
func (z *Z) BinningZ() (binning.Binning, error) {
	s, err := z.Slice()
	return s.Binning, err
}

// NOverlapZ returns the selected slice's padding bin counts.
func (z *Z) NOverlapZ() (binning.Overlap, error) {
	s, err := z.Slice()
	return s.Overlap, err
}

func (z *Z) MaxDeltaZ() float64 { return z.axis.MaxDeltaZ() }

// Suffixes appends the slice tag, e.g. "z2", to the wrapped suffixes.
func (z *Z) Suffixes() []string {
	suffixes := append([]string(nil), z.Configuration.Suffixes()...)
	if z.iSlice != nil {
		suffixes = append(suffixes, fmt.Sprintf("z%d", *z.iSlice))
	}
	return suffixes
}

// Info writes the wrapped description followed, when a slice is selected,
// by a line describing it.
func (z *Z) Info(w io.Writer) error {
	if err := z.Configuration.Info(w); err != nil {
		return err
	}
	if z.iSlice == nil {
		return nil
	}
	s, err := z.Slice()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Index %d of %d slices in z, %d bins on [%f, %f]\n",
		*z.iSlice, len(z.slices), s.Binning.Bins, s.Binning.Lo, s.Binning.Hi)
	return err
}
