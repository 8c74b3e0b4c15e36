package slicing

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/paircorr/internal/binning"
	"github.com/dusk-indust/paircorr/internal/config"
)

// stubConfig is a minimal base configuration binning z.
type stubConfig struct {
	name     string
	binning  binning.Binning
	maxDelta float64
	breaks   []float64
	widths   []float64
	calls    int
}

func (s *stubConfig) Name() string { return s.name }
func (s *stubConfig) OutputDir() string { return "out" }
func (s *stubConfig) Suffixes() []string { return []string{"base"} }
func (s *stubConfig) Info(w io.Writer) error {
	_, err := fmt.Fprintf(w, "stub %s\n", s.name)
	return err
}
func (s *stubConfig) BinningZ() (binning.Binning, error) {
	s.calls++
	return s.binning, nil
}
func (s *stubConfig) MaxDeltaZ() float64 { return s.maxDelta }
func (s *stubConfig) ZBreaks() []float64 { return s.breaks }
func (s *stubConfig) ZMaxBinWidths() []float64 { return s.widths }

// plainConfig lacks the z-axis capability.
type plainConfig struct{}

func (plainConfig) Name() string { return "plain" }
func (plainConfig) OutputDir() string { return "" }
func (plainConfig) Suffixes() []string { return nil }
func (plainConfig) Info(io.Writer) error { return nil }

func threeSliceBase() *stubConfig {
	return &stubConfig{
		name:     "demo",
		binning:  binning.Binning{Bins: 6, Lo: 0, Hi: 3},
		maxDelta: 0.2,
		breaks:   []float64{0, 1, 2, 3},
		widths:   []float64{0.5, 0.5, 0.5},
	}
}

func intp(i int) *int { return &i }

func TestNewZ_RejectsConfigurationWithoutZAxis(t *testing.T) {
	_, err := NewZ(plainConfig{}, intp(0))
	var terr *config.TypeError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "plain", terr.Kind)
	assert.Equal(t, "config.ZAxis", terr.Capability)

	_, err = NewZ(nil, nil)
	assert.ErrorIs(t, err, config.ErrNotConfiguration)
}

func TestZ_SelectedSlice(t *testing.T) {
	z, err := NewZ(threeSliceBase(), intp(1))
	require.NoError(t, err)

	slices, err := z.Slices()
	require.NoError(t, err)
	require.Len(t, slices, 3)

	b, err := z.BinningZ()
	require.NoError(t, err)
	assert.Equal(t, 4, b.Bins)
	assert.InDelta(t, 0.5, b.Lo, 1e-9)
	assert.InDelta(t, 2.5, b.Hi, 1e-9)

	ov, err := z.NOverlapZ()
	require.NoError(t, err)
	assert.Equal(t, binning.Overlap{Low: 1, High: 1}, ov)

	assert.Equal(t, []string{"base", "z1"}, z.Suffixes())
	assert.Equal(t, 0.2, z.MaxDeltaZ())
	assert.Equal(t, "demo", z.Name(), "unrelated methods delegate to the base")
}

func TestZ_SliceIndexOutOfRange(t *testing.T) {
	z, err := NewZ(threeSliceBase(), intp(5))
	require.NoError(t, err, "index is checked lazily")

	_, err = z.BinningZ()
	var serr *SliceIndexError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 3, serr.NSlices)
	assert.Contains(t, err.Error(), "3 slices configured")
	assert.ErrorIs(t, err, ErrSliceIndex)

	_, err = NewZ(threeSliceBase(), intp(-1))
	require.NoError(t, err)
}

func TestZ_SliceIndexMissing(t *testing.T) {
	z, err := NewZ(threeSliceBase(), nil)
	require.NoError(t, err)

	_, err = z.NOverlapZ()
	require.ErrorIs(t, err, ErrSliceIndex)
	assert.Contains(t, err.Error(), "please specify --iSliceZ")
	assert.Equal(t, []string{"base"}, z.Suffixes())
}

func TestZ_SlicesComputedOnce(t *testing.T) {
	base := &stubConfig{binning: binning.Binning{Bins: 10, Lo: 0, Hi: 1}, maxDelta: 0.05}
	z, err := NewZ(base, intp(0))
	require.NoError(t, err)

	a, err := z.Slices()
	require.NoError(t, err)
	calls := base.calls
	b, err := z.Slices()
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Same(t, &a[0], &b[0], "second call must return the cached slices")
	assert.Equal(t, calls, base.calls, "base binning must not be consulted again")
}

func TestZ_DefaultsToSingleSliceOfBaseBinning(t *testing.T) {
	base := &stubConfig{binning: binning.Binning{Bins: 60, Lo: 0, Hi: 3}, maxDelta: 0.4}
	z, err := NewZ(base, intp(0))
	require.NoError(t, err)

	breaks, err := z.ZBreaks()
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3}, breaks)

	widths, err := z.ZMaxBinWidths()
	require.NoError(t, err)
	require.Len(t, widths, 1)
	assert.InDelta(t, 0.05, widths[0], 1e-12)

	b, err := z.BinningZ()
	require.NoError(t, err)
	assert.Equal(t, 60, b.Bins)
	assert.InDelta(t, 0.0, b.Lo, 1e-12)
	assert.InDelta(t, 3.0, b.Hi, 1e-12)
}

func TestZ_BreaksWithoutWidthsUseBaseWidth(t *testing.T) {
	base := &stubConfig{
		binning:  binning.Binning{Bins: 30, Lo: 0, Hi: 3},
		maxDelta: 0.1,
		breaks:   []float64{0, 1.5, 3},
	}
	z, err := NewZ(base, intp(1))
	require.NoError(t, err)

	widths, err := z.ZMaxBinWidths()
	require.NoError(t, err)
	assert.Len(t, widths, 2)

	ov, err := z.NOverlapZ()
	require.NoError(t, err)
	assert.Equal(t, binning.Overlap{Low: 1, High: 0}, ov)
}

func TestZ_StrictPaddingSurfacesInfeasibility(t *testing.T) {
	base := &stubConfig{
		binning:  binning.Binning{Bins: 10, Lo: 0, Hi: 1},
		maxDelta: 0.3,
		breaks:   []float64{0, 0.1, 1},
		widths:   []float64{0.05, 0.1},
	}
	z, err := NewZ(base, intp(1), WithStrictPadding())
	require.NoError(t, err)

	_, err = z.BinningZ()
	assert.ErrorIs(t, err, binning.ErrPaddingInfeasible)
}

func TestZ_Info(t *testing.T) {
	z, err := NewZ(threeSliceBase(), intp(2))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, z.Info(&buf))
	assert.Equal(t, "stub demo\nIndex 2 of 3 slices in z, 3 bins on [1.500000, 3.000000]\n", buf.String())

	unsliced, err := NewZ(threeSliceBase(), nil)
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, unsliced.Info(&buf))
	assert.Equal(t, "stub demo\n", buf.String())
}

func TestZ_UnwrapExposesBaseCapabilities(t *testing.T) {
	base := threeSliceBase()
	z, err := NewZ(base, intp(0))
	require.NoError(t, err)

	assert.Same(t, base, z.Unwrap())

	axis, ok := config.As[config.ZAxis](z)
	require.True(t, ok)
	assert.Same(t, z, axis, "the decorator answers z queries itself")
}
