package binning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinning_Index(t *testing.T) {
	b := Binning{Bins: 4, Lo: 1, Hi: 3}
	assert.Equal(t, 0, b.Index(1))
	assert.Equal(t, 1, b.Index(1.6))
	assert.Equal(t, 3, b.Index(2.999999))
	assert.Equal(t, -1, b.Index(3), "high edge is exclusive")
	assert.Equal(t, -1, b.Index(0.5))
}

func TestBinning_IndexOnRoundedEdges(t *testing.T) {
	// Padding [0.6, 0.9) by one bin below rounds the low edge to
	// 0.49999999999999994. 0.7 must still open the third bin, as it opens
	// bin 7 of the unpadded axis.
	lo, hi := 0.6, 0.9
	padded := Binning{Bins: 4, Lo: lo - (hi-lo)/3, Hi: hi}
	assert.Less(t, padded.Lo, 0.5)
	assert.Equal(t, 2, padded.Index(0.7))
	assert.Equal(t, 7, Binning{Bins: 9, Lo: 0, Hi: 0.9}.Index(0.7))
	assert.Equal(t, 2, Binning{Bins: 3, Lo: 0.1, Hi: 0.4}.Index(0.3))
	assert.Equal(t, 3, Binning{Bins: 4, Lo: 0, Hi: 1}.Index(1-1e-12))
}

func TestBinning_WidthAndInverse(t *testing.T) {
	b := Binning{Bins: 60, Lo: 0, Hi: 3}
	assert.InDelta(t, 0.05, b.Width(), eps)
	assert.InDelta(t, 20, b.InvBinWidth(), eps)
}

func TestBinning_Validate(t *testing.T) {
	assert.NoError(t, Binning{Bins: 1, Lo: 0, Hi: 1}.Validate())
	assert.ErrorIs(t, Binning{Bins: 0, Lo: 0, Hi: 1}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, Binning{Bins: 3, Lo: 1, Hi: 1}.Validate(), ErrInvalidInput)
}

func TestBinning_String(t *testing.T) {
	assert.Equal(t, "3 bins on [0.000000, 1.500000]", Binning{Bins: 3, Lo: 0, Hi: 1.5}.String())
}
