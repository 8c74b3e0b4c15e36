package routine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dusk-indust/paircorr/internal/binning"
	"github.com/dusk-indust/paircorr/internal/catalog"
	"github.com/dusk-indust/paircorr/internal/config"
	"github.com/dusk-indust/paircorr/internal/job"
)

// NamePairs selects the pair-counting routine.
const NamePairs = "pairs"

// checkEvery is how many outer iterations pass between cancellation checks.
const checkEvery = 1024

// defaultDeltaZBins is used when neither the routine file nor the
// configuration sets the Δz binning.
const defaultDeltaZBins = 10

// PairsOptions are read from a pairs routine file.
type PairsOptions struct {
	DeltaZBins int `yaml:"deltaZBins"`
}

type deltaZBinner interface {
	DeltaZBins() int
}

// Pairs accumulates weighted pair counts on a grid of the lower object's
// z bin against the separation Δz, for 0 <= Δz < maxDeltaZ. Jobs split the
// outer loop over objects. Pairs whose lower object falls in a padding bin
// are skipped, so the nominal rows of the slices tile the unsliced grid.
type Pairs struct {
	*base
	maxDeltaZ float64
	deltaZ    binning.Binning
}

// NewPairs builds a pairs routine.
func NewPairs(cfg config.Configuration, j *job.Descriptor, raw []byte, env Env) (*Pairs, error) {
	var opts PairsOptions
	if err := decodeOptions(raw, &opts); err != nil {
		return nil, err
	}
	p := &Pairs{}
	b, err := newBase(NamePairs, cfg, j, env, p.compute)
	if err != nil {
		return nil, err
	}
	p.base = b

	axis, _ := config.As[config.ZAxis](cfg)
	p.maxDeltaZ = axis.MaxDeltaZ()
	if p.maxDeltaZ <= 0 {
		return nil, fmt.Errorf("pairs: maxDeltaZ must be positive, got %g", p.maxDeltaZ)
	}
	bins := opts.DeltaZBins
	if bins == 0 {
		bins = defaultDeltaZBins
		if d, ok := config.As[deltaZBinner](cfg); ok && d.DeltaZBins() > 0 {
			bins = d.DeltaZBins()
		}
	}
	p.deltaZ = binning.Binning{Bins: bins, Lo: 0, Hi: p.maxDeltaZ}
	if err := p.deltaZ.Validate(); err != nil {
		return nil, fmt.Errorf("pairs: Δz binning: %w", err)
	}
	return p, nil
}

// DeltaZ returns the separation binning of the grid's second axis.
func (p *Pairs) DeltaZ() binning.Binning { return p.deltaZ }

func (p *Pairs) compute(ctx context.Context, objs []catalog.Object, s binning.Slice, j *job.Descriptor) (grid, error) {
	lo, hi := 0, len(objs)
	if j != nil {
		lo, hi = j.Chunk(len(objs))
	}
	cols := p.deltaZ.Bins
	values := make([]float64, s.Binning.Bins*cols)
	for i := lo; i < hi; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return grid{}, err
			}
		}
		zi := objs[i].Z
		row := s.Binning.Index(zi)
		if row < 0 || s.Masked(row) {
			continue
		}
		// objs is sorted by z, so partners end at the first Δz out of range.
		for k := i + 1; k < len(objs); k++ {
			col := p.deltaZ.Index(objs[k].Z - zi)
			if col < 0 {
				break
			}
			values[row*cols+col] += objs[i].Weight * objs[k].Weight
		}
	}
	return grid{
		shape:  []int{s.Binning.Bins, cols},
		values: values,
		meta: map[string]string{
			"maxDeltaZ":  strconv.FormatFloat(p.maxDeltaZ, 'g', -1, 64),
			"deltaZBins": strconv.Itoa(cols),
		},
	}, nil
}
