package routine

import (
	"context"
	"strconv"

	"github.com/dusk-indust/paircorr/internal/binning"
	"github.com/dusk-indust/paircorr/internal/catalog"
	"github.com/dusk-indust/paircorr/internal/config"
	"github.com/dusk-indust/paircorr/internal/job"
)

// NameHistogram selects the histogram routine.
const NameHistogram = "histogram"

// HistogramOptions are read from a histogram routine file.
type HistogramOptions struct {
	// Unweighted counts objects instead of summing their weights.
	Unweighted bool `yaml:"unweighted"`
}

// Histogram counts catalog objects per z bin. Jobs split the catalog into
// contiguous chunks; padding bins of a slice are left empty so that slices
// tile the full histogram.
type Histogram struct {
	*base
	opts HistogramOptions
}

// NewHistogram builds a histogram routine.
func NewHistogram(cfg config.Configuration, j *job.Descriptor, raw []byte, env Env) (*Histogram, error) {
	h := &Histogram{}
	if err := decodeOptions(raw, &h.opts); err != nil {
		return nil, err
	}
	b, err := newBase(NameHistogram, cfg, j, env, h.compute)
	if err != nil {
		return nil, err
	}
	h.base = b
	return h, nil
}

func (h *Histogram) compute(ctx context.Context, objs []catalog.Object, s binning.Slice, j *job.Descriptor) (grid, error) {
	lo, hi := 0, len(objs)
	if j != nil {
		lo, hi = j.Chunk(len(objs))
	}
	values := make([]float64, s.Binning.Bins)
	for i := lo; i < hi; i++ {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return grid{}, err
			}
		}
		row := s.Binning.Index(objs[i].Z)
		if row < 0 || s.Masked(row) {
			continue
		}
		if h.opts.Unweighted {
			values[row]++
		} else {
			values[row] += objs[i].Weight
		}
	}
	return grid{
		shape:  []int{s.Binning.Bins},
		values: values,
		meta:   map[string]string{"unweighted": strconv.FormatBool(h.opts.Unweighted)},
	}, nil
}
