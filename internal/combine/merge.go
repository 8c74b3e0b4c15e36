// Package combine reduces per-job partial outputs into one result. The
// reduction is element-wise summation, so the result does not depend on
// the order in which jobs ran.
package combine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dusk-indust/paircorr/internal/job"
	"github.com/dusk-indust/paircorr/internal/output"
)

// Partial is one job's output.
type Partial struct {
	Job job.Descriptor
	Doc *output.Document
}

// Merger combines the partial outputs of an nJobs-way execution.
type Merger struct {
	nJobs int
}

// NewMerger creates a Merger expecting nJobs partials.
func NewMerger(nJobs int) *Merger {
	return &Merger{nJobs: nJobs}
}

// Missing returns the job indices for which exists reports false.
func (m *Merger) Missing(exists func(job.Descriptor) bool) []int {
	var missing []int
	for i := 0; i < m.nJobs; i++ {
		if !exists(job.Descriptor{NJobs: m.nJobs, IJob: i}) {
			missing = append(missing, i)
		}
	}
	return missing
}

// Merge sums the partials element-wise in job-index order. It validates
// that every job in [0, nJobs) is present exactly once and that all
// partials share a shape and binning. The result carries the header of
// job 0 with the job descriptor cleared.
func (m *Merger) Merge(partials []Partial) (*output.Document, error) {
	if m.nJobs < 1 {
		return nil, fmt.Errorf("merge: nJobs must be positive, got %d", m.nJobs)
	}

	byJob := make(map[int]Partial, len(partials))
	var duplicates []string
	for _, p := range partials {
		if p.Job.NJobs != m.nJobs {
			return nil, fmt.Errorf("merge: partial %s belongs to a %d-job run, want %d", p.Job, p.Job.NJobs, m.nJobs)
		}
		if p.Doc == nil {
			return nil, fmt.Errorf("merge: partial %s has no document", p.Job)
		}
		if _, ok := byJob[p.Job.IJob]; ok {
			duplicates = append(duplicates, p.Job.String())
			continue
		}
		byJob[p.Job.IJob] = p
	}
	if len(duplicates) > 0 {
		return nil, fmt.Errorf("merge: duplicate partials: %s", strings.Join(duplicates, ", "))
	}

	missing := m.Missing(func(d job.Descriptor) bool {
		_, ok := byJob[d.IJob]
		return ok
	})
	if len(missing) > 0 {
		return nil, &MissingPartialOutputError{NJobs: m.nJobs, Missing: missing}
	}

	first := byJob[0].Doc
	merged := &output.Document{
		Header: first.Header,
		Values: make([]float64, len(first.Values)),
	}
	merged.Header.Job = nil
	merged.Header.Shape = slices.Clone(first.Header.Shape)

	for i := 0; i < m.nJobs; i++ {
		p := byJob[i]
		if err := compatible(first, p.Doc); err != nil {
			return nil, fmt.Errorf("merge: %s: %w", p.Job, err)
		}
		for k, v := range p.Doc.Values {
			merged.Values[k] += v
		}
	}
	return merged, nil
}

func compatible(a, b *output.Document) error {
	if !slices.Equal(a.Header.Shape, b.Header.Shape) {
		return fmt.Errorf("shape %v differs from %v", b.Header.Shape, a.Header.Shape)
	}
	if a.Header.BinningZ != b.Header.BinningZ {
		return fmt.Errorf("binning %s differs from %s", b.Header.BinningZ, a.Header.BinningZ)
	}
	if len(a.Values) != len(b.Values) {
		return fmt.Errorf("%d values differ from %d", len(b.Values), len(a.Values))
	}
	return nil
}

// FromStore locates all nJobs partial outputs of key in store, failing with
// a *MissingPartialOutputError that lists every absent one before reading
// any, then reads and merges them.
func FromStore(store *output.Store, key output.Key, nJobs int) (*output.Document, error) {
	m := NewMerger(nJobs)
	missing := m.Missing(func(d job.Descriptor) bool {
		return store.Exists(key.ForJob(d))
	})
	if len(missing) > 0 {
		paths := make([]string, len(missing))
		for i, idx := range missing {
			paths[i] = store.Path(key.ForJob(job.Descriptor{NJobs: nJobs, IJob: idx}))
		}
		return nil, &MissingPartialOutputError{NJobs: nJobs, Missing: missing, Paths: paths}
	}

	partials := make([]Partial, 0, nJobs)
	for i := 0; i < nJobs; i++ {
		d := job.Descriptor{NJobs: nJobs, IJob: i}
		doc, err := store.Read(key.ForJob(d))
		if err != nil {
			return nil, fmt.Errorf("read partial %s: %w", d, err)
		}
		partials = append(partials, Partial{Job: d, Doc: doc})
	}
	return m.Merge(partials)
}
