// Package job partitions a workload into independent jobs and resolves
// command-line job flags into a dispatch plan.
package job

import (
	"fmt"
	"sort"
)

// Descriptor identifies one job of a partitioned workload. It is a value
// and is never modified after construction.
type Descriptor struct {
	NJobs int `json:"nJobs"`
	IJob  int `json:"iJob"`
}

// New returns the descriptor for job iJob of nJobs.
func New(nJobs, iJob int) (Descriptor, error) {
	if nJobs < 1 {
		return Descriptor{}, fmt.Errorf("nJobs must be positive, got %d", nJobs)
	}
	if iJob < 0 || iJob >= nJobs {
		return Descriptor{}, fmt.Errorf("iJob %d out of range [0, %d)", iJob, nJobs)
	}
	return Descriptor{NJobs: nJobs, IJob: iJob}, nil
}

// Tag is the file-name fragment identifying the job, e.g. "2of4".
func (d Descriptor) Tag() string { return fmt.Sprintf("%dof%d", d.IJob, d.NJobs) }

func (d Descriptor) String() string { return fmt.Sprintf("job %d/%d", d.IJob, d.NJobs) }

// Chunk returns the half-open index range [lo, hi) of n items assigned to
// this job. Chunks of all jobs tile [0, n) in order.
func (d Descriptor) Chunk(n int) (lo, hi int) {
	return n * d.IJob / d.NJobs, n * (d.IJob + 1) / d.NJobs
}

// Mode is what a plan asks the driver to do.
type Mode int

const (
	// ModeSingle runs the whole workload as one unit.
	ModeSingle Mode = iota
	// ModeExecute runs one unit per job descriptor.
	ModeExecute
	// ModeCombine merges the outputs of a previous NJobs-way execution.
	ModeCombine
	// ModeShow reports structural information without computing.
	ModeShow
)

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeExecute:
		return "execute"
	case ModeCombine:
		return "combine"
	case ModeShow:
		return "show"
	default:
		return "unknown"
	}
}

// Flags are the job-related command-line options. Nil pointers are unset.
type Flags struct {
	NJobs  *int
	IJob   []int
	NCores *int
	Show   bool
}

// Plan is the resolved interpretation of Flags.
type Plan struct {
	Mode   Mode
	NJobs  int          // 0 when no partitioning was requested
	Jobs   []Descriptor // ModeExecute only
	NCores int          // worker pool size, ModeExecute only
}

// Resolve interprets flags:
//
//   - NCores or IJob set: execute one job per IJob entry, or every job of
//     NJobs (default 1) when IJob is empty.
//   - only NJobs set: combine the outputs of NJobs jobs. This includes
//     NJobs=1.
//   - nothing set: run the whole workload once.
//
// Show turns the non-execute cases into ModeShow.
func Resolve(f Flags) (Plan, error) {
	if f.NJobs != nil && *f.NJobs < 1 {
		return Plan{}, fmt.Errorf("--nJobs must be positive, got %d", *f.NJobs)
	}
	if f.NCores != nil && *f.NCores < 1 {
		return Plan{}, fmt.Errorf("--nCores must be positive, got %d", *f.NCores)
	}

	if f.NCores != nil || len(f.IJob) > 0 {
		n := 1
		if f.NJobs != nil {
			n = *f.NJobs
		}
		indices := f.IJob
		if len(indices) == 0 {
			indices = make([]int, n)
			for i := range indices {
				indices[i] = i
			}
		}
		jobs, err := descriptors(n, indices)
		if err != nil {
			return Plan{}, err
		}
		cores := 1
		if f.NCores != nil {
			cores = *f.NCores
		}
		return Plan{Mode: ModeExecute, NJobs: n, Jobs: jobs, NCores: cores}, nil
	}

	p := Plan{Mode: ModeSingle}
	if f.NJobs != nil {
		p = Plan{Mode: ModeCombine, NJobs: *f.NJobs}
	}
	if f.Show {
		p.Mode = ModeShow
	}
	return p, nil
}

func descriptors(n int, indices []int) ([]Descriptor, error) {
	seen := make(map[int]bool, len(indices))
	var dups []int
	jobs := make([]Descriptor, 0, len(indices))
	for _, i := range indices {
		d, err := New(n, i)
		if err != nil {
			return nil, fmt.Errorf("--iJob: %w", err)
		}
		if seen[i] {
			dups = append(dups, i)
			continue
		}
		seen[i] = true
		jobs = append(jobs, d)
	}
	if len(dups) > 0 {
		sort.Ints(dups)
		return nil, fmt.Errorf("--iJob: duplicate job indices %v", dups)
	}
	return jobs, nil
}
