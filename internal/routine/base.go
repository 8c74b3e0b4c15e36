package routine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/dusk-indust/paircorr/internal/binning"
	"github.com/dusk-indust/paircorr/internal/catalog"
	"github.com/dusk-indust/paircorr/internal/combine"
	"github.com/dusk-indust/paircorr/internal/config"
	"github.com/dusk-indust/paircorr/internal/job"
	"github.com/dusk-indust/paircorr/internal/ledger"
	"github.com/dusk-indust/paircorr/internal/logging"
	"github.com/dusk-indust/paircorr/internal/output"
)

// overlapper is implemented by configurations restricted to one slice of
// the z axis.
type overlapper interface {
	NOverlapZ() (binning.Overlap, error)
}

// lister is implemented by recorders that can report past runs.
type lister interface {
	List(ctx context.Context, config, routine string, suffixes []string) ([]ledger.Entry, error)
}

// grid is the result of one computation: a dense row-major array.
type grid struct {
	shape  []int
	values []float64
	meta   map[string]string
}

// computeFunc fills a grid for one z slice from the z-sorted objects lying
// inside it. When j is non-nil only the job's share of the work is done.
type computeFunc func(ctx context.Context, objs []catalog.Object, slice binning.Slice, j *job.Descriptor) (grid, error)

// base implements the run, combine and show lifecycle shared by routines.
// Concrete routines supply only the computation.
type base struct {
	name    string
	cfg     config.Configuration
	job     *job.Descriptor
	env     Env
	store   *output.Store
	compute computeFunc
}

func newBase(name string, cfg config.Configuration, j *job.Descriptor, env Env, compute computeFunc) (*base, error) {
	if cfg == nil {
		return nil, fmt.Errorf("routine %s: no configuration", name)
	}
	if _, ok := config.As[config.ZAxis](cfg); !ok {
		return nil, &config.TypeError{Kind: cfg.Name(), Capability: "config.ZAxis"}
	}
	if _, ok := config.As[config.Catalog](cfg); !ok {
		return nil, &config.TypeError{Kind: cfg.Name(), Capability: "config.Catalog"}
	}
	b := &base{
		name:    name,
		cfg:     cfg,
		env:     env.withDefaults(),
		store:   output.NewStore(cfg.OutputDir()),
		compute: compute,
	}
	if j != nil {
		d := *j
		b.job = &d
	}
	return b, nil
}

func (b *base) Name() string { return b.name }

// key addresses the complete output of this routine.
func (b *base) key() output.Key {
	return output.Key{Config: b.cfg.Name(), Routine: b.name, Suffixes: b.cfg.Suffixes()}
}

func (b *base) logger() *slog.Logger {
	l := b.env.Logger.With("config", b.cfg.Name(), "routine", b.name)
	if b.job != nil {
		l = logging.WithJob(l, *b.job)
	}
	return l
}

// slice returns the z binning this routine runs over. Slice selection
// errors surface here, before any catalog is read.
func (b *base) slice() (binning.Slice, error) {
	axis, _ := config.As[config.ZAxis](b.cfg)
	bz, err := axis.BinningZ()
	if err != nil {
		return binning.Slice{}, err
	}
	s := binning.Slice{Binning: bz}
	if o, ok := config.As[overlapper](b.cfg); ok {
		if s.Overlap, err = o.NOverlapZ(); err != nil {
			return binning.Slice{}, err
		}
	}
	return s, nil
}

// extent returns the range of the innermost z binning in the wrapper chain,
// which bounds every slice.
func (b *base) extent() (lo, hi float64, err error) {
	var axis config.ZAxis
	for cfg := b.cfg; cfg != nil; {
		if a, ok := cfg.(config.ZAxis); ok {
			axis = a
		}
		w, ok := cfg.(config.Wrapper)
		if !ok {
			break
		}
		cfg = w.Unwrap()
	}
	bz, err := axis.BinningZ()
	if err != nil {
		return 0, 0, err
	}
	return bz.Lo, bz.Hi, nil
}

// window returns the objects of the z-sorted objs with lo <= z < hi.
func window(objs []catalog.Object, lo, hi float64) []catalog.Object {
	i := sort.Search(len(objs), func(k int) bool { return objs[k].Z >= lo })
	j := sort.Search(len(objs), func(k int) bool { return objs[k].Z >= hi })
	if j < i {
		j = i
	}
	return objs[i:j]
}

func (b *base) mode() job.Mode {
	if b.job != nil {
		return job.ModeExecute
	}
	return job.ModeSingle
}

// record starts a ledger entry and returns a function finishing it.
func (b *base) record(ctx context.Context, mode job.Mode, nJobs int) func(path, digest string, err error) {
	e := ledger.Entry{
		RunID:    b.env.RunID,
		Config:   b.cfg.Name(),
		Routine:  b.name,
		Suffixes: b.cfg.Suffixes(),
		Mode:     mode.String(),
		NJobs:    nJobs,
	}
	if b.job != nil && mode == job.ModeExecute {
		i := b.job.IJob
		e.IJob = &i
	}
	id, err := b.env.Ledger.Start(ctx, e)
	if err != nil {
		b.logger().Warn("ledger start failed", "error", err)
	}
	return func(path, digest string, runErr error) {
		if err != nil {
			return
		}
		if ferr := b.env.Ledger.Finish(ctx, id, path, digest, runErr); ferr != nil {
			b.logger().Warn("ledger finish failed", "error", ferr)
		}
	}
}

// Run computes and persists this routine's output, or its job's partial
// output when bound to a job.
func (b *base) Run(ctx context.Context) (err error) {
	log := b.logger()
	s, err := b.slice()
	if err != nil {
		return err
	}
	nJobs := 1
	key := b.key()
	if b.job != nil {
		nJobs = b.job.NJobs
		key = key.ForJob(*b.job)
	}

	var path, digest string
	finish := b.record(ctx, b.mode(), nJobs)
	defer func() { finish(path, digest, err) }()

	cat, _ := config.As[config.Catalog](b.cfg)
	objs, err := catalog.ReadFile(cat.CatalogPath())
	if err != nil {
		return err
	}
	lo, hi, err := b.extent()
	if err != nil {
		return err
	}
	objs = window(objs, math.Max(lo, s.Binning.Lo), math.Min(hi, s.Binning.Hi))
	log.Info("computing", "objects", len(objs), "binningZ", s.Binning.String())

	g, err := b.compute(ctx, objs, s, b.job)
	if err != nil {
		return err
	}
	doc := &output.Document{
		Header: output.Header{
			Config:   b.cfg.Name(),
			Routine:  b.name,
			Suffixes: b.cfg.Suffixes(),
			Job:      b.job,
			RunID:    b.env.RunID,
			Created:  b.env.Now().UTC(),
			BinningZ: s.Binning,
			Overlap:  s.Overlap,
			Shape:    g.shape,
			Meta:     g.meta,
		},
		Values: g.values,
	}
	if digest, err = b.store.Write(key, doc); err != nil {
		return err
	}
	path = b.store.Path(key)
	log.Info("wrote output", "path", path, "digest", digest)
	return nil
}

// Combine merges the partial outputs of every job into the complete output.
// Nothing is written unless all partials are present.
func (b *base) Combine(ctx context.Context) (err error) {
	if b.job == nil {
		return fmt.Errorf("routine %s: combine requires a job count", b.name)
	}
	// The partial names carry the slice tag, so an unusable slice index
	// must fail here and not as missing partials.
	if _, err := b.slice(); err != nil {
		return err
	}
	log := b.logger()
	var path, digest string
	finish := b.record(ctx, job.ModeCombine, b.job.NJobs)
	defer func() { finish(path, digest, err) }()

	key := b.key()
	doc, err := combine.FromStore(b.store, key, b.job.NJobs)
	if err != nil {
		return err
	}
	doc.Header.RunID = b.env.RunID
	doc.Header.Created = b.env.Now().UTC()
	if digest, err = b.store.Write(key, doc); err != nil {
		return err
	}
	path = b.store.Path(key)
	log.Info("combined partial outputs", "jobs", b.job.NJobs, "path", path, "digest", digest)
	return nil
}

// Show writes the configuration description, the state of this routine's
// outputs and its recorded runs.
func (b *base) Show(w io.Writer) error {
	if err := b.cfg.Info(w); err != nil {
		return err
	}
	fmt.Fprintf(w, "routine %s\n", b.name)

	key := b.key()
	if err := b.showOutput(w, key); err != nil {
		return err
	}
	if b.job != nil {
		for i := 0; i < b.job.NJobs; i++ {
			pk := key.ForJob(job.Descriptor{NJobs: b.job.NJobs, IJob: i})
			state := "missing"
			if b.store.Exists(pk) {
				state = "present"
			}
			fmt.Fprintf(w, "  partial %s: %s\n", pk.Name(), state)
		}
	}

	if l, ok := b.env.Ledger.(lister); ok {
		entries, err := l.List(context.Background(), b.cfg.Name(), b.name, b.cfg.Suffixes())
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Fprintf(w, "  run %s %s %s%s\n", e.StartedAt.Format("2006-01-02T15:04:05Z07:00"), e.Mode, e.Status, entryJob(e))
		}
	}
	return nil
}

func (b *base) showOutput(w io.Writer, key output.Key) error {
	doc, err := b.store.Read(key)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(w, "  output %s: not yet computed\n", key.Name())
		return nil
	}
	if err != nil {
		return err
	}
	h := doc.Header
	fmt.Fprintf(w, "  output %s\n", key.Name())
	fmt.Fprintf(w, "    created: %s\n", h.Created.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(w, "    binningZ: %s\n", h.BinningZ)
	fmt.Fprintf(w, "    overlap: low %d, high %d\n", h.Overlap.Low, h.Overlap.High)
	fmt.Fprintf(w, "    shape: %s\n", shapeString(h.Shape))
	return nil
}

func entryJob(e ledger.Entry) string {
	if e.IJob == nil {
		return ""
	}
	return " " + job.Descriptor{NJobs: e.NJobs, IJob: *e.IJob}.String()
}

func shapeString(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return strings.Join(parts, "x")
}
