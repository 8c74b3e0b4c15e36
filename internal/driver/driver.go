// Package driver ties command-line options to the configuration and routine
// plugins and runs the resolved plan: a single run, a dispatch of jobs, a
// combine of their outputs or a description of the setup.
package driver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/dusk-indust/paircorr/internal/config"
	"github.com/dusk-indust/paircorr/internal/dispatch"
	"github.com/dusk-indust/paircorr/internal/job"
	"github.com/dusk-indust/paircorr/internal/ledger"
	"github.com/dusk-indust/paircorr/internal/logging"
	"github.com/dusk-indust/paircorr/internal/routine"
	"github.com/dusk-indust/paircorr/internal/slicing"
)

// RunIDEnv carries the run id from a dispatching process to its workers.
const RunIDEnv = "PAIRCORR_RUN_ID"

// Isolation selects how the jobs of a multi-job plan are run.
type Isolation string

const (
	// IsolationProcess runs every job in a re-executed copy of the binary.
	IsolationProcess Isolation = "process"
	// IsolationInline runs every job in the current process.
	IsolationInline Isolation = "inline"
)

// Options are the inputs of Run.
type Options struct {
	ConfigPath  string
	RoutinePath string
	Jobs        job.Flags
	ISliceZ     *int

	// OutputDir overrides the configuration's output directory.
	OutputDir string
	// LedgerPath is the SQLite run ledger; empty disables it.
	LedgerPath string
	Isolation  Isolation
	RunID      string

	// WorkerArgs are passed to re-executed workers ahead of their job flags.
	WorkerArgs []string
	// Launcher overrides the launcher chosen from Isolation.
	Launcher dispatch.Launcher

	Configs  *config.Registry
	Routines *routine.Registry
	Logger   *slog.Logger
	Stdout   io.Writer
}

func (o Options) withDefaults() Options {
	if o.Isolation == "" {
		o.Isolation = IsolationProcess
	}
	if o.Configs == nil {
		o.Configs = config.NewRegistry()
	}
	if o.Routines == nil {
		o.Routines = routine.NewRegistry()
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	return o
}

// outputDirSetter is implemented by configurations whose output directory
// can be overridden.
type outputDirSetter interface {
	SetOutputDir(dir string)
}

// slicingDeclarer is implemented by configurations that may declare z
// slicing themselves.
type slicingDeclarer interface {
	Sliced() bool
	StrictPadding() bool
}

// Run loads the plugins named by opts and executes the resolved plan.
// Configuration and plan errors are returned before any computation.
func Run(ctx context.Context, opts Options) error {
	opts = opts.withDefaults()

	plan, err := job.Resolve(opts.Jobs)
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}

	log := logging.WithRun(opts.Logger, opts.RunID)
	rec, closeLedger, err := openLedger(opts.LedgerPath)
	if err != nil {
		return err
	}
	defer closeLedger()

	env := routine.Env{Logger: log, Ledger: rec, RunID: opts.RunID}
	newRoutine := func(j *job.Descriptor) (routine.Routine, error) {
		return opts.Routines.Load(opts.RoutinePath, cfg, j, env)
	}

	log.Debug("resolved plan", "mode", plan.Mode.String(), "n_jobs", plan.NJobs, "config", cfg.Name())
	switch plan.Mode {
	case job.ModeSingle:
		r, err := newRoutine(nil)
		if err != nil {
			return err
		}
		return r.Run(ctx)

	case job.ModeCombine:
		if err := checkSlice(cfg); err != nil {
			return err
		}
		r, err := newRoutine(&job.Descriptor{NJobs: plan.NJobs})
		if err != nil {
			return err
		}
		return r.Combine(ctx)

	case job.ModeShow:
		var j *job.Descriptor
		if plan.NJobs > 0 {
			j = &job.Descriptor{NJobs: plan.NJobs}
		}
		r, err := newRoutine(j)
		if err != nil {
			return err
		}
		return r.Show(opts.Stdout)

	case job.ModeExecute:
		return execute(ctx, opts, plan, cfg, newRoutine, log)

	default:
		return fmt.Errorf("unsupported mode %s", plan.Mode)
	}
}

// LoadConfig loads the configuration plugin, applies the output directory
// override and composes z slicing onto it when requested.
func LoadConfig(opts Options) (config.Configuration, error) {
	if opts.Configs == nil {
		opts.Configs = config.NewRegistry()
	}
	cfg, err := opts.Configs.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.OutputDir != "" {
		s, ok := config.As[outputDirSetter](cfg)
		if !ok {
			return nil, fmt.Errorf("configuration %s does not support an output directory override", cfg.Name())
		}
		s.SetOutputDir(opts.OutputDir)
	}

	sliced := opts.ISliceZ != nil
	var zopts []slicing.Option
	if d, ok := config.As[slicingDeclarer](cfg); ok {
		sliced = sliced || d.Sliced()
		if d.StrictPadding() {
			zopts = append(zopts, slicing.WithStrictPadding())
		}
	}
	if !sliced {
		return cfg, nil
	}
	z, err := slicing.NewZ(cfg, opts.ISliceZ, zopts...)
	if err != nil {
		return nil, err
	}
	return z, nil
}

func execute(ctx context.Context, opts Options, plan job.Plan, cfg config.Configuration,
	newRoutine func(*job.Descriptor) (routine.Routine, error), log *slog.Logger) error {
	// Surface slice selection errors once, before any worker starts.
	if err := checkSlice(cfg); err != nil {
		return err
	}
	// Build every routine up front so plugin errors surface before dispatch.
	routines := make(map[int]routine.Routine, len(plan.Jobs))
	for _, d := range plan.Jobs {
		r, err := newRoutine(&d)
		if err != nil {
			return err
		}
		routines[d.IJob] = r
	}

	launcher := opts.Launcher
	if launcher == nil {
		inline := dispatch.InlineLauncher(func(ctx context.Context, d job.Descriptor) error {
			return routines[d.IJob].Run(ctx)
		})
		launcher = inline
		// A single job always runs here; a re-executed worker receives
		// exactly one job and must not launch another process.
		if len(plan.Jobs) > 1 && opts.Isolation == IsolationProcess {
			self, err := dispatch.NewSelfLauncher(opts.WorkerArgs)
			if err != nil {
				return err
			}
			self.Env = []string{RunIDEnv + "=" + opts.RunID}
			launcher = self
		}
	}

	units, err := dispatch.Build(launcher, plan.Jobs)
	if err != nil {
		return err
	}

	log.Info("dispatching jobs", "jobs", len(units), "n_jobs", plan.NJobs, "cores", plan.NCores, "isolation", string(opts.Isolation))
	progress := dispatch.NewProgress(log, len(units))
	_, err = dispatch.NewPool(plan.NCores, progress.Observe).Run(ctx, units)

	finished, failed := progress.Counts()
	log.Info("dispatch finished", "jobs", finished, "failed", failed)
	return err
}

// checkSlice reports an unusable slice index of a sliced configuration.
func checkSlice(cfg config.Configuration) error {
	if z, ok := cfg.(*slicing.Z); ok {
		_, err := z.Slice()
		return err
	}
	return nil
}

func openLedger(path string) (ledger.Recorder, func(), error) {
	if path == "" {
		return ledger.Nop{}, func() {}, nil
	}
	l, err := ledger.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { l.Close() }, nil
}
