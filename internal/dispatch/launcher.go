package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/dusk-indust/paircorr/internal/job"
)

// InlineLauncher runs jobs in the current process by calling the function.
// Units share the process, so it is meant for tests and debugging.
type InlineLauncher func(ctx context.Context, d job.Descriptor) error

// Unit implements Launcher.
func (f InlineLauncher) Unit(d job.Descriptor) (Unit, error) {
	if f == nil {
		return nil, errors.New("inline launcher has no function")
	}
	return &inlineUnit{job: d, run: f}, nil
}

type inlineUnit struct {
	job job.Descriptor
	run InlineLauncher
}

func (u *inlineUnit) Job() job.Descriptor { return u.job }

func (u *inlineUnit) Run(ctx context.Context) error { return u.run(ctx, u.job) }

// ExecLauncher runs each job in its own process: Path is invoked with Args
// followed by "--nJobs N --iJob I". Nothing is shared between processes;
// each persists its own output.
type ExecLauncher struct {
	Path   string
	Args   []string
	Env    []string // appended to the parent environment
	Stdout io.Writer
	Stderr io.Writer
}

// NewSelfLauncher returns an ExecLauncher that re-executes the running binary.
func NewSelfLauncher(args []string) (*ExecLauncher, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return &ExecLauncher{Path: exe, Args: args, Stdout: os.Stdout, Stderr: os.Stderr}, nil
}

// Unit implements Launcher.
func (l *ExecLauncher) Unit(d job.Descriptor) (Unit, error) {
	if l.Path == "" {
		return nil, errors.New("exec launcher has no executable")
	}
	return &processUnit{job: d, launcher: l}, nil
}

type processUnit struct {
	job      job.Descriptor
	launcher *ExecLauncher
}

func (u *processUnit) Job() job.Descriptor { return u.job }

// Argv returns the child's arguments.
func (u *processUnit) Argv() []string {
	args := append([]string(nil), u.launcher.Args...)
	return append(args,
		"--nJobs", strconv.Itoa(u.job.NJobs),
		"--iJob", strconv.Itoa(u.job.IJob),
	)
}

func (u *processUnit) Run(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, u.launcher.Path, u.Argv()...)
	cmd.Stdout = u.launcher.Stdout
	cmd.Stderr = u.launcher.Stderr
	if len(u.launcher.Env) > 0 {
		cmd.Env = append(os.Environ(), u.launcher.Env...)
	}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("worker process exited with status %d: %w", exitErr.ExitCode(), err)
		}
		return fmt.Errorf("start worker process: %w", err)
	}
	return nil
}
