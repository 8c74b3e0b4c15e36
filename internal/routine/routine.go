// Package routine defines the units of work run against a configuration
// and the registry resolving routine files to them.
package routine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/paircorr/internal/config"
	"github.com/dusk-indust/paircorr/internal/job"
	"github.com/dusk-indust/paircorr/internal/ledger"
	"github.com/dusk-indust/paircorr/internal/logging"
)

// ErrNotRoutine is returned when a factory builds a value that is not a Routine.
var ErrNotRoutine = errors.New("not a recognized routine")

// Routine is a unit of work bound to one configuration and at most one job.
type Routine interface {
	// Name identifies the routine in output file names.
	Name() string

	// Run computes the routine's output: the whole result, or the partial
	// result of its job when bound to one.
	Run(ctx context.Context) error

	// Combine merges the partial outputs of every job of its job count.
	Combine(ctx context.Context) error

	// Show writes the configuration description and output headers.
	Show(w io.Writer) error
}

// Env carries the ambient collaborators of a routine.
type Env struct {
	Logger *slog.Logger
	Ledger ledger.Recorder
	RunID  string
	Now    func() time.Time
}

func (e Env) withDefaults() Env {
	if e.Logger == nil {
		e.Logger = logging.Discard()
	}
	if e.Ledger == nil {
		e.Ledger = ledger.Nop{}
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	return e
}

// Factory builds a routine. j is nil for the single and show modes. opts
// holds the routine file's YAML, possibly empty.
type Factory func(cfg config.Configuration, j *job.Descriptor, opts []byte, env Env) (any, error)

// Registry maps routine names to their factories.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
}

// NewRegistry creates a Registry pre-registered with the built-in routines.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
	}
	r.factories[NameHistogram] = func(cfg config.Configuration, j *job.Descriptor, opts []byte, env Env) (any, error) {
		return NewHistogram(cfg, j, opts, env)
	}
	r.factories[NamePairs] = func(cfg config.Configuration, j *job.Descriptor, opts []byte, env Env) (any, error) {
		return NewPairs(cfg, j, opts, env)
	}
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names lists the registered routines in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NameFromPath returns the routine name a file selects: its base name
// without extension, so "routines/pairs.yaml" selects "pairs".
func NameFromPath(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

// Load reads the routine file at path and builds the routine its name selects.
func (r *Registry) Load(path string, cfg config.Configuration, j *job.Descriptor, env Env) (Routine, error) {
	opts, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routine: %w", err)
	}
	return r.New(NameFromPath(path), cfg, j, opts, env)
}

// New builds the named routine and checks that it is a Routine.
func (r *Registry) New(name string, cfg config.Configuration, j *job.Descriptor, opts []byte, env Env) (Routine, error) {
	r.mu.Lock()
	factory, ok := r.factories[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no factory registered for routine %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	v, err := factory(cfg, j, opts, env.withDefaults())
	if err != nil {
		return nil, fmt.Errorf("build routine %q: %w", name, err)
	}
	rt, ok := v.(Routine)
	if !ok || rt == nil {
		return nil, fmt.Errorf("routine %q: %w", name, ErrNotRoutine)
	}
	return rt, nil
}

// decodeOptions decodes YAML routine options strictly into v. Empty input
// leaves v unchanged.
func decodeOptions(raw []byte, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return fmt.Errorf("decode routine options: %w", err)
	}
	return nil
}
