// Package config defines the capability interfaces a configuration must
// satisfy and loads configuration plugins from YAML files.
package config

import (
	"io"

	"github.com/dusk-indust/paircorr/internal/binning"
)

// Configuration is the capability every configuration provides.
type Configuration interface {
	// Name identifies the configuration in output file names.
	Name() string

	// OutputDir is where routines persist their outputs.
	OutputDir() string

	// Suffixes are appended to output names, e.g. "z2" for a z slice.
	Suffixes() []string

	// Info writes a human-readable description.
	Info(w io.Writer) error
}

// ZAxis is implemented by configurations that bin the redshift axis.
type ZAxis interface {
	BinningZ() (binning.Binning, error)
	MaxDeltaZ() float64
}

// ZBreaker is optionally implemented by configurations that choose their
// own z slicing. Empty results fall back to a single slice.
type ZBreaker interface {
	ZBreaks() []float64
	ZMaxBinWidths() []float64
}

// Catalog is implemented by configurations backed by an object catalog.
type Catalog interface {
	CatalogPath() string
}

// Wrapper is implemented by decorators that wrap another configuration.
type Wrapper interface {
	Unwrap() Configuration
}

// As returns the first configuration in cfg's wrapper chain that implements
// T, starting with cfg itself.
func As[T any](cfg Configuration) (T, bool) {
	for cfg != nil {
		if v, ok := cfg.(T); ok {
			return v, true
		}
		w, ok := cfg.(Wrapper)
		if !ok {
			break
		}
		cfg = w.Unwrap()
	}
	var zero T
	return zero, false
}
