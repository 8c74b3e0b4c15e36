package config

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/paircorr/internal/binning"
)

// KindCatalog is the configuration kind used when a file names none.
const KindCatalog = "catalog"

// BinningSpec is the YAML form of a binning: `{bins: 60, range: [0, 3]}`.
type BinningSpec struct {
	Bins  int       `yaml:"bins"`
	Range []float64 `yaml:"range"`
}

// Binning converts s to a binning.Binning and validates it.
func (s BinningSpec) Binning() (binning.Binning, error) {
	if len(s.Range) != 2 {
		return binning.Binning{}, fmt.Errorf("binning range must have two edges, got %d", len(s.Range))
	}
	b := binning.Binning{Bins: s.Bins, Lo: s.Range[0], Hi: s.Range[1]}
	if err := b.Validate(); err != nil {
		return binning.Binning{}, err
	}
	return b, nil
}

// SlicingSpec holds the optional z slicing section of a catalog file.
type SlicingSpec struct {
	ZBreaks       []float64 `yaml:"zBreaks,omitempty"`
	ZMaxBinWidths []float64 `yaml:"zMaxBinWidths,omitempty"`
	StrictPadding bool      `yaml:"strictPadding,omitempty"`
}

// CatalogFile is the YAML document for the catalog configuration kind.
type CatalogFile struct {
	Kind       string       `yaml:"kind,omitempty"`
	Name       string       `yaml:"name"`
	Catalog    string       `yaml:"catalog"`
	OutputDir  string       `yaml:"outputDir,omitempty"`
	MaxDeltaZ  float64      `yaml:"maxDeltaZ"`
	BinningZ   BinningSpec  `yaml:"binningZ"`
	DeltaZBins int          `yaml:"deltaZBins,omitempty"`
	Slicing    *SlicingSpec `yaml:"slicing,omitempty"`
}

// CatalogConfig is a configuration read from a CatalogFile.
type CatalogConfig struct {
	file     CatalogFile
	dir      string
	binningZ binning.Binning
}

// Compile-time checks.
var (
	_ Configuration = (*CatalogConfig)(nil)
	_ ZAxis         = (*CatalogConfig)(nil)
	_ ZBreaker      = (*CatalogConfig)(nil)
	_ Catalog       = (*CatalogConfig)(nil)
)

// NewCatalogConfig decodes raw strictly; relative paths resolve against dir.
func NewCatalogConfig(dir string, raw []byte) (*CatalogConfig, error) {
	var f CatalogFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog configuration: %w", err)
	}
	return newCatalogConfig(dir, f)
}

func newCatalogConfig(dir string, f CatalogFile) (*CatalogConfig, error) {
	if f.Name == "" {
		return nil, fmt.Errorf("catalog configuration: name is required")
	}
	if f.MaxDeltaZ < 0 {
		return nil, fmt.Errorf("catalog configuration: maxDeltaZ must be non-negative, got %g", f.MaxDeltaZ)
	}
	b, err := f.BinningZ.Binning()
	if err != nil {
		return nil, fmt.Errorf("catalog configuration: binningZ: %w", err)
	}
	if f.DeltaZBins == 0 {
		f.DeltaZBins = 10
	}
	if f.DeltaZBins < 0 {
		return nil, fmt.Errorf("catalog configuration: deltaZBins must be positive, got %d", f.DeltaZBins)
	}
	if f.OutputDir == "" {
		f.OutputDir = "output"
	}
	return &CatalogConfig{file: f, dir: dir, binningZ: b}, nil
}

func (c *CatalogConfig) Name() string { return c.file.Name }

func (c *CatalogConfig) OutputDir() string { return c.resolve(c.file.OutputDir) }

// SetOutputDir overrides the configured output directory.
func (c *CatalogConfig) SetOutputDir(dir string) { c.file.OutputDir = dir }

func (c *CatalogConfig) Suffixes() []string { return nil }

func (c *CatalogConfig) CatalogPath() string { return c.resolve(c.file.Catalog) }

func (c *CatalogConfig) BinningZ() (binning.Binning, error) { return c.binningZ, nil }

func (c *CatalogConfig) MaxDeltaZ() float64 { return c.file.MaxDeltaZ }

// DeltaZBins is the number of Δz bins on [0, MaxDeltaZ].
func (c *CatalogConfig) DeltaZBins() int { return c.file.DeltaZBins }

// Sliced reports whether the file declares a slicing section.
func (c *CatalogConfig) Sliced() bool { return c.file.Slicing != nil }

// StrictPadding reports whether infeasible overlap padding is an error.
func (c *CatalogConfig) StrictPadding() bool {
	return c.file.Slicing != nil && c.file.Slicing.StrictPadding
}

func (c *CatalogConfig) ZBreaks() []float64 {
	if c.file.Slicing == nil {
		return nil
	}
	return c.file.Slicing.ZBreaks
}

func (c *CatalogConfig) ZMaxBinWidths() []float64 {
	if c.file.Slicing == nil {
		return nil
	}
	return c.file.Slicing.ZMaxBinWidths
}

func (c *CatalogConfig) Info(w io.Writer) error {
	_, err := fmt.Fprintf(w, "configuration %s\n  catalog: %s\n  output: %s\n  binningZ: %s\n  maxDeltaZ: %g\n  deltaZBins: %d\n",
		c.Name(), c.CatalogPath(), c.OutputDir(), c.binningZ, c.MaxDeltaZ(), c.DeltaZBins())
	return err
}

func (c *CatalogConfig) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}
