// Package e2e runs whole pipelines against the demo inputs in testdata.
package e2e

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/paircorr/internal/driver"
	"github.com/dusk-indust/paircorr/internal/job"
	"github.com/dusk-indust/paircorr/internal/output"
)

func demoDir() string {
	return filepath.Join("..", "..", "testdata", "demo")
}

// Weighted counts of testdata/demo/catalog.csv, worked by hand.
var (
	wantHistogram = []float64{4, 4, 3, 2, 3, 3}
	wantPairs     = []float64{
		0, 4, 1, 1,
		3, 0, 3, 7,
		0, 0, 4, 0,
		0, 2, 1, 1,
		0, 2, 0, 0,
		0, 0, 2, 0,
	}
)

type pipeline struct {
	outDir string
	ledger string
}

func newPipeline(t *testing.T) pipeline {
	t.Helper()
	return pipeline{outDir: t.TempDir(), ledger: filepath.Join(t.TempDir(), "runs.db")}
}

func (p pipeline) run(t *testing.T, configFile, routineFile string, flags job.Flags, iSlice *int, stdout *bytes.Buffer) {
	t.Helper()
	opts := driver.Options{
		ConfigPath:  filepath.Join(demoDir(), configFile),
		RoutinePath: filepath.Join(demoDir(), routineFile),
		Jobs:        flags,
		ISliceZ:     iSlice,
		OutputDir:   p.outDir,
		LedgerPath:  p.ledger,
		Isolation:   driver.IsolationInline,
		Stdout:      stdout,
	}
	if stdout == nil {
		opts.Stdout = &bytes.Buffer{}
	}
	require.NoError(t, driver.Run(context.Background(), opts))
}

func (p pipeline) read(t *testing.T, routine string, suffixes ...string) *output.Document {
	t.Helper()
	doc, err := output.NewStore(p.outDir).Read(output.Key{Config: "demo", Routine: routine, Suffixes: suffixes})
	require.NoError(t, err)
	return doc
}

func intp(i int) *int { return &i }

func TestPipeline_HistogramSingle(t *testing.T) {
	p := newPipeline(t)
	p.run(t, "demo.yaml", "histogram.yaml", job.Flags{}, nil, nil)

	doc := p.read(t, "histogram")
	assert.Equal(t, []int{6}, doc.Header.Shape)
	assert.Equal(t, wantHistogram, doc.Values)
}

func TestPipeline_PairsJobsThenCombine(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		t.Run(fmt.Sprintf("nJobs=%d", n), func(t *testing.T) {
			p := newPipeline(t)
			p.run(t, "demo.yaml", "pairs.yaml", job.Flags{NJobs: intp(n), NCores: intp(3)}, nil, nil)
			p.run(t, "demo.yaml", "pairs.yaml", job.Flags{NJobs: intp(n)}, nil, nil)

			doc := p.read(t, "pairs")
			assert.Equal(t, []int{6, 4}, doc.Header.Shape)
			assert.Equal(t, wantPairs, doc.Values)
		})
	}
}

func TestPipeline_SlicedPairsTile(t *testing.T) {
	p := newPipeline(t)
	var tiled []float64
	for i := 0; i < 3; i++ {
		p.run(t, "demo_sliced.yaml", "pairs.yaml", job.Flags{NJobs: intp(2), NCores: intp(2)}, intp(i), nil)
		p.run(t, "demo_sliced.yaml", "pairs.yaml", job.Flags{NJobs: intp(2)}, intp(i), nil)

		doc := p.read(t, "pairs", fmt.Sprintf("z%d", i))
		rows, cols := doc.Header.Shape[0], doc.Header.Shape[1]
		o := doc.Header.Overlap
		tiled = append(tiled, doc.Values[o.Low*cols:(rows-o.High)*cols]...)
	}
	assert.Equal(t, wantPairs, tiled)
}

func TestPipeline_ShowAfterRuns(t *testing.T) {
	p := newPipeline(t)
	p.run(t, "demo.yaml", "histogram.yaml", job.Flags{NJobs: intp(2), NCores: intp(1)}, nil, nil)
	p.run(t, "demo.yaml", "histogram.yaml", job.Flags{NJobs: intp(2)}, nil, nil)

	var out bytes.Buffer
	p.run(t, "demo.yaml", "histogram.yaml", job.Flags{NJobs: intp(2), Show: true}, nil, &out)
	s := out.String()
	assert.Contains(t, s, "configuration demo")
	assert.Contains(t, s, "output demo_histogram.json.xz\n")
	assert.Contains(t, s, "demo_histogram_1of2.json.xz: present")
	assert.Contains(t, s, "combine completed")
}
