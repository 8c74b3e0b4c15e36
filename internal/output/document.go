// Package output persists routine results. Each output is an xz-compressed
// JSON document whose location is derived from its configuration, routine,
// suffixes and job descriptor, with a BLAKE3 digest alongside.
package output

import (
	"fmt"
	"time"

	"github.com/dusk-indust/paircorr/internal/binning"
	"github.com/dusk-indust/paircorr/internal/job"
)

// Header describes how a document was produced.
type Header struct {
	Config   string            `json:"config"`
	Routine  string            `json:"routine"`
	Suffixes []string          `json:"suffixes,omitempty"`
	Job      *job.Descriptor   `json:"job,omitempty"`
	RunID    string            `json:"runId,omitempty"`
	Created  time.Time         `json:"created"`
	BinningZ binning.Binning   `json:"binningZ"`
	Overlap  binning.Overlap   `json:"overlap"`
	Shape    []int             `json:"shape"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// Document is a dense row-major grid of values with its header.
type Document struct {
	Header Header    `json:"header"`
	Values []float64 `json:"values"`
}

// Size returns the number of cells implied by the header shape.
func (h Header) Size() int {
	n := 1
	for _, d := range h.Shape {
		n *= d
	}
	return n
}

// Validate checks that the values match the shape.
func (d *Document) Validate() error {
	if len(d.Header.Shape) == 0 {
		return fmt.Errorf("document has no shape")
	}
	if n := d.Header.Size(); n != len(d.Values) {
		return fmt.Errorf("document shape %v holds %d values, have %d", d.Header.Shape, n, len(d.Values))
	}
	return nil
}
