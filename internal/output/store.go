package output

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/dusk-indust/paircorr/internal/job"
)

const (
	ext       = ".json.xz"
	digestExt = ".b3"
)

// osRename is a variable to allow testing of rename errors.
var osRename = os.Rename

// Key identifies one output.
type Key struct {
	Config   string
	Routine  string
	Suffixes []string
	Job      *job.Descriptor // nil for a complete (single or combined) output
}

// ForJob returns a copy of k bound to job d.
func (k Key) ForJob(d job.Descriptor) Key {
	k.Job = &d
	return k
}

// Name is the file name: <config>_<routine>[_<suffix>...][_<i>of<n>].json.xz
func (k Key) Name() string {
	parts := append([]string{k.Config, k.Routine}, k.Suffixes...)
	if k.Job != nil {
		parts = append(parts, k.Job.Tag())
	}
	return strings.Join(parts, "_") + ext
}

// Store reads and writes outputs under a directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store root.
func (s *Store) Dir() string { return s.dir }

// Path returns the document path for k.
func (s *Store) Path(k Key) string { return filepath.Join(s.dir, k.Name()) }

func (s *Store) digestPath(k Key) string { return s.Path(k) + digestExt }

// Exists reports whether a complete output (document and digest) exists for k.
func (s *Store) Exists(k Key) bool {
	if _, err := os.Stat(s.Path(k)); err != nil {
		return false
	}
	_, err := os.Stat(s.digestPath(k))
	return err == nil
}

// Write validates, encodes and atomically writes doc, then its digest.
// It returns the hex BLAKE3 digest of the written file. An existing digest
// is removed first, so a rewrite is never seen as complete against the
// previous document's digest.
func (s *Store) Write(k Key, doc *Document) (string, error) {
	if err := doc.Validate(); err != nil {
		return "", err
	}
	data, err := encode(doc)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	sum := blake3.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	if err := os.Remove(s.digestPath(k)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to remove stale digest: %w", err)
	}
	if err := writeAtomic(s.Path(k), data); err != nil {
		return "", err
	}
	if err := writeAtomic(s.digestPath(k), []byte(digest+"\n")); err != nil {
		return "", err
	}
	return digest, nil
}

// Read loads the output for k and verifies its digest. A missing document
// yields an error wrapping os.ErrNotExist.
func (s *Store) Read(k Key) (*Document, error) {
	path := s.Path(k)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	want, err := os.ReadFile(s.digestPath(k))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &IntegrityError{Path: path}
		}
		return nil, fmt.Errorf("read digest: %w", err)
	}
	sum := blake3.Sum256(data)
	got := hex.EncodeToString(sum[:])
	if w := strings.TrimSpace(string(want)); w != got {
		return nil, &IntegrityError{Path: path, Want: w, Got: got}
	}
	doc, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

// Remove deletes the output for k, ignoring absent files.
func (s *Store) Remove(k Key) error {
	for _, p := range []string{s.Path(k), s.digestPath(k)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func encode(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create xz writer: %w", err)
	}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish xz stream: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*Document, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xz stream: %w", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read xz stream: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func writeAtomic(path string, data []byte) error {
	tempFile, err := os.CreateTemp(filepath.Dir(path), ".output-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	// Rename to final path (atomic on POSIX)
	if err := osRename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename output: %w", err)
	}
	return nil
}
