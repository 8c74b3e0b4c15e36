// Package catalog reads object catalogs stored as CSV with a header row.
// The "z" column is required; "weight" defaults to 1 and other columns
// such as "ra" and "dec" are carried but unused by the z routines.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Object is one catalog entry.
type Object struct {
	RA     float64
	Dec    float64
	Z      float64
	Weight float64
}

// ReadFile reads the catalog at path, sorted by ascending z.
func ReadFile(path string) ([]Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	objs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return objs, nil
}

// Read parses a CSV catalog and sorts it by ascending z.
func Read(r io.Reader) ([]Object, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty catalog")
	}
	if err != nil {
		return nil, err
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	zCol, ok := cols["z"]
	if !ok {
		return nil, fmt.Errorf("catalog header %v has no z column", header)
	}

	var objs []Object
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		o := Object{Weight: 1}
		if o.Z, err = field(rec, zCol, line, "z"); err != nil {
			return nil, err
		}
		for name, dst := range map[string]*float64{"weight": &o.Weight, "ra": &o.RA, "dec": &o.Dec} {
			if c, ok := cols[name]; ok {
				if *dst, err = field(rec, c, line, name); err != nil {
					return nil, err
				}
			}
		}
		objs = append(objs, o)
	}

	SortByZ(objs)
	return objs, nil
}

// SortByZ orders objects by ascending z, keeping the input order of ties.
func SortByZ(objs []Object) {
	slices.SortStableFunc(objs, func(a, b Object) int {
		switch {
		case a.Z < b.Z:
			return -1
		case a.Z > b.Z:
			return 1
		default:
			return 0
		}
	})
}

func field(rec []string, col, line int, name string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: column %s: %w", line, name, err)
	}
	return v, nil
}
