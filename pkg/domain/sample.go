package domain

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// LatticeSample is one evaluated point of the constrained optimization.
type LatticeSample struct {
	Length float64 `json:"length"`
	Energy float64 `json:"energy"`
}

// SampleSet holds samples unique by length. Recording an existing length
// replaces its energy.
type SampleSet struct {
	energies map[float64]float64
}

// Record stores the energy for length.
func (s *SampleSet) Record(length, energy float64) {
	if s.energies == nil {
		s.energies = make(map[float64]float64)
	}
	s.energies[length] = energy
}

// Has reports whether length was already sampled.
func (s *SampleSet) Has(length float64) bool {
	_, ok := s.energies[length]
	return ok
}

// Energy returns the energy recorded for length.
func (s *SampleSet) Energy(length float64) (float64, bool) {
	e, ok := s.energies[length]
	return e, ok
}

// Len returns the number of distinct lengths.
func (s *SampleSet) Len() int { return len(s.energies) }

// Sorted returns the samples by ascending length.
func (s *SampleSet) Sorted() []LatticeSample {
	out := make([]LatticeSample, 0, len(s.energies))
	for l, e := range s.energies {
		out = append(out, LatticeSample{Length: l, Energy: e})
	}
	slices.SortFunc(out, func(a, b LatticeSample) int {
		switch {
		case a.Length < b.Length:
			return -1
		case a.Length > b.Length:
			return 1
		}
		return 0
	})
	return out
}

// WriteTable writes the two-column EOS table, sorted by length.
func (s *SampleSet) WriteTable(w io.Writer, direction string) error {
	if _, err := fmt.Fprintf(w, "# %s energy\n", direction); err != nil {
		return err
	}
	for _, smp := range s.Sorted() {
		if _, err := fmt.Fprintf(w, "%s %s\n", FormatLength(smp.Length), strconv.FormatFloat(smp.Energy, 'f', -1, 64)); err != nil {
			return err
		}
	}
	return nil
}

// ReadTable parses a table written by WriteTable. It returns the direction
// named in the header and the samples in file order.
func ReadTable(r io.Reader) (string, []LatticeSample, error) {
	var direction string
	var out []LatticeSample
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "#"); ok {
			if f := strings.Fields(rest); len(f) > 0 && direction == "" {
				direction = f[0]
			}
			continue
		}
		f := strings.Fields(line)
		if len(f) != 2 {
			return "", nil, fmt.Errorf("line %d: want two columns, got %d", n, len(f))
		}
		l, err := strconv.ParseFloat(f[0], 64)
		if err != nil {
			return "", nil, fmt.Errorf("line %d: %w", n, err)
		}
		e, err := strconv.ParseFloat(f[1], 64)
		if err != nil {
			return "", nil, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, LatticeSample{Length: l, Energy: e})
	}
	if err := sc.Err(); err != nil {
		return "", nil, err
	}
	return direction, out, nil
}

// FormatLength renders a lattice length the way it appears in file names and suffixes.
func FormatLength(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
