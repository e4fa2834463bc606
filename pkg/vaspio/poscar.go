package vaspio

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Vec3 is a Cartesian or fractional 3-vector.
type Vec3 [3]float64

// Norm returns the Euclidean length.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Scale returns v multiplied by f.
func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{v[0] * f, v[1] * f, v[2] * f}
}

func cross(a, b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b Vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Lattice holds the three lattice vectors as rows, in Angstrom.
type Lattice [3]Vec3

// Volume returns the cell volume.
func (l Lattice) Volume() float64 {
	return math.Abs(dot(l[0], cross(l[1], l[2])))
}

// ABC returns the lattice vector lengths.
func (l Lattice) ABC() [3]float64 {
	return [3]float64{l[0].Norm(), l[1].Norm(), l[2].Norm()}
}

// Reciprocal returns the reciprocal lattice including the 2π factor
// (b_i · a_j = 2π δ_ij).
func (l Lattice) Reciprocal() Lattice {
	v := dot(l[0], cross(l[1], l[2]))
	f := 2 * math.Pi / v
	return Lattice{
		cross(l[1], l[2]).Scale(f),
		cross(l[2], l[0]).Scale(f),
		cross(l[0], l[1]).Scale(f),
	}
}

// WithLength returns a copy of l whose vector at axis is rescaled to length.
func (l Lattice) WithLength(axis int, length float64) Lattice {
	out := l
	out[axis] = l[axis].Scale(length / l[axis].Norm())
	return out
}

// Site is one atom in fractional coordinates.
type Site struct {
	Species string
	Frac    Vec3
}

// Structure is a periodic crystal: lattice plus sites.
type Structure struct {
	Comment string
	Lattice Lattice
	Sites   []Site
}

// Volume returns the cell volume.
func (s *Structure) Volume() float64 { return s.Lattice.Volume() }

// WithLattice returns a copy of s on a new lattice, keeping fractional coordinates.
func (s *Structure) WithLattice(l Lattice) *Structure {
	sites := make([]Site, len(s.Sites))
	copy(sites, s.Sites)
	return &Structure{Comment: s.Comment, Lattice: l, Sites: sites}
}

// speciesGroups returns consecutive species blocks in site order.
func (s *Structure) speciesGroups() ([]string, []int) {
	var names []string
	var counts []int
	for _, site := range s.Sites {
		if n := len(names); n > 0 && names[n-1] == site.Species {
			counts[n-1]++
			continue
		}
		names = append(names, site.Species)
		counts = append(counts, 1)
	}
	return names, counts
}

// ReadPoscar parses a POSCAR/CONTCAR file.
func ReadPoscar(path string) (*Structure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ParsePoscar(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return s, nil
}

// ParsePoscar reads the VASP 5 structure format (species names line required).
func ParsePoscar(r io.Reader) (*Structure, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) < 8 {
		return nil, fmt.Errorf("structure too short: %d lines", len(lines))
	}

	s := &Structure{Comment: strings.TrimSpace(lines[0])}
	scale, err := parseFloat(firstField(lines[1]))
	if err != nil {
		return nil, fmt.Errorf("scale factor: %w", err)
	}
	for i := 0; i < 3; i++ {
		v, err := parseVec(lines[2+i])
		if err != nil {
			return nil, fmt.Errorf("lattice vector %d: %w", i+1, err)
		}
		s.Lattice[i] = v
	}
	if scale < 0 {
		// Negative scale is the target volume.
		scale = math.Cbrt(-scale / s.Lattice.Volume())
	}
	for i := range s.Lattice {
		s.Lattice[i] = s.Lattice[i].Scale(scale)
	}

	names := strings.Fields(lines[5])
	countLine := strings.Fields(lines[6])
	if len(names) != len(countLine) {
		return nil, fmt.Errorf("species names %v do not match counts %v", names, countLine)
	}
	counts := make([]int, len(countLine))
	total := 0
	for i, c := range countLine {
		n, err := strconv.Atoi(c)
		if err != nil {
			return nil, fmt.Errorf("species count %q: %w", c, err)
		}
		counts[i] = n
		total += n
	}

	idx := 7
	if mode := strings.ToLower(strings.TrimSpace(lines[idx])); strings.HasPrefix(mode, "s") {
		idx++ // selective dynamics
	}
	if idx >= len(lines) {
		return nil, fmt.Errorf("missing coordinate mode line")
	}
	mode := strings.ToLower(strings.TrimSpace(lines[idx]))
	cartesian := strings.HasPrefix(mode, "c") || strings.HasPrefix(mode, "k")
	idx++
	if len(lines) < idx+total {
		return nil, fmt.Errorf("expected %d coordinates, found %d", total, len(lines)-idx)
	}

	inv := s.Lattice.inverse()
	k := 0
	for si, name := range names {
		for j := 0; j < counts[si]; j++ {
			v, err := parseVec(lines[idx+k])
			if err != nil {
				return nil, fmt.Errorf("coordinate %d: %w", k+1, err)
			}
			if cartesian {
				v = inv.apply(v.Scale(scale))
			}
			s.Sites = append(s.Sites, Site{Species: name, Frac: v})
			k++
		}
	}
	return s, nil
}

// WriteFile writes s to path in direct (fractional) coordinates.
func (s *Structure) WriteFile(path string) error {
	var b strings.Builder
	if _, err := s.WriteTo(&b); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// WriteTo writes s in POSCAR syntax.
func (s *Structure) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	comment := s.Comment
	if comment == "" {
		comment = "strata"
	}
	b.WriteString(comment + "\n1.0\n")
	for _, v := range s.Lattice {
		fmt.Fprintf(&b, "  %.16f %.16f %.16f\n", v[0], v[1], v[2])
	}
	names, counts := s.speciesGroups()
	b.WriteString(strings.Join(names, " ") + "\n")
	countStrs := make([]string, len(counts))
	for i, c := range counts {
		countStrs[i] = strconv.Itoa(c)
	}
	b.WriteString(strings.Join(countStrs, " ") + "\nDirect\n")
	for _, site := range s.Sites {
		fmt.Fprintf(&b, "  %.16f %.16f %.16f %s\n", site.Frac[0], site.Frac[1], site.Frac[2], site.Species)
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

type mat3 [3]Vec3

// inverse returns the matrix mapping Cartesian coordinates to fractional ones
// for a lattice stored as row vectors.
func (l Lattice) inverse() mat3 {
	a, b, c := l[0], l[1], l[2]
	det := dot(a, cross(b, c))
	bc, ca, ab := cross(b, c), cross(c, a), cross(a, b)
	return mat3{bc.Scale(1 / det), ca.Scale(1 / det), ab.Scale(1 / det)}
}

// apply computes frac_i = row_i · cart.
func (m mat3) apply(v Vec3) Vec3 {
	return Vec3{dot(m[0], v), dot(m[1], v), dot(m[2], v)}
}

func firstField(line string) string {
	f := strings.Fields(line)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

func parseVec(line string) (Vec3, error) {
	f := strings.Fields(line)
	if len(f) < 3 {
		return Vec3{}, fmt.Errorf("expected 3 numbers in %q", line)
	}
	var v Vec3
	for i := 0; i < 3; i++ {
		x, err := parseFloat(f[i])
		if err != nil {
			return Vec3{}, err
		}
		v[i] = x
	}
	return v, nil
}
