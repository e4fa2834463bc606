package vaspio

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// KpointsStyle is the generation mode of a KPOINTS file.
type KpointsStyle string

const (
	StyleGamma     KpointsStyle = "Gamma"
	StyleMonkhorst KpointsStyle = "Monkhorst"
	StyleAutomatic KpointsStyle = "Automatic" // single length parameter
	StyleExplicit  KpointsStyle = "Explicit"  // explicit list or line mode, kept verbatim
)

// Kpoints describes a k-point sampling. Automatic grids are fully modelled;
// explicit lists keep their body lines verbatim.
type Kpoints struct {
	Comment  string       `mapstructure:"comment"`
	NumKpts  int          `mapstructure:"nkpoints"`
	Style    KpointsStyle `mapstructure:"generation_style"`
	Kpts     [][]int      `mapstructure:"kpoints"`
	Shift    [3]float64   `mapstructure:"usershift"`
	Length   float64      `mapstructure:"length"`
	Explicit []string     `mapstructure:"explicit"`
}

// NewGammaGrid returns a Gamma-centred grid.
func NewGammaGrid(n1, n2, n3 int) *Kpoints {
	return &Kpoints{Comment: "Automatic mesh", Style: StyleGamma, Kpts: [][]int{{n1, n2, n3}}}
}

// Grid returns the first subdivision row, or nil for non-grid styles.
func (k *Kpoints) Grid() []int {
	if len(k.Kpts) == 0 {
		return nil
	}
	return k.Kpts[0]
}

// IsGammaOnly reports a Gamma-centred 1x1x1 grid without shift.
func (k *Kpoints) IsGammaOnly() bool {
	if k.Style != StyleGamma {
		return false
	}
	g := k.Grid()
	if len(g) != 3 || g[0] != 1 || g[1] != 1 || g[2] != 1 {
		return false
	}
	for _, s := range k.Shift {
		if math.Abs(s) >= 1e-6 {
			return false
		}
	}
	return true
}

// Halved returns a copy with every subdivision halved (floor, minimum 1).
// A grid that collapses to 1x1x1 switches to Gamma style when gammaOnCollapse is set.
func (k *Kpoints) Halved(gammaOnCollapse bool) *Kpoints {
	out := k.Clone()
	for i, row := range out.Kpts {
		for j, n := range row {
			out.Kpts[i][j] = max(n/2, 1)
		}
	}
	if gammaOnCollapse {
		if g := out.Grid(); len(g) == 3 && g[0] == 1 && g[1] == 1 && g[2] == 1 {
			out.Style = StyleGamma
		}
	}
	return out
}

// Clone returns a deep copy.
func (k *Kpoints) Clone() *Kpoints {
	out := *k
	out.Kpts = make([][]int, len(k.Kpts))
	for i, row := range k.Kpts {
		out.Kpts[i] = append([]int(nil), row...)
	}
	out.Explicit = append([]string(nil), k.Explicit...)
	return &out
}

// Map returns the document as a mapping, the form directives merge into.
func (k *Kpoints) Map() (map[string]any, error) {
	out := map[string]any{}
	if err := mapstructure.Decode(k.Clone(), &out); err != nil {
		return nil, fmt.Errorf("encode kpoints: %w", err)
	}
	return out, nil
}

// KpointsFromMap decodes a mapping produced by Map, possibly after merges
// with values that went through JSON.
func KpointsFromMap(m map[string]any) (*Kpoints, error) {
	var k Kpoints
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &k,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode kpoints: %w", err)
	}
	return &k, nil
}

// ReadKpoints parses the KPOINTS file at path.
func ReadKpoints(path string) (*Kpoints, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	k, err := ParseKpoints(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return k, nil
}

// ParseKpoints reads a KPOINTS document.
func ParseKpoints(r io.Reader) (*Kpoints, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) < 3 {
		return nil, fmt.Errorf("kpoints too short: %d lines", len(lines))
	}

	k := &Kpoints{Comment: strings.TrimSpace(lines[0])}
	n, err := strconv.Atoi(firstField(lines[1]))
	if err != nil {
		return nil, fmt.Errorf("kpoint count: %w", err)
	}
	k.NumKpts = n

	style := strings.ToLower(strings.TrimSpace(lines[2]))
	if n > 0 || style == "" || strings.HasPrefix(style, "l") {
		k.Style = StyleExplicit
		k.Explicit = append([]string(nil), lines[2:]...)
		return k, nil
	}

	switch style[0] {
	case 'g':
		k.Style = StyleGamma
	case 'm':
		k.Style = StyleMonkhorst
	case 'a':
		k.Style = StyleAutomatic
		if len(lines) < 4 {
			return nil, fmt.Errorf("automatic kpoints missing length")
		}
		if k.Length, err = parseFloat(firstField(lines[3])); err != nil {
			return nil, fmt.Errorf("length: %w", err)
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unsupported kpoints style %q", lines[2])
	}

	if len(lines) < 4 {
		return nil, fmt.Errorf("kpoints grid missing")
	}
	fields := strings.Fields(lines[3])
	if len(fields) < 3 {
		return nil, fmt.Errorf("kpoints grid %q needs 3 subdivisions", lines[3])
	}
	grid := make([]int, 3)
	for i := range grid {
		if grid[i], err = strconv.Atoi(fields[i]); err != nil {
			return nil, fmt.Errorf("subdivision %q: %w", fields[i], err)
		}
	}
	k.Kpts = [][]int{grid}
	if len(lines) > 4 && strings.TrimSpace(lines[4]) != "" {
		v, err := parseVec(lines[4])
		if err != nil {
			return nil, fmt.Errorf("shift: %w", err)
		}
		k.Shift = [3]float64(v)
	}
	return k, nil
}

// WriteTo writes the document in KPOINTS syntax.
func (k *Kpoints) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	b.WriteString(k.Comment + "\n")
	switch k.Style {
	case StyleExplicit:
		fmt.Fprintf(&b, "%d\n", k.NumKpts)
		for _, l := range k.Explicit {
			b.WriteString(l + "\n")
		}
	case StyleAutomatic:
		b.WriteString("0\nAuto\n")
		b.WriteString(strconv.FormatFloat(k.Length, 'g', -1, 64) + "\n")
	default:
		b.WriteString("0\n" + string(k.Style) + "\n")
		g := k.Grid()
		if len(g) != 3 {
			return 0, fmt.Errorf("kpoints grid %v needs 3 subdivisions", g)
		}
		fmt.Fprintf(&b, "%d %d %d\n", g[0], g[1], g[2])
		if k.Shift != [3]float64{} {
			fmt.Fprintf(&b, "%s %s %s\n", FormatValue(k.Shift[0]), FormatValue(k.Shift[1]), FormatValue(k.Shift[2]))
		}
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// WriteFile writes the document to path.
func (k *Kpoints) WriteFile(path string) error {
	var b strings.Builder
	if _, err := k.WriteTo(&b); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
