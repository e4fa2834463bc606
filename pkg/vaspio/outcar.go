package vaspio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadMagnetization returns the total moment per ion from the last
// "magnetization (x)" table of the OUTCAR at path.
func ReadMagnetization(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mags, err := ParseMagnetization(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return mags, nil
}

// ParseMagnetization scans an OUTCAR stream for the per-ion moment table.
func ParseMagnetization(r io.Reader) ([]float64, error) {
	var (
		last    []float64
		current []float64
		inTable bool
		dashes  int
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "magnetization (x)") {
			inTable, dashes, current = true, 0, nil
			continue
		}
		if !inTable {
			continue
		}
		if strings.HasPrefix(line, "---") {
			dashes++
			if dashes == 2 {
				last, inTable = current, false
			}
			continue
		}
		if dashes != 1 || line == "" {
			continue
		}
		fields := strings.Fields(line)
		tot, err := parseFloat(fields[len(fields)-1])
		if err != nil {
			return nil, fmt.Errorf("magnetization row %q: %w", line, err)
		}
		current = append(current, tot)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if last == nil {
		return nil, fmt.Errorf("no magnetization table found")
	}
	return last, nil
}
