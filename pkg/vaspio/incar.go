package vaspio

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Incar is an ordered key/value settings document.
// Keys are upper-cased; insertion order is preserved when writing.
type Incar struct {
	keys   []string
	values map[string]any
}

// NewIncar returns an empty document.
func NewIncar() *Incar {
	return &Incar{values: make(map[string]any)}
}

// ReadIncar parses the INCAR file at path.
func ReadIncar(path string) (*Incar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	inc, err := ParseIncar(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return inc, nil
}

// ParseIncar reads "KEY = value" assignments. Comments start with '#' or '!';
// several assignments may share a line separated by ';'.
func ParseIncar(r io.Reader) (*Incar, error) {
	inc := NewIncar()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexAny(line, "#!"); i >= 0 {
			line = line[:i]
		}
		for _, stmt := range strings.Split(line, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			key, raw, ok := strings.Cut(stmt, "=")
			if !ok {
				return nil, fmt.Errorf("line %d: missing '=' in %q", lineNo, stmt)
			}
			key = strings.ToUpper(strings.TrimSpace(key))
			if key == "" {
				return nil, fmt.Errorf("line %d: empty key", lineNo)
			}
			inc.Set(key, ParseValue(strings.TrimSpace(raw)))
		}
	}
	return inc, sc.Err()
}

// Get returns the value stored under key.
func (inc *Incar) Get(key string) (any, bool) {
	v, ok := inc.values[strings.ToUpper(key)]
	return v, ok
}

// Has reports whether key is present.
func (inc *Incar) Has(key string) bool {
	_, ok := inc.Get(key)
	return ok
}

// Set stores value under key, appending new keys at the end.
func (inc *Incar) Set(key string, value any) {
	key = strings.ToUpper(key)
	if _, exists := inc.values[key]; !exists {
		inc.keys = append(inc.keys, key)
	}
	inc.values[key] = value
}

// Delete removes key if present.
func (inc *Incar) Delete(key string) {
	key = strings.ToUpper(key)
	if _, ok := inc.values[key]; !ok {
		return
	}
	delete(inc.values, key)
	for i, k := range inc.keys {
		if k == key {
			inc.keys = append(inc.keys[:i], inc.keys[i+1:]...)
			break
		}
	}
}

// Merge overwrites or adds every entry of values. A nil value removes the key.
// New keys are appended in sorted order.
func (inc *Incar) Merge(values map[string]any) {
	for _, k := range slices.Sorted(maps.Keys(values)) {
		v := values[k]
		if v == nil {
			inc.Delete(k)
			continue
		}
		inc.Set(k, v)
	}
}

// Keys returns the keys in document order.
func (inc *Incar) Keys() []string {
	out := make([]string, len(inc.keys))
	copy(out, inc.keys)
	return out
}

// Len returns the number of settings.
func (inc *Incar) Len() int { return len(inc.keys) }

// Bool reports the truthiness of key; absent keys are false.
func (inc *Incar) Bool(key string) bool {
	v, ok := inc.Get(key)
	if !ok {
		return false
	}
	return Truthy(v)
}

// Float returns key as a float64.
func (inc *Incar) Float(key string) (float64, bool) {
	v, ok := inc.Get(key)
	if !ok {
		return 0, false
	}
	return AsFloat(v)
}

// Int returns key as an int.
func (inc *Incar) Int(key string) (int, bool) {
	f, ok := inc.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Map returns a copy of the settings as a plain mapping.
func (inc *Incar) Map() map[string]any {
	out := make(map[string]any, len(inc.keys))
	for _, k := range inc.keys {
		out[k] = inc.values[k]
	}
	return out
}

// WriteTo writes the document in INCAR syntax.
func (inc *Incar) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	for _, k := range inc.keys {
		fmt.Fprintf(&b, "%s = %s\n", k, FormatValue(inc.values[k]))
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}

// WriteFile writes the document to path.
func (inc *Incar) WriteFile(path string) error {
	var b strings.Builder
	if _, err := inc.WriteTo(&b); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// ParseValue converts a raw INCAR value into bool, int, float64, a []any of
// numbers, or a string. "N*x" tokens in numeric lists are expanded.
func ParseValue(raw string) any {
	if raw == "" {
		return ""
	}
	if b, ok := parseBool(raw); ok {
		return b
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	if f, err := parseFloat(raw); err == nil {
		return f
	}
	fields := strings.Fields(raw)
	if len(fields) > 1 {
		if list, ok := parseNumberList(fields); ok {
			return list
		}
		if bools, ok := parseBoolList(fields); ok {
			return bools
		}
	}
	return raw
}

func parseBool(s string) (bool, bool) {
	switch strings.ToUpper(strings.Trim(s, ".")) {
	case "TRUE", "T":
		return true, true
	case "FALSE", "F":
		return false, true
	}
	return false, false
}

func parseFloat(s string) (float64, error) {
	// Fortran exponents: 1.0D-5
	s = strings.NewReplacer("d", "e", "D", "e").Replace(s)
	return strconv.ParseFloat(s, 64)
}

func parseNumberList(fields []string) ([]any, bool) {
	out := make([]any, 0, len(fields))
	for _, tok := range fields {
		count := 1
		if n, v, ok := strings.Cut(tok, "*"); ok {
			c, err := strconv.Atoi(n)
			if err != nil || c < 0 {
				return nil, false
			}
			count, tok = c, v
		}
		var val any
		if i, err := strconv.Atoi(tok); err == nil {
			val = i
		} else if f, err := parseFloat(tok); err == nil {
			val = f
		} else {
			return nil, false
		}
		for j := 0; j < count; j++ {
			out = append(out, val)
		}
	}
	return out, true
}

func parseBoolList(fields []string) ([]any, bool) {
	out := make([]any, 0, len(fields))
	for _, tok := range fields {
		b, ok := parseBool(tok)
		if !ok {
			return nil, false
		}
		out = append(out, b)
	}
	return out, true
}

// FormatValue renders v in INCAR syntax.
func FormatValue(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return ".TRUE."
		}
		return ".FALSE."
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatValue(e)
		}
		return strings.Join(parts, " ")
	case []float64:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = FormatValue(e)
		}
		return strings.Join(parts, " ")
	case []int:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = strconv.Itoa(e)
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(v)
	}
}

// Truthy interprets a settings value as a flag.
func Truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, ok := parseBool(x)
		return ok && b
	case nil:
		return false
	default:
		f, ok := AsFloat(v)
		return ok && f != 0
	}
}

// AsFloat converts numeric settings values (including JSON numbers) to float64.
func AsFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case interface{ Float64() (float64, error) }:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := parseFloat(strings.TrimSpace(x))
		return f, err == nil
	}
	return 0, false
}
