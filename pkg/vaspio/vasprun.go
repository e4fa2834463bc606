package vaspio

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Vasprun is the subset of a run record the engine consumes.
type Vasprun struct {
	// Parameters are the resolved solver settings, keyed upper-case.
	Parameters map[string]any
	// FinalEnergy is the energy of the last ionic step.
	FinalEnergy float64
	// FinalStructure is the last structure recorded, if any.
	FinalStructure *Structure
}

type xmlVasprun struct {
	Parameters   xmlSection       `xml:"parameters"`
	AtomArrays   []xmlAtomArray   `xml:"atominfo>array"`
	Structures   []xmlStructure   `xml:"structure"`
	Calculations []xmlCalculation `xml:"calculation"`
}

type xmlSection struct {
	Items      []xmlItem    `xml:"i"`
	Vectors    []xmlItem    `xml:"v"`
	Separators []xmlSection `xml:"separator"`
}

type xmlItem struct {
	Name  string `xml:"name,attr"`
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type xmlAtomArray struct {
	Name string   `xml:"name,attr"`
	Rows []xmlRow `xml:"set>rc"`
}

type xmlRow struct {
	Cols []string `xml:"c"`
}

type xmlVarray struct {
	Name string   `xml:"name,attr"`
	Rows []string `xml:"v"`
}

type xmlStructure struct {
	Name    string      `xml:"name,attr"`
	Crystal []xmlVarray `xml:"crystal>varray"`
	Arrays  []xmlVarray `xml:"varray"`
}

type xmlCalculation struct {
	Energy    []xmlItem      `xml:"energy>i"`
	Structure []xmlStructure `xml:"structure"`
}

// ReadVasprun parses the run record at path.
func ReadVasprun(path string) (*Vasprun, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var raw xmlVasprun
	dec := xml.NewDecoder(f)
	// Run records declare ISO-8859-1 but carry ASCII payloads.
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	vr := &Vasprun{Parameters: map[string]any{}}
	collectParameters(raw.Parameters, vr.Parameters)

	if len(raw.Calculations) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoIonicSteps)
	}
	e, ok := energyOf(raw.Calculations[len(raw.Calculations)-1].Energy)
	if !ok {
		return nil, fmt.Errorf("%s: last ionic step has no energy", path)
	}
	vr.FinalEnergy = e

	if s, ok := raw.finalStructure(); ok {
		st, err := s.toStructure(raw.species())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		vr.FinalStructure = st
	}
	return vr, nil
}

// ErrNoIonicSteps is returned for a run record without any completed step.
var ErrNoIonicSteps = errors.New("no ionic steps recorded")

func collectParameters(sec xmlSection, into map[string]any) {
	for _, it := range sec.Items {
		into[strings.ToUpper(it.Name)] = it.value()
	}
	for _, it := range sec.Vectors {
		into[strings.ToUpper(it.Name)] = it.value()
	}
	for _, sub := range sec.Separators {
		collectParameters(sub, into)
	}
}

func (it xmlItem) value() any {
	raw := strings.TrimSpace(it.Value)
	switch it.Type {
	case "string":
		return raw
	case "logical":
		b, _ := parseBool(raw)
		return b
	case "int":
		fields := strings.Fields(raw)
		if len(fields) == 1 {
			if n, err := strconv.Atoi(fields[0]); err == nil {
				return n
			}
		}
	}
	return ParseValue(raw)
}

func energyOf(items []xmlItem) (float64, bool) {
	var fallback *float64
	for _, it := range items {
		v, err := parseFloat(strings.TrimSpace(it.Value))
		if err != nil {
			continue
		}
		switch strings.TrimSpace(it.Name) {
		case "e_0_energy":
			return v, true
		case "e_fr_energy":
			fallback = &v
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return 0, false
}

// finalStructure prefers the "finalpos" record, then the structure of the
// last ionic step, then the last top-level one.
func (r xmlVasprun) finalStructure() (xmlStructure, bool) {
	for _, s := range r.Structures {
		if s.Name == "finalpos" {
			return s, true
		}
	}
	if c := r.Calculations[len(r.Calculations)-1]; len(c.Structure) > 0 {
		return c.Structure[len(c.Structure)-1], true
	}
	if n := len(r.Structures); n > 0 {
		return r.Structures[n-1], true
	}
	return xmlStructure{}, false
}

func (r xmlVasprun) species() []string {
	for _, a := range r.AtomArrays {
		if a.Name != "atoms" {
			continue
		}
		out := make([]string, 0, len(a.Rows))
		for _, row := range a.Rows {
			if len(row.Cols) > 0 {
				out = append(out, strings.TrimSpace(row.Cols[0]))
			}
		}
		return out
	}
	return nil
}

func (s xmlStructure) toStructure(species []string) (*Structure, error) {
	st := &Structure{Comment: s.Name}
	var basis []string
	for _, v := range s.Crystal {
		if v.Name == "basis" {
			basis = v.Rows
		}
	}
	if len(basis) != 3 {
		return nil, fmt.Errorf("structure %q: basis has %d vectors", s.Name, len(basis))
	}
	for i, row := range basis {
		v, err := parseVec(row)
		if err != nil {
			return nil, fmt.Errorf("structure %q basis: %w", s.Name, err)
		}
		st.Lattice[i] = v
	}
	for _, arr := range s.Arrays {
		if arr.Name != "positions" {
			continue
		}
		for i, row := range arr.Rows {
			v, err := parseVec(row)
			if err != nil {
				return nil, fmt.Errorf("structure %q positions: %w", s.Name, err)
			}
			name := "X"
			if i < len(species) {
				name = species[i]
			}
			st.Sites = append(st.Sites, Site{Species: name, Frac: v})
		}
	}
	return st, nil
}
