package domain

import (
	"encoding/json"
	"fmt"
)

// TargetKind selects what a Directive mutates.
type TargetKind string

const (
	TargetDict TargetKind = "dict" // A config document (INCAR, KPOINTS) loaded as a mapping
	TargetFile TargetKind = "file" // A plain file in the working directory
)

// Directive is one declarative mutation applied to a working directory.
// Exactly one operation is populated: Set for dict targets, CopyTo for file targets.
type Directive struct {
	Target TargetKind
	Name   string

	// Set is merged into the target document. A nil value removes the key.
	Set map[string]any

	// CopyTo is the destination of a file copy, relative to the working directory.
	CopyTo string
}

// SetDirective builds a directive merging values into a config document.
func SetDirective(document string, values map[string]any) Directive {
	return Directive{Target: TargetDict, Name: document, Set: values}
}

// CopyDirective builds a directive copying src onto dest.
func CopyDirective(src, dest string) Directive {
	return Directive{Target: TargetFile, Name: src, CopyTo: dest}
}

// Concat composes directive lists, earlier lists first.
// It always returns a fresh slice so callers can append safely.
func Concat(lists ...[]Directive) []Directive {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	out := make([]Directive, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// wireDirective is the persisted form:
//
//	{"dict": "INCAR", "action": {"_set": {"ISTART": 1}}}
//	{"file": "CONTCAR", "action": {"_file_copy": {"dest": "POSCAR"}}}
type wireDirective struct {
	Dict   string     `json:"dict,omitempty"`
	File   string     `json:"file,omitempty"`
	Action wireAction `json:"action"`
}

type wireAction struct {
	Set      map[string]any `json:"_set,omitempty"`
	FileCopy *wireFileCopy  `json:"_file_copy,omitempty"`
}

type wireFileCopy struct {
	Dest string `json:"dest"`
}

// MarshalJSON implements json.Marshaler.
func (d Directive) MarshalJSON() ([]byte, error) {
	var w wireDirective
	switch d.Target {
	case TargetDict:
		w.Dict = d.Name
		w.Action.Set = d.Set
		if w.Action.Set == nil {
			w.Action.Set = map[string]any{}
		}
	case TargetFile:
		w.File = d.Name
		w.Action.FileCopy = &wireFileCopy{Dest: d.CopyTo}
	default:
		return nil, fmt.Errorf("%w: unknown target %q", ErrUnsupportedDirective, d.Target)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Directive) UnmarshalJSON(data []byte) error {
	var w wireDirective
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch {
	case w.Dict != "" && w.File != "":
		return fmt.Errorf("%w: directive targets both %q and %q", ErrUnsupportedDirective, w.Dict, w.File)
	case w.Dict != "":
		if w.Action.FileCopy != nil {
			return fmt.Errorf("%w: _file_copy on dict %q", ErrUnsupportedDirective, w.Dict)
		}
		*d = SetDirective(w.Dict, w.Action.Set)
	case w.File != "":
		if w.Action.FileCopy == nil {
			return fmt.Errorf("%w: file %q without _file_copy", ErrUnsupportedDirective, w.File)
		}
		*d = CopyDirective(w.File, w.Action.FileCopy.Dest)
	default:
		return fmt.Errorf("%w: directive has no target", ErrUnsupportedDirective)
	}
	return nil
}

// String returns a compact description for logs.
func (d Directive) String() string {
	if d.Target == TargetFile {
		return fmt.Sprintf("copy %s -> %s", d.Name, d.CopyTo)
	}
	return fmt.Sprintf("set %s %v", d.Name, d.Set)
}

// Marker is the persisted continuation record.
type Marker struct {
	Actions []Directive `json:"actions"`
}

// DefaultContinuation copies the relaxed structure forward and restarts from it.
func DefaultContinuation() []Directive {
	return []Directive{
		CopyDirective(FileContcar, FilePoscar),
		SetDirective(FileIncar, map[string]any{"ISTART": 1}),
	}
}
