package recipe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRecipe is returned for recipes that cannot build a chain.
var ErrInvalidRecipe = errors.New("invalid recipe")

// Kind selects the chain a recipe builds.
type Kind string

const (
	KindSingle           Kind = "single"
	KindDoubleRelaxation Kind = "double_relaxation"
	KindMetaGGA          Kind = "metagga"
	KindFullOptimization Kind = "full_optimization"
	KindConstrained      Kind = "constrained"
	KindNEB              Kind = "neb"
)

// Kinds lists every supported chain kind.
func Kinds() []Kind {
	return []Kind{KindSingle, KindDoubleRelaxation, KindMetaGGA, KindFullOptimization, KindConstrained, KindNEB}
}

// Recipe describes one job chain and the job flags shared by its steps.
type Recipe struct {
	ID          string
	Description string
	Kind        Kind

	// Solver names an entry of the solver registry. Command and GammaCommand
	// take precedence when set.
	Solver       string
	Command      []string
	GammaCommand []string

	AutoNpar     bool
	AutoGamma    bool
	AutoContinue bool
	CopyMagmom   bool
	UpdateIncar  bool
	Backup       bool
	Suffix       string
	HalfKpts     bool

	HalfKptsFirstRelax bool
	Ediffg             float64
	VolChangeTol       float64
	// MaxSteps bounds looping kinds; zero keeps the kind's default.
	MaxSteps      int
	Direction     string
	InitialStrain float64
	AtomRelax     bool
	Algo          string

	// WallTime terminates a job still running after this long. Zero disables it.
	WallTime time.Duration

	SettingsOverride []domain.Directive

	// Generate, when set, regenerates inputs from the relaxed structure once
	// the chain is done.
	Generate *Generate
}

// Generate configures the trailing input-generation step.
type Generate struct {
	Incar       map[string]any
	ContcarOnly bool
}

// partial distinguishes absent fields (nil) from explicit zero values.
type partial struct {
	ID          *string `yaml:"id" json:"id"`
	Description *string `yaml:"description" json:"description"`
	Kind        *string `yaml:"kind" json:"kind"`

	Solver       *string `yaml:"solver" json:"solver"`
	Command      any     `yaml:"command" json:"command"`
	GammaCommand any     `yaml:"gamma_command" json:"gamma_command"`

	AutoNpar     *bool   `yaml:"auto_npar" json:"auto_npar"`
	AutoGamma    *bool   `yaml:"auto_gamma" json:"auto_gamma"`
	AutoContinue *bool   `yaml:"auto_continue" json:"auto_continue"`
	CopyMagmom   *bool   `yaml:"copy_magmom" json:"copy_magmom"`
	UpdateIncar  *bool   `yaml:"update_incar" json:"update_incar"`
	Backup       *bool   `yaml:"backup" json:"backup"`
	Suffix       *string `yaml:"suffix" json:"suffix"`
	HalfKpts     *bool   `yaml:"half_kpts" json:"half_kpts"`

	HalfKptsFirstRelax *bool    `yaml:"half_kpts_first_relax" json:"half_kpts_first_relax"`
	Ediffg             *float64 `yaml:"ediffg" json:"ediffg"`
	VolChangeTol       *float64 `yaml:"vol_change_tol" json:"vol_change_tol"`
	MaxSteps           *int     `yaml:"max_steps" json:"max_steps"`
	Direction          *string  `yaml:"direction" json:"direction"`
	InitialStrain      *float64 `yaml:"initial_strain" json:"initial_strain"`
	AtomRelax          *bool    `yaml:"atom_relax" json:"atom_relax"`
	Algo               *string  `yaml:"algo" json:"algo"`
	WallTime           *string  `yaml:"wall_time" json:"wall_time"`

	SettingsOverride any `yaml:"settings_override" json:"settings_override"`

	Generate *struct {
		Incar       map[string]any `yaml:"incar" json:"incar"`
		ContcarOnly bool           `yaml:"contcar_only" json:"contcar_only"`
	} `yaml:"generate" json:"generate"`
}

func defaults() Recipe {
	return Recipe{
		AutoGamma:    true,
		Backup:       true,
		Ediffg:       -0.05,
		VolChangeTol: 0.02,
		AtomRelax:    true,
		Algo:         "bfgs",
	}
}

// Load reads a recipe file. JSON is used for ".json" files, YAML otherwise.
// The file name without extension is the default ID.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe: %w", err)
	}
	var p partial
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &p)
	} else {
		err = yaml.Unmarshal(data, &p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	r, err := p.resolve()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if r.ID == "" {
		r.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return r, nil
}

// Parse decodes a recipe document as served by a recipe loader. Documents
// starting with '{' are JSON, anything else YAML.
func Parse(data []byte) (*Recipe, error) {
	var p partial
	var err error
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &p)
	} else {
		err = yaml.Unmarshal(data, &p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse recipe: %w", err)
	}
	return p.resolve()
}

func (p *partial) resolve() (*Recipe, error) {
	r := defaults()
	setString(&r.ID, p.ID)
	setString(&r.Description, p.Description)
	if p.Kind != nil {
		r.Kind = Kind(*p.Kind)
	}
	setString(&r.Solver, p.Solver)

	var err error
	if r.Command, err = commandArgs(p.Command); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecipe, err)
	}
	if r.GammaCommand, err = commandArgs(p.GammaCommand); err != nil {
		return nil, fmt.Errorf("%w: gamma_command: %w", ErrInvalidRecipe, err)
	}

	// Multi-image runs tune NPAR unless told otherwise.
	r.AutoNpar = r.Kind == KindNEB
	setBool(&r.AutoNpar, p.AutoNpar)
	setBool(&r.AutoGamma, p.AutoGamma)
	setBool(&r.AutoContinue, p.AutoContinue)
	setBool(&r.CopyMagmom, p.CopyMagmom)
	setBool(&r.UpdateIncar, p.UpdateIncar)
	setBool(&r.Backup, p.Backup)
	setString(&r.Suffix, p.Suffix)
	setBool(&r.HalfKpts, p.HalfKpts)

	setBool(&r.HalfKptsFirstRelax, p.HalfKptsFirstRelax)
	setFloat(&r.Ediffg, p.Ediffg)
	setFloat(&r.VolChangeTol, p.VolChangeTol)
	if p.MaxSteps != nil {
		r.MaxSteps = *p.MaxSteps
	}
	setString(&r.Direction, p.Direction)
	setFloat(&r.InitialStrain, p.InitialStrain)
	setBool(&r.AtomRelax, p.AtomRelax)
	setString(&r.Algo, p.Algo)

	if p.WallTime != nil && *p.WallTime != "" {
		if r.WallTime, err = time.ParseDuration(*p.WallTime); err != nil {
			return nil, fmt.Errorf("%w: wall_time: %w", ErrInvalidRecipe, err)
		}
	}

	if p.SettingsOverride != nil {
		if r.SettingsOverride, err = decodeDirectives(p.SettingsOverride); err != nil {
			return nil, fmt.Errorf("%w: settings_override: %w", ErrInvalidRecipe, err)
		}
	}
	if p.Generate != nil {
		r.Generate = &Generate{Incar: p.Generate.Incar, ContcarOnly: p.Generate.ContcarOnly}
	}

	if r.Kind == KindConstrained && p.InitialStrain == nil {
		return nil, fmt.Errorf("%w: constrained optimization needs initial_strain", ErrInvalidRecipe)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// decodeDirectives converts a decoded YAML or JSON list into directives
// through their persisted JSON form.
func decodeDirectives(raw any) ([]domain.Directive, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var out []domain.Directive
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks the fields a chain needs. The command may still be empty
// when a solver name is given; it is resolved before building.
func (r *Recipe) Validate() error {
	if r.Kind == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalidRecipe)
	}
	if !slices.Contains(Kinds(), r.Kind) {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecipe, r.Kind)
	}
	if len(r.Command) == 0 && r.Solver == "" {
		return fmt.Errorf("%w: command or solver is required", ErrInvalidRecipe)
	}
	if r.Kind == KindConstrained {
		if len(r.Direction) != 1 || !strings.Contains("abc", r.Direction) {
			return fmt.Errorf("%w: direction must be a, b or c, got %q", ErrInvalidRecipe, r.Direction)
		}
		if r.Algo != "bfgs" && r.Algo != "bisection" {
			return fmt.Errorf("%w: unknown algo %q", ErrInvalidRecipe, r.Algo)
		}
	}
	if r.MaxSteps < 0 {
		return fmt.Errorf("%w: max_steps must not be negative", ErrInvalidRecipe)
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
