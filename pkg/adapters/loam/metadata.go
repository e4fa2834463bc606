package loam

// RecipeMetadata is the frontmatter of a recipe document. Keys mirror the
// recipe file format; pointers keep absent fields absent in the served document.
type RecipeMetadata struct {
	ID          string `json:"id,omitempty" mapstructure:"id"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	Kind        string `json:"kind,omitempty" mapstructure:"kind"`

	Solver       string `json:"solver,omitempty" mapstructure:"solver"`
	Command      any    `json:"command,omitempty" mapstructure:"command"`
	GammaCommand any    `json:"gamma_command,omitempty" mapstructure:"gamma_command"`

	AutoNpar     *bool   `json:"auto_npar,omitempty" mapstructure:"auto_npar"`
	AutoGamma    *bool   `json:"auto_gamma,omitempty" mapstructure:"auto_gamma"`
	AutoContinue *bool   `json:"auto_continue,omitempty" mapstructure:"auto_continue"`
	CopyMagmom   *bool   `json:"copy_magmom,omitempty" mapstructure:"copy_magmom"`
	UpdateIncar  *bool   `json:"update_incar,omitempty" mapstructure:"update_incar"`
	Backup       *bool   `json:"backup,omitempty" mapstructure:"backup"`
	Suffix       *string `json:"suffix,omitempty" mapstructure:"suffix"`
	HalfKpts     *bool   `json:"half_kpts,omitempty" mapstructure:"half_kpts"`

	HalfKptsFirstRelax *bool    `json:"half_kpts_first_relax,omitempty" mapstructure:"half_kpts_first_relax"`
	Ediffg             *float64 `json:"ediffg,omitempty" mapstructure:"ediffg"`
	VolChangeTol       *float64 `json:"vol_change_tol,omitempty" mapstructure:"vol_change_tol"`
	MaxSteps           *int     `json:"max_steps,omitempty" mapstructure:"max_steps"`
	Direction          *string  `json:"direction,omitempty" mapstructure:"direction"`
	InitialStrain      *float64 `json:"initial_strain,omitempty" mapstructure:"initial_strain"`
	AtomRelax          *bool    `json:"atom_relax,omitempty" mapstructure:"atom_relax"`
	Algo               *string  `json:"algo,omitempty" mapstructure:"algo"`
	WallTime           *string  `json:"wall_time,omitempty" mapstructure:"wall_time"`

	SettingsOverride []any         `json:"settings_override,omitempty" mapstructure:"settings_override"`
	Generate         map[string]any `json:"generate,omitempty" mapstructure:"generate"`
}
