package recipe

// Presets returns the built-in recipes, keyed by ID. They name the "vasp"
// solver so the command comes from the solver registry or the CLI.
func Presets() map[string]string {
	return map[string]string{
		"single": `description: One solver run with backup and continuation.
kind: single
solver: vasp
auto_continue: true
`,
		"double-relax": `description: Two consecutive relaxations, the first on a halved k-point grid.
kind: double_relaxation
solver: vasp
half_kpts_first_relax: true
ediffg: -0.05
`,
		"metagga": `description: GGA preconditioning followed by a meta-GGA double relaxation.
kind: metagga
solver: vasp
half_kpts_first_relax: true
`,
		"full-opt": `description: Relax until the cell volume changes by less than 2%.
kind: full_optimization
solver: vasp
vol_change_tol: 0.02
max_steps: 10
`,
		"eos-c": `description: Energy minimum along the c axis at fixed a and b.
kind: constrained
solver: vasp
direction: c
initial_strain: 0.01
algo: bfgs
max_steps: 20
`,
		"neb": `description: Multi-image run over numbered image directories.
kind: neb
solver: vasp
half_kpts: true
auto_continue: true
`,
	}
}
