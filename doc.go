/*
Package strata runs chains of electronic-structure solver jobs (VASP) whose
next step depends on the results of the previous one.

A recipe names a chain kind (single run, double relaxation, meta-GGA
optimization, full cell optimization, constrained lattice optimization or NEB)
and the job flags shared by its steps. The Engine resolves recipes from a file,
a Loam library or the built-in presets, and drives their jobs through a
runner that holds a lease on the working directory.

# Usage

	eng, err := strata.New("./recipes",
		strata.WithSolvers(solvers),
		strata.WithLocker(lease.NewManager()),
	)
	if err != nil {
		log.Fatal(err)
	}
	if err := eng.Run(ctx, "/scratch/si", "double-relax"); err != nil {
		log.Fatal(err)
	}

Long-running callers build the sequence and runner themselves to watch
progress:

	r, _ := eng.Recipe("eos-c")
	seq, _ := eng.Sequence(dir, r)
	run := eng.NewRunner(r)
	go run.Run(ctx, dir, seq)
	fmt.Println(run.Status().Phase)
*/
package strata
