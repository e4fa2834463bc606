/*
Package sequence builds the job chains of the structure optimization
workflows.

Fixed chains (double relaxation, meta-GGA optimization) are computed up front.
Full optimization and the constrained lattice search are lazy: each call to
Next inspects what the previous job left in the working directory before
deciding whether, and how, to run again.

	seq, err := sequence.NewDoubleRelaxation(dir, domain.NewDescriptor("mpirun", "vasp_std"),
		sequence.WithHalfKptsFirstRelax(true))
*/
package sequence
