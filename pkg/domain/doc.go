/*
Package domain contains the core models of the strata job engine.

It defines the vocabulary shared by jobs, sequences and adapters: the well-known
file roles of a working directory, the declarative directive protocol used to
rewrite inputs between steps, the immutable job descriptor, the per-directory job
lifecycle and the lattice samples accumulated by the constrained optimization loop.
This package is kept free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Directive: One declarative mutation (set values in a config document, or copy a file).
  - JobDescriptor: Configuration a concrete job is built from.
  - Lifecycle: Tracks Created -> SetupDone -> Running -> PostprocessDone per directory.
  - SampleSet: (length, energy) samples, unique by length.
*/
package domain
