/*
Package jobs implements the solver jobs a sequence yields.

  - StandardJob: one solver run in one directory, with backup, parallelization
    tuning, continuation markers and output suffixing.
  - NEBJob: a multi-image run over numerically named image directories.
  - GenerateInputJob: regenerates inputs in-process from a relaxed structure.

Every job tracks its lifecycle per directory, so Run cannot start twice and
Terminate is a no-op outside a run.
*/
package jobs
