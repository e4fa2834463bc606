/*
Package ports defines the driven ports (interfaces) of the strata job engine.

These interfaces decouple jobs, sequences and the runner from concrete process
control, persistence and recipe sources, so each can be faked in tests.

# Key Interfaces

  - Job / Handle: The lifecycle every solver job implements.
  - Sequence: Lazily yields the next job of a chain.
  - ProcessTable: Enumerates live processes for targeted termination.
  - MarkerStore: Persists continuation markers per working directory.
  - DirectoryLocker / DistributedLocker: Exclusive ownership of a working directory.
  - RecipeLoader: Retrieves chain recipes by ID (e.g., from Loam or Memory).
*/
package ports
