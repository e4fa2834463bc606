package domain

import "errors"

// ErrInvalidTransition is returned when a lifecycle operation is called out of order.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// ErrAlreadyRunning is returned when Run is called twice for the same directory.
var ErrAlreadyRunning = errors.New("job already launched in this directory")

// ErrMarkerNotFound is returned when no continuation marker exists for a directory.
var ErrMarkerNotFound = errors.New("continuation marker not found")

// ErrUnsupportedDirective is returned when a directive targets an unknown document or operation.
var ErrUnsupportedDirective = errors.New("unsupported directive")

// ErrMissingStructure is returned when a required structure file is absent.
var ErrMissingStructure = errors.New("structure file not found")

// ErrSolverFailed is returned by a runner when the solver process exits with an error.
var ErrSolverFailed = errors.New("solver process failed")

// ErrLockHeld is returned when a working directory is already leased by another runner.
var ErrLockHeld = errors.New("working directory is locked")

// ErrWallTimeExceeded is returned by a runner that terminated a job for running too long.
var ErrWallTimeExceeded = errors.New("wall time exceeded")

// ErrRecipeNotFound is returned when no recipe source knows a recipe ID.
var ErrRecipeNotFound = errors.New("recipe not found")
