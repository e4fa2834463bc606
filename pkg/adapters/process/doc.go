/*
Package process controls solver processes on the local host.

Launcher starts a solver in its own session with output redirected to files in
the working directory. Terminator stops the solver of a directory, preferring a
targeted kill of the process holding the run record open (found through a
ports.ProcessTable such as ProcfsTable) over a name-based killall.
*/
package process
