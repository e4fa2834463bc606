/*
Package lease grants exclusive ownership of working directories.

Two runners must never drive jobs in the same directory. Within a process a
Manager serializes them per absolute path; across hosts an optional
ports.DistributedLocker (Redis) extends the guarantee.
*/
package lease
