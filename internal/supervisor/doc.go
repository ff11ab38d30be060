// Package supervisor manages the lifecycle of the external worker process.
//
// State machine:
//
//	NotStarted -> Starting -> Running -> Terminating -> Exited
//	                            |                        ^
//	                            +------ (own exit) ------+
//
// Telemetry is written to the worker's stdin as one JSON line per event.
// Writes are best effort: an event that cannot be written within the write
// timeout is dropped and logged, never queued. Each line of worker stdout and
// stderr becomes a host log record tagged with its stream.
package supervisor
