// Package main is the reference telemetry worker.
//
// The host writes one JSON event per line to the worker's stdin:
//
//	{"key":"a","action":"down","time":1532.5}
//
// Each valid event is appended to a CSV file as
//
//	System Timestamp,JS Performance Time (s),Key,Action
//
// with the header written only when the file is new. A confirmation line goes
// to stdout and anything unparsable is reported on stderr; the host logs both
// streams. The worker exits when stdin closes.
//
// Usage:
//
//	keylog-worker -out key_press_log.csv
package main
