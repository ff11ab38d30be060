// Package bridge is the capability bridge: the only path from the sandboxed
// page into privileged host operations.
//
// The capability set is closed. New builds it once from a fixed list and the
// resulting Registry has no way to add entries, so nothing running in the
// page can widen it. Every call is checked for arity and argument types
// before its handler runs; a malformed call is rejected with
// ErrMalformedCall and never forwarded.
//
//	quit()                              fire-and-forget
//	isFullscreen() -> bool              sync
//	setFullscreen(bool)                 fire-and-forget
//	onFullscreenChange(fn)              fire-and-forget
//	readImages(path) -> string[]        async
//	toggleDiagnosticView()              fire-and-forget
//	sendTelemetry(key, action, time)    fire-and-forget
package bridge
