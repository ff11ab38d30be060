/*
Package server is the host's local control and diagnostics HTTP server.

Routes:

	GET  /health               liveness, worker state, current page
	GET  /status               worker info and process stats, page stats, last injection cycle
	GET  /extensions           modules the next cycle would inject
	GET  /metrics              prometheus exposition
	POST /reload               new content-load cycle
	POST /input/key            {type, key, code, alt, ctrl, shift, meta, repeat}
	POST /quit                 same path as the quit capability
	POST /diagnostics/toggle   open or close the diagnostic view
	GET  /diagnostics/stream   websocket console stream; 409 while the view is closed

The server binds 127.0.0.1 by default. CORS admits loopback origins only unless
more are configured.
*/
package server
