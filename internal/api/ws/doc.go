// Package ws streams page console output to diagnostic viewers over WebSocket.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Viewer attached
//   - console: One console entry from the page
//   - pong: Reply to ping
//   - error: Unknown message type
//
// Example Usage:
//
//	handler := ws.NewHandler(hub, logger, metrics, nil)
//	router.GET("/diagnostics/stream", handler.HandleConnection)
package ws
