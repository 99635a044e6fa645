// Package websocket provides a session-aware WebSocket transport for
// broadcasting simulation state.
//
// Architecture:
//
// A single Hub manages every connection, hub-and-spoke style. Each client
// connection runs in its own pair of goroutines (readPump/writePump) for
// reading, writing, and cleanup.
//
// Message Protocol:
//
// Messages are JSON-encoded Message envelopes:
//
//	{"session_id": "abc1", "event": "state_update", "state": {...StateInfo...}}
//	{"session_id": "abc1", "event": "custom-event", "data": ...}
//
// Session Integration:
//
// Connections are session-scoped. Clients specify their session via a
// query parameter (?session=abc1) when establishing the connection, and
// only see broadcasts addressed to that session.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run()
//	hub.ServeWS(w, r, sessionID)
//	hub.BroadcastToSession(sessionID, process.StateInfo{...})
//
// Concurrency:
//
// The hub and its client goroutines are safe for concurrent use. Multiple
// clients may connect, disconnect, and receive broadcasts simultaneously
// without blocking each other.
package websocket
