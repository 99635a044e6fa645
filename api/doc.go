// Package api provides the HTTP REST surface over a session manager.
//
// Endpoints:
//
// Session management:
//   - POST   /api/sessions        - create a session from a description name
//   - GET    /api/sessions        - list live session ids
//   - GET    /api/sessions/{id}   - fetch session metadata
//   - DELETE /api/sessions/{id}   - delete a session
//
// Game state and actions:
//   - GET  /api/sessions/{id}/state    - current StateInfo snapshot
//   - POST /api/sessions/{id}/actions  - submit a batch of actions for this tick
//   - POST /api/sessions/{id}/reset    - reset the session to its initial level
//
// Live updates:
//   - GET /ws?session={id} - upgrade to a WebSocket broadcasting StateInfo
//     after every action batch and reset on this session
//
// Requests and responses are JSON. Errors are returned as
// {"error": "message"} with the appropriate HTTP status code.
package api
