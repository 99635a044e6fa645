// Package mcp provides a Model Context Protocol server over the simulation's
// REST API.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions for session and action operations
//   - Thin proxying: every tool call is translated into one REST request
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - create_session: start a new simulation session from a named description
//   - list_sessions: list all active sessions
//   - get_session: get details of a specific session
//   - get_state: get the current grid state
//   - perform_action: submit a single action
//   - bulk_actions: submit a batch of actions resolved in one tick
//   - reset: reset a session back to its initial level
//   - describe_cell: inspect what occupies a cell
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
