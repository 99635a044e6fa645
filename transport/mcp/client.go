// Package mcp exposes the session REST API as a set of MCP tools: every
// tool marshals a request, calls the REST API over HTTP, and renders the
// JSON response as human-readable text.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/griddy-sim/griddy/kernel/process"
)

// Client is a thin MCP client that proxies to the REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates an MCP client that calls the REST API at baseURL.
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Griddy Simulation",
		"0.1.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Griddy grid-world simulation - MCP interface

This is a thin client that proxies all requests to the REST API server.

AVAILABLE TOOLS:
- create_session: start a new simulation session from a named description
- list_sessions: list all active sessions
- get_session: get details of one session
- get_state: get the current grid state (objects, globals, tick)
- perform_action: submit a single action for one player
- bulk_actions: submit a batch of actions, resolved together with deterministic tie-breaking
- reset: reset a session back to its initial level
- describe_cell: inspect what occupies one grid cell (kind and owner)

Actions reference a source object by its handle (index + generation), returned
in get_state. A handle whose generation does not match the live object at
that index is treated as stale and rejected.`),
	)
	c.registerTools()
}

func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new simulation session from a named description",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"description_name": map[string]interface{}{
					"type":        "string",
					"description": "Name of the compiled description to load",
				},
				"player_ids": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "integer"},
					"description": "Player ids to register on the session",
				},
			},
			Required: []string{"description_name"},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active simulation sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session id to retrieve",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_state",
		Description: "Get the current grid state for a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session id",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "perform_action",
		Description: "Submit a single action for one player",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session id",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Action name, as declared in the description",
				},
				"player_id": map[string]interface{}{
					"type":        "integer",
					"description": "Submitting player's id",
				},
				"source_index": map[string]interface{}{
					"type":        "integer",
					"description": "Index of the source object's handle",
				},
				"source_generation": map[string]interface{}{
					"type":        "integer",
					"description": "Generation of the source object's handle",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"forward", "turn_left", "turn_right"},
					"description": "Vector resolution mode (default forward)",
				},
			},
			Required: []string{"session_id", "name", "source_index", "source_generation"},
		},
	}, c.handlePerformAction)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "bulk_actions",
		Description: "Submit a batch of actions, resolved together in one tick",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session id",
				},
				"actions": map[string]interface{}{
					"type":        "array",
					"description": "Array of action objects, each shaped like perform_action's arguments",
					"items": map[string]interface{}{
						"type": "object",
					},
				},
			},
			Required: []string{"session_id", "actions"},
		},
	}, c.handleBulkActions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset",
		Description: "Reset a session back to its initial level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session id",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Describe what occupies a specific grid cell",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session id",
				},
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "X coordinate (column), 0-based",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Y coordinate (row), 0-based",
				},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleDescribeCell)
}

// GetMCPServer returns the underlying MCP server for serving over stdio or
// streamable HTTP.
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("api error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func argsOf(request mcp.CallToolRequest) map[string]interface{} {
	if m, ok := request.Params.Arguments.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func intArg(args map[string]interface{}, key string) uint32 {
	if v, ok := args[key].(float64); ok {
		return uint32(v)
	}
	return 0
}

type sessionInfo struct {
	ID              string `json:"id"`
	DescriptionName string `json:"description_name"`
	CreatedAt       string `json:"created_at"`
	LastAccessedAt  string `json:"last_accessed_at"`
}

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(request)
	descriptionName, _ := args["description_name"].(string)

	body := map[string]interface{}{"description_name": descriptionName}
	if raw, ok := args["player_ids"].([]interface{}); ok {
		ids := make([]uint32, 0, len(raw))
		for _, v := range raw {
			if f, ok := v.(float64); ok {
				ids = append(ids, uint32(f))
			}
		}
		body["player_ids"] = ids
	}

	var session sessionInfo
	if err := c.apiCall("POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created session %s (description %s)", session.ID, session.DescriptionName)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int      `json:"count"`
		Sessions []string `json:"sessions"`
	}
	if err := c.apiCall("GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result := fmt.Sprintf("active sessions (%d):\n", response.Count)
	for _, id := range response.Sessions {
		result += fmt.Sprintf("- %s\n", id)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := argsOf(request)["session_id"].(string)
	var session sessionInfo
	if err := c.apiCall("GET", "/api/sessions/"+sessionID, nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("session %s\ndescription: %s\ncreated: %s\nlast accessed: %s",
		session.ID, session.DescriptionName, session.CreatedAt, session.LastAccessedAt)), nil
}

func (c *Client) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := argsOf(request)["session_id"].(string)
	var state process.StateInfo
	if err := c.apiCall("GET", fmt.Sprintf("/api/sessions/%s/state", sessionID), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatState(&state)), nil
}

func formatState(state *process.StateInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "tick: %d\n", state.GameTicks)
	fmt.Fprintf(&b, "objects (%d):\n", len(state.Objects))
	for _, obj := range state.Objects {
		fmt.Fprintf(&b, "- %s at (%d,%d) player=%d facing=%d\n", obj.Kind, obj.Location.X, obj.Location.Y, obj.PlayerID, obj.Orientation)
	}
	if len(state.GlobalVariables) > 0 {
		b.WriteString("globals:\n")
		for name, byPlayer := range state.GlobalVariables {
			fmt.Fprintf(&b, "- %s: %v\n", name, byPlayer)
		}
	}
	return b.String()
}

func actionBody(args map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":      args["name"],
		"player_id": intArg(args, "player_id"),
		"source": map[string]interface{}{
			"index":      intArg(args, "source_index"),
			"generation": intArg(args, "source_generation"),
		},
		"mode": args["mode"],
	}
}

func (c *Client) handlePerformAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(request)
	sessionID, _ := args["session_id"].(string)

	body := map[string]interface{}{"actions": []interface{}{actionBody(args)}}
	var result process.ActionResult
	if err := c.apiCall("POST", fmt.Sprintf("/api/sessions/%s/actions", sessionID), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatActionResult(&result)), nil
}

func (c *Client) handleBulkActions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(request)
	sessionID, _ := args["session_id"].(string)

	raw, _ := args["actions"].([]interface{})
	actions := make([]interface{}, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]interface{}); ok {
			actions = append(actions, actionBody(m))
		}
	}

	body := map[string]interface{}{"actions": actions}
	var result process.ActionResult
	if err := c.apiCall("POST", fmt.Sprintf("/api/sessions/%s/actions", sessionID), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatActionResult(&result)), nil
}

func formatActionResult(result *process.ActionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "terminated: %v\n", result.Terminated)
	for pid, outcome := range result.PlayerStates {
		fmt.Fprintf(&b, "player %d: %v\n", pid, outcome)
	}
	return b.String()
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := argsOf(request)["session_id"].(string)

	var response struct {
		Message string             `json:"message"`
		State   process.StateInfo `json:"state"`
	}
	if err := c.apiCall("POST", fmt.Sprintf("/api/sessions/%s/reset", sessionID), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(response.Message + "\n\n" + formatState(&response.State)), nil
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(request)
	sessionID, _ := args["session_id"].(string)
	x := intArg(args, "x")
	y := intArg(args, "y")

	var state process.StateInfo
	if err := c.apiCall("GET", fmt.Sprintf("/api/sessions/%s/state", sessionID), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var occupants []string
	for _, obj := range state.Objects {
		if uint32(obj.Location.X) == x && uint32(obj.Location.Y) == y {
			occupants = append(occupants, fmt.Sprintf("%s (player %d)", obj.Kind, obj.PlayerID))
		}
	}
	if len(occupants) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("cell (%d,%d) is empty", x, y)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("cell (%d,%d): %s", x, y, strings.Join(occupants, ", "))), nil
}
