package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/griddy-sim/griddy/kernel/process"
	"github.com/griddy-sim/griddy/kernel/spatial"
	"github.com/griddy-sim/griddy/kernel/termination"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL)

	if client == nil {
		t.Fatal("Expected client to be created")
	}
	if client.baseURL != baseURL {
		t.Errorf("Expected baseURL %s, got %s", baseURL, client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.mcpServer == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestNewClientTrimsTrailingSlash(t *testing.T) {
	client := NewClient("http://localhost:8080/")
	if client.baseURL != "http://localhost:8080" {
		t.Errorf("expected trailing slash trimmed, got %s", client.baseURL)
	}
}

func TestClient_apiCall(t *testing.T) {
	expectedResponse := map[string]interface{}{
		"id":   "test-session",
		"tick": 5,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(expectedResponse)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response map[string]interface{}
	if err := client.apiCall("GET", "/api", nil, &response); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if response["id"] != expectedResponse["id"] {
		t.Errorf("Expected id %v, got %v", expectedResponse["id"], response["id"])
	}
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://invalid-url-that-does-not-exist:9999")
	if err := client.apiCall("GET", "/api", nil, nil); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.apiCall("GET", "/api", nil, nil)
	if err == nil {
		t.Error("Expected error for HTTP 500 response")
	}
	if !strings.Contains(err.Error(), "api error") {
		t.Errorf("Expected 'api error' in error message, got: %v", err)
	}
}

func TestClient_handleCreateSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/sessions" {
			t.Errorf("Expected POST /api/sessions, got %s %s", r.Method, r.URL.Path)
		}
		resp := sessionInfo{ID: "abcd", DescriptionName: "harvest"}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	request := mcp.CallToolRequest{Params: mcp.CallToolParams{
		Name:      "create_session",
		Arguments: map[string]interface{}{"description_name": "harvest"},
	}}

	result, err := client.handleCreateSession(context.Background(), request)
	if err != nil {
		t.Fatalf("handleCreateSession failed: %v", err)
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	if !strings.Contains(text.Text, "abcd") {
		t.Errorf("expected session id in result, got: %s", text.Text)
	}
}

func TestFormatState(t *testing.T) {
	state := &process.StateInfo{
		GameTicks: 3,
		Objects: []process.ObjectInfo{
			{Kind: "harvester", PlayerID: 1, Location: spatial.Coord{X: 2, Y: 1}, Orientation: spatial.East},
		},
		GlobalVariables: map[string]map[uint32]int32{"score": {1: 10}},
	}

	result := formatState(state)
	for _, want := range []string{"tick: 3", "harvester at (2,1)", "player=1", "score"} {
		if !strings.Contains(result, want) {
			t.Errorf("expected %q in formatted state, got: %s", want, result)
		}
	}
}

func TestFormatActionResult(t *testing.T) {
	result := &process.ActionResult{
		Terminated:   true,
		PlayerStates: map[uint32]termination.Outcome{1: termination.Win},
	}
	text := formatActionResult(result)
	if !strings.Contains(text, "terminated: true") {
		t.Errorf("expected terminated flag, got: %s", text)
	}
	if !strings.Contains(text, "player 1") {
		t.Errorf("expected player outcome, got: %s", text)
	}
}

func TestClient_handleDescribeCellEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(process.StateInfo{})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	request := mcp.CallToolRequest{Params: mcp.CallToolParams{
		Name:      "describe_cell",
		Arguments: map[string]interface{}{"session_id": "abcd", "x": float64(1), "y": float64(1)},
	}}

	result, err := client.handleDescribeCell(context.Background(), request)
	if err != nil {
		t.Fatalf("handleDescribeCell failed: %v", err)
	}
	text := result.Content[0].(mcp.TextContent).Text
	if !strings.Contains(text, "is empty") {
		t.Errorf("expected empty cell message, got: %s", text)
	}
}

func TestClient_Integration(t *testing.T) {
	client := NewClient("http://localhost:8080")
	if client.mcpServer == nil {
		t.Fatal("MCP server not initialized")
	}
	if client.baseURL == "" {
		t.Error("Base URL not set")
	}
	if client.httpClient == nil {
		t.Error("HTTP client not initialized")
	}
}
