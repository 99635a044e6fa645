package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/griddy-sim/griddy/gdy"
	"github.com/griddy-sim/griddy/session"
	"github.com/griddy-sim/griddy/transport/websocket"
)

const testDescriptionYAML = `
Version: "0.1"
Environment:
  Name: test-grid
  Levels:
    - |
      W W W
      W A W
      W . W
Objects:
  - Name: wall
    MapCharacter: W
  - Name: avatar
    MapCharacter: A
Actions:
  - Name: move
    Behaviours:
      - Src:
          Type: [avatar]
          Commands:
            - Command: mov
              Vector: {DX: 0, DY: 1}
        Dst:
          Type: []
Terminations: []
`

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestManager(t *testing.T) *session.Manager {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "test-grid.yaml"), []byte(testDescriptionYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	descriptions := gdy.NewManager(dir)
	return session.NewManager(descriptions)
}

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	sessions := newTestManager(t)
	hub := websocket.NewHub(testLogger())
	go hub.Run()
	return NewServer(sessions, hub, testLogger())
}

func makeRequest(method, path string, body any) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
}

func createTestSession(t *testing.T, server *Server) string {
	t.Helper()
	w := httptest.NewRecorder()
	req := makeRequest("POST", "/api/sessions", createSessionRequest{DescriptionName: "test-grid"})
	server.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("failed to create test session: status %d, body %s", w.Code, w.Body.String())
	}
	var resp sessionResponse
	parseResponse(t, w, &resp)
	return resp.ID
}

func TestCreateSession(t *testing.T) {
	server := setupTestServer(t)

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name:           "valid description",
			requestBody:    createSessionRequest{DescriptionName: "test-grid"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing description name",
			requestBody:    createSessionRequest{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown description",
			requestBody:    createSessionRequest{DescriptionName: "does-not-exist"},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := makeRequest("POST", "/api/sessions", tt.requestBody)
			server.ServeHTTP(w, req)
			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d (body %s)", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestListSessions(t *testing.T) {
	server := setupTestServer(t)

	w := httptest.NewRecorder()
	req := makeRequest("GET", "/api/sessions", nil)
	server.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	parseResponse(t, w, &resp)
	if resp["count"].(float64) != 0 {
		t.Errorf("expected 0 sessions before creation, got %v", resp["count"])
	}

	createTestSession(t, server)

	w = httptest.NewRecorder()
	req = makeRequest("GET", "/api/sessions", nil)
	server.ServeHTTP(w, req)
	parseResponse(t, w, &resp)
	if resp["count"].(float64) != 1 {
		t.Errorf("expected 1 session, got %v", resp["count"])
	}
}

func TestGetSession(t *testing.T) {
	server := setupTestServer(t)
	id := createTestSession(t, server)

	w := httptest.NewRecorder()
	req := makeRequest("GET", "/api/sessions/"+id, nil)
	req = mux.SetURLVars(req, map[string]string{"id": id})
	server.handleGetSession(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = makeRequest("GET", "/api/sessions/missing", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "missing"})
	server.handleGetSession(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", w.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	server := setupTestServer(t)
	id := createTestSession(t, server)

	w := httptest.NewRecorder()
	req := makeRequest("DELETE", "/api/sessions/"+id, nil)
	req = mux.SetURLVars(req, map[string]string{"id": id})
	server.handleDeleteSession(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = makeRequest("DELETE", "/api/sessions/"+id, nil)
	req = mux.SetURLVars(req, map[string]string{"id": id})
	server.handleDeleteSession(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 deleting already-deleted session, got %d", w.Code)
	}
}

func TestGetState(t *testing.T) {
	server := setupTestServer(t)
	id := createTestSession(t, server)

	w := httptest.NewRecorder()
	req := makeRequest("GET", "/api/sessions/"+id+"/state", nil)
	req = mux.SetURLVars(req, map[string]string{"id": id})
	server.handleGetState(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestPerformActions(t *testing.T) {
	server := setupTestServer(t)
	id := createTestSession(t, server)

	body := actionsRequest{
		Actions: []actionRequest{
			{Name: "move", PlayerID: 0},
		},
	}

	w := httptest.NewRecorder()
	req := makeRequest("POST", "/api/sessions/"+id+"/actions", body)
	req = mux.SetURLVars(req, map[string]string{"id": id})
	server.handlePerformActions(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %s)", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = makeRequest("POST", "/api/sessions/missing/actions", body)
	req = mux.SetURLVars(req, map[string]string{"id": "missing"})
	server.handlePerformActions(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", w.Code)
	}
}

func TestReset(t *testing.T) {
	server := setupTestServer(t)
	id := createTestSession(t, server)

	w := httptest.NewRecorder()
	req := makeRequest("POST", "/api/sessions/"+id+"/reset", nil)
	req = mux.SetURLVars(req, map[string]string{"id": id})
	server.handleReset(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestHandleWebSocket(t *testing.T) {
	server := setupTestServer(t)
	id := createTestSession(t, server)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ws", nil)
	server.handleWebSocket(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 with missing session parameter, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/ws?session=missing", nil)
	server.handleWebSocket(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/ws?session="+id, nil)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Header.Set("Sec-WebSocket-Version", "13")
	server.handleWebSocket(w, req)
	// httptest.ResponseRecorder doesn't implement http.Hijacker, so the
	// upgrade itself fails here; a 500 confirms it was attempted rather
	// than rejected for a missing/invalid session.
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected upgrade attempt to fail with 500 under httptest, got %d", w.Code)
	}
}
