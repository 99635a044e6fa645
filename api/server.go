// Package api implements a REST demonstration harness over a session
// manager: create/inspect/delete sessions, submit actions, and read state.
// A network transport of actions is not part of the simulation kernel
// itself, but a real HTTP surface over it exercises the kernel end to end.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/griddy-sim/griddy/kernel/action"
	"github.com/griddy-sim/griddy/kernel/observer/text"
	"github.com/griddy-sim/griddy/kernel/spatial"
	"github.com/griddy-sim/griddy/session"
	"github.com/griddy-sim/griddy/transport/websocket"
)

// Server is the REST API server: a thin HTTP layer over a session manager
// and an observer-broadcasting WebSocket hub.
type Server struct {
	sessions *session.Manager
	hub      *websocket.Hub
	router   *mux.Router
	logger   zerolog.Logger
}

// NewServer builds a server with all routes registered.
func NewServer(sessions *session.Manager, hub *websocket.Hub, logger zerolog.Logger) *Server {
	s := &Server{sessions: sessions, hub: hub, router: mux.NewRouter(), logger: logger}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	api.HandleFunc("/sessions/{id}/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/sessions/{id}/actions", s.handlePerformActions).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type createSessionRequest struct {
	DescriptionName string   `json:"description_name"`
	PlayerIDs       []uint32 `json:"player_ids,omitempty"`
}

type sessionResponse struct {
	ID              string `json:"id"`
	DescriptionName string `json:"description_name"`
	CreatedAt       string `json:"created_at"`
	LastAccessedAt  string `json:"last_accessed_at"`
}

func toSessionResponse(sess *session.Session) sessionResponse {
	return sessionResponse{
		ID:              sess.ID,
		DescriptionName: sess.DescriptionName,
		CreatedAt:       sess.CreatedAt.Format(timeFormat),
		LastAccessedAt:  sess.LastAccessedAt.Format(timeFormat),
	}
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.DescriptionName == "" {
		respondError(w, http.StatusBadRequest, "description_name is required")
		return
	}
	sess, err := s.sessions.Create("", req.DescriptionName, req.PlayerIDs)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.hub != nil {
		obs := websocket.NewObserver(text.New(), s.hub, sess.ID)
		if err := sess.Process.AddObserver(obs); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	s.logger.Info().Str("session", sess.ID).Str("description", req.DescriptionName).Msg("session created")
	respondJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids := s.sessions.List()
	sort.Strings(ids)
	respondJSON(w, http.StatusOK, map[string]any{"count": len(ids), "sessions": ids})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.sessions.Delete(id); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("session %s deleted", id)})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sess.Process.StateInfo())
}

type actionRequest struct {
	Name     string `json:"name"`
	PlayerID uint32 `json:"player_id"`
	Source   struct {
		Index      uint32 `json:"index"`
		Generation uint32 `json:"generation"`
	} `json:"source"`
	Mode string `json:"mode,omitempty"` // "forward" (default), "turn_left", "turn_right"
}

type actionsRequest struct {
	Actions []actionRequest `json:"actions"`
	Reset   bool            `json:"reset,omitempty"`
}

func parseMode(s string) action.VectorMode {
	switch s {
	case "turn_left":
		return action.TurnLeft
	case "turn_right":
		return action.TurnRight
	default:
		return action.Forward
	}
}

func (s *Server) handlePerformActions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	var req actionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	batch := make([]action.Action, len(req.Actions))
	for i, a := range req.Actions {
		batch[i] = action.Action{
			Name:     a.Name,
			PlayerID: a.PlayerID,
			Source:   spatial.NewHandle(a.Source.Index, a.Source.Generation),
			Mode:     parseMode(a.Mode),
		}
	}

	result, err := sess.Process.PerformActions(batch)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.hub != nil {
		s.hub.BroadcastToSession(id, sess.Process.StateInfo())
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if _, err := sess.Process.Reset(); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.hub != nil {
		s.hub.BroadcastToSession(id, sess.Process.StateInfo())
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "reset", "state": sess.Process.StateInfo()})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	if _, err := s.sessions.Get(sessionID); err != nil {
		http.Error(w, "invalid session", http.StatusNotFound)
		return
	}
	s.hub.ServeWS(w, r, sessionID)
}
