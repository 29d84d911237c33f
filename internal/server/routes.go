package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vibeworks/agentcore/internal/agentchan"
	"github.com/vibeworks/agentcore/internal/runtime"
)

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", s.metricsHandler())

	s.router.Route("/session", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/{id}/status", s.sessionStatus)
		r.Get("/{id}/events", s.streamSession)
		r.Post("/{id}/message", s.sendMessage)
		r.Post("/{id}/permission", s.respondPermission)
		r.Post("/{id}/interrupt", s.interruptSession)
		r.Post("/{id}/shutdown", s.shutdownSession)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionRequest struct {
	ParentSessionID *string `json:"parentSessionID,omitempty"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionID"`
}

// createSession creates session metadata and spawns a top-level agent for
// it, the HTTP counterpart of runtime.Registry.Spawn over a freshly created
// session.Store entry.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	sess, err := s.store.Create(r.Context(), s.config.Directory, req.ParentSessionID, time.Now().UnixMilli())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.registry.Spawn(sess.ID, s.loop.Run)
	writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: sess.ID})
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	handle, ok := s.registry.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not running")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := handle.SendInput(r.Context(), req.Text); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type permissionResponseRequest struct {
	ToolName string `json:"toolName"`
	Allowed  bool   `json:"allowed"`
	Remember bool   `json:"remember"`
}

func (s *Server) respondPermission(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	handle, ok := s.registry.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not running")
		return
	}

	var req permissionResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := handle.SendPermissionResponse(r.Context(), req.ToolName, req.Allowed, req.Remember); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) interruptSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if err := s.registry.Interrupt(r.Context(), sessionID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, runtime.ErrNotRunning) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) shutdownSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if err := s.registry.Shutdown(r.Context(), sessionID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, runtime.ErrNotRunning) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionStatusResponse struct {
	SessionID string `json:"sessionID"`
	State     string `json:"state"`
}

func (s *Server) sessionStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	handle, ok := s.registry.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not running")
		return
	}
	writeJSON(w, http.StatusOK, sessionStatusResponse{SessionID: sessionID, State: stateName(handle.State())})
}

func stateName(st agentchan.AgentState) string {
	switch st.(type) {
	case agentchan.Idle:
		return "idle"
	case agentchan.Processing:
		return "processing"
	case agentchan.WaitingForPermission:
		return "waiting_for_permission"
	case agentchan.ExecutingTool:
		return "executing_tool"
	case agentchan.WaitingForSubAgent:
		return "waiting_for_subagent"
	case agentchan.WaitingForUserInput:
		return "waiting_for_user_input"
	case agentchan.Done:
		return "done"
	case agentchan.ErrorState:
		return "error"
	default:
		return "unknown"
	}
}
