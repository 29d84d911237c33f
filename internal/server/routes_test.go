package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/vibeworks/agentcore/internal/agentchan"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, 201, createSessionResponse{SessionID: "abc"})

	if w.Code != 201 {
		t.Errorf("expected status 201, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var decoded createSessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if decoded.SessionID != "abc" {
		t.Errorf("expected session id 'abc', got %q", decoded.SessionID)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, 404, "session not running")

	if w.Code != 404 {
		t.Errorf("expected status 404, got %d", w.Code)
	}

	var decoded map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if decoded["error"] != "session not running" {
		t.Errorf("unexpected error body: %v", decoded)
	}
}

func TestStateName(t *testing.T) {
	tests := []struct {
		state agentchan.AgentState
		want  string
	}{
		{agentchan.Idle{}, "idle"},
		{agentchan.Processing{}, "processing"},
		{agentchan.WaitingForPermission{}, "waiting_for_permission"},
		{agentchan.ExecutingTool{Name: "sum"}, "executing_tool"},
		{agentchan.WaitingForSubAgent{}, "waiting_for_subagent"},
		{agentchan.WaitingForUserInput{}, "waiting_for_user_input"},
		{agentchan.Done{}, "done"},
		{agentchan.ErrorState{}, "error"},
	}

	for _, tt := range tests {
		if got := stateName(tt.state); got != tt.want {
			t.Errorf("stateName(%T) = %q, want %q", tt.state, got, tt.want)
		}
	}
}
