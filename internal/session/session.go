// Package session implements session metadata and append-only message
// history persistence: one JSON metadata file per session plus a
// line-delimited JSON history log, both rooted under a storage directory.
package session

import "encoding/json"

// Session is the metadata record for one conversation. History (the
// Message list) is stored separately in the append-only log; Session
// itself never carries message content.
type Session struct {
	ID          string `json:"id"`
	AgentType   string `json:"agentType,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Directory   string `json:"directory"`

	ParentID        *string  `json:"parentSessionID,omitempty"`
	ParentToolUseID *string  `json:"parentToolUseID,omitempty"`
	ChildSessionIDs []string `json:"childSessionIDs,omitempty"`

	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`

	Title string `json:"conversationName,omitempty"`

	Custom map[string]json.RawMessage `json:"custom,omitempty"`

	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// IsSubsession reports whether this session was spawned as a subagent of
// another session.
func (s Session) IsSubsession() bool {
	return s.ParentID != nil
}

// AddChild records a subagent's id in insertion order, ignoring duplicate
// inserts (spawning the same child id twice should never happen, but the
// invariant is enforced here rather than trusted to every caller).
func (s *Session) AddChild(childID string) {
	for _, id := range s.ChildSessionIDs {
		if id == childID {
			return
		}
	}
	s.ChildSessionIDs = append(s.ChildSessionIDs, childID)
}
