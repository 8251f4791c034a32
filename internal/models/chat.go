package models

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrMessageRequired is returned when a chat request carries no usable message.
var ErrMessageRequired = errors.New("message is required")

// Chat roles understood by the providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is a provider-neutral chat turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HistoryResponse is the nested response object some clients store on assistant turns.
type HistoryResponse struct {
	Content string `json:"content,omitempty"`
}

// HistoryAnalysis is the subset of a previous turn's analysis the engine consults.
type HistoryAnalysis struct {
	Zone Zone `json:"zone,omitempty"`
}

// HistoryEntry is one caller-supplied conversation turn.
type HistoryEntry struct {
	Role     string           `json:"role"`
	Content  string           `json:"content,omitempty"`
	Response *HistoryResponse `json:"response,omitempty"`
	Analysis *HistoryAnalysis `json:"analysis,omitempty"`
}

// UnmarshalJSON decodes an entry leniently. Entries that are not JSON objects
// decode as empty placeholders so their position in the history is kept, and
// fields with unexpected types are ignored.
func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	*e = HistoryEntry{}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil
	}
	e.Role, _ = raw["role"].(string)
	e.Content, _ = raw["content"].(string)
	if resp, ok := raw["response"].(map[string]interface{}); ok {
		content, _ := resp["content"].(string)
		e.Response = &HistoryResponse{Content: content}
	}
	if analysis, ok := raw["analysis"].(map[string]interface{}); ok {
		zone, _ := analysis["zone"].(string)
		e.Analysis = &HistoryAnalysis{Zone: Zone(zone)}
	}
	return nil
}

// Text returns the turn's content, falling back to the nested response content.
func (e HistoryEntry) Text() string {
	if e.Content != "" {
		return e.Content
	}
	if e.Response != nil {
		return e.Response.Content
	}
	return ""
}

// RecentZone scans history from newest to oldest and returns the first non-empty zone.
func RecentZone(history []HistoryEntry) (Zone, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if a := history[i].Analysis; a != nil && a.Zone != "" {
			return a.Zone, true
		}
	}
	return "", false
}

// ChatRequest represents the payload for a chat turn.
type ChatRequest struct {
	Message string         `json:"message"`
	History []HistoryEntry `json:"history,omitempty"`
}

// Validate validates a ChatRequest.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrMessageRequired
	}
	return nil
}
