package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChatSession is one saved conversation.
type ChatSession struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	ID        uuid.UUID   `json:"id"`
	SessionID uuid.UUID   `json:"session_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// ChatRequest is the send-message request body.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse carries the assistant reply plus the signals the chat page
// reacts to: recommended places, the login-required redirect and the
// save-button state.
type ChatResponse struct {
	Reply             string  `json:"reply,omitempty"`
	YtHTML            string  `json:"yt_html,omitempty"`
	Places            []Place `json:"places,omitempty"`
	LoginRequired     bool    `json:"login_required,omitempty"`
	SaveButtonEnabled bool    `json:"save_button_enabled"`
	SessionID         string  `json:"session_id,omitempty"`
}

// Schedule is a stored itinerary payload. Data keeps whichever legacy variant
// was saved; normalization happens on ingest, not at rest.
type Schedule struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	SessionID uuid.UUID       `json:"session_id"`
	Title     string          `json:"title"`
	Question  string          `json:"question,omitempty"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

type SaveScheduleRequest struct {
	Title     string          `json:"title"`
	Data      json.RawMessage `json:"data"`
	Question  string          `json:"question,omitempty"`
	SessionID string          `json:"session_id"`
}

type SaveScheduleResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id,omitempty"`
	ID        string `json:"id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type BulkDeleteSessionsRequest struct {
	SessionIDs []uuid.UUID `json:"session_ids"`
}

type BulkDeleteSessionsResponse struct {
	Success      bool        `json:"success"`
	Message      string      `json:"message,omitempty"`
	DeletedCount int         `json:"deleted_count"`
	DeletedIDs   []uuid.UUID `json:"deleted_session_ids,omitempty"`
	Error        string      `json:"error,omitempty"`
}
