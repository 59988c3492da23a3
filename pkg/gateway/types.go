package gateway

import (
	"time"

	"github.com/aegis/copilot/pkg/chat"
	"github.com/gorilla/websocket"
)

// Gateway-level error kinds, reported alongside the dispatcher kinds
const (
	KindInvalidRequest chat.Kind = "InvalidRequest"
	KindUnauthorized   chat.Kind = "Unauthorized"
	KindRateLimited    chat.Kind = "RateLimited"
)

// ChatRequest is the body of POST /chat and of each WebSocket frame.
// Src is the legacy name for Domain.
type ChatRequest struct {
	ID          string         `json:"id,omitempty"`
	Domain      string         `json:"domain,omitempty"`
	Src         string         `json:"src,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	UserMessage string         `json:"user_message,omitempty"`
}

// DomainTag returns Domain, falling back to Src
func (r ChatRequest) DomainTag() string {
	if r.Domain != "" {
		return r.Domain
	}
	return r.Src
}

func (r ChatRequest) turn() chat.TurnRequest {
	return chat.TurnRequest{
		Domain:      r.DomainTag(),
		Context:     r.Context,
		SessionID:   r.SessionID,
		UserMessage: r.UserMessage,
	}
}

// ChatResponse is a successful turn
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// ErrorBody is the envelope for every failure
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names the failure kind
type ErrorDetail struct {
	Kind    chat.Kind `json:"kind"`
	Message string    `json:"message"`
}

// Frame is one WebSocket reply. Exactly one of Response or Error is set.
type Frame struct {
	ID        string       `json:"id,omitempty"`
	Status    int          `json:"status"`
	Response  string       `json:"response,omitempty"`
	SessionID string       `json:"session_id,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// Client is a connected WebSocket peer
type Client struct {
	ID           string
	Conn         *websocket.Conn
	IPAddress    string
	ConnectedAt  time.Time
	LastActivity time.Time
	Frames       int
}

// ClientInfo is the public view of a Client
type ClientInfo struct {
	ID           string    `json:"id"`
	IPAddress    string    `json:"ip"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
	Frames       int       `json:"frames"`
}
