package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/aegis/copilot/internal/observability"
	"github.com/aegis/copilot/internal/tracing"
	"github.com/aegis/copilot/pkg/chat"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// handleWebSocket upgrades the connection and serves turns on it until the
// peer goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	if !s.authHandler.Authorize(r) {
		s.logger.Warn().Str("ip", s.clientIP(r)).Msg("Rejected unauthorized websocket upgrade")
		observability.RecordSecurityAudit(r.Context(), "auth_rejected", s.clientIP(r), "failure", map[string]any{"transport": "ws"})
		s.writeError(w, "ws", &chat.Error{Kind: KindUnauthorized, Message: "unauthorized"})
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, err := gonanoid.New()
	if err != nil {
		clientID = tracing.NewTraceID()
	}

	now := time.Now()
	client := &Client{
		ID:           clientID,
		Conn:         conn,
		IPAddress:    s.clientIP(r),
		ConnectedAt:  now,
		LastActivity: now,
	}
	s.clients.Add(client)

	s.logger.Info().
		Str("client_id", clientID).
		Str("ip", client.IPAddress).
		Msg("Client connected")

	ctx := tracing.WithTraceID(context.Background(), tracing.GetTraceID(r.Context()))
	go s.handleClient(ctx, client)
}

// handleClient reads frames one at a time, so replies keep request order
func (s *Server) handleClient(ctx context.Context, client *Client) {
	defer func() {
		_ = client.Conn.Close()
		s.clients.Remove(client.ID)
		s.rateLimiter.Forget(client.ID)
		s.logger.Info().Str("client_id", client.ID).Msg("Client disconnected")
	}()

	client.Conn.SetReadLimit(s.maxBodyBytes)

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Str("client_id", client.ID).Msg("WebSocket error")
			}
			return
		}

		s.clients.MarkFrame(client.ID, time.Now())

		if s.shuttingDown() {
			_ = client.Conn.WriteJSON(errorFrame("", &chat.Error{Kind: chat.KindInternalError, Message: "server is shutting down"}))
			return
		}

		frame := s.handleFrame(ctx, client, message)
		if err := client.Conn.WriteJSON(frame); err != nil {
			s.logger.Error().
				Err(err).
				Str("client_id", client.ID).
				Msg("Failed to send frame")
			return
		}
	}
}

func (s *Server) handleFrame(ctx context.Context, client *Client, message []byte) Frame {
	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	ctx = tracing.WithRequestID(ctx, tracing.NewRequestID())

	if ok, _ := s.rateLimiter.Allow(client.ID); !ok {
		observability.RecordSecurityAudit(ctx, "rate_limited", client.ID, "failure", map[string]any{"transport": "ws"})
		return s.recordFrame(errorFrame("", &chat.Error{Kind: KindRateLimited, Message: "rate limit exceeded"}))
	}

	req, err := DecodeChatRequest(message)
	if err != nil {
		return s.recordFrame(errorFrame(req.ID, &chat.Error{Kind: KindInvalidRequest, Message: err.Error()}))
	}

	result, err := s.runTurn(ctx, req)
	if err != nil {
		return s.recordFrame(errorFrame(req.ID, err))
	}

	return s.recordFrame(Frame{
		ID:        req.ID,
		Status:    http.StatusOK,
		Response:  result.Reply,
		SessionID: result.SessionID,
	})
}

func (s *Server) recordFrame(frame Frame) Frame {
	observability.RecordHTTPRequest("ws", frame.Status)
	return frame
}

func errorFrame(id string, err error) Frame {
	detail := errorDetail(err)
	return Frame{
		ID:     id,
		Status: StatusForKind(detail.Kind),
		Error:  &detail,
	}
}
