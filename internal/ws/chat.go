// Package ws provides the WebSocket chat transport. It speaks the same
// turn contract as POST /api/chat, one JSON frame per turn.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/avezina/curioloop/internal/api"
	"github.com/avezina/curioloop/internal/bot"
	"github.com/avezina/curioloop/internal/identity"
)

// maxFrameSize bounds a single inbound chat frame.
const maxFrameSize = 1 << 20

// ChatHandler upgrades connections and relays chat turns to the shared
// turn processor.
type ChatHandler struct {
	chat          *api.ChatHandler
	allowedOrigin string
	isDev         bool
}

// NewChatHandler creates a new WebSocket chat handler.
func NewChatHandler(chat *api.ChatHandler, allowedOrigin string, isDev bool) *ChatHandler {
	return &ChatHandler{
		chat:          chat,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// frame is one inbound WebSocket message. Type "chat" carries a turn;
// "ping" requests a pong.
type frame struct {
	Type string `json:"type"`
	api.ChatRequest
}

// errorFrame is sent for failed turns; the connection stays open.
type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// chatFrame wraps a completed turn response.
type chatFrame struct {
	Type string `json:"type"`
	*api.ChatResponse
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	conn.SetReadLimit(maxFrameSize)

	slog.Info("WebSocket chat connected", "user_id", userID, "ip", r.RemoteAddr)

	if err := h.writeJSON(r.Context(), conn, map[string]string{
		"type":    "welcome",
		"message": bot.WelcomeMessage,
	}); err != nil {
		return
	}

	h.readLoop(r.Context(), conn, userID)
	slog.Info("WebSocket chat ended", "user_id", userID)
}

func (h *ChatHandler) readLoop(ctx context.Context, conn *websocket.Conn, userID string) {
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg frame
		if err := json.Unmarshal(raw, &msg); err != nil {
			if err := h.writeJSON(ctx, conn, errorFrame{Type: "error", Error: "invalid frame"}); err != nil {
				return
			}
			continue
		}

		switch msg.Type {
		case "ping":
			if err := h.writeJSON(ctx, conn, map[string]string{"type": "pong"}); err != nil {
				return
			}
		case "chat", "":
			resp, err := h.chat.ProcessTurn(ctx, userID, msg.ChatRequest)
			if err != nil {
				var terr *api.TurnError
				text := "failed to process message"
				if errors.As(err, &terr) {
					text = terr.Message
				}
				if err := h.writeJSON(ctx, conn, errorFrame{Type: "error", Error: text}); err != nil {
					return
				}
				continue
			}
			if err := h.writeJSON(ctx, conn, chatFrame{Type: "chat", ChatResponse: resp}); err != nil {
				return
			}
		default:
			if err := h.writeJSON(ctx, conn, errorFrame{Type: "error", Error: "unknown frame type"}); err != nil {
				return
			}
		}
	}
}

func (h *ChatHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *ChatHandler) writeJSON(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err)
		return err
	}
	return nil
}
