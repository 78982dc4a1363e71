package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"geotrack/internal/domain/access"
	"geotrack/internal/general/contracts"
	"geotrack/internal/general/jwt"
	"geotrack/internal/general/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	ctrlTimeout      = 5 * time.Second
	authTimeout      = 5 * time.Second
	idleTimeout      = 60 * time.Second
	pingInterval     = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Invoker runs one command-channel call.
type Invoker interface {
	Invoke(ctx context.Context, call contracts.MethodCall) contracts.MethodResult
}

// WebSocket serves the command channel over WebSocket connections with JWT auth.
type WebSocket struct {
	logger *logger.Logger
	jwtMgr *jwt.Manager
	bridge Invoker
}

// NewWebSocket creates a WebSocket handler with JWT auth.
func NewWebSocket(logger *logger.Logger, jwtMgr *jwt.Manager, bridge Invoker) *WebSocket {
	return &WebSocket{
		logger: logger,
		jwtMgr: jwtMgr,
		bridge: bridge,
	}
}

// ConnectChannel handles a command-channel connection. The first frame must be
// {"type":"auth","token":"Bearer <jwt>"} carrying a CONTROLLER token; every later
// frame is a {"id","method"} call answered with {"id","result"|"error"}.
func (ws *WebSocket) ConnectChannel(w http.ResponseWriter, r *http.Request) {
	// 1) Upgrade HTTP -> WS
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()
	p := newPeer(conn)

	ctx := ws.logger.WithRequestID(r.Context(), uuid.NewString())

	// 2) Set auth deadline
	conn.SetReadLimit(1 << 16) // 64 KiB
	if err := conn.SetReadDeadline(time.Now().Add(authTimeout)); err != nil {
		ws.logger.Error(ctx, "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		_ = ws.sendAuthError(p, "internal server error")
		return
	}

	// 3) Authenticate
	msgType, firstFrame, err := conn.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			ws.logger.Error(ctx, "ws_auth_timeout", "Client disconnected before authentication", err, nil)
		} else {
			ws.logger.Error(ctx, "ws_auth_read_failed", "Failed to read auth message", err, nil)
		}
		_ = ws.sendAuthError(p, "authentication timeout: please send auth message within 5 seconds")
		return
	}

	if msgType != websocket.TextMessage {
		ws.logger.Error(ctx, "ws_auth_invalid_format", "Auth message must be text format", nil, nil)
		_ = ws.sendAuthError(p, "auth message must be in text format")
		return
	}

	claims, err := jwt.ValidateWSAuth(firstFrame, ws.jwtMgr, access.RoleController)
	if err != nil {
		ws.logger.Error(ctx, "ws_auth_failed", "Invalid auth message or token", err, nil)
		_ = ws.sendAuthError(p, "authentication failed: invalid token")
		return
	}
	clientID := claims.Subject

	// 4) Send authentication success message
	if err := ws.sendAuthSuccess(p, clientID); err != nil {
		ws.logger.Error(ctx, "ws_auth_success_failed", "Failed to send auth success message", err, nil)
		return
	}

	ws.logger.Info(ctx, "ws_connected", "Channel WebSocket connected", map[string]any{"client_id": clientID})

	// 5) Reset read deadline after auth
	_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	// 6) Ping loop using the per-connection writer lock
	stopPing := make(chan struct{})
	defer close(stopPing)
	go ws.pingLoop(ctx, p, stopPing)

	// 7) Read loop: one call per frame
	for {
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				ws.logger.Error(ctx, "ws_unexpected_close", "Channel connection closed unexpectedly", err, map[string]any{
					"client_id": clientID,
				})
				p.close(websocket.CloseInternalServerErr, "internal error")
			} else {
				ws.logger.Info(ctx, "ws_connection_closed", "Channel connection closed", map[string]any{
					"client_id": clientID,
				})
				p.close(websocket.CloseNormalClosure, "bye")
			}
			return
		}

		var call contracts.WSCallFrame
		if err := json.Unmarshal(payload, &call); err != nil {
			_ = p.writeJSON(contracts.WSResultFrame{MethodResult: contracts.MethodResult{
				Error: &contracts.MethodError{Code: contracts.CodeBadRequest, Message: "bad json"},
			}})
			continue
		}

		result := ws.bridge.Invoke(ctx, contracts.MethodCall{Method: call.Method})
		if err := p.writeJSON(contracts.WSResultFrame{ID: call.ID, MethodResult: result}); err != nil {
			ws.logger.Error(ctx, "ws_write_failed", "Failed to write call result", err, map[string]any{
				"client_id": clientID,
				"call_id":   call.ID,
			})
			return
		}
	}
}

func (ws *WebSocket) pingLoop(ctx context.Context, p *peer, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := p.ping(); err != nil {
				// unblocks the reader
				_ = p.conn.Close()
				ws.logger.Error(ctx, "ws_ping_failed", "Failed to send ping", err, nil)
				return
			}
		}
	}
}

// sendAuthError sends authentication error message to client
func (ws *WebSocket) sendAuthError(p *peer, message string) error {
	return p.writeJSON(map[string]any{
		"type":    "auth_error",
		"error":   message,
		"success": false,
	})
}

// sendAuthSuccess sends authentication success message to client
func (ws *WebSocket) sendAuthSuccess(p *peer, clientID string) error {
	return p.writeJSON(map[string]any{
		"type":      "auth_success",
		"message":   "Authentication successful",
		"success":   true,
		"client_id": clientID,
		"channel":   contracts.ChannelName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
