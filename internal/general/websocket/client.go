package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"geotrack/internal/general/contracts"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var ErrAuthRejected = errors.New("websocket: authentication rejected")

// Call dials url, authenticates with token and performs a single method call.
func Call(ctx context.Context, url, token, method string) (contracts.MethodResult, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		return contracts.MethodResult{}, fmt.Errorf("websocket: dial %s: %w", url, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	if err := conn.WriteJSON(contracts.WSAuthFrame{Type: "auth", Token: "Bearer " + token}); err != nil {
		return contracts.MethodResult{}, fmt.Errorf("websocket: send auth: %w", err)
	}

	var ack struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	if err := conn.ReadJSON(&ack); err != nil {
		return contracts.MethodResult{}, fmt.Errorf("websocket: read auth reply: %w", err)
	}
	if ack.Type != "auth_success" {
		return contracts.MethodResult{}, fmt.Errorf("%w: %s", ErrAuthRejected, ack.Error)
	}

	id := uuid.NewString()
	if err := conn.WriteJSON(contracts.WSCallFrame{ID: id, Method: method}); err != nil {
		return contracts.MethodResult{}, fmt.Errorf("websocket: send call: %w", err)
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return contracts.MethodResult{}, fmt.Errorf("websocket: read result: %w", err)
		}
		var frame contracts.WSResultFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			return contracts.MethodResult{}, fmt.Errorf("websocket: decode result: %w", err)
		}
		if frame.ID == id {
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
			return frame.MethodResult, nil
		}
	}
}
