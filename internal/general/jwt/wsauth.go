package jwt

import (
	"encoding/json"
	"errors"
	"strings"

	"geotrack/internal/domain/access"
	"geotrack/internal/general/contracts"
)

var ErrBadAuthMsg = errors.New("invalid auth message")

// ValidateWSAuth authenticates the first WebSocket frame:
//
//	{ "type":"auth", "token":"Bearer <jwt>" }
func ValidateWSAuth(frame []byte, mgr *Manager, allowedRoles ...access.Role) (*Claims, error) {
	var msg contracts.WSAuthFrame
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, ErrBadAuthMsg
	}
	if !strings.EqualFold(strings.TrimSpace(msg.Type), "auth") {
		return nil, ErrBadAuthMsg
	}

	raw, err := splitBearer(msg.Token)
	if err != nil {
		return nil, err
	}
	return mgr.Authenticate(raw, allowedRoles...)
}
