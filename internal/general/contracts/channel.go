package contracts

import "geotrack/internal/domain/tracking"

// Error codes returned in MethodError.Code.
const (
	CodeUnimplemented           = "unimplemented"
	CodeProviderUnavailable     = "provider_unavailable"
	CodeNotificationSetupFailed = "notification_setup_failed"
	CodeNotReady                = "not_ready"
	CodeCancelled               = "cancelled"
	CodeInternal                = "internal"
	CodeBadRequest              = "bad_request"
)

// MethodCall is one invocation on the command channel.
type MethodCall struct {
	Method string `json:"method"`
}

// MethodError is the error side of a MethodResult.
type MethodError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// MethodResult carries exactly one of Result or Error.
type MethodResult struct {
	Result *tracking.Ack `json:"result,omitempty"`
	Error  *MethodError  `json:"error,omitempty"`
}

// OK reports whether the call succeeded.
func (r MethodResult) OK() bool {
	return r.Error == nil && r.Result != nil
}

// WSAuthFrame must be the first frame on the channel socket.
type WSAuthFrame struct {
	Type  string `json:"type"` // "auth"
	Token string `json:"token"`
}

// WSCallFrame is a method call over the channel socket.
type WSCallFrame struct {
	ID     string `json:"id"`
	Method string `json:"method"`
}

// WSResultFrame answers a WSCallFrame with the same ID.
type WSResultFrame struct {
	ID string `json:"id,omitempty"`
	MethodResult
}
