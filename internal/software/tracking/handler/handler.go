package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"geotrack/internal/domain/access"
	"geotrack/internal/general/jwt"
	"geotrack/internal/general/logger"
	"geotrack/internal/general/metrics"
	"geotrack/internal/general/websocket"
	"geotrack/internal/ports"
	"geotrack/internal/software/tracking/bridge"

	"github.com/google/uuid"
)

// TrackingHTTPHandler adapts HTTP requests to the command bridge.
type TrackingHTTPHandler struct {
	bridge    *bridge.Bridge
	svc       ports.TrackingService
	logger    *logger.Logger
	auth      *jwt.Manager
	websocket *websocket.WebSocket
	metrics   *metrics.Metrics
}

// NewTrackingHTTPHandler wires an HTTP handler around the bridge and the tracking service.
func NewTrackingHTTPHandler(
	b *bridge.Bridge,
	svc ports.TrackingService,
	logger *logger.Logger,
	auth *jwt.Manager,
	ws *websocket.WebSocket,
	m *metrics.Metrics,
) *TrackingHTTPHandler {
	return &TrackingHTTPHandler{bridge: b, svc: svc, logger: logger, auth: auth, websocket: ws, metrics: m}
}

// RegisterRoutes mounts the channel, status and ops endpoints on the provided mux.
func (handler *TrackingHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/channel",
		jwt.AuthMiddlewareFunc(handler.auth, access.RoleController)(handler.handleChannel),
	)
	mux.HandleFunc("GET /v1/status",
		jwt.AuthMiddlewareFunc(handler.auth, access.RoleController, access.RoleObserver)(handler.handleStatus),
	)

	// WebSocket authenticates with its first frame
	mux.HandleFunc("GET /ws/channel", handler.websocket.ConnectChannel)

	mux.HandleFunc("GET /health", handler.handleHealth)
	mux.Handle("GET /metrics", handler.metrics.Handler())
}

// ----- general helpers -----

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *TrackingHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *TrackingHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	} else if status == http.StatusUnsupportedMediaType {
		action = "unsupported_media_type"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *TrackingHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = uuid.NewString()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}
