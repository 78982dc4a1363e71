package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"geotrack/internal/general/contracts"
)

// ----- Handler: POST /v1/channel -----

// handleChannel answers every well-formed call with 200 and a MethodResult,
// including calls to methods that do not exist.
func (handler *TrackingHTTPHandler) handleChannel(w http.ResponseWriter, r *http.Request) {
	// generate a context with request ID
	ctx := handler.withReqID(r.Context(), r)

	// check the content type
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return
	}

	var call contracts.MethodCall
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&call); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// bound service call
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	res := handler.bridge.Invoke(ctxWithTimeout, call)
	handler.jsonResponse(ctx, w, http.StatusOK, res)
}

// ----- Handler: GET /v1/status -----

func (handler *TrackingHTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	handler.jsonResponse(ctx, w, http.StatusOK, handler.svc.Status())
}

// ----- Handler: GET /health -----

func (handler *TrackingHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := handler.svc.Status()
	handler.jsonResponse(r.Context(), w, http.StatusOK, map[string]any{
		"status":    "ok",
		"service":   contracts.ProducerTrackerService,
		"state":     st.State.String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
