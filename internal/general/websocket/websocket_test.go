package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"geotrack/internal/domain/access"
	"geotrack/internal/domain/tracking"
	"geotrack/internal/general/contracts"
	"geotrack/internal/general/jwt"
	"geotrack/internal/general/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInvoker struct {
	mu    sync.Mutex
	calls []string
}

func (e *echoInvoker) Invoke(_ context.Context, call contracts.MethodCall) contracts.MethodResult {
	e.mu.Lock()
	e.calls = append(e.calls, call.Method)
	e.mu.Unlock()
	if call.Method != "startService" {
		return contracts.MethodResult{Error: &contracts.MethodError{Code: contracts.CodeUnimplemented}}
	}
	return contracts.MethodResult{Result: &tracking.Ack{Message: tracking.AckStarted, State: tracking.StateActive}}
}

func newServer(t *testing.T) (*httptest.Server, *jwt.Manager, *echoInvoker) {
	t.Helper()
	mgr := jwt.NewManager("ws-secret", time.Hour)
	inv := &echoInvoker{}
	ws := NewWebSocket(logger.NewNop(), mgr, inv)
	srv := httptest.NewServer(http.HandlerFunc(ws.ConnectChannel))
	t.Cleanup(srv.Close)
	return srv, mgr, inv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestCallOverChannelSocket(t *testing.T) {
	srv, mgr, inv := newServer(t)
	token, _, err := mgr.IssueClientToken("control-1", access.RoleController)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := Call(ctx, wsURL(srv), token, "startService")
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, "Service started", res.Result.Message)

	res, err = Call(ctx, wsURL(srv), token, "pause")
	require.NoError(t, err)
	require.NotNil(t, res.Error)
	assert.Equal(t, contracts.CodeUnimplemented, res.Error.Code)

	assert.Equal(t, []string{"startService", "pause"}, inv.calls)
}

func TestObserverTokenIsRejected(t *testing.T) {
	srv, mgr, inv := newServer(t)
	token, _, err := mgr.IssueClientToken("observer-1", access.RoleObserver)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = Call(ctx, wsURL(srv), token, "startService")
	assert.ErrorIs(t, err, ErrAuthRejected)
	assert.Empty(t, inv.calls)
}

func TestBadFrameGetsErrorAndConnectionSurvives(t *testing.T) {
	srv, mgr, _ := newServer(t)
	token, _, err := mgr.IssueClientToken("control-1", access.RoleController)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	require.NoError(t, conn.WriteJSON(contracts.WSAuthFrame{Type: "auth", Token: "Bearer " + token}))
	var ack map[string]any
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "auth_success", ack["type"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
	var bad contracts.WSResultFrame
	require.NoError(t, conn.ReadJSON(&bad))
	require.NotNil(t, bad.Error)
	assert.Equal(t, contracts.CodeBadRequest, bad.Error.Code)

	require.NoError(t, conn.WriteJSON(contracts.WSCallFrame{ID: "42", Method: "startService"}))
	var good contracts.WSResultFrame
	require.NoError(t, conn.ReadJSON(&good))
	assert.Equal(t, "42", good.ID)
	assert.True(t, good.OK())
}
