package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
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
	"geotrack/internal/general/metrics"
	"geotrack/internal/general/rabbitmq"
	"geotrack/internal/general/websocket"
	"geotrack/internal/ports"
	"geotrack/internal/software/tracking/bridge"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	mu    sync.Mutex
	state tracking.State
}

func (s *stubService) current() tracking.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stubService) Start(context.Context) (tracking.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := !s.state.Active()
	s.state = tracking.StateActive
	return tracking.Ack{Message: tracking.AckStarted, State: s.state, Changed: changed}, nil
}

func (s *stubService) Stop(context.Context) (tracking.Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.state.Active()
	s.state = tracking.StateIdle
	return tracking.Ack{Message: tracking.AckStopped, State: s.state, Changed: changed}, nil
}

func (s *stubService) Status() ports.TrackingStatus {
	return ports.TrackingStatus{State: s.current()}
}

type env struct {
	srv        *httptest.Server
	svc        *stubService
	controller string
	observer   string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := logger.NewNop()
	m := metrics.New()
	svc := &stubService{state: tracking.StateIdle}
	b := bridge.New(svc, log, m)
	mgr := jwt.NewManager("handler-secret", time.Hour)

	h := NewTrackingHTTPHandler(b, svc, log, mgr, websocket.NewWebSocket(log, mgr, b), m)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	controller, _, err := mgr.IssueClientToken("control-1", access.RoleController)
	require.NoError(t, err)
	observer, _, err := mgr.IssueClientToken("observer-1", access.RoleObserver)
	require.NoError(t, err)

	return &env{srv: srv, svc: svc, controller: controller, observer: observer}
}

func (e *env) call(t *testing.T, token, body string) (*http.Response, contracts.MethodResult) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/v1/channel", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var res contracts.MethodResult
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	}
	return resp, res
}

func TestChannelStartStop(t *testing.T) {
	e := newEnv(t)

	resp, res := e.call(t, e.controller, `{"method":"startService"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, res.OK())
	assert.Equal(t, "Service started", res.Result.Message)
	assert.Equal(t, tracking.StateActive, e.svc.current())

	_, res = e.call(t, e.controller, `{"method":"stopService"}`)
	require.True(t, res.OK())
	assert.Equal(t, "Service stopped", res.Result.Message)
	assert.Equal(t, tracking.StateIdle, e.svc.current())
}

func TestChannelUnknownMethod(t *testing.T) {
	e := newEnv(t)

	resp, res := e.call(t, e.controller, `{"method":"pause"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, res.Error)
	assert.Equal(t, contracts.CodeUnimplemented, res.Error.Code)
	assert.Equal(t, tracking.StateIdle, e.svc.current())
}

func TestChannelRejectsBadInput(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.call(t, "", `{"method":"startService"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = e.call(t, e.observer, `{"method":"startService"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = e.call(t, e.controller, `{"method":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/v1/channel", strings.NewReader(`{"method":"startService"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+e.controller)
	req.Header.Set("Content-Type", "text/plain")
	plain, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	plain.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, plain.StatusCode)

	assert.Equal(t, tracking.StateIdle, e.svc.current())
}

func TestStatusHealthAndMetrics(t *testing.T) {
	e := newEnv(t)
	e.call(t, e.controller, `{"method":"startService"}`)
	_, res := e.call(t, e.controller, `{"method":"getLocation"}`)
	require.NotNil(t, res.Error)
	assert.Equal(t, contracts.CodeUnimplemented, res.Error.Code)

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/v1/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+e.observer)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st ports.TrackingStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, tracking.StateActive, st.State)

	health, err := http.Get(e.srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	metricsResp, err := http.Get(e.srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `geotrack_commands_total{method="unknown",outcome="unimplemented"} 1`)
}

// ----- AMQP command consumer -----

type capturedReply struct {
	replyTo, corrID string
	body            []byte
	err             error
}

func (c *capturedReply) PublishReply(replyTo, correlationID string, body []byte) error {
	c.replyTo, c.corrID, c.body = replyTo, correlationID, body
	return c.err
}

func newConsumer(svc ports.TrackingService, rep Replier) *CommandConsumer {
	log := logger.NewNop()
	return &CommandConsumer{replier: rep, bridge: bridge.New(svc, log, nil), logger: log}
}

func TestCommandConsumerReplies(t *testing.T) {
	svc := &stubService{state: tracking.StateIdle}
	rep := &capturedReply{}
	consumer := newConsumer(svc, rep)

	err := consumer.handle(context.Background(), amqp.Delivery{
		Body:          []byte(`{"method":"startService"}`),
		ReplyTo:       "amq.rabbitmq.reply-to.abc",
		CorrelationId: "corr-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "amq.rabbitmq.reply-to.abc", rep.replyTo)
	assert.Equal(t, "corr-1", rep.corrID)

	var res contracts.MethodResult
	require.NoError(t, json.Unmarshal(rep.body, &res))
	require.True(t, res.OK())
	assert.Equal(t, "Service started", res.Result.Message)
}

func TestCommandConsumerRejectsGarbage(t *testing.T) {
	svc := &stubService{state: tracking.StateIdle}
	consumer := newConsumer(svc, &capturedReply{})

	err := consumer.handle(context.Background(), amqp.Delivery{Body: []byte("not json"), ReplyTo: "q"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, rabbitmq.ErrRetry)
	assert.Equal(t, tracking.StateIdle, svc.current())
}

func TestCommandConsumerReplyFailureRetries(t *testing.T) {
	consumer := newConsumer(&stubService{state: tracking.StateIdle}, &capturedReply{err: errors.New("channel closed")})

	err := consumer.handle(context.Background(), amqp.Delivery{Body: []byte(`{"method":"stopService"}`), ReplyTo: "q"})
	assert.ErrorIs(t, err, rabbitmq.ErrRetry)
}

func TestCommandConsumerWithoutReplyTo(t *testing.T) {
	svc := &stubService{state: tracking.StateIdle}
	rep := &capturedReply{}
	consumer := newConsumer(svc, rep)

	require.NoError(t, consumer.handle(context.Background(), amqp.Delivery{Body: []byte(`{"method":"startService"}`)}))
	assert.Equal(t, tracking.StateActive, svc.current())
	assert.Empty(t, rep.replyTo)
}
