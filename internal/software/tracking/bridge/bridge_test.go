package bridge

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/general/contracts"
	"geotrack/internal/general/logger"
	"geotrack/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	starts, stops int
	err           error
	panicWith     any
}

func (s *stubService) Start(context.Context) (tracking.Ack, error) {
	s.starts++
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	if s.err != nil {
		return tracking.Ack{}, s.err
	}
	return tracking.Ack{Message: tracking.AckStarted, State: tracking.StateActive, Changed: true}, nil
}

func (s *stubService) Stop(context.Context) (tracking.Ack, error) {
	s.stops++
	if s.err != nil {
		return tracking.Ack{}, s.err
	}
	return tracking.Ack{Message: tracking.AckStopped, State: tracking.StateIdle, Changed: true}, nil
}

func (s *stubService) Status() ports.TrackingStatus {
	return ports.TrackingStatus{State: tracking.StateIdle}
}

func TestInvokeDispatchesCommands(t *testing.T) {
	svc := &stubService{}
	b := New(svc, logger.NewNop(), nil)

	res := b.Invoke(context.Background(), contracts.MethodCall{Method: "startService"})
	require.True(t, res.OK())
	assert.Equal(t, "Service started", res.Result.Message)

	res = b.Invoke(context.Background(), contracts.MethodCall{Method: "stopService"})
	require.True(t, res.OK())
	assert.Equal(t, "Service stopped", res.Result.Message)

	assert.Equal(t, 1, svc.starts)
	assert.Equal(t, 1, svc.stops)
}

func TestInvokeUnknownMethodIsUnimplemented(t *testing.T) {
	svc := &stubService{}
	b := New(svc, logger.NewNop(), nil)

	for _, m := range []string{"pause", "", "StartService"} {
		res := b.Invoke(context.Background(), contracts.MethodCall{Method: m})
		require.NotNil(t, res.Error, m)
		assert.Equal(t, contracts.CodeUnimplemented, res.Error.Code)
		assert.Nil(t, res.Result)
	}
	assert.Zero(t, svc.starts)
	assert.Zero(t, svc.stops)
}

func TestInvokeMapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("%w: fake: denied", tracking.ErrProviderUnavailable), contracts.CodeProviderUnavailable},
		{fmt.Errorf("%w: no daemon", tracking.ErrNotificationSetupFailed), contracts.CodeNotificationSetupFailed},
		{tracking.ErrControllerNotCreated, contracts.CodeNotReady},
		{tracking.ErrControllerDestroyed, contracts.CodeNotReady},
		{context.Canceled, contracts.CodeCancelled},
		{errors.New("boom"), contracts.CodeInternal},
	}
	for _, tc := range cases {
		b := New(&stubService{err: tc.err}, logger.NewNop(), nil)
		res := b.Invoke(context.Background(), contracts.MethodCall{Method: "startService"})
		require.NotNil(t, res.Error)
		assert.Equal(t, tc.code, res.Error.Code, tc.err.Error())
	}
}

func TestInvokeRecoversPanics(t *testing.T) {
	b := New(&stubService{panicWith: "nil map"}, logger.NewNop(), nil)

	res := b.Invoke(context.Background(), contracts.MethodCall{Method: "startService"})
	require.NotNil(t, res.Error)
	assert.Equal(t, contracts.CodeInternal, res.Error.Code)
	assert.Contains(t, res.Error.Message, "nil map")
}
