package bridge

import (
	"context"
	"errors"
	"fmt"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/general/contracts"
	"geotrack/internal/general/logger"
	"geotrack/internal/general/metrics"
	"geotrack/internal/ports"
)

// Bridge dispatches command-channel calls onto the tracking service.
// Every transport (HTTP, WebSocket, AMQP) goes through Invoke.
type Bridge struct {
	service ports.TrackingService
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// New constructs a Bridge.
func New(service ports.TrackingService, logger *logger.Logger, m *metrics.Metrics) *Bridge {
	return &Bridge{service: service, logger: logger, metrics: m}
}

// Invoke runs one method call. It never panics and never returns a Go error:
// failures are encoded in the result.
func (b *Bridge) Invoke(ctx context.Context, call contracts.MethodCall) (res contracts.MethodResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			b.logger.Error(ctx, "channel_call_panic", "Recovered panic while handling channel call", err, map[string]any{
				"method": call.Method,
			})
			res = failure(contracts.CodeInternal, err)
		}
	}()

	cmd, err := tracking.ParseCommand(call.Method)
	if err != nil {
		b.metrics.ObserveCommand("unknown", contracts.CodeUnimplemented)
		b.logger.Debug(ctx, "channel_call_unimplemented", "Unsupported channel method", map[string]any{
			"method": call.Method,
		})
		return failure(contracts.CodeUnimplemented, err)
	}

	var ack tracking.Ack
	switch cmd {
	case tracking.CommandStart:
		ack, err = b.service.Start(ctx)
	case tracking.CommandStop:
		ack, err = b.service.Stop(ctx)
	}
	if err != nil {
		code := Code(err)
		b.logger.Error(ctx, "channel_call_failed", "Channel call failed", err, map[string]any{
			"method": cmd.String(),
			"code":   code,
		})
		return failure(code, err)
	}

	b.logger.Info(ctx, "channel_call_handled", ack.Message, map[string]any{
		"method":     cmd.String(),
		"state":      ack.State.String(),
		"changed":    ack.Changed,
		"session_id": ack.SessionID,
	})
	return contracts.MethodResult{Result: &ack}
}

// Code maps a service error onto a channel error code.
func Code(err error) string {
	switch {
	case errors.Is(err, tracking.ErrUnsupportedCommand):
		return contracts.CodeUnimplemented
	case errors.Is(err, tracking.ErrProviderUnavailable):
		return contracts.CodeProviderUnavailable
	case errors.Is(err, tracking.ErrNotificationSetupFailed):
		return contracts.CodeNotificationSetupFailed
	case errors.Is(err, tracking.ErrControllerNotCreated), errors.Is(err, tracking.ErrControllerDestroyed):
		return contracts.CodeNotReady
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return contracts.CodeCancelled
	default:
		return contracts.CodeInternal
	}
}

func failure(code string, err error) contracts.MethodResult {
	return contracts.MethodResult{Error: &contracts.MethodError{Code: code, Message: err.Error()}}
}
