package service

import (
	"context"
	"strings"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/notification"
)

// Stop moves Active to Idle: it closes the subscription, waits for the sink to
// finish any batch it holds, then retires the notification. Stopping while Idle is a no-op. Release failures do not fail
// the command; they are reported in Ack.Warning.
func (c *Controller) Stop(ctx context.Context) (tracking.Ack, error) {
	if err := c.acquire(ctx); err != nil {
		c.metrics.ObserveCommand(tracking.CommandStop.String(), outcomeCancelled)
		return tracking.Ack{}, err
	}
	defer c.release()

	c.mu.RLock()
	state := c.state
	c.mu.RUnlock()

	if !state.Active() {
		c.metrics.ObserveCommand(tracking.CommandStop.String(), outcomeNoop)
		c.logger.Debug(ctx, "tracking_stop_noop", "Tracking already idle", nil)
		return tracking.Ack{Message: tracking.AckStopped, State: tracking.StateIdle}, nil
	}

	sessionID, warning := c.deactivate(ctx, tracking.EndReasonCommand)

	c.metrics.ObserveCommand(tracking.CommandStop.String(), outcomeChanged)
	return tracking.Ack{
		Message:   tracking.AckStopped,
		State:     tracking.StateIdle,
		SessionID: sessionID,
		Changed:   true,
		Warning:   warning,
	}, nil
}

// deactivate performs the Active to Idle steps. It must be called with sem held.
func (c *Controller) deactivate(ctx context.Context, reason tracking.EndReason) (string, string) {
	ctx = context.WithoutCancel(ctx)

	c.mu.RLock()
	sub, handle, session := c.sub, c.handle, c.session
	c.mu.RUnlock()

	ctx = c.logger.WithSessionID(ctx, session.ID)
	var warnings []string

	if err := sub.Close(); err != nil {
		c.logger.Error(ctx, "subscription_close_failed", "Failed to remove location updates", err, nil)
		warnings = append(warnings, "location updates: "+err.Error())
	}
	discarded := c.quiesce()
	if err := c.presenter.Retire(ctx, handle); err != nil {
		c.logger.Error(ctx, "notification_retire_failed", "Failed to retire notification", err, nil)
		warnings = append(warnings, "notification: "+err.Error())
	}

	_ = session.End(reason, c.batches.Load(), c.samples.Load())

	c.mu.Lock()
	c.state = tracking.StateIdle
	c.sub = nil
	c.handle = notification.Handle{}
	c.session = nil
	c.mu.Unlock()

	c.metrics.SetState(tracking.StateIdle)
	c.logger.Info(ctx, "tracking_stopped", "Background tracking stopped", map[string]any{
		"reason":            string(reason),
		"batches_delivered": session.BatchesDelivered,
		"samples_delivered": session.SamplesDelivered,
		"batches_dropped":   c.dropped.Load(),
		"batches_discarded": discarded,
		"duration_seconds":  session.Duration().Seconds(),
	})

	c.afterTransition(ctx, session, tracking.StateIdle, string(reason))
	return session.ID, strings.Join(warnings, "; ")
}
