package service

import (
	"context"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/location"
)

// Start moves Idle to Active: it registers the category, shows the persistent
// notification and opens the location subscription. Starting while Active is a no-op.
func (c *Controller) Start(ctx context.Context) (tracking.Ack, error) {
	if err := c.acquire(ctx); err != nil {
		c.metrics.ObserveCommand(tracking.CommandStart.String(), outcomeCancelled)
		return tracking.Ack{}, err
	}
	defer c.release()

	if err := c.ready(); err != nil {
		c.metrics.ObserveCommand(tracking.CommandStart.String(), outcomeFailed)
		return tracking.Ack{}, err
	}

	c.mu.RLock()
	state, session := c.state, c.session
	c.mu.RUnlock()

	if state.Active() {
		c.metrics.ObserveCommand(tracking.CommandStart.String(), outcomeNoop)
		c.logger.Debug(ctx, "tracking_start_noop", "Tracking already active", map[string]any{
			"session_id": session.ID,
		})
		return tracking.Ack{Message: tracking.AckStarted, State: tracking.StateActive, SessionID: session.ID}, nil
	}

	session, err := c.activate(ctx)
	if err != nil {
		c.metrics.ObserveCommand(tracking.CommandStart.String(), outcomeFailed)
		c.logger.Error(ctx, "tracking_start_failed", "Failed to start background tracking", err, nil)
		return tracking.Ack{}, err
	}

	c.metrics.ObserveCommand(tracking.CommandStart.String(), outcomeChanged)
	return tracking.Ack{
		Message:   tracking.AckStarted,
		State:     tracking.StateActive,
		SessionID: session.ID,
		Changed:   true,
	}, nil
}

// activate performs the Idle to Active steps. On failure, or a panic part way
// through, nothing stays shown or subscribed.
func (c *Controller) activate(ctx context.Context) (*tracking.Session, error) {
	if err := c.presenter.EnsureCategory(ctx, c.opts.Category); err != nil {
		return nil, err
	}

	handle, err := c.presenter.Present(ctx, c.opts.Category.ID, c.opts.Message)
	if err != nil {
		return nil, err
	}

	var sub *location.Subscription
	committed := false
	defer func() {
		if committed {
			return
		}
		rctx := context.WithoutCancel(ctx)
		if sub != nil {
			if cerr := sub.Close(); cerr != nil {
				c.logger.Error(rctx, "subscription_close_failed", "Failed to remove location updates after aborted start", cerr, nil)
			}
		}
		c.quiesce()
		if rerr := c.presenter.Retire(rctx, handle); rerr != nil {
			c.logger.Error(rctx, "notification_retire_failed", "Failed to retire notification after aborted start", rerr, nil)
		}
	}()

	session := tracking.NewSession(c.opts.Subscription)
	ctx = c.logger.WithSessionID(ctx, session.ID)

	c.batches.Store(0)
	c.samples.Store(0)
	c.dropped.Store(0)

	c.goLive(session.ID)
	sub, err = c.subscriber.Open(ctx, c.opts.Subscription, c.onBatch(session.ID))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.state = tracking.StateActive
	c.sub = sub
	c.handle = handle
	c.session = session
	c.mu.Unlock()
	committed = true

	c.metrics.SetState(tracking.StateActive)
	c.logger.Info(ctx, "tracking_started", "Background tracking started", map[string]any{
		"subscription_id":     sub.ID(),
		"notification_id":     handle.ID,
		"interval_ms":         c.opts.Subscription.IntervalMillis,
		"fastest_interval_ms": c.opts.Subscription.FastestIntervalMillis,
		"priority":            c.opts.Subscription.Priority.String(),
	})

	c.afterTransition(ctx, session, tracking.StateActive, string(tracking.EndReasonCommand))
	return session, nil
}
