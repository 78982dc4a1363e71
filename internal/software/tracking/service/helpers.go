package service

import (
	"context"

	"geotrack/internal/domain/tracking"
)

const (
	outcomeChanged   = "changed"
	outcomeNoop      = "noop"
	outcomeFailed    = "failed"
	outcomeCancelled = "cancelled"
)

// acquire takes the command slot, giving up when ctx is done.
func (c *Controller) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) release() {
	<-c.sem
}

// ready reports whether commands may change state.
func (c *Controller) ready() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch c.lifecycle {
	case lifecycleNew:
		return tracking.ErrControllerNotCreated
	case lifecycleDestroyed:
		return tracking.ErrControllerDestroyed
	}
	return nil
}

// afterTransition records the session and announces the new state. Failures are
// logged and never change the outcome of the command.
func (c *Controller) afterTransition(ctx context.Context, session *tracking.Session, state tracking.State, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if c.recorder != nil {
		var err error
		if state.Active() {
			err = c.recorder.Begin(ctx, session)
		} else {
			err = c.recorder.Finish(ctx, session)
		}
		if err != nil {
			c.logger.Error(ctx, "session_record_failed", "Failed to record tracking session", err, map[string]any{
				"state": state.String(),
			})
		}
	}

	if c.status != nil {
		if err := c.status.PublishStatus(ctx, state, session.ID, reason); err != nil {
			c.logger.Error(ctx, "tracking_status_publish_failed", "Failed to publish tracking status", err, map[string]any{
				"state": state.String(),
			})
		}
	}
}
