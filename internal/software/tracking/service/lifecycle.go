package service

import (
	"context"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/general/metrics"
)

// OnCreate prepares the sample forwarding worker. It does not subscribe.
// Calling it again is a no-op; calling it after OnDestroy fails.
func (c *Controller) OnCreate(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.lifecycle {
	case lifecycleCreated:
		return nil
	case lifecycleDestroyed:
		return tracking.ErrControllerDestroyed
	}

	c.queue = make(chan queuedBatch, c.opts.QueueSize)
	c.stopWorker = make(chan struct{})
	c.workerDone = make(chan struct{})
	c.lifecycle = lifecycleCreated

	go c.forward(c.queue, c.stopWorker, c.workerDone)

	c.logger.Info(ctx, "tracker_created", "Tracking controller created", map[string]any{
		"queue_size": c.opts.QueueSize,
		"provider":   c.subscriber.ProviderName(),
	})
	return nil
}

// OnDestroy releases the subscription and notification if tracking is active and
// stops the forwarding worker. It waits for any in-flight command and ignores
// cancellation of ctx.
func (c *Controller) OnDestroy(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	c.sem <- struct{}{}
	defer c.release()

	c.mu.RLock()
	lc, state := c.lifecycle, c.state
	c.mu.RUnlock()

	if lc == lifecycleDestroyed {
		return
	}
	if state.Active() {
		c.deactivate(ctx, tracking.EndReasonTeardown)
	}

	c.mu.Lock()
	c.lifecycle = lifecycleDestroyed
	stop, done := c.stopWorker, c.workerDone
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	c.logger.Info(ctx, "tracker_destroyed", "Tracking controller destroyed", map[string]any{
		"batches_dropped": c.dropped.Load(),
	})
}

// onBatch returns the delivery callback for one session. It never blocks: when the
// queue is full the batch is dropped and counted.
func (c *Controller) onBatch(sessionID string) func(tracking.Batch) {
	return func(batch tracking.Batch) {
		c.batches.Add(1)
		c.samples.Add(int64(len(batch)))
		c.metrics.ObserveBatch()

		select {
		case c.queue <- queuedBatch{sessionID: sessionID, batch: batch}:
		default:
			c.dropped.Add(1)
			c.metrics.ObserveDropped(metrics.DropQueueFull)
		}
	}
}

// forward hands queued batches to the sink until stop is closed. Batches still
// queued at that point are discarded.
func (c *Controller) forward(queue <-chan queuedBatch, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case qb := <-queue:
			c.deliver(qb)
		}
	}
}

// deliver passes one batch to the sink unless its session is no longer live.
func (c *Controller) deliver(qb queuedBatch) {
	c.fwdMu.Lock()
	defer c.fwdMu.Unlock()

	if qb.sessionID != c.live {
		c.metrics.ObserveDropped(metrics.DropStale)
		return
	}

	ctx := c.logger.WithSessionID(context.Background(), qb.sessionID)
	if err := c.sink.Consume(ctx, qb.sessionID, qb.batch); err != nil {
		c.logger.Error(ctx, "sample_forward_failed", "Failed to hand batch to sink", err, map[string]any{
			"samples": len(qb.batch),
		})
		return
	}
	c.metrics.ObserveForwarded(len(qb.batch))
}

// goLive lets batches of sessionID through to the sink.
func (c *Controller) goLive(sessionID string) {
	c.fwdMu.Lock()
	c.live = sessionID
	c.fwdMu.Unlock()
}

// quiesce waits for an in-flight sink hand-off, then discards whatever is still
// queued. No batch reaches the sink once it returns. It returns the number of
// discarded batches.
func (c *Controller) quiesce() int {
	c.fwdMu.Lock()
	defer c.fwdMu.Unlock()

	c.live = ""
	discarded := 0
	for {
		select {
		case <-c.queue:
			discarded++
			c.metrics.ObserveDropped(metrics.DropStale)
		default:
			return discarded
		}
	}
}
