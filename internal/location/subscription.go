package location

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/general/logger"
	"geotrack/internal/general/metrics"
	"geotrack/internal/ports"

	"github.com/google/uuid"
)

// BatchHandler receives every non-empty batch of a subscription. It runs on the
// provider's goroutine and must not block.
type BatchHandler func(batch tracking.Batch)

var ErrNilHandler = errors.New("batch handler is required")

// Subscriber opens subscriptions against one provider.
type Subscriber struct {
	provider ports.LocationProvider
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewSubscriber wires a Subscriber around a provider.
func NewSubscriber(provider ports.LocationProvider, logger *logger.Logger, m *metrics.Metrics) *Subscriber {
	return &Subscriber{provider: provider, logger: logger, metrics: m}
}

// ProviderName returns the name of the underlying provider.
func (s *Subscriber) ProviderName() string {
	return s.provider.Name()
}

// Open requests periodic updates with cfg and routes batches to onBatch.
// A provider refusal is reported as tracking.ErrProviderUnavailable.
func (s *Subscriber) Open(ctx context.Context, cfg tracking.SubscriptionConfig, onBatch BatchHandler) (*Subscription, error) {
	if onBatch == nil {
		return nil, ErrNilHandler
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", tracking.ErrProviderUnavailable, err)
	}

	sub := &Subscription{
		id:      uuid.NewString(),
		cfg:     cfg,
		onBatch: onBatch,
		logger:  s.logger,
		metrics: s.metrics,
	}

	remove, err := s.provider.RequestUpdates(ctx, cfg, sub.deliver)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", tracking.ErrProviderUnavailable, s.provider.Name(), err)
	}
	sub.remove = remove

	s.logger.Info(ctx, "subscription_opened", "Location subscription opened", map[string]any{
		"subscription_id": sub.id,
		"provider":        s.provider.Name(),
	})
	return sub, nil
}

// Subscription is the handle of one open provider registration.
type Subscription struct {
	id      string
	cfg     tracking.SubscriptionConfig
	onBatch BatchHandler
	remove  func() error
	logger  *logger.Logger
	metrics *metrics.Metrics

	// deliveries hold the read lock; Close takes the write lock so it waits
	// for any delivery in flight before reporting the subscription closed.
	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	closeErr  error
}

// ID returns the handle identity.
func (sub *Subscription) ID() string {
	return sub.id
}

// Config returns the configuration the subscription was opened with.
func (sub *Subscription) Config() tracking.SubscriptionConfig {
	return sub.cfg
}

// Closed reports whether Close has completed.
func (sub *Subscription) Closed() bool {
	sub.mu.RLock()
	defer sub.mu.RUnlock()
	return sub.closed
}

// Close unregisters the handler. After Close returns the handler is never invoked
// again. It is idempotent; the provider removal error, if any, is returned every time.
func (sub *Subscription) Close() error {
	sub.closeOnce.Do(func() {
		if sub.remove != nil {
			sub.closeErr = sub.remove()
		}

		sub.mu.Lock()
		sub.closed = true
		sub.mu.Unlock()

		sub.logger.Info(context.Background(), "subscription_closed", "Location subscription closed", map[string]any{
			"subscription_id": sub.id,
		})
	})
	return sub.closeErr
}

// deliver is the provider listener. Empty or malformed results are dropped silently.
func (sub *Subscription) deliver(result *tracking.LocationResult) {
	sub.mu.RLock()
	defer sub.mu.RUnlock()

	if sub.closed {
		return
	}

	batch, malformed, ok := tracking.BatchFromResult(result)
	if !ok {
		reason := metrics.DropEmpty
		if malformed > 0 {
			reason = metrics.DropMalformed
		}
		sub.metrics.ObserveDropped(reason)
		sub.logger.Debug(context.Background(), "location_result_dropped", "Dropped provider result without usable positions", map[string]any{
			"subscription_id": sub.id,
			"reason":          reason,
		})
		return
	}

	sub.onBatch(batch)
}
