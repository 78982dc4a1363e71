package location

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/general/logger"
	"geotrack/internal/general/metrics"
	"geotrack/internal/ports"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualProvider hands the listener to the test instead of running a ticker.
type manualProvider struct {
	mu       sync.Mutex
	listener ports.LocationListener
	cfg      tracking.SubscriptionConfig
	err      error
	removed  int
}

func (p *manualProvider) Name() string { return "manual" }

func (p *manualProvider) RequestUpdates(_ context.Context, cfg tracking.SubscriptionConfig, listener ports.LocationListener) (func() error, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.mu.Lock()
	p.listener = listener
	p.cfg = cfg
	p.mu.Unlock()
	return func() error {
		p.mu.Lock()
		p.removed++
		p.mu.Unlock()
		return nil
	}, nil
}

func (p *manualProvider) emit(result *tracking.LocationResult) {
	p.mu.Lock()
	l := p.listener
	p.mu.Unlock()
	l(result)
}

func sample(lat, lng float64) tracking.LocationSample {
	return tracking.LocationSample{Latitude: lat, Longitude: lng, Timestamp: time.Now()}
}

func TestOpenDeliversBatchesInOrder(t *testing.T) {
	provider := &manualProvider{}
	sub := NewSubscriber(provider, logger.NewNop(), nil)

	var got []tracking.Batch
	s, err := sub.Open(context.Background(), tracking.DefaultSubscriptionConfig(), func(b tracking.Batch) {
		got = append(got, b)
	})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, tracking.DefaultSubscriptionConfig(), provider.cfg)

	provider.emit(&tracking.LocationResult{Samples: []tracking.LocationSample{sample(1, 1), sample(2, 2), sample(3, 3)}})

	require.Len(t, got, 1)
	require.Len(t, got[0], 3)
	assert.Equal(t, 1.0, got[0][0].Latitude)
	assert.Equal(t, 2.0, got[0][1].Latitude)
	assert.Equal(t, 3.0, got[0][2].Latitude)
}

func TestEmptyAndMalformedResultsAreDropped(t *testing.T) {
	provider := &manualProvider{}
	m := metrics.New()
	sub := NewSubscriber(provider, logger.NewNop(), m)

	calls := 0
	_, err := sub.Open(context.Background(), tracking.DefaultSubscriptionConfig(), func(tracking.Batch) { calls++ })
	require.NoError(t, err)

	provider.emit(nil)
	provider.emit(&tracking.LocationResult{})
	provider.emit(&tracking.LocationResult{Samples: []tracking.LocationSample{{Latitude: 120}}})

	assert.Zero(t, calls)
	n, err := testutil.GatherAndCount(m.Registry(), "geotrack_results_dropped_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per drop reason")
}

func TestOpenProviderUnavailable(t *testing.T) {
	provider := &manualProvider{err: ErrPermissionDenied}
	sub := NewSubscriber(provider, logger.NewNop(), nil)

	_, err := sub.Open(context.Background(), tracking.DefaultSubscriptionConfig(), func(tracking.Batch) {})
	require.Error(t, err)
	assert.True(t, errors.Is(err, tracking.ErrProviderUnavailable))
	assert.True(t, errors.Is(err, ErrPermissionDenied))
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	sub := NewSubscriber(&manualProvider{}, logger.NewNop(), nil)

	_, err := sub.Open(context.Background(), tracking.SubscriptionConfig{IntervalMillis: 1, FastestIntervalMillis: 2, Priority: tracking.PriorityBalanced}, func(tracking.Batch) {})
	assert.ErrorIs(t, err, tracking.ErrInvalidConfig)
	assert.ErrorIs(t, err, tracking.ErrProviderUnavailable, "reported to callers as provider_unavailable")

	_, err = sub.Open(context.Background(), tracking.DefaultSubscriptionConfig(), nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func TestCloseIsIdempotent(t *testing.T) {
	provider := &manualProvider{}
	sub := NewSubscriber(provider, logger.NewNop(), nil)

	s, err := sub.Open(context.Background(), tracking.DefaultSubscriptionConfig(), func(tracking.Batch) {})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	assert.Equal(t, 1, provider.removed)
}

func TestNoDeliveryAfterClose(t *testing.T) {
	for round := 0; round < 20; round++ {
		provider := &manualProvider{}
		sub := NewSubscriber(provider, logger.NewNop(), nil)

		var closeReturned atomic.Bool
		var lateDeliveries atomic.Int64
		s, err := sub.Open(context.Background(), tracking.DefaultSubscriptionConfig(), func(tracking.Batch) {
			if closeReturned.Load() {
				lateDeliveries.Add(1)
			}
			// widen the in-flight window
			time.Sleep(50 * time.Microsecond)
		})
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					provider.emit(&tracking.LocationResult{Samples: []tracking.LocationSample{sample(1, 1)}})
				}
			}()
		}

		time.Sleep(time.Millisecond)
		require.NoError(t, s.Close())
		closeReturned.Store(true)

		wg.Wait()
		assert.Zero(t, lateDeliveries.Load(), "round %d", round)
	}
}
