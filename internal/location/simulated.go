package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/general/logger"
	"geotrack/internal/ports"
)

var ErrPermissionDenied = errors.New("location capability not granted")

// SimulatedProvider emits fixes along a route on a ticker, standing in for the
// platform's fused position provider.
type SimulatedProvider struct {
	route   Route
	granted bool
	logger  *logger.Logger

	mu     sync.Mutex
	cursor int
}

// NewSimulatedProvider constructs a provider walking route. When granted is false
// every RequestUpdates call is refused.
func NewSimulatedProvider(route Route, granted bool, logger *logger.Logger) *SimulatedProvider {
	return &SimulatedProvider{route: route, granted: granted, logger: logger}
}

var _ ports.LocationProvider = (*SimulatedProvider)(nil)

// Name returns the provider identifier.
func (p *SimulatedProvider) Name() string {
	return "simulated"
}

// RequestUpdates starts a delivery goroutine. It is not bound to ctx: a
// subscription outlives the request that opened it and ends only via remove.
func (p *SimulatedProvider) RequestUpdates(ctx context.Context, cfg tracking.SubscriptionConfig, listener ports.LocationListener) (func() error, error) {
	if !p.granted {
		return nil, ErrPermissionDenied
	}
	if err := p.route.Validate(); err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go p.run(cfg, listener, stop, done)

	p.logger.Debug(ctx, "provider_updates_requested", "Simulated provider started", map[string]any{
		"route":               p.route.Name,
		"interval_ms":         cfg.IntervalMillis,
		"fastest_interval_ms": cfg.FastestIntervalMillis,
		"priority":            cfg.Priority.String(),
	})

	var once sync.Once
	remove := func() error {
		once.Do(func() { close(stop) })
		<-done
		return nil
	}
	return remove, nil
}

func (p *SimulatedProvider) run(cfg tracking.SubscriptionConfig, listener ports.LocationListener, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(cfg.Interval())
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			tick++
			// passive requests only piggyback on other clients' fixes; model that as every other tick
			if cfg.Priority == tracking.PriorityPassive && tick%2 == 1 {
				continue
			}
			listener(p.nextResult(cfg, now))
		}
	}
}

// nextResult builds one delivery holding every fix the fastest interval allows within one period.
func (p *SimulatedProvider) nextResult(cfg tracking.SubscriptionConfig, now time.Time) *tracking.LocationResult {
	perTick := 1
	if cfg.FastestIntervalMillis > 0 {
		perTick = int(cfg.IntervalMillis / cfg.FastestIntervalMillis)
	}
	if perTick < 1 {
		perTick = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	samples := make([]tracking.LocationSample, 0, perTick)
	for i := perTick - 1; i >= 0; i-- {
		wp := p.route.At(p.cursor)
		p.cursor++
		samples = append(samples, tracking.LocationSample{
			Latitude:       wp.Lat,
			Longitude:      wp.Lng,
			Timestamp:      now.Add(-time.Duration(i) * cfg.FastestInterval()).UTC(),
			AccuracyMeters: cfg.Priority.AccuracyMeters(),
		})
	}
	return &tracking.LocationResult{Samples: samples}
}
