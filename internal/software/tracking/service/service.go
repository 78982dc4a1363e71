package service

import (
	"sync"
	"sync/atomic"
	"time"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/general/logger"
	"geotrack/internal/general/metrics"
	"geotrack/internal/location"
	"geotrack/internal/notification"
	"geotrack/internal/ports"
)

const defaultQueueSize = 64

// Options carries the static settings of a Controller.
type Options struct {
	Category     notification.Category
	Message      notification.Message
	Subscription tracking.SubscriptionConfig
	QueueSize    int
}

// DefaultOptions returns the stock category, message and subscription settings.
func DefaultOptions() Options {
	return Options{
		Category: notification.Category{
			ID:          "location_service_channel",
			DisplayName: "Location Service Channel",
			Importance:  notification.ImportanceLow,
		},
		Message: notification.Message{
			Title: "Location Service",
			Body:  "Tracking location in the background",
			Icon:  "ic_notification",
		},
		Subscription: tracking.DefaultSubscriptionConfig(),
		QueueSize:    defaultQueueSize,
	}
}

type lifecycle int

const (
	lifecycleNew lifecycle = iota
	lifecycleCreated
	lifecycleDestroyed
)

type queuedBatch struct {
	sessionID string
	batch     tracking.Batch
}

// Controller is the lifecycle state machine of the background tracking task.
// Commands are serialized through sem; mu guards the fields read by Status.
type Controller struct {
	logger     *logger.Logger
	metrics    *metrics.Metrics
	presenter  *notification.Presenter
	subscriber *location.Subscriber
	sink       ports.SampleSink
	recorder   ports.SessionRecorder
	status     ports.StatusPublisher
	opts       Options

	sem chan struct{}

	mu        sync.RWMutex
	lifecycle lifecycle
	state     tracking.State
	sub       *location.Subscription
	handle    notification.Handle
	session   *tracking.Session

	batches atomic.Int64
	samples atomic.Int64
	dropped atomic.Int64

	queue      chan queuedBatch
	stopWorker chan struct{}
	workerDone chan struct{}

	// fwdMu is held across sink.Consume. live names the session whose batches
	// may still reach the sink; it is empty while Idle.
	fwdMu sync.Mutex
	live  string
}

// NewController constructs an idle Controller. recorder and status may be nil.
func NewController(
	logger *logger.Logger,
	m *metrics.Metrics,
	presenter *notification.Presenter,
	subscriber *location.Subscriber,
	sink ports.SampleSink,
	recorder ports.SessionRecorder,
	status ports.StatusPublisher,
	opts Options,
) *Controller {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	return &Controller{
		logger:     logger,
		metrics:    m,
		presenter:  presenter,
		subscriber: subscriber,
		sink:       sink,
		recorder:   recorder,
		status:     status,
		opts:       opts,
		sem:        make(chan struct{}, 1),
		state:      tracking.StateIdle,
	}
}

var _ ports.TrackingService = (*Controller)(nil)

// Status returns a snapshot of the controller.
func (c *Controller) Status() ports.TrackingStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := ports.TrackingStatus{
		State:              c.state,
		Config:             c.opts.Subscription,
		BatchesDelivered:   c.batches.Load(),
		SamplesDelivered:   c.samples.Load(),
		BatchesDropped:     c.dropped.Load(),
		ProviderName:       c.subscriber.ProviderName(),
		NotificationsShown: c.presenter.Visible(),
	}
	if c.sub != nil {
		st.SubscriptionID = c.sub.ID()
	}
	if c.handle.ID != "" {
		st.NotificationID = c.handle.ID
	}
	if c.session != nil {
		since := c.session.StartedAt
		st.SessionID = c.session.ID
		st.ActiveSince = &since
	}
	return st
}

// State returns the current lifecycle state.
func (c *Controller) State() tracking.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// sideEffectTimeout bounds audit and status publication after a transition.
const sideEffectTimeout = 5 * time.Second
