package ports

import (
	"context"
	"time"

	"geotrack/internal/domain/tracking"
)

// ----- DTOs for the tracking service -----

// TrackingStatus is a point-in-time snapshot of the lifecycle controller.
type TrackingStatus struct {
	State              tracking.State              `json:"state"`
	SessionID          string                      `json:"session_id,omitempty"`
	SubscriptionID     string                      `json:"subscription_id,omitempty"`
	NotificationID     string                      `json:"notification_id,omitempty"`
	Config             tracking.SubscriptionConfig `json:"config"`
	ActiveSince        *time.Time                  `json:"active_since,omitempty"`
	BatchesDelivered   int64                       `json:"batches_delivered"`
	SamplesDelivered   int64                       `json:"samples_delivered"`
	BatchesDropped     int64                       `json:"batches_dropped"`
	ProviderName       string                      `json:"provider"`
	NotificationsShown int                         `json:"notifications_shown"`
}

// ----- Tracking service interface -----

// TrackingService exposes the lifecycle boundary used by the command bridge.
type TrackingService interface {
	Start(ctx context.Context) (tracking.Ack, error)
	Stop(ctx context.Context) (tracking.Ack, error)
	Status() TrackingStatus
}
