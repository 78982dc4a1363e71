package contracts

import "time"

// TrackingStatusMessage is published by the tracker service on every transition.
// Routing key: "tracking.status.{active|idle}" on ExchangeTrackingTopic.
type TrackingStatusMessage struct {
	State     string    `json:"state"` // ACTIVE|IDLE
	SessionID string    `json:"session_id,omitempty"`
	Reason    string    `json:"reason,omitempty"` // command|teardown
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
