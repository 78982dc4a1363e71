package rabbitmq

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/general/contracts"
	"geotrack/internal/general/logger"
	"geotrack/internal/ports"
)

// Publisher is the publishing side of MQPublisher.
type Publisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// StatusPublisher announces tracking transitions on the tracking_topic exchange
// using routing key "tracking.status.{active|idle}".
type StatusPublisher struct {
	pub    Publisher
	logger *logger.Logger
}

// NewStatusPublisher constructs a StatusPublisher.
func NewStatusPublisher(pub Publisher, logger *logger.Logger) *StatusPublisher {
	return &StatusPublisher{pub: pub, logger: logger}
}

var _ ports.StatusPublisher = (*StatusPublisher)(nil)

func (sp *StatusPublisher) PublishStatus(ctx context.Context, state tracking.State, sessionID, reason string) error {
	// construct routing key (e.g., "tracking.status.active")
	routingKey := contracts.RouteTrackingStatusPrefix + strings.ToLower(state.String())

	msg := contracts.TrackingStatusMessage{
		State:     state.String(),
		SessionID: sessionID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
		Envelope: contracts.Envelope{
			Producer:      contracts.ProducerTrackerService,
			CorrelationID: logger.RequestID(ctx),
			SentAt:        time.Now().UTC(),
		},
	}

	// marshal and publish
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := sp.pub.Publish(contracts.ExchangeTrackingTopic, routingKey, body); err != nil {
		return err
	}

	// log successful publication
	sp.logger.Info(ctx, "tracking_status_published", "Published tracking status to RabbitMQ", map[string]any{
		"routing_key": routingKey,
		"state":       msg.State,
		"reason":      reason,
	})
	return nil
}
