package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"geotrack/internal/domain/tracking"
	"geotrack/internal/general/contracts"
	"geotrack/internal/general/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	exchange, key string
	body          []byte
	err           error
}

func (p *recordingPublisher) Publish(exchange, routingKey string, body []byte) error {
	p.exchange, p.key, p.body = exchange, routingKey, body
	return p.err
}

func TestPublishStatusRoutesByState(t *testing.T) {
	pub := &recordingPublisher{}
	sp := NewStatusPublisher(pub, logger.NewNop())
	log := logger.NewNop()
	ctx := log.WithRequestID(context.Background(), "req-1")

	require.NoError(t, sp.PublishStatus(ctx, tracking.StateActive, "s-1", "command"))
	assert.Equal(t, "tracking_topic", pub.exchange)
	assert.Equal(t, "tracking.status.active", pub.key)

	var msg contracts.TrackingStatusMessage
	require.NoError(t, json.Unmarshal(pub.body, &msg))
	assert.Equal(t, "ACTIVE", msg.State)
	assert.Equal(t, "s-1", msg.SessionID)
	assert.Equal(t, "command", msg.Reason)
	assert.Equal(t, "tracker-service", msg.Producer)
	assert.Equal(t, "req-1", msg.CorrelationID)

	require.NoError(t, sp.PublishStatus(context.Background(), tracking.StateIdle, "s-1", "teardown"))
	assert.Equal(t, "tracking.status.idle", pub.key)
}

func TestPublishStatusSurfacesBrokerErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("rabbitmq: connection is not open")}
	sp := NewStatusPublisher(pub, logger.NewNop())

	err := sp.PublishStatus(context.Background(), tracking.StateActive, "s-1", "command")
	assert.Error(t, err)
}
