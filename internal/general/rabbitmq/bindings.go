package rabbitmq

import (
	"fmt"

	"geotrack/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// a command nobody picked up within the client's timeout is stale
	commandTTLMillis = 30_000
	// status events are informational; keep the newest
	statusQueueMaxLen = 1000
)

type exchangeSpec struct {
	name, kind string
}

type queueSpec struct {
	name string
	args amqp.Table
}

type bindingSpec struct {
	queue, exchange, routingKey string
}

// topology lists everything the tracker declares on connect.
type topology struct {
	Exchanges []exchangeSpec
	Queues    []queueSpec
	Bindings  []bindingSpec
}

// trackingTopology is the tracker's topology. Commands arrive on the default
// exchange and need no binding.
func trackingTopology() topology {
	return topology{
		Exchanges: []exchangeSpec{
			{name: contracts.ExchangeTrackingTopic, kind: amqp.ExchangeTopic},
		},
		Queues: []queueSpec{
			{name: contracts.QueueTrackingCommands, args: amqp.Table{"x-message-ttl": int32(commandTTLMillis)}},
			{name: contracts.QueueTrackingStatus, args: amqp.Table{
				"x-max-length": int32(statusQueueMaxLen),
				"x-overflow":   "drop-head",
			}},
		},
		Bindings: []bindingSpec{
			{queue: contracts.QueueTrackingStatus, exchange: contracts.ExchangeTrackingTopic, routingKey: contracts.RouteTrackingStatusAll},
		},
	}
}

// declarer is the subset of *amqp.Channel used to declare a topology.
type declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// declare creates the durable exchanges and queues, then the bindings.
func (t topology) declare(ch declarer) error {
	for _, ex := range t.Exchanges {
		if err := ch.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}
	for _, q := range t.Queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	for _, b := range t.Bindings {
		if err := ch.QueueBind(b.queue, b.routingKey, b.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}
