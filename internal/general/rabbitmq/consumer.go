package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrRetry marks a handler failure worth one redelivery. Any other handler
	// error drops the message.
	ErrRetry = errors.New("rabbitmq: retry delivery")
	// ErrConnectionNotReady is returned while the watcher is between reconnects.
	ErrConnectionNotReady = errors.New("rabbitmq: connection is not ready")
)

// DeliveryHandler processes one delivery; a nil return acks it.
type DeliveryHandler func(context.Context, amqp.Delivery) error

const handlerTimeout = 30 * time.Second

// newConsumerChannel returns a fresh channel with prefetch (QoS) applied.
// prefetch 0 leaves QoS unset.
func (client *Client) newConsumerChannel(prefetch int) (*amqp.Channel, error) {
	client.mu.RLock()
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, ErrConnectionNotReady
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	if prefetch < 0 {
		prefetch = 1
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("rabbitmq: set QoS (prefetch=%d): %w", prefetch, err)
		}
	}

	return ch, nil
}

// Consume delivers messages from queue to handler with manual acks until ctx
// is done or the channel closes. Deliveries are handled one at a time, so
// handlers observe them in queue order.
func (client *Client) Consume(ctx context.Context, queue, consumerTag string, prefetch int, handler DeliveryHandler) error {
	ch, err := client.newConsumerChannel(prefetch)
	if err != nil {
		return err
	}
	defer ch.Close()

	deliveries, err := ch.Consume(
		queue,
		consumerTag,
		false, // autoAck
		false, // exclusive
		false, // noLocal (ignored by RabbitMQ)
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume(%s): %w", queue, err)
	}

	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			if consumerTag != "" {
				_ = ch.Cancel(consumerTag, false)
			}
			return nil

		case cerr := <-chClosed:
			if cerr != nil {
				return fmt.Errorf("rabbitmq: channel closed while consuming %s: %w", queue, cerr)
			}
			return nil

		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			settle(d.Acknowledger, d.DeliveryTag, d.Redelivered, runHandler(ctx, handler, d))
		}
	}
}

func runHandler(ctx context.Context, handler DeliveryHandler, d amqp.Delivery) error {
	hCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()
	return handler(hCtx, d)
}

// settle acks on success, requeues a first ErrRetry failure and drops the rest.
func settle(ack amqp.Acknowledger, tag uint64, redelivered bool, err error) {
	switch {
	case err == nil:
		_ = ack.Ack(tag, false)
	case errors.Is(err, ErrRetry) && !redelivered:
		_ = ack.Nack(tag, false, true)
	default:
		_ = ack.Nack(tag, false, false)
	}
}
