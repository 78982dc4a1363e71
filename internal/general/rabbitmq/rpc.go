package rabbitmq

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// directReplyTo is the RabbitMQ pseudo-queue for RPC replies without a declared queue.
const directReplyTo = "amq.rabbitmq.reply-to"

var ErrNoReply = errors.New("rabbitmq: reply stream closed before a response arrived")

// Call publishes body to queue and waits for the reply with the same correlation id.
// It uses a dedicated channel so direct reply-to can be consumed before publishing.
func (client *Client) Call(ctx context.Context, queue string, body []byte) ([]byte, error) {
	ch, err := client.newConsumerChannel(0)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	replies, err := ch.Consume(directReplyTo, "", true /* autoAck */, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: consume replies: %w", err)
	}

	corrID := uuid.NewString()
	if err := ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: corrID,
		ReplyTo:       directReplyTo,
		Body:          body,
	}); err != nil {
		return nil, fmt.Errorf("rabbitmq: publish request to %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case d, ok := <-replies:
			if !ok {
				return nil, ErrNoReply
			}
			if d.CorrelationId != corrID {
				continue
			}
			return d.Body, nil
		}
	}
}
