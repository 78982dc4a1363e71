package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"geotrack/internal/general/contracts"
	"geotrack/internal/general/logger"
	"geotrack/internal/general/rabbitmq"
	"geotrack/internal/software/tracking/bridge"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Replier publishes RPC responses.
type Replier interface {
	PublishReply(replyTo, correlationID string, body []byte) error
}

// CommandConsumer serves the command channel over RabbitMQ RPC on the
// tracking_commands queue.
type CommandConsumer struct {
	client   *rabbitmq.Client
	replier  Replier
	bridge   *bridge.Bridge
	logger   *logger.Logger
	prefetch int
}

// NewCommandConsumer constructs a CommandConsumer.
func NewCommandConsumer(client *rabbitmq.Client, b *bridge.Bridge, logger *logger.Logger, prefetch int) *CommandConsumer {
	return &CommandConsumer{client: client, replier: client, bridge: b, logger: logger, prefetch: prefetch}
}

// Run consumes until ctx is done, re-subscribing after channel failures.
func (consumer *CommandConsumer) Run(ctx context.Context) error {
	for {
		err := consumer.client.Consume(ctx, contracts.QueueTrackingCommands, "tracker-commands", consumer.prefetch, consumer.handle)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			consumer.logger.Error(ctx, "command_consumer_stopped", "Command consumer stopped; resubscribing", err, nil)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

// handle runs one request. Undecodable requests are dropped; a failed reply
// is retried once.
func (consumer *CommandConsumer) handle(ctx context.Context, d amqp.Delivery) error {
	if d.CorrelationId != "" {
		ctx = consumer.logger.WithRequestID(ctx, d.CorrelationId)
	}

	var call contracts.MethodCall
	if err := json.Unmarshal(d.Body, &call); err != nil {
		consumer.logger.Error(ctx, "command_decode_failed", "Failed to decode command request", err, map[string]any{
			"size": len(d.Body),
		})
		return fmt.Errorf("decode command: %w", err)
	}

	res := consumer.bridge.Invoke(ctx, call)

	if d.ReplyTo == "" {
		consumer.logger.Debug(ctx, "command_without_reply_to", "Command handled; request carried no reply-to", map[string]any{
			"method": call.Method,
		})
		return nil
	}

	body, err := json.Marshal(res)
	if err != nil {
		return err
	}
	if err := consumer.replier.PublishReply(d.ReplyTo, d.CorrelationId, body); err != nil {
		consumer.logger.Error(ctx, "command_reply_failed", "Failed to publish command reply", err, map[string]any{
			"method":   call.Method,
			"reply_to": d.ReplyTo,
		})
		// commands are idempotent, so a redelivery only re-sends the answer
		return fmt.Errorf("%w: %v", rabbitmq.ErrRetry, err)
	}
	return nil
}
