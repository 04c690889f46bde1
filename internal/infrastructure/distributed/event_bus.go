package distributed

import (
	"context"
	"encoding/json"
	"fmt"

	"astrelay/internal/infrastructure/relay"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const envelopeChannel = "astrelay:relay:envelopes"

// busFrame wraps a relay envelope with the publishing instance so that
// instances can skip their own frames.
type busFrame struct {
	InstanceID string          `json:"instance_id"`
	Envelope   *relay.Envelope `json:"envelope"`
}

// EventBus bridges relay envelopes between instances over Redis pub/sub.
// It implements relay.Bridge on the publish side.
type EventBus struct {
	client     *redis.Client
	instanceID string
	logger     *zap.SugaredLogger
	pubsub     *redis.PubSub
}

func NewEventBus(client *redis.Client, instanceID string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Publish sends an envelope to every other relay instance.
func (eb *EventBus) Publish(ctx context.Context, env *relay.Envelope) error {
	frame := busFrame{InstanceID: eb.instanceID, Envelope: env}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal bus frame: %w", err)
	}

	if err := eb.client.Publish(ctx, envelopeChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish envelope: %w", err)
	}

	eb.logger.Debugw("bridged envelope", "type", env.Type, "seq", env.Seq)
	return nil
}

// Subscribe delivers envelopes from other instances into the hub until
// the context is cancelled.
func (eb *EventBus) Subscribe(ctx context.Context, hub *relay.Hub) error {
	if eb.pubsub != nil {
		return fmt.Errorf("already subscribed")
	}

	eb.pubsub = eb.client.Subscribe(ctx, envelopeChannel)
	defer eb.pubsub.Close()

	ch := eb.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var frame busFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				eb.logger.Warnw("failed to unmarshal bus frame", "error", err)
				continue
			}

			// Skip frames this instance published.
			if frame.InstanceID == eb.instanceID || frame.Envelope == nil {
				continue
			}

			hub.DeliverRemote(frame.Envelope)
		}
	}
}

// Close tears down the subscription.
func (eb *EventBus) Close() error {
	if eb.pubsub != nil {
		return eb.pubsub.Close()
	}
	return nil
}
