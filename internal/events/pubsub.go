package events

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// envelope is the published message shape.
type envelope struct {
	Event    string `json:"event"`
	EntityID int64  `json:"entity_id"`
	StoreIDs []int  `json:"store_ids"`
}

// Handler consumes one classified change. A non-nil error nacks the message
// for redelivery.
type Handler func(ctx context.Context, change Change) error

// Subscriber pulls change events from a Pub/Sub subscription and hands the
// classified changes to a Handler. Malformed and unrecognized messages are
// acked and dropped so they cannot wedge the subscription.
type Subscriber struct {
	client     *pubsub.Client
	classifier Classifier
	logger     *zap.Logger
}

// NewSubscriber constructs a Subscriber.
func NewSubscriber(client *pubsub.Client, classifier Classifier, logger *zap.Logger) *Subscriber {
	return &Subscriber{client: client, classifier: classifier, logger: logger}
}

// Listen blocks receiving messages until the context is canceled.
func (s *Subscriber) Listen(ctx context.Context, subscription string, handler Handler) error {
	sub := s.client.Subscription(subscription)
	err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var env envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			s.logger.Warn("Dropping malformed change event", zap.Error(err))
			msg.Ack()
			return
		}

		entityType, ok := s.classifier.Classify(env.Event)
		if !ok {
			s.logger.Debug("Dropping unrecognized change event",
				zap.String("event", env.Event))
			msg.Ack()
			return
		}

		change := Change{
			EntityID:   env.EntityID,
			EntityType: entityType,
			StoreIDs:   env.StoreIDs,
		}
		if err := handler(ctx, change); err != nil {
			s.logger.Error("Change event handler failed",
				zap.String("event", env.Event),
				zap.Int64("entity_id", env.EntityID),
				zap.Error(err),
			)
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("receive from subscription %s: %w", subscription, err)
	}
	return nil
}
