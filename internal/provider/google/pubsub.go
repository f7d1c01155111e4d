package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"leadmap.app/server/common/logger"
)

// Notification is the payload Gmail publishes to the Pub/Sub topic on
// every mailbox change.
type Notification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// pushEnvelope is the wrapper Pub/Sub wraps around pushed messages.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// DecodePushRequest unwraps a Pub/Sub push delivery body down to the
// Gmail notification. The returned message id is Pub/Sub's, used for
// dedupe.
func DecodePushRequest(body []byte) (*Notification, string, error) {
	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, "", fmt.Errorf("parsing push envelope: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		return nil, "", fmt.Errorf("decoding push payload: %w", err)
	}

	notification, err := decodeNotification(data)
	if err != nil {
		return nil, "", err
	}
	return notification, envelope.Message.MessageID, nil
}

func decodeNotification(data []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("parsing gmail notification: %w", err)
	}
	if n.EmailAddress == "" {
		return nil, fmt.Errorf("gmail notification missing emailAddress")
	}
	return &n, nil
}

// NotificationHandler ingests one decoded notification. A non-nil
// error nacks the message for redelivery.
type NotificationHandler func(ctx context.Context, n Notification, messageID string) error

type SubscriberConfig struct {
	ProjectID      string
	SubscriptionID string
}

// Subscriber pulls Gmail notifications from Pub/Sub. It is the
// alternative to push webhooks for deployments without a public
// endpoint; both paths feed the same ingest handler.
type Subscriber struct {
	client  *pubsub.Client
	sub     *pubsub.Subscription
	handler NotificationHandler
}

func NewSubscriber(ctx context.Context, cfg SubscriberConfig, handler NotificationHandler) (*Subscriber, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &Subscriber{
		client:  client,
		sub:     client.Subscription(cfg.SubscriptionID),
		handler: handler,
	}, nil
}

// Run blocks, receiving until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "leadmap.google.subscriber",
	})

	slog.InfoContext(ctx, "pubsub subscriber started", "subscription", s.sub.ID())

	err := s.sub.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
		notification, decodeErr := decodeNotification(msg.Data)
		if decodeErr != nil {
			// A malformed message never becomes valid; ack it away.
			slog.ErrorContext(msgCtx, "dropping undecodable notification",
				"error", decodeErr,
				"pubsub_message_id", msg.ID)
			msg.Ack()
			return
		}

		if handleErr := s.handler(msgCtx, *notification, msg.ID); handleErr != nil {
			slog.ErrorContext(msgCtx, "notification handling failed, nacking",
				"error", handleErr,
				"pubsub_message_id", msg.ID)
			msg.Nack()
			return
		}

		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("pubsub receive: %w", err)
	}
	return nil
}

func (s *Subscriber) Close() error {
	return s.client.Close()
}
