package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// PubSubPublisher publishes change notices to a Google Cloud Pub/Sub
// topic. Authentication uses Application Default Credentials.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSubPublisher creates the client and verifies the topic exists so
// misconfiguration fails at startup.
func NewPubSubPublisher(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("Failed to close pubsub client after topic check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("Failed to close pubsub client after topic check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}

	return &PubSubPublisher{
		client: client,
		topic:  topic,
		logger: logger,
	}, nil
}

// Publish sends one notice and waits for server acknowledgement; change
// volume is low enough that blocking per message is fine.
func (p *PubSubPublisher) Publish(ctx context.Context, notice ChangeNotice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal change notice: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish change notice %s: %w", notice.ArtifactID, err)
	}
	return nil
}

// Close stops the topic publisher and closes the client.
func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
