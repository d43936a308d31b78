// Package notify publishes change notifications for downstream
// consumers. Delivery is best effort; file-level idempotent writes
// remain the source of truth.
package notify

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// ChangeNotice is the payload published for each detected content change.
type ChangeNotice struct {
	ArtifactID string `json:"artifact_id"`
	URL        string `json:"url"`
	Previous   string `json:"previous"`
	Current    string `json:"current"`
	RunID      string `json:"run_id"`
}

// Publisher pushes change notices to a message bus.
type Publisher interface {
	Publish(ctx context.Context, notice ChangeNotice) error
	Close() error
}

// NoOpPublisher discards notices. It is the default when notification
// is disabled.
type NoOpPublisher struct{}

// Publish for NoOpPublisher does nothing.
func (NoOpPublisher) Publish(_ context.Context, _ ChangeNotice) error { return nil }

// Close for NoOpPublisher does nothing.
func (NoOpPublisher) Close() error { return nil }

// MockPublisher is a testify mock implementation of Publisher.
type MockPublisher struct {
	mock.Mock
}

// Publish is the mock implementation of the Publish method.
func (m *MockPublisher) Publish(ctx context.Context, notice ChangeNotice) error {
	args := m.Called(ctx, notice)
	return args.Error(0)
}

// Close is the mock implementation of the Close method.
func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
