// Package storage defines the blob mirror abstraction used to copy
// emitted artifacts and snapshots to a remote bucket.
package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// Provider is the common interface for a blob mirror.
type Provider interface {
	// Save uploads data under objectName.
	Save(ctx context.Context, objectName string, data []byte) error
	// Close releases any underlying resources.
	Close() error
}

// NoOpProvider performs no operations. It is the default when mirroring
// is disabled.
type NoOpProvider struct{}

// Save for NoOpProvider does nothing.
func (NoOpProvider) Save(_ context.Context, _ string, _ []byte) error { return nil }

// Close for NoOpProvider does nothing.
func (NoOpProvider) Close() error { return nil }

// MockProvider is a testify mock implementation of Provider.
type MockProvider struct {
	mock.Mock
}

// Save is the mock implementation of the Save method.
func (m *MockProvider) Save(ctx context.Context, objectName string, data []byte) error {
	args := m.Called(ctx, objectName, data)
	return args.Error(0)
}

// Close is the mock implementation of the Close method.
func (m *MockProvider) Close() error {
	args := m.Called()
	return args.Error(0)
}
