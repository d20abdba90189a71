package testutil

import (
	"context"
	"fmt"
	"sync"
)

// MockNATSClient is a simple in-memory NATS publisher for testing.
// Matches the natsclient.Client Publish signature.
// Thread-safe for concurrent use from multiple goroutines.
type MockNATSClient struct {
	mu       sync.RWMutex
	messages map[string][][]byte
	closed   bool

	// PublishErr, when set, is returned by every Publish.
	PublishErr error
}

// NewMockNATSClient creates a new mock NATS client.
func NewMockNATSClient() *MockNATSClient {
	return &MockNATSClient{messages: make(map[string][][]byte)}
}

// Publish records data under subject.
func (c *MockNATSClient) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}
	if c.PublishErr != nil {
		return c.PublishErr
	}

	// Copy so later mutation by the caller cannot change history
	msg := make([]byte, len(data))
	copy(msg, data)
	c.messages[subject] = append(c.messages[subject], msg)
	return nil
}

// GetMessages returns all messages for a subject.
func (c *MockNATSClient) GetMessages(subject string) [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	msgs := c.messages[subject]
	if msgs == nil {
		return nil
	}
	result := make([][]byte, len(msgs))
	copy(result, msgs)
	return result
}

// GetMessageCount returns the number of messages on a subject.
func (c *MockNATSClient) GetMessageCount(subject string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages[subject])
}

// Close closes the mock client.
func (c *MockNATSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
