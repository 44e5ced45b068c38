// Package memory implements an in-memory publisher for tests and local
// development.
package memory

import (
	"context"
	"sync"

	"github.com/bohanco/hpimage/internal/publisher"
)

// Publisher records published messages in memory.
type Publisher struct {
	mu       sync.Mutex
	messages []publisher.ImagesReady
}

// New creates an in-memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish appends the message to the in-memory log.
func (p *Publisher) Publish(_ context.Context, msg publisher.ImagesReady) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

// Close does nothing.
func (p *Publisher) Close() error { return nil }

// Messages returns a copy of everything published so far.
func (p *Publisher) Messages() []publisher.ImagesReady {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publisher.ImagesReady, len(p.messages))
	copy(out, p.messages)
	return out
}
