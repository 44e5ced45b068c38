// Package publisher announces newly available images to downstream
// consumers.
package publisher

import "context"

// ImagesReady is the payload published after a download batch completes
// and the images flip to available.
type ImagesReady struct {
	// URLBases lists the canonical urlbases that became available.
	URLBases []string `json:"urlbases"`
}

// Publisher delivers readiness notifications.
type Publisher interface {
	Publish(ctx context.Context, msg ImagesReady) error
	Close() error
}

// Noop discards notifications, for setups without a broker.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(_ context.Context, _ ImagesReady) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }
