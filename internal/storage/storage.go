// Package storage defines the blob storage sinks image renditions are
// written to.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// BlobStore persists binary artifacts under slash-separated paths.
type BlobStore interface {
	// PutObject writes data under path and returns the stored object's URI.
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// RemoveObject deletes the object at path. Removing a missing object
	// is not an error; a failed download batch removes everything it may
	// have written.
	RemoveObject(ctx context.Context, path string) error
}

// Replicator fans every write out to all of its sinks, mirroring an
// artifact into local and remote storage at once.
type Replicator struct {
	sinks []BlobStore
}

// NewReplicator builds a Replicator over the given sinks.
func NewReplicator(sinks ...BlobStore) (*Replicator, error) {
	if len(sinks) == 0 {
		return nil, fmt.Errorf("at least one sink is required")
	}
	return &Replicator{sinks: sinks}, nil
}

// PutObject writes to every sink in order and returns the first sink's
// URI. The write fails on the first sink error.
func (r *Replicator) PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error) {
	payload, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read data: %w", err)
	}
	var uri string
	for i, sink := range r.sinks {
		u, err := sink.PutObject(ctx, path, contentType, bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("replica %d: %w", i, err)
		}
		if i == 0 {
			uri = u
		}
	}
	return uri, nil
}

// RemoveObject removes the object from every sink, returning the first
// error after attempting all of them.
func (r *Replicator) RemoveObject(ctx context.Context, path string) error {
	var firstErr error
	for i, sink := range r.sinks {
		if err := sink.RemoveObject(ctx, path); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("replica %d: %w", i, err)
		}
	}
	return firstErr
}
