// Package repository persists archive records and tracks image readiness.
// An Image row exists once per distinct urlbase no matter how many market
// archives reference it; its "available" flag flips once every rendition
// has been downloaded.
package repository

import (
	"context"

	"github.com/bohanco/hpimage/internal/archive"
)

// Store is the persistence interface consumed by the fetch and download
// commands. Implementations must be safe for concurrent use.
type Store interface {
	// Insert stores a batch of archive records, creating image rows for
	// urlbases not seen before. New images start out not available.
	Insert(ctx context.Context, records []*archive.Record) error

	// UnreadyImages lists images whose renditions have not been
	// downloaded yet, keyed by urlbase with the high-res flag as value.
	UnreadyImages(ctx context.Context) (map[string]bool, error)

	// SetImagesReady marks the given urlbases as available.
	SetImagesReady(ctx context.Context, urlBases []string) error

	// Close releases the store's resources.
	Close()
}

// NoopStore discards writes and reports no unready images. It backs dry
// runs and local development without a database.
type NoopStore struct{}

// Insert does nothing.
func (NoopStore) Insert(_ context.Context, _ []*archive.Record) error { return nil }

// UnreadyImages reports an empty set.
func (NoopStore) UnreadyImages(_ context.Context) (map[string]bool, error) {
	return map[string]bool{}, nil
}

// SetImagesReady does nothing.
func (NoopStore) SetImagesReady(_ context.Context, _ []string) error { return nil }

// Close does nothing.
func (NoopStore) Close() {}
