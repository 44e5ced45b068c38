package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bohanco/hpimage/internal/storage/memory"
)

func TestReplicatorWritesEverySink(t *testing.T) {
	t.Parallel()

	first := memory.NewBlobStore()
	second := memory.NewBlobStore()
	rep, err := NewReplicator(first, second)
	require.NoError(t, err)

	uri, err := rep.PutObject(context.Background(), "a/b.jpg", "image/jpeg",
		strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, "memory://a/b.jpg", uri, "URI comes from the first sink")

	for _, sink := range []*memory.BlobStore{first, second} {
		body, ok := sink.Get("a/b.jpg")
		require.True(t, ok)
		assert.Equal(t, "payload", string(body))
	}
}

func TestReplicatorRemovesFromEverySink(t *testing.T) {
	t.Parallel()

	first := memory.NewBlobStore()
	second := memory.NewBlobStore()
	rep, err := NewReplicator(first, second)
	require.NoError(t, err)

	_, err = rep.PutObject(context.Background(), "a/b.jpg", "image/jpeg",
		strings.NewReader("payload"))
	require.NoError(t, err)

	require.NoError(t, rep.RemoveObject(context.Background(), "a/b.jpg"))
	assert.Zero(t, first.Len())
	assert.Zero(t, second.Len())
}

func TestNewReplicatorRequiresSinks(t *testing.T) {
	t.Parallel()

	_, err := NewReplicator()
	require.Error(t, err)
}
