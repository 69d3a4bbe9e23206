package playbook

import (
	"context"
	"errors"
	"testing"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vector []float64
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func TestReindexUpsertsEmbedding(t *testing.T) {
	store := newFakePlaybookStore()
	store.addPlaybook("pb-1", "Pricing objections",
		&domain.PlaybookStep{PlaybookID: "pb-1", StepOrder: 1, MessageContent: "Our plans start at $29."})
	index := &fakeIndex{configured: true}
	embedder := &fakeEmbedder{vector: []float64{0.1, 0.2, 0.3}}
	indexer := NewIndexer(store, index, embedder, "text-embedding-3-small")

	err := indexer.Reindex(context.Background(), "pb-1")
	require.NoError(t, err)

	require.Len(t, index.upserted, 1)
	assert.Equal(t, "pb-1", index.upserted[0].PlaybookID)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, index.upserted[0].Vector)
	assert.Contains(t, index.upserted[0].Text, "Pricing objections")
	assert.Contains(t, index.upserted[0].Text, "Our plans start at $29.")

	stored := store.embeddings["pb-1"]
	require.NotNil(t, stored)
	assert.Equal(t, "text-embedding-3-small", stored.Model)
	assert.Equal(t, 3, stored.Dimensions)
	assert.NotEmpty(t, stored.Checksum)
}

func TestReindexSkipsUnchangedContent(t *testing.T) {
	store := newFakePlaybookStore()
	store.addPlaybook("pb-1", "Pricing objections",
		&domain.PlaybookStep{PlaybookID: "pb-1", StepOrder: 1, MessageContent: "Our plans start at $29."})
	index := &fakeIndex{configured: true}
	embedder := &fakeEmbedder{vector: []float64{0.1}}
	indexer := NewIndexer(store, index, embedder, "text-embedding-3-small")

	require.NoError(t, indexer.Reindex(context.Background(), "pb-1"))
	require.NoError(t, indexer.Reindex(context.Background(), "pb-1"))

	// same text, same model: the second run is a no-op
	assert.Equal(t, 1, embedder.calls)
	assert.Len(t, index.upserted, 1)
}

func TestReindexModelChangeForcesRecompute(t *testing.T) {
	store := newFakePlaybookStore()
	store.addPlaybook("pb-1", "Pricing objections",
		&domain.PlaybookStep{PlaybookID: "pb-1", StepOrder: 1, MessageContent: "Our plans start at $29."})
	index := &fakeIndex{configured: true}
	embedder := &fakeEmbedder{vector: []float64{0.1}}

	require.NoError(t, NewIndexer(store, index, embedder, "text-embedding-3-small").Reindex(context.Background(), "pb-1"))
	require.NoError(t, NewIndexer(store, index, embedder, "text-embedding-3-large").Reindex(context.Background(), "pb-1"))

	assert.Equal(t, 2, embedder.calls)
}

func TestReindexEmbeddingFailure(t *testing.T) {
	store := newFakePlaybookStore()
	store.addPlaybook("pb-1", "Pricing objections",
		&domain.PlaybookStep{PlaybookID: "pb-1", StepOrder: 1, MessageContent: "Our plans start at $29."})
	index := &fakeIndex{configured: true}
	embedder := &fakeEmbedder{err: errors.New("quota exceeded")}
	indexer := NewIndexer(store, index, embedder, "text-embedding-3-small")

	err := indexer.Reindex(context.Background(), "pb-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExternalUnavailable))
	assert.Empty(t, index.upserted)
}

func TestReindexUnknownPlaybook(t *testing.T) {
	indexer := NewIndexer(newFakePlaybookStore(), &fakeIndex{configured: true}, &fakeEmbedder{vector: []float64{0.1}}, "text-embedding-3-small")

	err := indexer.Reindex(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestReindexWithoutIndexIsNoop(t *testing.T) {
	store := newFakePlaybookStore()
	store.addPlaybook("pb-1", "Pricing objections")
	embedder := &fakeEmbedder{vector: []float64{0.1}}
	indexer := NewIndexer(store, &fakeIndex{configured: false}, embedder, "text-embedding-3-small")

	require.NoError(t, indexer.Reindex(context.Background(), "pb-1"))
	assert.Zero(t, embedder.calls)
}

func TestRemoveDeletesFromIndex(t *testing.T) {
	index := &fakeIndex{configured: true}
	indexer := NewIndexer(newFakePlaybookStore(), index, nil, "text-embedding-3-small")

	require.NoError(t, indexer.Remove(context.Background(), "pb-1"))
	assert.Equal(t, []string{"pb-1"}, index.deleted)
}
