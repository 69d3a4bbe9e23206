package playbook

import (
	"context"
	"errors"
	"testing"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/ClareAI/astra-lead-service/pkg/redis"
	"github.com/ClareAI/astra-lead-service/pkg/semantic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	configured bool
	hits       []semantic.SearchHit
	searchErr  error

	upserted  []semantic.UpsertRequest
	deleted   []string
	upsertErr error
}

func (f *fakeIndex) IsConfigured() bool { return f.configured }

func (f *fakeIndex) Search(ctx context.Context, query string, topK int, topic string) ([]semantic.SearchHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeIndex) Upsert(ctx context.Context, req semantic.UpsertRequest) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, req)
	return nil
}

func (f *fakeIndex) Delete(ctx context.Context, playbookID string) error {
	f.deleted = append(f.deleted, playbookID)
	return nil
}

type fakePlaybookStore struct {
	playbooks  map[string]*domain.Playbook
	steps      map[string][]*domain.PlaybookStep
	topics     map[string]*domain.Topic
	embeddings map[string]*domain.PlaybookEmbedding
}

func newFakePlaybookStore() *fakePlaybookStore {
	return &fakePlaybookStore{
		playbooks:  make(map[string]*domain.Playbook),
		steps:      make(map[string][]*domain.PlaybookStep),
		topics:     make(map[string]*domain.Topic),
		embeddings: make(map[string]*domain.PlaybookEmbedding),
	}
}

func (f *fakePlaybookStore) addPlaybook(id, name string, steps ...*domain.PlaybookStep) {
	f.playbooks[id] = &domain.Playbook{ID: id, Name: name}
	f.steps[id] = steps
}

func (f *fakePlaybookStore) GetPlaybookByID(ctx context.Context, id string) (*domain.Playbook, error) {
	return f.playbooks[id], nil
}

func (f *fakePlaybookStore) GetStepsByPlaybookID(ctx context.Context, playbookID string) ([]*domain.PlaybookStep, error) {
	return f.steps[playbookID], nil
}

func (f *fakePlaybookStore) GetTopicByID(ctx context.Context, id string) (*domain.Topic, error) {
	return f.topics[id], nil
}

func (f *fakePlaybookStore) GetEmbedding(ctx context.Context, playbookID string) (*domain.PlaybookEmbedding, error) {
	return f.embeddings[playbookID], nil
}

func (f *fakePlaybookStore) UpsertEmbedding(ctx context.Context, embedding *domain.PlaybookEmbedding) error {
	f.embeddings[embedding.PlaybookID] = embedding
	return nil
}

type fakeContextCache struct {
	turns map[string][]redis.ContextTurn
	err   error
}

func (f *fakeContextCache) GetConversationContext(ctx context.Context, conversationID string) ([]redis.ContextTurn, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.turns[conversationID], nil
}

type fakeMessageStore struct {
	messages map[string][]*domain.ConversationMessage
}

func (f *fakeMessageStore) GetRecent(ctx context.Context, conversationID string, limit int) ([]*domain.ConversationMessage, error) {
	return f.messages[conversationID], nil
}

func newTestSelector(index *fakeIndex, store *fakePlaybookStore) *Selector {
	return NewSelector(index, store, nil, nil, 3, 0.75, 10)
}

func TestSelectReturnsFirstStepOfBestMatch(t *testing.T) {
	store := newFakePlaybookStore()
	store.addPlaybook("pb-1", "Pricing objections",
		&domain.PlaybookStep{PlaybookID: "pb-1", StepOrder: 1, MessageContent: "Our plans start at $29.", ContextHint: "lead asked about price"},
		&domain.PlaybookStep{PlaybookID: "pb-1", StepOrder: 2, MessageContent: "Want a detailed quote?"},
	)
	index := &fakeIndex{configured: true, hits: []semantic.SearchHit{
		{PlaybookID: "pb-1", Score: 0.91},
	}}

	rec, err := newTestSelector(index, store).Select(context.Background(), "how much does it cost", "")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "pb-1", rec.PlaybookID)
	assert.Equal(t, "Pricing objections", rec.PlaybookName)
	assert.Equal(t, 1, rec.StepOrder)
	assert.Equal(t, "Our plans start at $29.", rec.MessageContent)
	assert.Equal(t, "lead asked about price", rec.ContextHint)
	assert.InDelta(t, 0.91, rec.Score, 1e-9)
}

func TestSelectNoMatchBelowCutoff(t *testing.T) {
	store := newFakePlaybookStore()
	store.addPlaybook("pb-1", "Pricing objections",
		&domain.PlaybookStep{PlaybookID: "pb-1", StepOrder: 1, MessageContent: "Our plans start at $29."})
	index := &fakeIndex{configured: true, hits: []semantic.SearchHit{
		{PlaybookID: "pb-1", Score: 0.40},
	}}

	rec, err := newTestSelector(index, store).Select(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSelectFailsOpenOnIndexError(t *testing.T) {
	index := &fakeIndex{configured: true, searchErr: errors.New("index unreachable")}

	rec, err := newTestSelector(index, newFakePlaybookStore()).Select(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSelectUnconfiguredIndex(t *testing.T) {
	index := &fakeIndex{configured: false}

	rec, err := newTestSelector(index, newFakePlaybookStore()).Select(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSelectEmptyQuery(t *testing.T) {
	index := &fakeIndex{configured: true, hits: []semantic.SearchHit{{PlaybookID: "pb-1", Score: 0.99}}}

	rec, err := newTestSelector(index, newFakePlaybookStore()).Select(context.Background(), "   ", "")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSelectSkipsStaleHit(t *testing.T) {
	store := newFakePlaybookStore()
	// pb-gone was deleted from the database but its index document lingers
	store.addPlaybook("pb-2", "Shipping questions",
		&domain.PlaybookStep{PlaybookID: "pb-2", StepOrder: 1, MessageContent: "We ship worldwide."})
	index := &fakeIndex{configured: true, hits: []semantic.SearchHit{
		{PlaybookID: "pb-gone", Score: 0.95},
		{PlaybookID: "pb-2", Score: 0.88},
	}}

	rec, err := newTestSelector(index, store).Select(context.Background(), "do you ship abroad", "")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "pb-2", rec.PlaybookID)
}

func TestBuildQueryPrefersCache(t *testing.T) {
	cache := &fakeContextCache{turns: map[string][]redis.ContextTurn{
		"c1": {
			{Direction: "INBOUND", Content: "hi"},
			{Direction: "OUTBOUND", Content: "hello, how can I help"},
		},
	}}
	messages := &fakeMessageStore{messages: map[string][]*domain.ConversationMessage{
		"c1": {{Content: "should not be used"}},
	}}
	selector := NewSelector(&fakeIndex{}, newFakePlaybookStore(), cache, messages, 3, 0.75, 10)

	query := selector.BuildQuery(context.Background(), "c1")
	assert.Equal(t, "hi\nhello, how can I help", query)
}

func TestBuildQueryFallsBackToMessages(t *testing.T) {
	cache := &fakeContextCache{err: errors.New("redis down")}
	messages := &fakeMessageStore{messages: map[string][]*domain.ConversationMessage{
		"c1": {{Content: "first"}, {Content: "second"}},
	}}
	selector := NewSelector(&fakeIndex{}, newFakePlaybookStore(), cache, messages, 3, 0.75, 10)

	query := selector.BuildQuery(context.Background(), "c1")
	assert.Equal(t, "first\nsecond", query)
}
