package messaging

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/ClareAI/astra-lead-service/pkg/redis"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	sent    []string
	sendErr error
}

func (f *fakeProvider) SendSessionMessage(ctx context.Context, phoneNumber, text string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, fmt.Sprintf("%s|%s", phoneNumber, text))
	return "receipt-" + uuid.NewString(), nil
}

type fakeLeadStore struct {
	byID    map[string]*domain.Lead
	byPhone map[string]*domain.Lead
	created int
}

func newFakeLeadStore() *fakeLeadStore {
	return &fakeLeadStore{
		byID:    make(map[string]*domain.Lead),
		byPhone: make(map[string]*domain.Lead),
	}
}

func (f *fakeLeadStore) add(lead *domain.Lead) {
	f.byID[lead.ID] = lead
	f.byPhone[lead.PhoneNumber] = lead
}

func (f *fakeLeadStore) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	return f.byID[id], nil
}

func (f *fakeLeadStore) FindOrCreateByPhoneNumber(ctx context.Context, phone, name string) (*domain.Lead, error) {
	if lead, ok := f.byPhone[phone]; ok {
		return lead, nil
	}
	lead := &domain.Lead{ID: uuid.NewString(), PhoneNumber: phone, Name: name}
	f.add(lead)
	f.created++
	return lead, nil
}

type fakeConversationStore struct {
	conversations map[string]*domain.Conversation
	touched       map[string]time.Time
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{
		conversations: make(map[string]*domain.Conversation),
		touched:       make(map[string]time.Time),
	}
}

func (f *fakeConversationStore) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	return f.conversations[id], nil
}

func (f *fakeConversationStore) Create(ctx context.Context, conversation *domain.Conversation) error {
	if conversation.ID == "" {
		conversation.ID = uuid.NewString()
	}
	f.conversations[conversation.ID] = conversation
	return nil
}

func (f *fakeConversationStore) FindOpenByLeadID(ctx context.Context, leadID string) (*domain.Conversation, error) {
	for _, conv := range f.conversations {
		if conv.LeadID == leadID && !conv.Status.IsTerminal() {
			return conv, nil
		}
	}
	return nil, nil
}

func (f *fakeConversationStore) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	f.touched[id] = at
	if conv, ok := f.conversations[id]; ok {
		conv.LastMessageAt = at
		conv.ReengagedAt = nil
	}
	return nil
}

type fakeMessageStore struct {
	messages  []*domain.ConversationMessage
	createErr error
}

func (f *fakeMessageStore) Create(ctx context.Context, message *domain.ConversationMessage) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.messages = append(f.messages, message)
	return nil
}

type fakeCache struct {
	appended map[string][]redis.ContextTurn
}

func (f *fakeCache) AppendConversationContext(ctx context.Context, conversationID string, turns []redis.ContextTurn, maxTurns int, ttl time.Duration) error {
	if f.appended == nil {
		f.appended = make(map[string][]redis.ContextTurn)
	}
	f.appended[conversationID] = append(f.appended[conversationID], turns...)
	return nil
}

type messagingFixture struct {
	provider      *fakeProvider
	leads         *fakeLeadStore
	conversations *fakeConversationStore
	messages      *fakeMessageStore
	cache         *fakeCache
	svc           *Service
}

func newMessagingFixture(t *testing.T) *messagingFixture {
	t.Helper()
	provider := &fakeProvider{}
	leads := newFakeLeadStore()
	conversations := newFakeConversationStore()
	messages := &fakeMessageStore{}
	cache := &fakeCache{}
	svc := NewService(provider, leads, conversations, messages, cache, 10, time.Hour)
	return &messagingFixture{
		provider:      provider,
		leads:         leads,
		conversations: conversations,
		messages:      messages,
		cache:         cache,
		svc:           svc,
	}
}

func (fx *messagingFixture) seedConversation(status domain.ConversationStatus) (*domain.Lead, *domain.Conversation) {
	lead := &domain.Lead{ID: uuid.NewString(), PhoneNumber: "+15551234567", Name: "Ana"}
	fx.leads.add(lead)
	conv := &domain.Conversation{ID: uuid.NewString(), LeadID: lead.ID, Status: status}
	fx.conversations.conversations[conv.ID] = conv
	return lead, conv
}

func TestSendToConversationRecordsAndTouches(t *testing.T) {
	fx := newMessagingFixture(t)
	lead, conv := fx.seedConversation(domain.StatusActiveHuman)

	message, err := fx.svc.SendToConversation(context.Background(), conv.ID, "here is your quote")
	require.NoError(t, err)
	require.NotNil(t, message)
	assert.Equal(t, domain.DirectionOutbound, message.Direction)
	assert.Equal(t, conv.ID, message.ConversationID)

	require.Len(t, fx.provider.sent, 1)
	assert.Equal(t, lead.PhoneNumber+"|here is your quote", fx.provider.sent[0])

	// activity timestamp bumped
	_, touched := fx.conversations.touched[conv.ID]
	assert.True(t, touched)

	// the outbound turn lands in the context cache
	require.Len(t, fx.cache.appended[conv.ID], 1)
	assert.Equal(t, "here is your quote", fx.cache.appended[conv.ID][0].Content)
}

func TestSendToConversationUnknownConversation(t *testing.T) {
	fx := newMessagingFixture(t)

	_, err := fx.svc.SendToConversation(context.Background(), "missing", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Empty(t, fx.provider.sent)
}

func TestSendToConversationProviderFailure(t *testing.T) {
	fx := newMessagingFixture(t)
	_, conv := fx.seedConversation(domain.StatusActiveHuman)
	fx.provider.sendErr = errors.New("gateway down")

	_, err := fx.svc.SendToConversation(context.Background(), conv.ID, "hello")
	require.Error(t, err)

	// nothing recorded, nothing touched
	assert.Empty(t, fx.messages.messages)
	assert.Empty(t, fx.conversations.touched)
}

func TestSendSurvivesTranscriptWriteFailure(t *testing.T) {
	fx := newMessagingFixture(t)
	_, conv := fx.seedConversation(domain.StatusActiveHuman)
	fx.messages.createErr = errors.New("disk full")

	// the message already went out, so the caller still gets it back
	message, err := fx.svc.SendToConversation(context.Background(), conv.ID, "hello")
	require.NoError(t, err)
	require.NotNil(t, message)
	assert.Len(t, fx.provider.sent, 1)
}

func TestSendToLeadDoesNotTouchActivity(t *testing.T) {
	fx := newMessagingFixture(t)
	lead, conv := fx.seedConversation(domain.StatusPendingHandoff)
	stale := time.Now().Add(-72 * time.Hour)
	conv.LastMessageAt = stale

	err := fx.svc.SendToLead(context.Background(), lead.ID, "still there?")
	require.NoError(t, err)

	require.Len(t, fx.provider.sent, 1)
	require.Len(t, fx.messages.messages, 1)
	assert.Equal(t, domain.DirectionOutbound, fx.messages.messages[0].Direction)

	// the nudge is recorded but must not reset the staleness clock
	assert.Empty(t, fx.conversations.touched)
	assert.Equal(t, stale, conv.LastMessageAt)
}

func TestSendToLeadWithoutOpenConversation(t *testing.T) {
	fx := newMessagingFixture(t)
	lead := &domain.Lead{ID: uuid.NewString(), PhoneNumber: "+15551234567"}
	fx.leads.add(lead)

	err := fx.svc.SendToLead(context.Background(), lead.ID, "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
