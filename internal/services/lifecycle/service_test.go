package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConversationStore is an in-memory ConversationStore whose UpdateStatus
// applies the same conditional guard the real repository does.
type fakeConversationStore struct {
	conversations map[string]*domain.Conversation
	failUpdate    bool
	// getSnapshot, with staleReads > 0, overrides Get for that many calls so
	// tests can serve a stale read while the live map has already moved on.
	getSnapshot map[string]*domain.Conversation
	staleReads  int
	// staleOverride, when set, overrides ListStalePending the same way.
	staleOverride []*domain.Conversation
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{conversations: make(map[string]*domain.Conversation)}
}

func (f *fakeConversationStore) add(conv *domain.Conversation) {
	f.conversations[conv.ID] = conv
}

func (f *fakeConversationStore) Get(ctx context.Context, id string) (*domain.Conversation, error) {
	if f.getSnapshot != nil && f.staleReads > 0 {
		if conv, ok := f.getSnapshot[id]; ok {
			f.staleReads--
			snapshot := *conv
			return &snapshot, nil
		}
	}
	conv, ok := f.conversations[id]
	if !ok {
		return nil, nil
	}
	snapshot := *conv
	return &snapshot, nil
}

func (f *fakeConversationStore) UpdateStatus(ctx context.Context, id string, expected, next domain.ConversationStatus, operatorID *string) (bool, error) {
	if f.failUpdate {
		return false, errors.New("connection refused")
	}
	conv, ok := f.conversations[id]
	if !ok || conv.Status != expected {
		return false, nil
	}
	conv.Status = next
	if operatorID != nil {
		conv.AssignedOperatorID = operatorID
	}
	return true, nil
}

func (f *fakeConversationStore) ListStalePending(ctx context.Context, olderThan time.Time) ([]*domain.Conversation, error) {
	if f.staleOverride != nil {
		return f.staleOverride, nil
	}
	var stale []*domain.Conversation
	for _, conv := range f.conversations {
		if conv.Status == domain.StatusPendingHandoff && conv.LastMessageAt.Before(olderThan) && conv.ReengagedAt == nil {
			snapshot := *conv
			stale = append(stale, &snapshot)
		}
	}
	return stale, nil
}

func (f *fakeConversationStore) MarkReengaged(ctx context.Context, id string, olderThan time.Time) (bool, error) {
	conv, ok := f.conversations[id]
	if !ok {
		return false, nil
	}
	if conv.Status != domain.StatusPendingHandoff || !conv.LastMessageAt.Before(olderThan) || conv.ReengagedAt != nil {
		return false, nil
	}
	now := time.Now()
	conv.ReengagedAt = &now
	return true, nil
}

func (f *fakeConversationStore) ClearReengaged(ctx context.Context, id string) error {
	if conv, ok := f.conversations[id]; ok {
		conv.ReengagedAt = nil
	}
	return nil
}

type fakeOperatorStore struct {
	operators []*domain.Operator
}

func (f *fakeOperatorStore) GetActive(ctx context.Context) ([]*domain.Operator, error) {
	return f.operators, nil
}

type fakeAuditSink struct {
	entries []*domain.AuditLog
}

func (f *fakeAuditSink) Record(ctx context.Context, entry *domain.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

type emittedNotification struct {
	userID string
	typ    domain.NotificationType
}

type fakeNotifier struct {
	emitted []emittedNotification
}

func (f *fakeNotifier) Emit(ctx context.Context, userID string, typ domain.NotificationType, title, message string) error {
	f.emitted = append(f.emitted, emittedNotification{userID: userID, typ: typ})
	return nil
}

type fakeContextCache struct {
	cleared []string
}

func (f *fakeContextCache) ClearConversationContext(ctx context.Context, conversationID string) error {
	f.cleared = append(f.cleared, conversationID)
	return nil
}

type sentMessage struct {
	leadID string
	text   string
}

type fakeSender struct {
	sent    []sentMessage
	failFor map[string]bool
}

func (f *fakeSender) SendToLead(ctx context.Context, leadID, text string) error {
	if f.failFor[leadID] {
		return fmt.Errorf("gateway timeout for %s", leadID)
	}
	f.sent = append(f.sent, sentMessage{leadID: leadID, text: text})
	return nil
}

type fixture struct {
	store    *fakeConversationStore
	ops      *fakeOperatorStore
	audit    *fakeAuditSink
	notifier *fakeNotifier
	sender   *fakeSender
	cache    *fakeContextCache
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newFakeConversationStore()
	ops := &fakeOperatorStore{operators: []*domain.Operator{
		{ID: "op-1", Active: true},
		{ID: "op-2", Active: true},
	}}
	audit := &fakeAuditSink{}
	notifier := &fakeNotifier{}
	sender := &fakeSender{failFor: make(map[string]bool)}
	cache := &fakeContextCache{}
	svc := NewService(store, ops, audit, notifier, sender, cache, 48*time.Hour, "still there?")
	return &fixture{store: store, ops: ops, audit: audit, notifier: notifier, sender: sender, cache: cache, svc: svc}
}

func (fx *fixture) addConversation(id string, status domain.ConversationStatus) *domain.Conversation {
	conv := &domain.Conversation{
		ID:            id,
		LeadID:        "lead-" + id,
		Status:        status,
		LastMessageAt: time.Now(),
	}
	fx.store.add(conv)
	return conv
}

func TestFullLifecycleWalk(t *testing.T) {
	fx := newFixture(t)
	fx.addConversation("c1", domain.StatusActiveBot)
	ctx := context.Background()

	conv, err := fx.svc.RequestHandoff(ctx, "c1", "bot")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingHandoff, conv.Status)

	conv, err = fx.svc.Claim(ctx, "c1", "op-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActiveHuman, conv.Status)
	require.NotNil(t, conv.AssignedOperatorID)
	assert.Equal(t, "op-1", *conv.AssignedOperatorID)

	conv, err = fx.svc.Complete(ctx, "c1", "op-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, conv.Status)

	// one audit entry per committed transition, with matching old/new values
	require.Len(t, fx.audit.entries, 3)
	assert.Equal(t, string(domain.StatusActiveBot), fx.audit.entries[0].OldValue)
	assert.Equal(t, string(domain.StatusPendingHandoff), fx.audit.entries[0].NewValue)
	assert.Equal(t, string(domain.StatusPendingHandoff), fx.audit.entries[1].OldValue)
	assert.Equal(t, string(domain.StatusActiveHuman), fx.audit.entries[1].NewValue)
	assert.Equal(t, string(domain.StatusActiveHuman), fx.audit.entries[2].OldValue)
	assert.Equal(t, string(domain.StatusCompleted), fx.audit.entries[2].NewValue)
}

func TestReleaseReturnsToBot(t *testing.T) {
	fx := newFixture(t)
	fx.addConversation("c1", domain.StatusActiveHuman)

	conv, err := fx.svc.Release(context.Background(), "c1", "op-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActiveBot, conv.Status)
}

func TestEscalatedClaim(t *testing.T) {
	fx := newFixture(t)
	fx.addConversation("c1", domain.StatusEscalated)

	conv, err := fx.svc.Claim(context.Background(), "c1", "op-2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActiveHuman, conv.Status)
	assert.Equal(t, "op-2", *conv.AssignedOperatorID)
}

func TestInvalidTransitionHasNoSideEffects(t *testing.T) {
	fx := newFixture(t)
	fx.addConversation("c1", domain.StatusActiveBot)

	// ACTIVE_BOT cannot complete directly
	_, err := fx.svc.Complete(context.Background(), "c1", "op-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	var transitionErr *domain.TransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, "c1", transitionErr.ConversationID)
	assert.Equal(t, domain.StatusActiveBot, transitionErr.From)
	assert.Equal(t, domain.StatusCompleted, transitionErr.To)

	assert.Equal(t, domain.StatusActiveBot, fx.store.conversations["c1"].Status)
	assert.Empty(t, fx.audit.entries)
	assert.Empty(t, fx.notifier.emitted)
}

func TestTerminalStatesDoNotRegress(t *testing.T) {
	fx := newFixture(t)
	fx.addConversation("done", domain.StatusCompleted)
	fx.addConversation("gone", domain.StatusClosed)

	for _, id := range []string{"done", "gone"} {
		_, err := fx.svc.Close(context.Background(), id, "op-1")
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition), "conversation %s", id)
		_, err = fx.svc.RequestHandoff(context.Background(), id, "bot")
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition), "conversation %s", id)
	}
	assert.Empty(t, fx.audit.entries)
}

func TestCloseFromAnyNonTerminalState(t *testing.T) {
	fx := newFixture(t)
	for i, status := range []domain.ConversationStatus{
		domain.StatusActiveBot,
		domain.StatusPendingHandoff,
		domain.StatusActiveHuman,
		domain.StatusEscalated,
	} {
		id := fmt.Sprintf("c%d", i)
		fx.addConversation(id, status)

		conv, err := fx.svc.Close(context.Background(), id, "op-1")
		require.NoError(t, err, "closing from %s", status)
		assert.Equal(t, domain.StatusClosed, conv.Status)
	}
}

func TestConcurrentClaimExactlyOneWinner(t *testing.T) {
	fx := newFixture(t)
	fx.addConversation("c1", domain.StatusPendingHandoff)
	ctx := context.Background()

	// first claim wins
	conv, err := fx.svc.Claim(ctx, "c1", "op-1")
	require.NoError(t, err)
	assert.Equal(t, "op-1", *conv.AssignedOperatorID)

	// the second claimer raced: it read PENDING_HANDOFF before the winner
	// committed, so its conditional update loses the guard and the re-read
	// finds the conversation held by the winner
	fx.store.getSnapshot = map[string]*domain.Conversation{
		"c1": {ID: "c1", LeadID: "lead-c1", Status: domain.StatusPendingHandoff},
	}
	fx.store.staleReads = 1
	_, err = fx.svc.Claim(ctx, "c1", "op-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAlreadyClaimed))

	// the winner's assignment is untouched and only one audit entry exists
	assert.Equal(t, "op-1", *fx.store.conversations["c1"].AssignedOperatorID)
	assert.Equal(t, domain.StatusActiveHuman, fx.store.conversations["c1"].Status)
	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, string(domain.StatusActiveHuman), fx.audit.entries[0].NewValue)
}

func TestClaimRacingCloseIsNotAlreadyClaimed(t *testing.T) {
	fx := newFixture(t)
	fx.addConversation("c1", domain.StatusClosed)
	ctx := context.Background()

	// The claimer read PENDING_HANDOFF, but the conversation was closed before
	// its conditional update landed. That is a dead edge, not a lost claim.
	fx.store.getSnapshot = map[string]*domain.Conversation{
		"c1": {ID: "c1", LeadID: "lead-c1", Status: domain.StatusPendingHandoff},
	}
	fx.store.staleReads = 1
	_, err := fx.svc.Claim(ctx, "c1", "op-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
	assert.False(t, errors.Is(err, domain.ErrAlreadyClaimed))

	var transitionErr *domain.TransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, domain.StatusClosed, transitionErr.From)
	assert.Empty(t, fx.audit.entries)
}

func TestTerminalTransitionClearsContextCache(t *testing.T) {
	fx := newFixture(t)
	fx.addConversation("c1", domain.StatusActiveHuman)
	fx.addConversation("c2", domain.StatusActiveBot)
	ctx := context.Background()

	// handing off is not terminal, nothing is evicted
	_, err := fx.svc.RequestHandoff(ctx, "c2", "bot")
	require.NoError(t, err)
	assert.Empty(t, fx.cache.cleared)

	_, err = fx.svc.Complete(ctx, "c1", "op-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, fx.cache.cleared)

	_, err = fx.svc.Close(ctx, "c2", "op-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, fx.cache.cleared)
}

func TestPersistenceFailureEmitsNothing(t *testing.T) {
	fx := newFixture(t)
	fx.addConversation("c1", domain.StatusActiveBot)
	fx.store.failUpdate = true

	_, err := fx.svc.RequestHandoff(context.Background(), "c1", "bot")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPersistence))
	assert.Empty(t, fx.audit.entries)
	assert.Empty(t, fx.notifier.emitted)
}

func TestUnknownConversation(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.svc.RequestHandoff(context.Background(), "missing", "bot")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestHandoffNotifiesAllActiveOperators(t *testing.T) {
	fx := newFixture(t)
	fx.addConversation("c1", domain.StatusActiveBot)

	_, err := fx.svc.RequestHandoff(context.Background(), "c1", "bot")
	require.NoError(t, err)

	require.Len(t, fx.notifier.emitted, 2)
	for _, n := range fx.notifier.emitted {
		assert.Equal(t, domain.NotificationHandoffRequested, n.typ)
	}
}

func TestEscalationNotifiesAssignedOperatorOnly(t *testing.T) {
	fx := newFixture(t)
	conv := fx.addConversation("c1", domain.StatusActiveBot)
	assigned := "op-2"
	conv.AssignedOperatorID = &assigned

	_, err := fx.svc.Escalate(context.Background(), "c1", "bot")
	require.NoError(t, err)

	require.Len(t, fx.notifier.emitted, 1)
	assert.Equal(t, "op-2", fx.notifier.emitted[0].userID)
	assert.Equal(t, domain.NotificationEscalation, fx.notifier.emitted[0].typ)
}

func TestCompleteDoesNotNotify(t *testing.T) {
	fx := newFixture(t)
	fx.addConversation("c1", domain.StatusActiveHuman)

	_, err := fx.svc.Complete(context.Background(), "c1", "op-1")
	require.NoError(t, err)
	assert.Empty(t, fx.notifier.emitted)
}
