package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/ClareAI/astra-lead-service/pkg/logger"
)

// ConversationStore is the slice of the conversation repository the lifecycle
// manager depends on.
type ConversationStore interface {
	Get(ctx context.Context, id string) (*domain.Conversation, error)
	UpdateStatus(ctx context.Context, id string, expected, next domain.ConversationStatus, operatorID *string) (bool, error)
	ListStalePending(ctx context.Context, olderThan time.Time) ([]*domain.Conversation, error)
	MarkReengaged(ctx context.Context, id string, olderThan time.Time) (bool, error)
	ClearReengaged(ctx context.Context, id string) error
}

// OperatorStore resolves the notification audience when a conversation has no
// assigned operator.
type OperatorStore interface {
	GetActive(ctx context.Context) ([]*domain.Operator, error)
}

// AuditSink records state changes.
type AuditSink interface {
	Record(ctx context.Context, entry *domain.AuditLog) error
}

// Notifier delivers operator notifications.
type Notifier interface {
	Emit(ctx context.Context, userID string, typ domain.NotificationType, title, message string) error
}

// OutboundSender sends a message to the lead behind a conversation.
type OutboundSender interface {
	SendToLead(ctx context.Context, leadID, text string) error
}

// ContextCache drops a conversation's cached turns once it reaches a terminal
// state. Optional; nil when redis is not configured.
type ContextCache interface {
	ClearConversationContext(ctx context.Context, conversationID string) error
}

// allowedTransitions is the conversation state graph. CLOSED is reachable from
// every non-terminal state.
var allowedTransitions = map[domain.ConversationStatus][]domain.ConversationStatus{
	domain.StatusActiveBot:      {domain.StatusPendingHandoff, domain.StatusEscalated, domain.StatusClosed},
	domain.StatusPendingHandoff: {domain.StatusActiveHuman, domain.StatusClosed},
	domain.StatusActiveHuman:    {domain.StatusCompleted, domain.StatusActiveBot, domain.StatusClosed},
	domain.StatusEscalated:      {domain.StatusActiveHuman, domain.StatusClosed},
}

func transitionAllowed(from, to domain.ConversationStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Service drives the conversation lifecycle. It holds no conversation state
// of its own; every decision is made from data fetched fresh per request.
type Service struct {
	conversations ConversationStore
	operators     OperatorStore
	audit         AuditSink
	notifier      Notifier
	sender        OutboundSender
	cache         ContextCache

	reengageAfter   time.Duration
	reengageMessage string
}

// NewService creates a lifecycle service. cache may be nil.
func NewService(conversations ConversationStore, operators OperatorStore, audit AuditSink, notifier Notifier, sender OutboundSender, cache ContextCache, reengageAfter time.Duration, reengageMessage string) *Service {
	return &Service{
		conversations:   conversations,
		operators:       operators,
		audit:           audit,
		notifier:        notifier,
		sender:          sender,
		cache:           cache,
		reengageAfter:   reengageAfter,
		reengageMessage: reengageMessage,
	}
}

// RequestHandoff moves an ACTIVE_BOT conversation into PENDING_HANDOFF.
func (s *Service) RequestHandoff(ctx context.Context, conversationID, actor string) (*domain.Conversation, error) {
	return s.Transition(ctx, conversationID, domain.StatusPendingHandoff, actor, nil)
}

// Escalate moves an ACTIVE_BOT conversation into ESCALATED.
func (s *Service) Escalate(ctx context.Context, conversationID, actor string) (*domain.Conversation, error) {
	return s.Transition(ctx, conversationID, domain.StatusEscalated, actor, nil)
}

// Claim gives an operator exclusive ownership of a pending or escalated
// conversation. At most one concurrent claim succeeds; losers get
// ErrAlreadyClaimed.
func (s *Service) Claim(ctx context.Context, conversationID, operatorID string) (*domain.Conversation, error) {
	return s.Transition(ctx, conversationID, domain.StatusActiveHuman, operatorID, &operatorID)
}

// Complete marks an ACTIVE_HUMAN conversation's outcome as achieved.
func (s *Service) Complete(ctx context.Context, conversationID, actor string) (*domain.Conversation, error) {
	return s.Transition(ctx, conversationID, domain.StatusCompleted, actor, nil)
}

// Release hands an ACTIVE_HUMAN conversation back to the bot.
func (s *Service) Release(ctx context.Context, conversationID, actor string) (*domain.Conversation, error) {
	return s.Transition(ctx, conversationID, domain.StatusActiveBot, actor, nil)
}

// Close closes a conversation from any non-terminal state.
func (s *Service) Close(ctx context.Context, conversationID, actor string) (*domain.Conversation, error) {
	return s.Transition(ctx, conversationID, domain.StatusClosed, actor, nil)
}

// Transition moves a conversation to the target status. The edge is validated
// against the allowed graph, persisted with a conditional update guarded on
// the current status, and only after the store accepts the write does the
// audit entry and any notification go out. A rejected edge performs no side
// effect at all.
func (s *Service) Transition(ctx context.Context, conversationID string, to domain.ConversationStatus, actor string, operatorID *string) (*domain.Conversation, error) {
	conversation, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, domain.NewTransitionError(conversationID, "", to, actor, fmt.Errorf("%w: %v", domain.ErrPersistence, err))
	}
	if conversation == nil {
		return nil, domain.NewTransitionError(conversationID, "", to, actor, domain.ErrNotFound)
	}

	from := conversation.Status
	if !transitionAllowed(from, to) {
		return nil, domain.NewTransitionError(conversationID, from, to, actor, domain.ErrInvalidTransition)
	}

	updated, err := s.conversations.UpdateStatus(ctx, conversationID, from, to, operatorID)
	if err != nil {
		return nil, domain.NewTransitionError(conversationID, from, to, actor, fmt.Errorf("%w: %v", domain.ErrPersistence, err))
	}
	if !updated {
		// The guard failed: someone changed the row between our read and the
		// update. Re-read so the error names the state the row is actually in.
		readBack := true
		current, getErr := s.conversations.Get(ctx, conversationID)
		if getErr == nil && current != nil {
			from = current.Status
		} else {
			readBack = false
		}
		if to == domain.StatusActiveHuman {
			// A lost claim is only "already claimed" when someone else holds
			// the conversation now. If it was closed out from under us (or the
			// re-read failed and we cannot tell), the caller still hears about
			// the race rather than a bogus edge.
			if !readBack || from == domain.StatusActiveHuman {
				return nil, domain.NewTransitionError(conversationID, from, to, actor, domain.ErrAlreadyClaimed)
			}
		}
		return nil, domain.NewTransitionError(conversationID, from, to, actor, domain.ErrInvalidTransition)
	}

	s.recordAudit(ctx, conversation, from, to, actor)
	s.notifyTransition(ctx, conversation, to)
	if to.IsTerminal() {
		s.clearContext(ctx, conversationID)
	}

	conversation.Status = to
	if operatorID != nil {
		conversation.AssignedOperatorID = operatorID
	}
	return conversation, nil
}

// recordAudit appends exactly one audit entry for a committed transition.
// Audit failure is logged, not surfaced: the state change is already durable.
func (s *Service) recordAudit(ctx context.Context, conversation *domain.Conversation, from, to domain.ConversationStatus, actor string) {
	entry := &domain.AuditLog{
		Actor:      actor,
		EntityType: "conversation",
		EntityID:   conversation.ID,
		OldValue:   string(from),
		NewValue:   string(to),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		logger.L().Errorw("failed to record audit entry",
			"conversation_id", conversation.ID,
			"from", from,
			"to", to,
			"error", err)
	}
}

// notifyTransition emits notifications for transitions into PENDING_HANDOFF
// or ESCALATED. The audience is the assigned operator if there is one,
// otherwise every active operator.
func (s *Service) notifyTransition(ctx context.Context, conversation *domain.Conversation, to domain.ConversationStatus) {
	var (
		typ   domain.NotificationType
		title string
	)
	switch to {
	case domain.StatusPendingHandoff:
		typ = domain.NotificationHandoffRequested
		title = "Conversation awaiting handoff"
	case domain.StatusEscalated:
		typ = domain.NotificationEscalation
		title = "Conversation escalated"
	default:
		return
	}

	message := fmt.Sprintf("Conversation %s needs an operator", conversation.ID)
	if conversation.IsUrgent {
		message = fmt.Sprintf("Urgent: conversation %s needs an operator", conversation.ID)
	}

	audience := s.resolveAudience(ctx, conversation)
	for _, userID := range audience {
		if err := s.notifier.Emit(ctx, userID, typ, title, message); err != nil {
			logger.L().Errorw("failed to emit notification",
				"conversation_id", conversation.ID,
				"user_id", userID,
				"error", err)
		}
	}
}

// clearContext drops the cached turns of a finished conversation. Best effort:
// the cache entry expires on its own TTL anyway.
func (s *Service) clearContext(ctx context.Context, conversationID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.ClearConversationContext(ctx, conversationID); err != nil {
		logger.L().Warnw("failed to clear conversation context cache",
			"conversation_id", conversationID,
			"error", err)
	}
}

func (s *Service) resolveAudience(ctx context.Context, conversation *domain.Conversation) []string {
	if conversation.AssignedOperatorID != nil && *conversation.AssignedOperatorID != "" {
		return []string{*conversation.AssignedOperatorID}
	}

	operators, err := s.operators.GetActive(ctx)
	if err != nil {
		logger.L().Errorw("failed to resolve notification audience",
			"conversation_id", conversation.ID,
			"error", err)
		return nil
	}

	audience := make([]string, 0, len(operators))
	for _, op := range operators {
		audience = append(audience, op.ID)
	}
	return audience
}
