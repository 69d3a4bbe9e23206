package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/ClareAI/astra-lead-service/pkg/logger"
	"github.com/ClareAI/astra-lead-service/pkg/redis"
)

// Provider is the outbound messaging provider contract. Both the gateway
// client and the Twilio sender satisfy it.
type Provider interface {
	SendSessionMessage(ctx context.Context, phoneNumber, text string) (string, error)
}

// LeadStore is the lead access the messaging service needs.
type LeadStore interface {
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	FindOrCreateByPhoneNumber(ctx context.Context, phone, name string) (*domain.Lead, error)
}

// ConversationStore is the conversation access the messaging service needs.
type ConversationStore interface {
	Get(ctx context.Context, id string) (*domain.Conversation, error)
	Create(ctx context.Context, conversation *domain.Conversation) error
	FindOpenByLeadID(ctx context.Context, leadID string) (*domain.Conversation, error)
	TouchLastMessage(ctx context.Context, id string, at time.Time) error
}

// MessageStore appends outbound messages to the transcript.
type MessageStore interface {
	Create(ctx context.Context, message *domain.ConversationMessage) error
}

// ContextCache mirrors sent turns into the conversation context cache.
type ContextCache interface {
	AppendConversationContext(ctx context.Context, conversationID string, turns []redis.ContextTurn, maxTurns int, ttl time.Duration) error
}

// Service sends outbound messages and keeps the transcript and context cache
// in step with what actually went out.
type Service struct {
	provider      Provider
	leads         LeadStore
	conversations ConversationStore
	messages      MessageStore
	cache         ContextCache

	contextTurns int
	contextTTL   time.Duration
}

// NewService creates a messaging service. cache may be nil when redis is not
// configured.
func NewService(provider Provider, leads LeadStore, conversations ConversationStore, messages MessageStore, cache ContextCache, contextTurns int, contextTTL time.Duration) *Service {
	return &Service{
		provider:      provider,
		leads:         leads,
		conversations: conversations,
		messages:      messages,
		cache:         cache,
		contextTurns:  contextTurns,
		contextTTL:    contextTTL,
	}
}

// SendToConversation sends a text message to the lead behind a conversation,
// records it as an outbound message and bumps the conversation's activity
// timestamp.
func (s *Service) SendToConversation(ctx context.Context, conversationID, text string) (*domain.ConversationMessage, error) {
	conversation, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, fmt.Errorf("conversation not found: %s: %w", conversationID, domain.ErrNotFound)
	}

	message, err := s.send(ctx, conversation, text)
	if err != nil {
		return nil, err
	}

	if err := s.conversations.TouchLastMessage(ctx, conversationID, message.CreatedAt); err != nil {
		logger.L().Errorw("failed to bump conversation activity",
			"conversation_id", conversationID,
			"error", err)
	}
	return message, nil
}

// SendToLead sends a text message to a lead's open conversation without
// bumping the activity timestamp. This is what the re-engagement sweep uses:
// the automated nudge must not reset the staleness clock.
func (s *Service) SendToLead(ctx context.Context, leadID, text string) error {
	conversation, err := s.conversations.FindOpenByLeadID(ctx, leadID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return fmt.Errorf("no open conversation for lead %s: %w", leadID, domain.ErrNotFound)
	}

	_, err = s.send(ctx, conversation, text)
	return err
}

func (s *Service) send(ctx context.Context, conversation *domain.Conversation, text string) (*domain.ConversationMessage, error) {
	lead, err := s.leads.GetByID(ctx, conversation.LeadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, fmt.Errorf("lead not found: %s: %w", conversation.LeadID, domain.ErrNotFound)
	}

	if _, err := s.provider.SendSessionMessage(ctx, lead.PhoneNumber, text); err != nil {
		return nil, err
	}

	message := &domain.ConversationMessage{
		ConversationID: conversation.ID,
		Direction:      domain.DirectionOutbound,
		Content:        text,
		CreatedAt:      time.Now(),
	}
	if err := s.messages.Create(ctx, message); err != nil {
		// The message went out; a transcript gap is better than a resend.
		logger.L().Errorw("failed to record outbound message",
			"conversation_id", conversation.ID,
			"error", err)
		return message, nil
	}

	s.appendContext(ctx, conversation.ID, text)
	return message, nil
}

func (s *Service) appendContext(ctx context.Context, conversationID, text string) {
	if s.cache == nil {
		return
	}
	turn := redis.ContextTurn{Direction: string(domain.DirectionOutbound), Content: text}
	if err := s.cache.AppendConversationContext(ctx, conversationID, []redis.ContextTurn{turn}, s.contextTurns, s.contextTTL); err != nil {
		logger.L().Warnw("failed to append context cache",
			"conversation_id", conversationID,
			"error", err)
	}
}
