package messaging

import (
	"context"
	"time"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/ClareAI/astra-lead-service/pkg/logger"
	"github.com/ClareAI/astra-lead-service/pkg/redis"
)

// InboundMessage is an inbound payload from the messaging webhook.
type InboundMessage struct {
	PhoneNumber   string
	SenderName    string
	Content       string
	Transcription *string
	AudioURL      *string
	MediaURL      *string
	MediaType     *string
	Latitude      *float64
	Longitude     *float64
}

// InboundResult reports what an inbound message resolved to.
type InboundResult struct {
	Lead         *domain.Lead                `json:"lead"`
	Conversation *domain.Conversation        `json:"conversation"`
	Message      *domain.ConversationMessage `json:"message"`
}

// Inbound processes one inbound message: the lead is found or created by
// phone number, the lead's open conversation is found or opened in ACTIVE_BOT,
// the message is appended, the conversation's activity timestamp is bumped
// (which also clears any re-engagement marker) and the context cache is
// refreshed. Processing the same phone number twice never creates a second
// lead.
func (s *Service) Inbound(ctx context.Context, inbound *InboundMessage) (*InboundResult, error) {
	lead, err := s.leads.FindOrCreateByPhoneNumber(ctx, inbound.PhoneNumber, inbound.SenderName)
	if err != nil {
		return nil, err
	}

	conversation, err := s.conversations.FindOpenByLeadID(ctx, lead.ID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		conversation = &domain.Conversation{
			LeadID: lead.ID,
			Status: domain.StatusActiveBot,
		}
		if err := s.conversations.Create(ctx, conversation); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	message := &domain.ConversationMessage{
		ConversationID: conversation.ID,
		Direction:      domain.DirectionInbound,
		Content:        inbound.Content,
		Transcription:  inbound.Transcription,
		AudioURL:       inbound.AudioURL,
		MediaURL:       inbound.MediaURL,
		MediaType:      inbound.MediaType,
		Latitude:       inbound.Latitude,
		Longitude:      inbound.Longitude,
		CreatedAt:      now,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, err
	}

	if err := s.conversations.TouchLastMessage(ctx, conversation.ID, now); err != nil {
		logger.L().Errorw("failed to bump conversation activity",
			"conversation_id", conversation.ID,
			"error", err)
	}

	if s.cache != nil {
		content := inbound.Content
		if content == "" && inbound.Transcription != nil {
			content = *inbound.Transcription
		}
		turn := redis.ContextTurn{Direction: string(domain.DirectionInbound), Content: content}
		if err := s.cache.AppendConversationContext(ctx, conversation.ID, []redis.ContextTurn{turn}, s.contextTurns, s.contextTTL); err != nil {
			logger.L().Warnw("failed to append context cache",
				"conversation_id", conversation.ID,
				"error", err)
		}
	}

	return &InboundResult{Lead: lead, Conversation: conversation, Message: message}, nil
}
