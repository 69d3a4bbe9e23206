package playbook

import (
	"context"
	"strings"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/ClareAI/astra-lead-service/pkg/logger"
	"github.com/ClareAI/astra-lead-service/pkg/redis"
	"github.com/ClareAI/astra-lead-service/pkg/semantic"
)

// SearchIndex is the slice of the semantic index client the selector uses.
type SearchIndex interface {
	IsConfigured() bool
	Search(ctx context.Context, query string, topK int, topic string) ([]semantic.SearchHit, error)
}

// PlaybookStore resolves search hits to playbooks and steps.
type PlaybookStore interface {
	GetPlaybookByID(ctx context.Context, id string) (*domain.Playbook, error)
	GetStepsByPlaybookID(ctx context.Context, playbookID string) ([]*domain.PlaybookStep, error)
}

// ContextCache reads the cached recent turns for a conversation.
type ContextCache interface {
	GetConversationContext(ctx context.Context, conversationID string) ([]redis.ContextTurn, error)
}

// MessageStore is the fallback source of recent turns when the cache is cold.
type MessageStore interface {
	GetRecent(ctx context.Context, conversationID string, limit int) ([]*domain.ConversationMessage, error)
}

// Recommendation is the selector's positive answer: the step the agent should
// consider sending next.
type Recommendation struct {
	PlaybookID     string  `json:"playbook_id"`
	PlaybookName   string  `json:"playbook_name"`
	StepOrder      int     `json:"step_order"`
	MessageContent string  `json:"message_content"`
	ContextHint    string  `json:"context_hint,omitempty"`
	Score          float64 `json:"score"`
}

// Selector picks at most one playbook step for a conversation's current
// context. It fails open: index trouble or weak matches produce a nil
// recommendation, never an error the conversation flow has to handle.
type Selector struct {
	index     SearchIndex
	playbooks PlaybookStore
	cache     ContextCache
	messages  MessageStore

	topK         int
	minScore     float64
	contextTurns int
}

// NewSelector creates a playbook selector. cache may be nil when redis is not
// configured; the message store is then the only context source.
func NewSelector(index SearchIndex, playbooks PlaybookStore, cache ContextCache, messages MessageStore, topK int, minScore float64, contextTurns int) *Selector {
	return &Selector{
		index:        index,
		playbooks:    playbooks,
		cache:        cache,
		messages:     messages,
		topK:         topK,
		minScore:     minScore,
		contextTurns: contextTurns,
	}
}

// Select returns the best playbook step for the query, or nil when no
// candidate clears the score cutoff. A nil recommendation is a normal answer,
// not an error.
func (s *Selector) Select(ctx context.Context, query, topic string) (*Recommendation, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if s.index == nil || !s.index.IsConfigured() {
		return nil, nil
	}

	hits, err := s.index.Search(ctx, query, s.topK, topic)
	if err != nil {
		// Fail open: the agent proceeds without a suggestion.
		logger.L().Warnw("semantic index search failed, returning no suggestion",
			"topic", topic,
			"error", err)
		return nil, nil
	}

	for _, hit := range hits {
		if hit.Score < s.minScore {
			// Hits are ranked; everything after this is weaker.
			break
		}

		recommendation, err := s.resolve(ctx, hit)
		if err != nil {
			logger.L().Warnw("failed to resolve playbook candidate",
				"playbook_id", hit.PlaybookID,
				"error", err)
			continue
		}
		if recommendation != nil {
			return recommendation, nil
		}
	}

	return nil, nil
}

// resolve turns a search hit into a recommendation for the playbook's first
// step. A stale hit whose playbook or steps are gone resolves to nil.
func (s *Selector) resolve(ctx context.Context, hit semantic.SearchHit) (*Recommendation, error) {
	playbook, err := s.playbooks.GetPlaybookByID(ctx, hit.PlaybookID)
	if err != nil {
		return nil, err
	}
	if playbook == nil {
		return nil, nil
	}

	steps, err := s.playbooks.GetStepsByPlaybookID(ctx, playbook.ID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, nil
	}

	first := steps[0]
	return &Recommendation{
		PlaybookID:     playbook.ID,
		PlaybookName:   playbook.Name,
		StepOrder:      first.StepOrder,
		MessageContent: first.MessageContent,
		ContextHint:    first.ContextHint,
		Score:          hit.Score,
	}, nil
}

// BuildQuery derives the retrieval query from a conversation's recent turns.
// The redis context cache is tried first; a cold cache falls back to the
// message store.
func (s *Selector) BuildQuery(ctx context.Context, conversationID string) string {
	if s.cache != nil {
		turns, err := s.cache.GetConversationContext(ctx, conversationID)
		if err != nil {
			logger.L().Warnw("failed to read conversation context cache",
				"conversation_id", conversationID,
				"error", err)
		} else if len(turns) > 0 {
			parts := make([]string, 0, len(turns))
			for _, turn := range turns {
				parts = append(parts, turn.Content)
			}
			return strings.Join(parts, "\n")
		}
	}

	if s.messages == nil {
		return ""
	}

	messages, err := s.messages.GetRecent(ctx, conversationID, s.contextTurns)
	if err != nil {
		logger.L().Warnw("failed to load recent messages for query",
			"conversation_id", conversationID,
			"error", err)
		return ""
	}

	parts := make([]string, 0, len(messages))
	for _, message := range messages {
		parts = append(parts, message.Content)
	}
	return strings.Join(parts, "\n")
}
