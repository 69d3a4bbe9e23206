package playbook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ClareAI/astra-lead-service/internal/domain"
	"github.com/ClareAI/astra-lead-service/pkg/logger"
	"github.com/ClareAI/astra-lead-service/pkg/semantic"
	"github.com/openai/openai-go"
)

// UpsertIndex is the slice of the semantic index client the indexer writes
// through.
type UpsertIndex interface {
	IsConfigured() bool
	Upsert(ctx context.Context, req semantic.UpsertRequest) error
	Delete(ctx context.Context, playbookID string) error
}

// IndexerStore is what the indexer needs from the playbook repository.
type IndexerStore interface {
	GetPlaybookByID(ctx context.Context, id string) (*domain.Playbook, error)
	GetStepsByPlaybookID(ctx context.Context, playbookID string) ([]*domain.PlaybookStep, error)
	GetTopicByID(ctx context.Context, id string) (*domain.Topic, error)
	GetEmbedding(ctx context.Context, playbookID string) (*domain.PlaybookEmbedding, error)
	UpsertEmbedding(ctx context.Context, embedding *domain.PlaybookEmbedding) error
}

// EmbeddingClient computes a vector for a piece of text.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// OpenAIEmbedder computes embeddings through the OpenAI API.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

// NewOpenAIEmbedder creates an embedder for the given model.
func NewOpenAIEmbedder(client openai.Client, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: client, model: model}
}

// Embed returns the embedding vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	response, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute embedding: %w", err)
	}
	if len(response.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return response.Data[0].Embedding, nil
}

// Model returns the model name the embedder is configured with.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Indexer keeps the external vector index in sync with stored playbooks.
type Indexer struct {
	store    IndexerStore
	index    UpsertIndex
	embedder EmbeddingClient
	model    string
}

// NewIndexer creates a playbook indexer.
func NewIndexer(store IndexerStore, index UpsertIndex, embedder EmbeddingClient, model string) *Indexer {
	return &Indexer{
		store:    store,
		index:    index,
		embedder: embedder,
		model:    model,
	}
}

// buildText concatenates the retrievable text of a playbook: name,
// description and every step's message and hint.
func buildText(playbook *domain.Playbook, steps []*domain.PlaybookStep) string {
	var b strings.Builder
	b.WriteString(playbook.Name)
	if playbook.Description != "" {
		b.WriteString("\n")
		b.WriteString(playbook.Description)
	}
	for _, step := range steps {
		b.WriteString("\n")
		b.WriteString(step.MessageContent)
		if step.ContextHint != "" {
			b.WriteString("\n")
			b.WriteString(step.ContextHint)
		}
	}
	return b.String()
}

func checksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Reindex recomputes a playbook's embedding and pushes it to the index. When
// the playbook text has not changed since the last run with the same model,
// the work is skipped.
func (i *Indexer) Reindex(ctx context.Context, playbookID string) error {
	if i.index == nil || !i.index.IsConfigured() || i.embedder == nil {
		logger.L().Debugw("semantic index not configured, skipping reindex",
			"playbook_id", playbookID)
		return nil
	}

	playbook, err := i.store.GetPlaybookByID(ctx, playbookID)
	if err != nil {
		return err
	}
	if playbook == nil {
		return fmt.Errorf("playbook not found: %s: %w", playbookID, domain.ErrNotFound)
	}

	steps, err := i.store.GetStepsByPlaybookID(ctx, playbookID)
	if err != nil {
		return err
	}

	text := buildText(playbook, steps)
	sum := checksum(text)

	existing, err := i.store.GetEmbedding(ctx, playbookID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Checksum == sum && existing.Model == i.model {
		return nil
	}

	vector, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}

	var topicName string
	if topic, err := i.store.GetTopicByID(ctx, playbook.TopicID); err == nil && topic != nil {
		topicName = topic.Name
	}

	if err := i.index.Upsert(ctx, semantic.UpsertRequest{
		PlaybookID: playbook.ID,
		Topic:      topicName,
		Vector:     vector,
		Text:       text,
	}); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}

	return i.store.UpsertEmbedding(ctx, &domain.PlaybookEmbedding{
		PlaybookID: playbook.ID,
		Model:      i.model,
		Dimensions: len(vector),
		Checksum:   sum,
	})
}

// Remove deletes a playbook's document from the index.
func (i *Indexer) Remove(ctx context.Context, playbookID string) error {
	if i.index == nil || !i.index.IsConfigured() {
		return nil
	}
	if err := i.index.Delete(ctx, playbookID); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}
	return nil
}
