package lifecycle

import (
	"context"
	"time"

	"github.com/ClareAI/astra-lead-service/pkg/logger"
)

// SweepResult summarizes one re-engagement sweep.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Sweep scans PENDING_HANDOFF conversations whose last message is older than
// the configured threshold and sends each one automated re-engagement message.
// The staleness predicate is re-checked with a conditional update immediately
// before sending, so a reply that arrived between scan and send makes the
// conversation lose the guard and be skipped instead of double-messaged. One
// conversation's send failure never aborts the rest of the batch.
func (s *Service) Sweep(ctx context.Context) (*SweepResult, error) {
	cutoff := time.Now().Add(-s.reengageAfter)

	stale, err := s.conversations.ListStalePending(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Scanned: len(stale)}
	for _, conversation := range stale {
		marked, err := s.conversations.MarkReengaged(ctx, conversation.ID, cutoff)
		if err != nil {
			result.Failed++
			logger.L().Errorw("re-engagement marker update failed",
				"conversation_id", conversation.ID,
				"error", err)
			continue
		}
		if !marked {
			// A reply arrived or another sweep got here first.
			result.Skipped++
			continue
		}

		if err := s.sender.SendToLead(ctx, conversation.LeadID, s.reengageMessage); err != nil {
			result.Failed++
			logger.L().Errorw("re-engagement send failed",
				"conversation_id", conversation.ID,
				"lead_id", conversation.LeadID,
				"error", err)
			// Roll the marker back so the next sweep retries this one.
			if clearErr := s.conversations.ClearReengaged(ctx, conversation.ID); clearErr != nil {
				logger.L().Errorw("failed to roll back re-engagement marker",
					"conversation_id", conversation.ID,
					"error", clearErr)
			}
			continue
		}
		result.Sent++
	}

	logger.L().Infow("re-engagement sweep finished",
		"scanned", result.Scanned,
		"sent", result.Sent,
		"skipped", result.Skipped,
		"failed", result.Failed)
	return result, nil
}
