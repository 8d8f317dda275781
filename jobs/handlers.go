package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/owenfield/recall-api/apperr"
	"github.com/owenfield/recall-api/generation"
	"github.com/owenfield/recall-api/models"
	"github.com/owenfield/recall-api/session"
)

// CardGenerationPayload asks the generator for new items to add to a deck.
type CardGenerationPayload struct {
	DeckID  string `json:"deck_id"`
	Topic   string `json:"topic"`
	Count   int    `json:"count"`
	Subtype string `json:"subtype,omitempty"`
}

// CardGenerationResult summarizes a completed card-generation job.
type CardGenerationResult struct {
	Created           []string `json:"created"` // public IDs of the new items
	SkippedDuplicates int      `json:"skipped_duplicates"`
	SkippedCapacity   int      `json:"skipped_capacity"`
	ModelID           string   `json:"model_id"`
}

// DistractorPayload asks the generator to backfill a multiple-choice item's
// distractor set.
type DistractorPayload struct {
	ItemID string `json:"item_id"`
	Count  int    `json:"count"`
}

// DistractorResult summarizes a completed distractor-generation job.
type DistractorResult struct {
	ItemID      string   `json:"item_id"`
	Distractors []string `json:"distractors"`
	ModelID     string   `json:"model_id"`
}

// duplicateThreshold is the similarity score above which a generated item is
// considered a duplicate of an existing one and skipped.
const duplicateThreshold = 0.92

// CardGenerationHandler turns a generation request into persisted items with
// fresh memory state. Generated items land in the target deck through the
// session service, so the deck's capacity bound applies. Multiple-choice items
// that come back without distractors get a backfill job queued.
type CardGenerationHandler struct {
	Sessions   *session.Service
	Queue      *Queue
	Generator  generation.Generator
	Similarity generation.SimilarityChecker // optional; nil skips duplicate checks
	Logger     *zap.Logger
}

// Handle implements Handler.
func (h *CardGenerationHandler) Handle(ctx context.Context, job *models.Job) (any, error) {
	var payload CardGenerationPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		return nil, fmt.Errorf("decode card generation payload: %w", err)
	}
	if payload.DeckID == "" || payload.Topic == "" {
		return nil, fmt.Errorf("card generation payload requires deck_id and topic")
	}
	if payload.Count <= 0 {
		payload.Count = 5
	}

	gen, err := h.Generator.Generate(ctx, generation.Spec{
		Topic:   payload.Topic,
		Count:   payload.Count,
		Subtype: payload.Subtype,
	})
	if err != nil {
		return nil, fmt.Errorf("generate cards: %w", err)
	}

	result := CardGenerationResult{Created: []string{}, ModelID: gen.ModelID}
	ownerID := fmt.Sprintf("%d", job.UserID)

	for _, candidate := range gen.Items {
		if candidate.Question == "" || candidate.Answer == "" {
			continue
		}

		if h.Similarity != nil {
			matches, err := h.Similarity.FindSimilar(ctx, candidate.Question, ownerID, duplicateThreshold, 1)
			if err != nil {
				// Duplicate detection is advisory; keep the item on checker failure.
				h.Logger.Warn("similarity check failed, keeping item",
					zap.String("jobID", job.PublicID), zap.Error(err))
			} else if len(matches) > 0 {
				result.SkippedDuplicates++
				continue
			}
		}

		subtype := candidate.Subtype
		if subtype == "" {
			subtype = payload.Subtype
		}
		item, err := h.Sessions.CreateItem(ctx, payload.DeckID, job.UserID,
			candidate.Question, candidate.Answer, subtype, candidate.Distractors)
		if err != nil {
			if apperr.Is(err, apperr.CodeCapacityExceeded) {
				result.SkippedCapacity++
				continue
			}
			return nil, fmt.Errorf("persist generated item: %w", err)
		}
		result.Created = append(result.Created, item.PublicID)

		// Multiple-choice items without distractors get a backfill job.
		if item.Subtype == models.SubtypeMultipleChoice && len(item.Distractors) == 0 {
			_, err := h.Queue.Create(ctx, job.UserID, TypeDistractorGeneration,
				DistractorPayload{ItemID: item.PublicID, Count: 3}, job.Priority)
			if err != nil {
				h.Logger.Warn("failed to queue distractor backfill",
					zap.String("itemID", item.PublicID), zap.Error(err))
			}
		}
	}

	return result, nil
}

// DistractorGenerationHandler fills in an item's distractor set. If this job
// exhausts its retries the item simply remains a plain question/answer item;
// the client sees the failure via the job status surface and degrades.
type DistractorGenerationHandler struct {
	Sessions  *session.Service
	Generator generation.Generator
}

// Handle implements Handler.
func (h *DistractorGenerationHandler) Handle(ctx context.Context, job *models.Job) (any, error) {
	var payload DistractorPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		return nil, fmt.Errorf("decode distractor payload: %w", err)
	}
	if payload.ItemID == "" {
		return nil, fmt.Errorf("distractor payload requires item_id")
	}
	if payload.Count <= 0 {
		payload.Count = 3
	}

	item, err := h.Sessions.Item(ctx, payload.ItemID, job.UserID)
	if err != nil {
		return nil, fmt.Errorf("load item for distractors: %w", err)
	}

	gen, err := h.Generator.Generate(ctx, generation.Spec{
		Topic:       item.Question,
		Count:       1,
		Subtype:     models.SubtypeMultipleChoice,
		Instruction: fmt.Sprintf("generate %d plausible but wrong answers; the correct answer is %q", payload.Count, item.Answer),
	})
	if err != nil {
		return nil, fmt.Errorf("generate distractors: %w", err)
	}

	var distractors []string
	for _, g := range gen.Items {
		distractors = append(distractors, g.Distractors...)
	}
	if len(distractors) == 0 {
		return nil, fmt.Errorf("generator returned no distractors")
	}
	if len(distractors) > payload.Count {
		distractors = distractors[:payload.Count]
	}

	if err := h.Sessions.SetDistractors(ctx, payload.ItemID, job.UserID, distractors); err != nil {
		return nil, fmt.Errorf("persist distractors: %w", err)
	}

	return DistractorResult{ItemID: item.PublicID, Distractors: distractors, ModelID: gen.ModelID}, nil
}
