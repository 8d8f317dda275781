package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"

	"github.com/owenfield/recall-api/apperr"
	"github.com/owenfield/recall-api/models"
)

// Job types with registered handlers.
const (
	TypeCardGeneration       = "card_generation"
	TypeDistractorGeneration = "distractor_generation"
)

// Queue persists generation jobs and owns their status transitions. Claim uses
// a conditional update so concurrent claimants (including separate processes)
// cannot both win the same job.
type Queue struct {
	db          *gorm.DB
	maxAttempts int
}

// NewQueue creates a Queue. maxAttempts ≤ 0 falls back to the model default.
func NewQueue(db *gorm.DB, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = models.DefaultJobMaxAttempts
	}
	return &Queue{db: db, maxAttempts: maxAttempts}
}

// Create inserts a pending job with the given payload. The payload is stored
// as JSON and handed back to the type's handler verbatim.
func (q *Queue) Create(ctx context.Context, userID uint, jobType string, payload any, priority int) (*models.Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperr.NewInvalidRequest(fmt.Sprintf("unencodable job payload: %v", err))
	}

	publicID, err := gonanoid.New()
	if err != nil {
		return nil, apperr.NewInternal(err)
	}

	job := models.Job{
		PublicID:    publicID,
		UserID:      userID,
		Type:        jobType,
		Payload:     string(body),
		Status:      models.JobStatusPending,
		MaxAttempts: q.maxAttempts,
		Priority:    priority,
	}
	if err := q.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, apperr.NewInternal(err)
	}
	return &job, nil
}

// Get returns the job with the given public ID. The row reflects the latest
// queue mutation immediately; there is no read-side caching.
func (q *Queue) Get(ctx context.Context, publicID string) (*models.Job, error) {
	var job models.Job
	err := q.db.WithContext(ctx).Where("public_id = ?", publicID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NewNotFound("job", publicID)
	}
	if err != nil {
		return nil, apperr.NewInternal(err)
	}
	return &job, nil
}

// Claim transitions a job pending → processing. The transition is conditioned
// on the status still being pending, so at most one of N concurrent claimants
// succeeds; the rest get an UNAVAILABLE error and should try another job.
func (q *Queue) Claim(ctx context.Context, jobID uint) (*models.Job, error) {
	res := q.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusPending).
		Update("status", models.JobStatusProcessing)
	if res.Error != nil {
		return nil, apperr.NewInternal(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NewUnavailable(fmt.Sprintf("%d", jobID))
	}

	var job models.Job
	if err := q.db.WithContext(ctx).First(&job, jobID).Error; err != nil {
		return nil, apperr.NewInternal(err)
	}
	return &job, nil
}

// Complete transitions a job processing → completed and records its result.
func (q *Queue) Complete(ctx context.Context, jobID uint, result any) error {
	body, err := json.Marshal(result)
	if err != nil {
		return apperr.NewInternal(fmt.Errorf("unencodable job result: %w", err))
	}

	now := time.Now()
	res := q.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusProcessing).
		Updates(map[string]any{
			"status":       models.JobStatusCompleted,
			"result":       string(body),
			"processed_at": now,
		})
	if res.Error != nil {
		return apperr.NewInternal(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewConflict(fmt.Sprintf("job %d is not processing", jobID))
	}
	return nil
}

// Fail records a handler failure. With attempts remaining the job goes back to
// pending for another claim; once the budget is exhausted it becomes failed
// and the error text is recorded for the status-polling surface.
func (q *Queue) Fail(ctx context.Context, jobID uint, failErr error) error {
	var job models.Job
	if err := q.db.WithContext(ctx).First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NewNotFound("job", fmt.Sprintf("%d", jobID))
		}
		return apperr.NewInternal(err)
	}

	attempts := job.Attempts + 1
	updates := map[string]any{"attempts": attempts}
	if attempts < job.MaxAttempts {
		updates["status"] = models.JobStatusPending
	} else {
		updates["status"] = models.JobStatusFailed
		msg := "job failed"
		if failErr != nil {
			msg = failErr.Error()
		}
		updates["error"] = msg
		updates["processed_at"] = time.Now()
	}

	// Conditioned on the attempts we read, so racing Fail calls cannot
	// double-count an attempt.
	res := q.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND status = ? AND attempts = ?", jobID, models.JobStatusProcessing, job.Attempts).
		Updates(updates)
	if res.Error != nil {
		return apperr.NewInternal(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NewConflict(fmt.Sprintf("job %d is not processing", jobID))
	}
	return nil
}

// ReclaimStale moves jobs stuck in processing back to pending when their
// updated_at is older than the threshold, indicating a crashed or abandoned
// worker. Nothing else is reset. Safe to call repeatedly and concurrently with
// claim/complete traffic. Returns the number of jobs reclaimed.
func (q *Queue) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := q.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("status = ? AND updated_at < ?", models.JobStatusProcessing, cutoff).
		Update("status", models.JobStatusPending)
	if res.Error != nil {
		return 0, apperr.NewInternal(res.Error)
	}
	return res.RowsAffected, nil
}

// NextPending returns up to limit pending jobs, highest priority first, oldest
// first within a priority.
func (q *Queue) NextPending(ctx context.Context, limit int) ([]models.Job, error) {
	var pending []models.Job
	err := q.db.WithContext(ctx).
		Where("status = ?", models.JobStatusPending).
		Order("priority DESC, created_at ASC, id ASC").
		Limit(limit).
		Find(&pending).Error
	if err != nil {
		return nil, apperr.NewInternal(err)
	}
	return pending, nil
}
