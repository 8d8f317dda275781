package jobs

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/owenfield/recall-api/apperr"
	"github.com/owenfield/recall-api/models"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Item{}, &models.Deck{},
		&models.DeckItem{}, &models.ReviewLog{}, &models.Job{},
	))
	return db
}

func queueUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := &models.User{Subject: "auth|worker", Nickname: "worker"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestCreatePendingJob(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 0)
	user := queueUser(t, db)

	job, err := q.Create(context.Background(), user.ID, TypeCardGeneration,
		CardGenerationPayload{DeckID: "d1", Topic: "go", Count: 5}, 0)
	require.NoError(t, err)

	require.NotEmpty(t, job.PublicID)
	require.Equal(t, models.JobStatusPending, job.Status)
	require.Equal(t, 0, job.Attempts)
	require.Equal(t, models.DefaultJobMaxAttempts, job.MaxAttempts)
	require.Contains(t, job.Payload, `"topic":"go"`)
	require.Nil(t, job.ProcessedAt)
}

func TestClaimTransitionsToProcessing(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 3)
	user := queueUser(t, db)

	job, err := q.Create(context.Background(), user.ID, TypeCardGeneration, nil, 0)
	require.NoError(t, err)

	claimed, err := q.Claim(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusProcessing, claimed.Status)

	_, err = q.Claim(context.Background(), job.ID)
	require.True(t, apperr.Is(err, apperr.CodeUnavailable), "got %v", err)
}

func TestClaimExclusiveUnderContention(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 3)
	user := queueUser(t, db)

	job, err := q.Create(context.Background(), user.ID, TypeCardGeneration, nil, 0)
	require.NoError(t, err)

	const claimants = 8
	var wg sync.WaitGroup
	wins := make(chan struct{}, claimants)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := q.Claim(context.Background(), job.ID); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	require.Len(t, wins, 1, "exactly one claimant must win")
}

func TestCompleteRecordsResult(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 3)
	user := queueUser(t, db)
	ctx := context.Background()

	job, err := q.Create(ctx, user.ID, TypeCardGeneration, nil, 0)
	require.NoError(t, err)
	_, err = q.Claim(ctx, job.ID)
	require.NoError(t, err)

	require.NoError(t, q.Complete(ctx, job.ID, CardGenerationResult{Created: []string{"i1"}}))

	done, err := q.Get(ctx, job.PublicID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompleted, done.Status)
	require.Contains(t, done.Result, `"created":["i1"]`)
	require.NotNil(t, done.ProcessedAt)
	require.Empty(t, done.Error)
}

func TestCompleteRequiresProcessing(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 3)
	user := queueUser(t, db)

	job, err := q.Create(context.Background(), user.ID, TypeCardGeneration, nil, 0)
	require.NoError(t, err)

	err = q.Complete(context.Background(), job.ID, nil)
	require.True(t, apperr.Is(err, apperr.CodeConflict), "got %v", err)
}

func TestFailReturnsJobToPendingWithBudgetLeft(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 3)
	user := queueUser(t, db)
	ctx := context.Background()

	job, err := q.Create(ctx, user.ID, TypeCardGeneration, nil, 0)
	require.NoError(t, err)
	_, err = q.Claim(ctx, job.ID)
	require.NoError(t, err)

	require.NoError(t, q.Fail(ctx, job.ID, context.DeadlineExceeded))

	retried, err := q.Get(ctx, job.PublicID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusPending, retried.Status)
	require.Equal(t, 1, retried.Attempts)
	require.Empty(t, retried.Error, "error text only appears on terminal failure")
	require.Nil(t, retried.ProcessedAt)
}

func TestFailExhaustsAttemptBudget(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 2)
	user := queueUser(t, db)
	ctx := context.Background()

	job, err := q.Create(ctx, user.ID, TypeCardGeneration, nil, 0)
	require.NoError(t, err)

	for attempt := 0; attempt < 2; attempt++ {
		_, err = q.Claim(ctx, job.ID)
		require.NoError(t, err)
		require.NoError(t, q.Fail(ctx, job.ID, context.DeadlineExceeded))
	}

	dead, err := q.Get(ctx, job.PublicID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusFailed, dead.Status)
	require.Equal(t, 2, dead.Attempts)
	require.Contains(t, dead.Error, "deadline exceeded")
	require.NotNil(t, dead.ProcessedAt)

	_, err = q.Claim(ctx, job.ID)
	require.True(t, apperr.Is(err, apperr.CodeUnavailable), "failed jobs are terminal")
}

func TestFailRequiresProcessing(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 3)
	user := queueUser(t, db)

	job, err := q.Create(context.Background(), user.ID, TypeCardGeneration, nil, 0)
	require.NoError(t, err)

	err = q.Fail(context.Background(), job.ID, context.DeadlineExceeded)
	require.True(t, apperr.Is(err, apperr.CodeConflict), "got %v", err)
}

func TestReclaimStale(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 3)
	user := queueUser(t, db)
	ctx := context.Background()

	stuck, err := q.Create(ctx, user.ID, TypeCardGeneration, nil, 0)
	require.NoError(t, err)
	_, err = q.Claim(ctx, stuck.ID)
	require.NoError(t, err)

	fresh, err := q.Create(ctx, user.ID, TypeCardGeneration, nil, 0)
	require.NoError(t, err)
	_, err = q.Claim(ctx, fresh.ID)
	require.NoError(t, err)

	// Backdate the stuck job as if its worker died ten minutes ago.
	require.NoError(t, db.Model(&models.Job{}).
		Where("id = ?", stuck.ID).
		UpdateColumn("updated_at", time.Now().Add(-10*time.Minute)).Error)

	reclaimed, err := q.ReclaimStale(ctx, 5*time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, reclaimed)

	back, err := q.Get(ctx, stuck.PublicID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusPending, back.Status)

	untouched, err := q.Get(ctx, fresh.PublicID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusProcessing, untouched.Status)
}

func TestNextPendingOrdersByPriorityThenAge(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 3)
	user := queueUser(t, db)
	ctx := context.Background()

	low1, err := q.Create(ctx, user.ID, TypeCardGeneration, nil, 0)
	require.NoError(t, err)
	high, err := q.Create(ctx, user.ID, TypeCardGeneration, nil, 5)
	require.NoError(t, err)
	low2, err := q.Create(ctx, user.ID, TypeCardGeneration, nil, 0)
	require.NoError(t, err)

	done, err := q.Create(ctx, user.ID, TypeCardGeneration, nil, 9)
	require.NoError(t, err)
	_, err = q.Claim(ctx, done.ID)
	require.NoError(t, err)
	require.NoError(t, q.Complete(ctx, done.ID, nil))

	pending, err := q.NextPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	require.Equal(t, high.ID, pending[0].ID)
	require.Equal(t, low1.ID, pending[1].ID)
	require.Equal(t, low2.ID, pending[2].ID)

	limited, err := q.NextPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, high.ID, limited[0].ID)
}

func TestGetUnknownJob(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 3)

	_, err := q.Get(context.Background(), "missing")
	require.True(t, apperr.Is(err, apperr.CodeNotFound), "got %v", err)
}
