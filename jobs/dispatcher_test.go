package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/owenfield/recall-api/models"
)

func TestDispatcherCompletesJob(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 3)
	user := queueUser(t, db)
	ctx := context.Background()

	handlers := map[string]Handler{
		"echo": HandlerFunc(func(ctx context.Context, job *models.Job) (any, error) {
			return map[string]any{"ok": true}, nil
		}),
	}
	d := NewDispatcher(q, handlers, nil, Options{})

	job, err := q.Create(ctx, user.ID, "echo", nil, 0)
	require.NoError(t, err)

	d.ProcessBatch(ctx)

	done, err := q.Get(ctx, job.PublicID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompleted, done.Status)
	require.Contains(t, done.Result, `"ok":true`)
}

func TestDispatcherMissingHandlerFailsJob(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 2)
	user := queueUser(t, db)
	ctx := context.Background()

	d := NewDispatcher(q, map[string]Handler{}, nil, Options{})

	job, err := q.Create(ctx, user.ID, "mystery", nil, 0)
	require.NoError(t, err)

	// First batch burns one attempt, second exhausts the budget.
	d.ProcessBatch(ctx)
	mid, err := q.Get(ctx, job.PublicID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusPending, mid.Status)
	require.Equal(t, 1, mid.Attempts)

	d.ProcessBatch(ctx)
	dead, err := q.Get(ctx, job.PublicID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusFailed, dead.Status)
	require.Contains(t, dead.Error, "no handler registered")
}

func TestDispatcherHandlerErrorRetriesThenFails(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 3)
	user := queueUser(t, db)
	ctx := context.Background()

	calls := 0
	handlers := map[string]Handler{
		"flaky": HandlerFunc(func(ctx context.Context, job *models.Job) (any, error) {
			calls++
			return nil, fmt.Errorf("upstream unavailable")
		}),
	}
	d := NewDispatcher(q, handlers, nil, Options{})

	job, err := q.Create(ctx, user.ID, "flaky", nil, 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		d.ProcessBatch(ctx)
	}

	require.Equal(t, 3, calls)
	dead, err := q.Get(ctx, job.PublicID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusFailed, dead.Status)
	require.Equal(t, 3, dead.Attempts)
	require.Contains(t, dead.Error, "upstream unavailable")
}

func TestDispatcherSurvivesHandlerPanic(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 3)
	user := queueUser(t, db)
	ctx := context.Background()

	handlers := map[string]Handler{
		"boom": HandlerFunc(func(ctx context.Context, job *models.Job) (any, error) {
			panic("handler bug")
		}),
		"echo": HandlerFunc(func(ctx context.Context, job *models.Job) (any, error) {
			return nil, nil
		}),
	}
	d := NewDispatcher(q, handlers, nil, Options{})

	bad, err := q.Create(ctx, user.ID, "boom", nil, 5)
	require.NoError(t, err)
	good, err := q.Create(ctx, user.ID, "echo", nil, 0)
	require.NoError(t, err)

	d.ProcessBatch(ctx)

	// The panic is charged as a failed attempt and the batch keeps going.
	crashed, err := q.Get(ctx, bad.PublicID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusPending, crashed.Status)
	require.Equal(t, 1, crashed.Attempts)

	done, err := q.Get(ctx, good.PublicID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompleted, done.Status)
}

func TestDispatcherRespectsBatchSize(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 3)
	user := queueUser(t, db)
	ctx := context.Background()

	handlers := map[string]Handler{
		"echo": HandlerFunc(func(ctx context.Context, job *models.Job) (any, error) {
			return nil, nil
		}),
	}
	d := NewDispatcher(q, handlers, nil, Options{BatchSize: 2})

	for i := 0; i < 3; i++ {
		_, err := q.Create(ctx, user.ID, "echo", nil, 0)
		require.NoError(t, err)
	}

	d.ProcessBatch(ctx)

	var completed, pending int64
	require.NoError(t, db.Model(&models.Job{}).Where("status = ?", models.JobStatusCompleted).Count(&completed).Error)
	require.NoError(t, db.Model(&models.Job{}).Where("status = ?", models.JobStatusPending).Count(&pending).Error)
	require.EqualValues(t, 2, completed)
	require.EqualValues(t, 1, pending)
}

func TestDispatcherReclaimsStaleBeforeClaiming(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 3)
	user := queueUser(t, db)
	ctx := context.Background()

	handlers := map[string]Handler{
		"echo": HandlerFunc(func(ctx context.Context, job *models.Job) (any, error) {
			return nil, nil
		}),
	}
	d := NewDispatcher(q, handlers, nil, Options{StaleAfter: time.Minute})

	job, err := q.Create(ctx, user.ID, "echo", nil, 0)
	require.NoError(t, err)
	_, err = q.Claim(ctx, job.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Job{}).
		Where("id = ?", job.ID).
		UpdateColumn("updated_at", time.Now().Add(-2*time.Minute)).Error)

	d.ProcessBatch(ctx)

	done, err := q.Get(ctx, job.PublicID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompleted, done.Status)
}

func TestDispatcherKickLifecycle(t *testing.T) {
	db := setupDB(t)
	q := NewQueue(db, 3)
	user := queueUser(t, db)
	ctx := context.Background()

	handlers := map[string]Handler{
		"echo": HandlerFunc(func(ctx context.Context, job *models.Job) (any, error) {
			return nil, nil
		}),
	}
	// Long poll interval so only Kick drives the loop.
	d := NewDispatcher(q, handlers, nil, Options{PollInterval: time.Hour})
	d.Start(ctx)
	defer d.Stop()

	job, err := q.Create(ctx, user.ID, "echo", nil, 0)
	require.NoError(t, err)
	d.Kick()

	require.Eventually(t, func() bool {
		got, err := q.Get(ctx, job.PublicID)
		return err == nil && got.Status == models.JobStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)
}
