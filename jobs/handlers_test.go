package jobs

import (
	"context"
	"testing"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/owenfield/recall-api/generation"
	"github.com/owenfield/recall-api/models"
	"github.com/owenfield/recall-api/session"
	"github.com/owenfield/recall-api/srs"
)

type fakeGenerator struct {
	result generation.Result
	err    error
	specs  []generation.Spec
}

func (f *fakeGenerator) Generate(ctx context.Context, spec generation.Spec) (generation.Result, error) {
	f.specs = append(f.specs, spec)
	return f.result, f.err
}

type fakeSimilarity struct {
	duplicates map[string]bool
	err        error
}

func (f *fakeSimilarity) FindSimilar(ctx context.Context, text, ownerID string, threshold float64, limit int) ([]generation.Match, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.duplicates[text] {
		return []generation.Match{{ID: "existing", Similarity: 0.99}}, nil
	}
	return nil, nil
}

func setupHandlerEnv(t *testing.T, capacity int) (*gorm.DB, *Queue, *session.Service, *models.User, *models.Deck) {
	t.Helper()

	db := setupDB(t)
	user := queueUser(t, db)

	engine, err := srs.NewEngine(srs.Config{})
	require.NoError(t, err)
	sessions := session.NewService(db, engine, 0)

	publicID, err := gonanoid.New()
	require.NoError(t, err)
	deck := &models.Deck{PublicID: publicID, Title: "generated", UserID: user.ID, Capacity: capacity}
	require.NoError(t, db.Create(deck).Error)

	return db, NewQueue(db, 3), sessions, user, deck
}

func cardJob(t *testing.T, q *Queue, user *models.User, payload CardGenerationPayload) *models.Job {
	t.Helper()
	job, err := q.Create(context.Background(), user.ID, TypeCardGeneration, payload, 0)
	require.NoError(t, err)
	return job
}

func TestCardGenerationCreatesItems(t *testing.T) {
	db, q, sessions, user, deck := setupHandlerEnv(t, 10)
	ctx := context.Background()

	gen := &fakeGenerator{result: generation.Result{
		ModelID: "gen-1",
		Items: []generation.GeneratedItem{
			{Question: "q1", Answer: "a1"},
			{Question: "q2", Answer: "a2"},
			{Question: "q3", Answer: "a3"},
		},
	}}
	h := &CardGenerationHandler{Sessions: sessions, Queue: q, Generator: gen, Logger: zap.NewNop()}

	job := cardJob(t, q, user, CardGenerationPayload{DeckID: deck.PublicID, Topic: "go", Count: 3})
	out, err := h.Handle(ctx, job)
	require.NoError(t, err)

	result, ok := out.(CardGenerationResult)
	require.True(t, ok)
	require.Len(t, result.Created, 3)
	require.Equal(t, "gen-1", result.ModelID)
	require.Zero(t, result.SkippedDuplicates)
	require.Zero(t, result.SkippedCapacity)

	var count int64
	require.NoError(t, db.Model(&models.DeckItem{}).Where("deck_id = ?", deck.ID).Count(&count).Error)
	require.EqualValues(t, 3, count)

	// New items start unreviewed and immediately due.
	var item models.Item
	require.NoError(t, db.Where("public_id = ?", result.Created[0]).First(&item).Error)
	require.Equal(t, srs.StageNew, item.Stage)
	require.Equal(t, 0, item.Reps)
}

func TestCardGenerationSkipsDuplicates(t *testing.T) {
	_, q, sessions, user, deck := setupHandlerEnv(t, 10)

	gen := &fakeGenerator{result: generation.Result{
		Items: []generation.GeneratedItem{
			{Question: "known question", Answer: "a1"},
			{Question: "fresh question", Answer: "a2"},
		},
	}}
	sim := &fakeSimilarity{duplicates: map[string]bool{"known question": true}}
	h := &CardGenerationHandler{Sessions: sessions, Queue: q, Generator: gen, Similarity: sim, Logger: zap.NewNop()}

	job := cardJob(t, q, user, CardGenerationPayload{DeckID: deck.PublicID, Topic: "go", Count: 2})
	out, err := h.Handle(context.Background(), job)
	require.NoError(t, err)

	result := out.(CardGenerationResult)
	require.Len(t, result.Created, 1)
	require.Equal(t, 1, result.SkippedDuplicates)
}

func TestCardGenerationKeepsItemsWhenSimilarityFails(t *testing.T) {
	_, q, sessions, user, deck := setupHandlerEnv(t, 10)

	gen := &fakeGenerator{result: generation.Result{
		Items: []generation.GeneratedItem{{Question: "q1", Answer: "a1"}},
	}}
	sim := &fakeSimilarity{err: context.DeadlineExceeded}
	h := &CardGenerationHandler{Sessions: sessions, Queue: q, Generator: gen, Similarity: sim, Logger: zap.NewNop()}

	job := cardJob(t, q, user, CardGenerationPayload{DeckID: deck.PublicID, Topic: "go", Count: 1})
	out, err := h.Handle(context.Background(), job)
	require.NoError(t, err)

	result := out.(CardGenerationResult)
	require.Len(t, result.Created, 1)
	require.Zero(t, result.SkippedDuplicates)
}

func TestCardGenerationStopsAtDeckCapacity(t *testing.T) {
	db, q, sessions, user, deck := setupHandlerEnv(t, 2)

	gen := &fakeGenerator{result: generation.Result{
		Items: []generation.GeneratedItem{
			{Question: "q1", Answer: "a1"},
			{Question: "q2", Answer: "a2"},
			{Question: "q3", Answer: "a3"},
		},
	}}
	h := &CardGenerationHandler{Sessions: sessions, Queue: q, Generator: gen, Logger: zap.NewNop()}

	job := cardJob(t, q, user, CardGenerationPayload{DeckID: deck.PublicID, Topic: "go", Count: 3})
	out, err := h.Handle(context.Background(), job)
	require.NoError(t, err)

	result := out.(CardGenerationResult)
	require.Len(t, result.Created, 2)
	require.Equal(t, 1, result.SkippedCapacity)

	var count int64
	require.NoError(t, db.Model(&models.DeckItem{}).Where("deck_id = ?", deck.ID).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestCardGenerationQueuesDistractorBackfill(t *testing.T) {
	db, q, sessions, user, deck := setupHandlerEnv(t, 10)

	gen := &fakeGenerator{result: generation.Result{
		Items: []generation.GeneratedItem{
			{Question: "q1", Answer: "a1", Subtype: models.SubtypeMultipleChoice},
			{Question: "q2", Answer: "a2", Subtype: models.SubtypeMultipleChoice, Distractors: []string{"x", "y"}},
		},
	}}
	h := &CardGenerationHandler{Sessions: sessions, Queue: q, Generator: gen, Logger: zap.NewNop()}

	job := cardJob(t, q, user, CardGenerationPayload{DeckID: deck.PublicID, Topic: "go", Count: 2})
	out, err := h.Handle(context.Background(), job)
	require.NoError(t, err)
	result := out.(CardGenerationResult)
	require.Len(t, result.Created, 2)

	// Only the item missing distractors needs backfill.
	var backfill []models.Job
	require.NoError(t, db.Where("type = ?", TypeDistractorGeneration).Find(&backfill).Error)
	require.Len(t, backfill, 1)
	require.Equal(t, models.JobStatusPending, backfill[0].Status)
	require.Contains(t, backfill[0].Payload, result.Created[0])
}

func TestCardGenerationRejectsBadPayload(t *testing.T) {
	_, q, sessions, user, _ := setupHandlerEnv(t, 10)

	h := &CardGenerationHandler{Sessions: sessions, Queue: q, Generator: &fakeGenerator{}, Logger: zap.NewNop()}

	job := cardJob(t, q, user, CardGenerationPayload{Topic: "go"})
	_, err := h.Handle(context.Background(), job)
	require.Error(t, err)
}

func TestDistractorGenerationBackfillsItem(t *testing.T) {
	db, q, sessions, user, deck := setupHandlerEnv(t, 10)
	ctx := context.Background()

	item, err := sessions.CreateItem(ctx, deck.PublicID, user.ID, "capital of France?", "Paris", "", nil)
	require.NoError(t, err)

	gen := &fakeGenerator{result: generation.Result{
		ModelID: "gen-2",
		Items: []generation.GeneratedItem{
			{Distractors: []string{"Lyon", "Marseille", "Nice", "Toulouse"}},
		},
	}}
	h := &DistractorGenerationHandler{Sessions: sessions, Generator: gen}

	job, err := q.Create(ctx, user.ID, TypeDistractorGeneration,
		DistractorPayload{ItemID: item.PublicID, Count: 3}, 0)
	require.NoError(t, err)

	out, err := h.Handle(ctx, job)
	require.NoError(t, err)

	result, ok := out.(DistractorResult)
	require.True(t, ok)
	require.Equal(t, item.PublicID, result.ItemID)
	require.Equal(t, []string{"Lyon", "Marseille", "Nice"}, result.Distractors)

	var reloaded models.Item
	require.NoError(t, db.Where("id = ?", item.ID).First(&reloaded).Error)
	require.Equal(t, models.SubtypeMultipleChoice, reloaded.Subtype)
	require.Equal(t, []string{"Lyon", "Marseille", "Nice"}, reloaded.Distractors)

	// The generator was asked about this item's question.
	require.Len(t, gen.specs, 1)
	require.Equal(t, "capital of France?", gen.specs[0].Topic)
}

func TestDistractorGenerationEmptyResponse(t *testing.T) {
	_, q, sessions, user, deck := setupHandlerEnv(t, 10)
	ctx := context.Background()

	item, err := sessions.CreateItem(ctx, deck.PublicID, user.ID, "q", "a", "", nil)
	require.NoError(t, err)

	h := &DistractorGenerationHandler{Sessions: sessions, Generator: &fakeGenerator{}}

	job, err := q.Create(ctx, user.ID, TypeDistractorGeneration,
		DistractorPayload{ItemID: item.PublicID, Count: 3}, 0)
	require.NoError(t, err)

	_, err = h.Handle(ctx, job)
	require.Error(t, err)
}
