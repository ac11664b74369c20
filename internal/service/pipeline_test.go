package service

import (
	"context"
	"errors"
	"testing"

	"ViewBench/internal/model"
	"ViewBench/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(store *memory.Store) *Pipeline {
	return NewPipeline(
		NewMaterializer(store, store, testETL, quietLogger()),
		NewViewService(store, store, testETL, testQueries, quietLogger()),
		quietLogger(),
	)
}

func seedPipelineRaw(t *testing.T, store *memory.Store) {
	seedRaw(t, store, "games_raw",
		map[string]any{"BGGId": 1.0, "Name": "Alpha", "YearPublished": 1995.0, "AvgRating": 8.5, "mechanics": []any{"Dice Rolling"}},
		map[string]any{"BGGId": 2.0, "Name": "Broken", "YearPublished": 0.0},
	)
}

func TestPipeline_All(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedPipelineRaw(t, store)

	res, err := newTestPipeline(store).Run(ctx, StageAll)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Games.Written)
	assert.Equal(t, int64(1), res.Deleted)
	// clean-years 在视图之前执行
	assert.Equal(t, int64(1), res.Views.Scanned)

	n, err := store.CountGames(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPipeline_UnknownStage(t *testing.T) {
	_, err := newTestPipeline(memory.NewStore()).Run(context.Background(), "bogus")
	assert.ErrorContains(t, err, "bogus")
}

func TestPipeline_TryRunBusy(t *testing.T) {
	p := newTestPipeline(memory.NewStore())
	p.mu.Lock()
	_, err := p.TryRun(context.Background(), StageGames)
	p.mu.Unlock()
	assert.ErrorIs(t, err, ErrBusy)

	_, err = p.TryRun(context.Background(), StageGames)
	assert.NoError(t, err)
}

type recordingRunner struct {
	store    *memory.Store
	calls    []model.Variant
	games    []int64
	indexes  []int
	failWith error
}

func (r *recordingRunner) RunVariant(ctx context.Context, v model.Variant) ([]model.RunMetric, error) {
	r.calls = append(r.calls, v)
	n, _ := r.store.CountGames(ctx)
	r.games = append(r.games, n)
	idx, _ := r.store.ListIndexes(ctx)
	r.indexes = append(r.indexes, len(idx))
	return nil, r.failWith
}

func TestFullRun_StepOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedPipelineRaw(t, store)
	defs := []model.IndexDef{{Name: "idx_games_avg", Table: "games", Columns: "avg_rating"}}
	_, err := store.CreateIndexes(ctx, defs)
	require.NoError(t, err)

	runner := &recordingRunner{store: store}
	reported := false
	fr := NewFullRun(store, defs, newTestPipeline(store), runner, func(ctx context.Context) error {
		reported = true
		return nil
	}, quietLogger())
	require.NoError(t, fr.Run(ctx))

	assert.Equal(t, []model.Variant{model.VariantBaseline, model.VariantOptimized}, runner.calls)
	assert.Equal(t, []int64{0, 1}, runner.games)
	assert.Equal(t, []int{0, 1}, runner.indexes)
	assert.True(t, reported)
}

func TestFullRun_StopsOnFailure(t *testing.T) {
	store := memory.NewStore()
	runner := &recordingRunner{store: store, failWith: errors.New("query timeout")}
	reported := false
	fr := NewFullRun(store, nil, newTestPipeline(store), runner, func(ctx context.Context) error {
		reported = true
		return nil
	}, quietLogger())

	err := fr.Run(context.Background())
	assert.ErrorContains(t, err, "query timeout")
	assert.Equal(t, []model.Variant{model.VariantBaseline}, runner.calls)
	assert.False(t, reported)
}
