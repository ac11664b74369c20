package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ViewBench/internal/config"
	"ViewBench/internal/model"
	"ViewBench/internal/query"
	"ViewBench/internal/repository/memory"
	"ViewBench/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var params = config.QueryConfig{
	QualityThreshold: 8, MechanicsLimit: 50, ThemesLimit: 10, ThemeBuckets: []int{0, 6, 11, 1000},
	PairMinRatings: 0, PairsLimit: 20, RanksLimit: 10, PctThreshold: 8,
}

var etl = config.ETLConfig{
	BatchSize: 10, ViewBatchSize: 10, ProgressEvery: 100, ViewParallelism: 2, MinValidYear: 1000,
	GamesCollection: "games_raw", DesignersCollection: "designers_raw",
	PublishersCollection: "publishers_raw", DistributionCollection: "ratings_distribution_raw",
}

func newTestRouter(t *testing.T) (*gin.Engine, *memory.Store, *service.Pipeline) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := memory.NewStore()
	_, err := store.InsertRaw(context.Background(), "games_raw", []map[string]any{
		{"BGGId": 1.0, "Name": "Alpha", "YearPublished": 1995.0, "AvgRating": 8.5, "BayesAvgRating": 7.9,
			"NumOwned": 100.0, "mechanics": []any{"Dice Rolling"}, "designers": []any{"Knizia"}, "publishers": []any{"KOSMOS"}},
		{"BGGId": 2.0, "Name": "Beta", "YearPublished": 2001.0, "AvgRating": 6.0, "BayesAvgRating": 6.1,
			"NumOwned": 300.0, "mechanics": []any{"Trading"}},
	})
	require.NoError(t, err)

	catalog := query.NewCatalog(query.Deps{
		Baseline: store, Indexed: store, Views: store, Params: params, MinYear: 1000, Logger: logger,
	})
	pipeline := service.NewPipeline(
		service.NewMaterializer(store, store, etl, logger),
		service.NewViewService(store, store, etl, params, logger),
		logger)
	h := NewHandler(catalog, store, store, pipeline, params, logger)
	return NewRouter(h, prometheus.NewRegistry(), gin.TestMode), store, pipeline
}

func do(t *testing.T, r http.Handler, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestListQueries(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w, body := do(t, r, http.MethodGet, "/api/queries")
	require.Equal(t, http.StatusOK, w.Code)
	qs := body["queries"].([]any)
	require.Len(t, qs, 5)
	first := qs[0].(map[string]any)
	assert.Equal(t, query.Q1, first["id"])
	assert.Equal(t, "none", first["indexSets"].(map[string]any)["baseline"])
}

func TestRunQuery_FallbackThenView(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w, _ := do(t, r, http.MethodPost, "/api/etl/games")
	require.Equal(t, http.StatusOK, w.Code)

	w, body := do(t, r, http.MethodGet, "/api/queries/"+query.Q4+"?variant=optimized")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, query.SourceFallback, body["outcome"].(map[string]any)["source"])

	w, body = do(t, r, http.MethodPost, "/api/etl/views")
	require.Equal(t, http.StatusOK, w.Code, body)

	w, body = do(t, r, http.MethodGet, "/api/queries/"+query.Q4+"?variant=optimized")
	require.Equal(t, http.StatusOK, w.Code)
	out := body["outcome"].(map[string]any)
	assert.Equal(t, query.SourceView, out["source"])
	assert.Equal(t, float64(2), out["rows"])

	w, body = do(t, r, http.MethodGet, "/api/queries/"+query.Q4+"?variant=baseline")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, query.SourceLive, body["outcome"].(map[string]any)["source"])
}

func TestRunQuery_BadInput(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w, _ := do(t, r, http.MethodGet, "/api/queries/"+query.Q1+"?variant=fast")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(t, r, http.MethodGet, "/api/queries/Q9")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetView(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w, _ := do(t, r, http.MethodGet, "/api/views/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)

	do(t, r, http.MethodPost, "/api/etl/all")
	w, body := do(t, r, http.MethodGet, "/api/views/"+model.ViewMechanicStats)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), body["count"])
	rows := body["rows"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, "Dice Rolling", rows[0].(map[string]any)["label"])
}

func TestTriggerETL_Validation(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w, _ := do(t, r, http.MethodPost, "/api/etl/everything")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerETL_ConflictWhileBusy(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := memory.NewStore()
	release := make(chan struct{})
	started := make(chan struct{})
	blocking := &blockingGames{Store: store, started: started, release: release}
	pipeline := service.NewPipeline(
		service.NewMaterializer(store, store, etl, logger),
		service.NewViewService(blocking, store, etl, params, logger),
		logger)
	catalog := query.NewCatalog(query.Deps{Baseline: store, Indexed: store, Views: store, Params: params, MinYear: 1000})
	r := NewRouter(NewHandler(catalog, store, store, pipeline, params, logger), nil, gin.TestMode)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = pipeline.Run(context.Background(), service.StageViews)
	}()
	<-started

	w, _ := do(t, r, http.MethodPost, "/api/etl/"+service.StageViews)
	assert.Equal(t, http.StatusConflict, w.Code)

	close(release)
	<-done
	w, _ = do(t, r, http.MethodPost, "/api/etl/"+service.StageCleanYears)
	assert.Equal(t, http.StatusOK, w.Code)
}

type blockingGames struct {
	*memory.Store
	started chan struct{}
	release chan struct{}
}

func (b *blockingGames) StreamGames(ctx context.Context, batchSize int, fn func([]*model.Game) error) error {
	close(b.started)
	select {
	case <-b.release:
	case <-time.After(5 * time.Second):
	}
	return b.Store.StreamGames(ctx, batchSize, fn)
}

func TestGetReportAndMetrics(t *testing.T) {
	r, store, _ := newTestRouter(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.InsertMetric(ctx, &model.RunMetric{TS: now, QueryID: query.Q1, Variant: model.VariantBaseline, IndexSet: "none", DurationMs: 10}))
	require.NoError(t, store.InsertMetric(ctx, &model.RunMetric{TS: now, QueryID: query.Q1, Variant: model.VariantOptimized, IndexSet: "mechanic_stats_rated/idx_q1_mech", DurationMs: 4}))

	w, body := do(t, r, http.MethodGet, "/api/report")
	require.Equal(t, http.StatusOK, w.Code)
	rows := body["rows"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "2.50", row["speedup"])
	assert.Equal(t, "mechanic_stats_rated/idx_q1_mech", row["indexSet"])

	w, _ = do(t, r, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}
