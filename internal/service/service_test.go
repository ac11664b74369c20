package service

import (
	"context"
	"io"
	"testing"

	"ViewBench/internal/config"
	"ViewBench/internal/model"
	"ViewBench/internal/repository/memory"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var testETL = config.ETLConfig{
	BatchSize:              2,
	ViewBatchSize:          2,
	ProgressEvery:          1,
	ViewParallelism:        2,
	MinValidYear:           1000,
	GamesCollection:        "games_raw",
	DesignersCollection:    "designers_raw",
	PublishersCollection:   "publishers_raw",
	DistributionCollection: "ratings_distribution_raw",
}

var testQueries = config.QueryConfig{
	QualityThreshold: 8,
	MechanicsLimit:   50,
	ThemesLimit:      10,
	ThemeBuckets:     []int{0, 6, 11, 1000},
	PairMinRatings:   0,
	PairsLimit:       20,
	RanksLimit:       10,
	PctThreshold:     8,
}

func fp(v float64) *float64 { return &v }
func ip(v int) *int         { return &v }

func seedRaw(t *testing.T, store *memory.Store, collection string, docs ...map[string]any) {
	t.Helper()
	_, err := store.InsertRaw(context.Background(), collection, docs)
	require.NoError(t, err)
}

func seedGames(t *testing.T, store *memory.Store, games ...*model.Game) {
	t.Helper()
	_, err := store.UpsertGames(context.Background(), games)
	require.NoError(t, err)
}
