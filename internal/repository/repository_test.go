package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"ViewBench/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestRawRepository_HasRaw(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM raw_documents WHERE collection = $1)")).
		WithArgs("games_raw").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := NewRawRepository(db).HasRaw(context.Background(), "games_raw")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRawRepository_RawCollections(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT collection, COUNT\(\*\) AS n FROM "raw_documents" GROUP BY`).
		WillReturnRows(sqlmock.NewRows([]string{"collection", "n"}).
			AddRow("games_raw", 3).
			AddRow("designers_raw", 2))

	got, err := NewRawRepository(db).RawCollections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"games_raw": 3, "designers_raw": 2}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGameRepository_DeleteInvalidYears(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "games" WHERE year IS NOT NULL AND year < $1`)).
		WithArgs(1000).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := NewGameRepository(db).DeleteInvalidYears(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupeGames_LastWins(t *testing.T) {
	a1 := &model.Game{ID: "a", Name: "first"}
	b := &model.Game{ID: "b"}
	a2 := &model.Game{ID: "a", Name: "second"}
	out := dedupeGames([]*model.Game{a1, b, a2})
	require.Len(t, out, 2)
	assert.Equal(t, "second", out[0].Name)
	assert.Equal(t, "b", out[1].ID)
}

func TestUpsertRows_RetriesRowByRowAfterBatchFailure(t *testing.T) {
	db, mock := newMockDB(t)
	insert := regexp.QuoteMeta(`INSERT INTO "rank_cache"`)
	mock.ExpectExec(insert).WillReturnError(errors.New("batch rejected"))
	mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insert).WillReturnError(errors.New("bad row"))

	q1, q2 := int64(1), int64(2)
	res, err := NewViewRepository(db).UpsertQualityRanks(context.Background(), []model.RankEntry{
		{ID: "a", Name: "A", RankQuality: &q1},
		{ID: "b", Name: "B", RankQuality: &q2},
	})
	require.Error(t, err)
	var bwe *model.BatchWriteError
	require.True(t, errors.As(err, &bwe))
	assert.Equal(t, model.ViewRankCache, bwe.Collection)
	assert.Equal(t, 2, res.Attempted)
	assert.Equal(t, 1, res.Written)
	assert.Equal(t, []string{"b"}, res.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRows_Empty(t *testing.T) {
	db, mock := newMockDB(t)
	res, err := NewViewRepository(db).UpsertPairStats(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, model.BulkResult{}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestViewRepository_UnknownView(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewViewRepository(db)
	_, err := repo.ViewHasRows(context.Background(), "games; DROP TABLE games")
	assert.Error(t, err)
	_, err = repo.UpsertCategoryStats(context.Background(), model.ViewPairStats, []model.CategoryStat{{Label: "x"}})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestViewRepository_ViewHasRowsMissingTable(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`information_schema.tables`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	ok, err := NewViewRepository(db).ViewHasRows(context.Background(), model.ViewRankCache)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestViewRepository_TopRanks(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "rank_cache" WHERE rank_quality IS NOT NULL ORDER BY rank_quality ASC, id ASC LIMIT`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "rank_quality", "rank_popularity", "pct_ge8"}).
			AddRow("g1", "Alpha", 1, 3, 62.5).
			AddRow("g2", "Beta", 2, nil, nil))

	rows, err := NewViewRepository(db).TopRanks(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), *rows[0].RankQuality)
	assert.Equal(t, 62.5, *rows[0].PctGE8)
	assert.Nil(t, rows[1].RankPopularity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLiveAggregator_BaselineDisablesIndexes(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL enable_indexscan = off").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET LOCAL enable_indexonlyscan = off").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET LOCAL enable_bitmapscan = off").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM games\s+WHERE year IS NOT NULL AND year >= \$1`).
		WithArgs(1000).
		WillReturnRows(sqlmock.NewRows([]string{"year", "count", "rating_sum", "rating_count", "sum_owned"}).
			AddRow(1995, 2, 15.0, 2, 30).
			AddRow(2001, 1, 0.0, 0, 5))
	mock.ExpectCommit()

	rows, err := NewLiveAggregator(db, false).YearlyStatsLive(context.Background(), 1000)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].AvgRating)
	assert.Equal(t, 7.5, *rows[0].AvgRating)
	assert.Nil(t, rows[1].AvgRating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLiveAggregator_IndexedSkipsSettings(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`HAVING COALESCE\(SUM\(g.num_ratings\), 0\) >= \$1`).
		WithArgs(int64(500)).
		WillReturnRows(sqlmock.NewRows([]string{"designer", "publisher", "games_count", "sum_num_ratings", "avg_sum", "avg_count"}).
			AddRow("Knizia", "KOSMOS", 2, 900, 15.0, 2))
	mock.ExpectCommit()

	rows, err := NewLiveAggregator(db, true).PairStatsLive(context.Background(), model.PairParams{MinRatings: 500, Limit: 20})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 7.5, *rows[0].AvgRating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetricRepository_ListMetrics(t *testing.T) {
	db, mock := newMockDB(t)
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "run_metrics" ORDER BY ts ASC`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ts", "dataset_version", "query_id", "variant", "index_set", "logic_hash", "ms", "trials", "result_sample"}).
			AddRow("6f1c6a1e-8f34-4a8e-9a53-2a1f0a2b3c4d", ts, "v1", "Q1", "baseline", "none", "sha256:aa", 12.5, 5, []byte(`[{"label":"Dice Rolling"}]`)))

	rows, err := NewMetricRepository(db).ListMetrics(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.VariantBaseline, rows[0].Variant)
	assert.Equal(t, 12.5, rows[0].DurationMs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIndexSQL(t *testing.T) {
	assert.Equal(t,
		`CREATE INDEX IF NOT EXISTS "idx_q1_mech" ON "games" (avg_rating DESC) INCLUDE (mechanics)`,
		createIndexSQL(model.IndexDef{Name: "idx_q1_mech", Table: "games", Columns: "avg_rating DESC", Include: "mechanics"}))
	assert.Equal(t,
		`CREATE INDEX IF NOT EXISTS "idx_q3_designers" ON "games" USING gin (designers)`,
		createIndexSQL(model.IndexDef{Name: "idx_q3_designers", Table: "games", Columns: "designers", Using: "gin"}))
}

func TestThemeReportFromHistogram(t *testing.T) {
	r := themeReport(
		[]model.ThemeCountRank{{ID: "a", ThemesCount: 12}, {ID: "b", ThemesCount: 4}},
		[]themeHistRow{{ThemesCount: 12, N: 1}, {ThemesCount: 4, N: 3}, {ThemesCount: 0, N: 2}, {ThemesCount: 2000, N: 1}},
		[]int{0, 6, 11, 1000})
	require.NotNil(t, r.AvgThemes)
	assert.Equal(t, 8.0, *r.AvgThemes)
	assert.Equal(t, []model.ThemeBucket{{Lower: 0, Count: 5}, {Lower: 11, Count: 1}, {Other: true, Count: 1}}, r.Buckets)
}
