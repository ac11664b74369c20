package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ViewBench/internal/model"
	"ViewBench/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(t *testing.T, store *memory.Store) string {
	t.Helper()
	var games []*model.Game
	require.NoError(t, store.StreamGames(context.Background(), 100, func(b []*model.Game) error {
		games = append(games, b...)
		return nil
	}))
	b, err := json.Marshal(games)
	require.NoError(t, err)
	return string(b)
}

func TestMaterializer_EnrichesFromRelations(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedRaw(t, store, "games_raw",
		map[string]any{"BGGId": 1.0, "Name": "Alpha", "designers": []any{}},
		map[string]any{"BGGId": 2.0, "Name": "Beta", "designers": []any{"Own Designer"}},
		map[string]any{"BGGId": 3.0, "Name": "Gamma"},
	)
	seedRaw(t, store, "designers_raw",
		map[string]any{"BGGId": 1.0, "name": "Knizia"},
		map[string]any{"BGGId": 2.0, "name": "Ignored"},
	)
	seedRaw(t, store, "ratings_distribution_raw",
		map[string]any{"BGGId": 1.0, "distribution": map[string]any{"6": 1.0, "8": 3.0}},
	)

	st, err := NewMaterializer(store, store, testETL, quietLogger()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Processed)
	assert.Equal(t, int64(3), st.Written)
	assert.Equal(t, int64(1), st.DesignersFilled)
	assert.Equal(t, int64(0), st.PublishersFilled)
	assert.Equal(t, int64(1), st.WithDistribution)

	alpha, ok := store.Game("1")
	require.True(t, ok)
	assert.Equal(t, []string{"Knizia"}, alpha.Designers)
	require.NotNil(t, alpha.RatingsTotal)
	assert.Equal(t, 4.0, *alpha.RatingsTotal)

	beta, _ := store.Game("2")
	assert.Equal(t, []string{"Own Designer"}, beta.Designers)
	gamma, _ := store.Game("3")
	assert.Empty(t, gamma.Designers)
	assert.Nil(t, gamma.RatingsTotal)
}

func TestMaterializer_ReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedRaw(t, store, "games_raw",
		map[string]any{"BGGId": 1.0, "Name": "Alpha", "AvgRating": 8.2, "mechanics": []any{"Dice Rolling", "Dice Rolling"}},
		map[string]any{"BGGId": 2.0, "Name": "Beta", "YearPublished": "1990"},
	)
	m := NewMaterializer(store, store, testETL, quietLogger())
	_, err := m.Run(ctx)
	require.NoError(t, err)
	first := snapshot(t, store)
	_, err = m.Run(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, first, snapshot(t, store))
}

func TestMaterializer_DuplicateIDLastWins(t *testing.T) {
	store := memory.NewStore()
	seedRaw(t, store, "games_raw",
		map[string]any{"BGGId": 7.0, "Name": "Old"},
		map[string]any{"BGGId": 7.0, "Name": "New"},
	)
	_, err := NewMaterializer(store, store, testETL, quietLogger()).Run(context.Background())
	require.NoError(t, err)
	g, ok := store.Game("7")
	require.True(t, ok)
	assert.Equal(t, "New", g.Name)
}

func TestMaterializer_MissingPrimaryCollection(t *testing.T) {
	st, err := NewMaterializer(memory.NewStore(), memory.NewStore(), testETL, quietLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Processed)
}

func TestMaterializer_BatchFailureIsFatal(t *testing.T) {
	store := memory.NewStore()
	seedRaw(t, store, "games_raw",
		map[string]any{"BGGId": 1.0, "Name": "Alpha"},
		map[string]any{"BGGId": 2.0, "Name": "Beta"},
		map[string]any{"BGGId": 3.0, "Name": "Gamma"},
	)
	store.FailGame("2", errors.New("row rejected"))

	st, err := NewMaterializer(store, store, testETL, quietLogger()).Run(context.Background())
	require.Error(t, err)
	var bwe *model.BatchWriteError
	require.True(t, errors.As(err, &bwe))
	assert.Equal(t, []string{"2"}, bwe.Result.Failed)
	// 第一批中的兄弟行已写入，第二批未执行
	assert.Equal(t, int64(1), st.Written)
	_, ok := store.Game("3")
	assert.False(t, ok)
}

func TestMaterializer_CleanInvalidYears(t *testing.T) {
	store := memory.NewStore()
	seedGames(t, store,
		&model.Game{ID: "a", Year: ip(0)},
		&model.Game{ID: "b", Year: ip(1995)},
		&model.Game{ID: "c"},
	)
	n, err := NewMaterializer(store, store, testETL, quietLogger()).CleanInvalidYears(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, ok := store.Game("a")
	assert.False(t, ok)
	_, ok = store.Game("c")
	assert.True(t, ok)
}
