package relation

import (
	"context"
	"errors"
	"io"
	"testing"

	"ViewBench/internal/model"
	"ViewBench/internal/repository/memory"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestBuild_AliasesShareNames(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	_, err := store.InsertRaw(ctx, "designers_raw", []map[string]any{
		{"gameId": "1", "name": "Alice"},
		{"BGGId": float64(1), "name": "Bob"},
		{"BGGId": "2", "Designer": "Carol"},
		{"BGGId": "2", "name": ""},
	})
	require.NoError(t, err)

	ix, err := Build(ctx, store, "designers_raw", DesignerNameFields, 2, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, ix.Lookup("1"))
	assert.Equal(t, []string{"Carol"}, ix.Lookup("2"))
	assert.Equal(t, 4, ix.Rows())
}

func TestBuild_AbsentCollectionDegrades(t *testing.T) {
	ix, err := Build(context.Background(), memory.NewStore(), "publishers_raw", PublisherNameFields, 100, quietLogger())
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrSourceAbsent))
	require.NotNil(t, ix)
	assert.Empty(t, ix.Lookup("1"))
}

func TestIndex_LookupFirstNonEmptyAlias(t *testing.T) {
	ix := NewIndex()
	ix.Add([]string{"a"}, "X")
	ix.Add([]string{"b"}, "Y", "Z")
	assert.Equal(t, []string{"Y", "Z"}, ix.Lookup("missing", "b", "a"))
	assert.Nil(t, ix.Lookup("missing"))

	var nilIx *Index
	assert.Nil(t, nilIx.Lookup("a"))
}

func TestRelationNames_PivotedRow(t *testing.T) {
	names := RelationNames(map[string]any{
		"BGGId":         float64(7),
		"Uwe Rosenberg": float64(1),
		"Reiner Knizia": float64(0),
		"Alan R. Moon":  float64(1),
	}, DesignerNameFields)
	assert.Equal(t, []string{"Alan R. Moon", "Uwe Rosenberg"}, names)
}

func TestExtractDistribution(t *testing.T) {
	nested := ExtractDistribution(map[string]any{"gameId": "1", "distribution": map[string]any{"8": float64(3), "9": "2"}})
	assert.Equal(t, map[string]float64{"8": 3, "9": 2}, nested)

	flat := ExtractDistribution(map[string]any{"BGGId": float64(1), "7": float64(4), "10": float64(1), "label": "x"})
	assert.Equal(t, map[string]float64{"7": 4, "10": 1}, flat)

	total := Total(flat)
	require.NotNil(t, total)
	assert.InDelta(t, 5.0, *total, 1e-9)
	assert.Nil(t, Total(nil))
}

func TestBuildDistribution(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	_, err := store.InsertRaw(ctx, "ratings_distribution_raw", []map[string]any{
		{"BGGId": "5", "ratingsDistribution": map[string]any{"8": float64(1)}},
		{"BGGId": "5", "ratingsDistribution": map[string]any{"1": float64(1)}},
	})
	require.NoError(t, err)

	ix, err := BuildDistribution(ctx, store, "ratings_distribution_raw", 10, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"8": 1}, ix.Lookup("x", "5"))
}
