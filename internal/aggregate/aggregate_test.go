package aggregate

import (
	"testing"

	"ViewBench/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(v float64) *float64 { return &v }
func ip(v int) *int         { return &v }

func TestCategoryReducer_QualityThreshold(t *testing.T) {
	r := NewCategoryReducer(fp(8))
	hit := &model.Game{ID: "42", AvgRating: fp(8.5), Mechanics: []string{"Drafting", "Auction"}}
	miss := &model.Game{ID: "43", AvgRating: fp(7.9), Mechanics: []string{"Drafting", "Dice"}}
	r.Observe(hit, hit.Mechanics)
	r.Observe(miss, miss.Mechanics)

	rows := r.Results()
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Contains(t, []string{"Auction", "Drafting"}, row.Label)
		assert.Equal(t, int64(1), row.GamesCount)
		require.NotNil(t, row.AvgAvgRating)
		assert.InDelta(t, 8.5, *row.AvgAvgRating, 1e-9)
	}
	assert.Equal(t, "Auction", rows[0].Label, "并列时按标签升序")
}

func TestCategoryReducer_FallbackAverages(t *testing.T) {
	r := NewCategoryReducer(nil)
	a := &model.Game{ID: "1", BayesAvg: fp(6), StdDev: fp(1.5), Popularity: model.Popularity{NumOwned: 10, NumRatings: 3}, Themes: []string{"Space"}}
	b := &model.Game{ID: "2", AvgRating: fp(8), Popularity: model.Popularity{NumOwned: 5, NumRatings: 1}, Themes: []string{"Space", "Space"}}
	c := &model.Game{ID: "3", Themes: []string{"Space"}}
	for _, g := range []*model.Game{a, b, c} {
		r.Observe(g, g.Themes)
	}
	rows := r.Results()
	require.Len(t, rows, 1)
	s := rows[0]
	assert.Equal(t, int64(3), s.GamesCount, "同一游戏重复标签只计一次")
	assert.Equal(t, int64(2), s.RatingCount)
	assert.InDelta(t, 7.0, *s.AvgAvgRating, 1e-9)
	assert.InDelta(t, 7.0, *s.AvgBayes, 1e-9)
	assert.Equal(t, int64(15), s.SumNumOwned)
	assert.Equal(t, int64(4), s.SumNumRatings)
	assert.InDelta(t, 0.5, s.AvgStdDev, 1e-9)
}

func TestCategoryReducer_NoRatingsGivesNilAverage(t *testing.T) {
	r := NewCategoryReducer(nil)
	g := &model.Game{ID: "1"}
	r.Observe(g, []string{"Solo"})
	rows := r.Results()
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].AvgAvgRating)
	assert.Nil(t, rows[0].AvgBayes)
}

func TestPairReducer(t *testing.T) {
	r := NewPairReducer()
	r.Observe(&model.Game{ID: "1", AvgRating: fp(7), Designers: []string{"Alice", "Bob"}, Publishers: []string{"P1"}, Popularity: model.Popularity{NumRatings: 400}})
	r.Observe(&model.Game{ID: "2", AvgRating: fp(9), Designers: []string{"Alice"}, Publishers: []string{"P1", "P2"}, Popularity: model.Popularity{NumRatings: 200}})
	r.Observe(&model.Game{ID: "3", Designers: []string{"Alice"}, Publishers: []string{}})

	rows := r.Results()
	require.Len(t, rows, 3)
	assert.Equal(t, "Alice", rows[0].Designer)
	assert.Equal(t, "P1", rows[0].Publisher)
	assert.Equal(t, int64(2), rows[0].GamesCount)
	assert.Equal(t, int64(600), rows[0].SumNumRatings)
	assert.InDelta(t, 8.0, *rows[0].AvgRating, 1e-9)
	assert.Equal(t, "Alice", rows[1].Designer)
	assert.Equal(t, "P2", rows[1].Publisher)
	assert.Equal(t, "Bob", rows[2].Designer)

	filtered := FilterPairs(rows, model.PairParams{MinRatings: 400, Limit: 10})
	require.Len(t, filtered, 2)
	assert.Equal(t, "Bob", filtered[1].Designer)
}

func TestYearReducer(t *testing.T) {
	r := NewYearReducer(1000)
	r.Observe(&model.Game{ID: "1", Year: ip(2001), AvgRating: fp(7), Popularity: model.Popularity{NumOwned: 3}})
	r.Observe(&model.Game{ID: "2", Year: ip(2001), BayesAvg: fp(6), Popularity: model.Popularity{NumOwned: 4}})
	r.Observe(&model.Game{ID: "3", Year: ip(1999)})
	r.Observe(&model.Game{ID: "4", Year: ip(0), AvgRating: fp(1)})
	r.Observe(&model.Game{ID: "5"})

	rows := r.Results()
	require.Len(t, rows, 2)
	assert.Equal(t, 1999, rows[0].Year)
	assert.Nil(t, rows[0].AvgRating)
	assert.Equal(t, 2001, rows[1].Year)
	assert.Equal(t, int64(2), rows[1].Count)
	assert.Equal(t, int64(7), rows[1].SumOwned)
	assert.InDelta(t, 6.5, *rows[1].AvgRating, 1e-9)
}

func TestBuildThemeReport(t *testing.T) {
	games := []*model.Game{
		{ID: "a", Themes: []string{"x", "y"}, AvgRating: fp(6)},
		{ID: "b", Themes: []string{"x", "y"}, AvgRating: fp(7)},
		{ID: "c", Themes: []string{"x", "y"}},
		{ID: "d", Themes: []string{}},
		{ID: "e", Themes: []string{"1", "2", "3", "4", "5", "6", "7"}},
	}
	rows := make([]model.ThemeCountRank, 0, len(games))
	for _, g := range games {
		rows = append(rows, ThemeCount(g))
	}
	rep := BuildThemeReport(rows, 3, []int{0, 6, 11, 1000})
	require.Len(t, rep.Top, 3)
	assert.Equal(t, []string{"e", "b", "a"}, []string{rep.Top[0].ID, rep.Top[1].ID, rep.Top[2].ID})
	assert.InDelta(t, 11.0/3.0, *rep.AvgThemes, 1e-9)
	assert.Equal(t, []model.ThemeBucket{{Lower: 0, Count: 4}, {Lower: 6, Count: 1}}, rep.Buckets)

	empty := BuildThemeReport(nil, 3, []int{0, 6})
	assert.Nil(t, empty.AvgThemes)
	assert.Empty(t, empty.Top)
	assert.Empty(t, empty.Buckets)
}

func TestBucketOf_Other(t *testing.T) {
	_, ok := BucketOf(1000, []int{0, 6, 11, 1000})
	assert.False(t, ok)
	rep := BuildThemeReport([]model.ThemeCountRank{{ID: "x", ThemesCount: 2000}}, 1, []int{0, 6, 11, 1000})
	assert.Equal(t, []model.ThemeBucket{{Other: true, Count: 1}}, rep.Buckets)
}

func TestDenseRank_TiesShareRank(t *testing.T) {
	ranked := DenseRank([]Scored{{ID: "1", Value: 100}, {ID: "2", Value: 100}, {ID: "3", Value: 50}})
	got := map[string]int64{}
	for _, r := range ranked {
		got[r.ID] = r.Rank
	}
	assert.Equal(t, map[string]int64{"1": 1, "2": 1, "3": 2}, got)
}

func TestPctAtOrAbove(t *testing.T) {
	pct := PctAtOrAbove(map[string]float64{"7": 10, "8": 20, "9.5": 10, "other": 10}, 8)
	require.NotNil(t, pct)
	assert.InDelta(t, 60.0, *pct, 1e-9)

	assert.Nil(t, PctAtOrAbove(nil, 8))
	assert.Nil(t, PctAtOrAbove(map[string]float64{"8": 0}, 8))
}

func TestBuildRanks_PopularityKeptWithoutQuality(t *testing.T) {
	sources := []model.RankSource{
		{ID: "1", Name: "A", BayesAvg: fp(7.5), NumOwned: 100},
		{ID: "2", Name: "B", BayesAvg: fp(7.5), NumOwned: 100},
		{ID: "3", Name: "C", NumOwned: 50, Distribution: map[string]float64{"8": 1, "2": 1}},
	}
	quality, popularity := BuildRanks(sources, 8)
	require.Len(t, quality, 2)
	require.Len(t, popularity, 3)

	merged := MergeRanks(quality, popularity)
	require.Len(t, merged, 3)
	byID := map[string]model.RankEntry{}
	for _, e := range merged {
		byID[e.ID] = e
	}
	assert.Equal(t, int64(1), *byID["1"].RankQuality)
	assert.Equal(t, int64(1), *byID["2"].RankQuality)
	assert.Equal(t, int64(1), *byID["2"].RankPopularity)
	assert.Nil(t, byID["3"].RankQuality)
	assert.Equal(t, int64(2), *byID["3"].RankPopularity)
	assert.InDelta(t, 50.0, *byID["3"].PctGE8, 1e-9)

	top := TopRanks(merged, 10)
	require.Len(t, top, 2)
	assert.Equal(t, "1", top[0].ID)
}
