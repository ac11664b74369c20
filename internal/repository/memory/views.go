package memory

import (
	"context"
	"fmt"
	"sort"

	"ViewBench/internal/aggregate"
	"ViewBench/internal/model"
)

// ---------------- LiveAggregator ----------------

func (s *Store) CategoryStatsLive(ctx context.Context, p model.CategoryParams) ([]model.CategoryStat, error) {
	r := aggregate.NewCategoryReducer(p.MinRating)
	for _, g := range s.sortedGames() {
		switch p.Dimension {
		case "themes":
			r.Observe(g, g.Themes)
		default:
			r.Observe(g, g.Mechanics)
		}
	}
	return aggregate.Limit(r.Results(), p.Limit), nil
}

func (s *Store) ThemeReportLive(ctx context.Context, limit int, bounds []int) (*model.ThemeReport, error) {
	games := s.sortedGames()
	rows := make([]model.ThemeCountRank, 0, len(games))
	for _, g := range games {
		rows = append(rows, aggregate.ThemeCount(g))
	}
	return aggregate.BuildThemeReport(rows, limit, bounds), nil
}

func (s *Store) PairStatsLive(ctx context.Context, p model.PairParams) ([]model.PairStat, error) {
	r := aggregate.NewPairReducer()
	for _, g := range s.sortedGames() {
		r.Observe(g)
	}
	return aggregate.FilterPairs(r.Results(), p), nil
}

func (s *Store) YearlyStatsLive(ctx context.Context, minYear int) ([]model.YearlyStat, error) {
	r := aggregate.NewYearReducer(minYear)
	for _, g := range s.sortedGames() {
		r.Observe(g)
	}
	return r.Results(), nil
}

func (s *Store) RankingsLive(ctx context.Context, limit int, pctThreshold float64) ([]model.RankEntry, error) {
	games := s.sortedGames()
	sources := make([]model.RankSource, 0, len(games))
	for _, g := range games {
		sources = append(sources, model.RankSource{
			ID: g.ID, Name: g.Name, BayesAvg: g.BayesAvg, NumOwned: g.Popularity.NumOwned, Distribution: g.RatingsDistribution,
		})
	}
	quality, popularity := aggregate.BuildRanks(sources, pctThreshold)
	return aggregate.TopRanks(aggregate.MergeRanks(quality, popularity), limit), nil
}

// ---------------- ViewStore ----------------

func (s *Store) ViewHasRows(ctx context.Context, view string) (bool, error) {
	n, err := s.CountView(ctx, view)
	return n > 0, err
}

func (s *Store) CountView(ctx context.Context, view string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch view {
	case model.ViewMechanicStats, model.ViewThemeStats, model.ViewRatedMechanicStats:
		return int64(len(s.category[view])), nil
	case model.ViewPairStats:
		return int64(len(s.pairs)), nil
	case model.ViewYearlyStats:
		return int64(len(s.years)), nil
	case model.ViewThemeCountRank:
		return int64(len(s.themes)), nil
	case model.ViewRankCache:
		return int64(len(s.ranks)), nil
	}
	return 0, fmt.Errorf("未知视图: %s", view)
}

func (s *Store) ClearView(ctx context.Context, view string) (int64, error) {
	n, err := s.CountView(ctx, view)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch view {
	case model.ViewMechanicStats, model.ViewThemeStats, model.ViewRatedMechanicStats:
		delete(s.category, view)
	case model.ViewPairStats:
		s.pairs = make(map[string]model.PairStat)
	case model.ViewYearlyStats:
		s.years = make(map[int]model.YearlyStat)
	case model.ViewThemeCountRank:
		s.themes = make(map[string]model.ThemeCountRank)
	case model.ViewRankCache:
		s.ranks = make(map[string]model.RankEntry)
	}
	return n, nil
}

func (s *Store) UpsertCategoryStats(ctx context.Context, view string, rows []model.CategoryStat) (model.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.category[view]
	if !ok {
		m = make(map[string]model.CategoryStat)
		s.category[view] = m
	}
	for _, r := range rows {
		m[r.Label] = r
	}
	return model.BulkResult{Attempted: len(rows), Written: len(rows)}, nil
}

func (s *Store) UpsertPairStats(ctx context.Context, rows []model.PairStat) (model.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.pairs[r.Key()] = r
	}
	return model.BulkResult{Attempted: len(rows), Written: len(rows)}, nil
}

func (s *Store) UpsertYearlyStats(ctx context.Context, rows []model.YearlyStat) (model.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.years[r.Year] = r
	}
	return model.BulkResult{Attempted: len(rows), Written: len(rows)}, nil
}

func (s *Store) UpsertThemeCounts(ctx context.Context, rows []model.ThemeCountRank) (model.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.themes[r.ID] = r
	}
	return model.BulkResult{Attempted: len(rows), Written: len(rows)}, nil
}

func (s *Store) UpsertQualityRanks(ctx context.Context, rows []model.RankEntry) (model.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		cur := s.ranks[r.ID]
		cur.ID, cur.Name, cur.RankQuality, cur.PctGE8 = r.ID, r.Name, r.RankQuality, r.PctGE8
		s.ranks[r.ID] = cur
	}
	return model.BulkResult{Attempted: len(rows), Written: len(rows)}, nil
}

func (s *Store) UpsertPopularityRanks(ctx context.Context, rows []model.RankEntry) (model.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		cur, ok := s.ranks[r.ID]
		if !ok {
			cur = model.RankEntry{ID: r.ID, Name: r.Name, PctGE8: r.PctGE8}
		}
		cur.RankPopularity = r.RankPopularity
		s.ranks[r.ID] = cur
	}
	return model.BulkResult{Attempted: len(rows), Written: len(rows)}, nil
}

func (s *Store) TopCategoryStats(ctx context.Context, view string, limit int) ([]model.CategoryStat, error) {
	s.mu.RLock()
	out := make([]model.CategoryStat, 0, len(s.category[view]))
	for _, r := range s.category[view] {
		out = append(out, r)
	}
	s.mu.RUnlock()
	aggregate.SortCategoryStats(out)
	return aggregate.Limit(out, limit), nil
}

func (s *Store) ThemeReport(ctx context.Context, limit int, bounds []int) (*model.ThemeReport, error) {
	s.mu.RLock()
	rows := make([]model.ThemeCountRank, 0, len(s.themes))
	for _, r := range s.themes {
		rows = append(rows, r)
	}
	s.mu.RUnlock()
	return aggregate.BuildThemeReport(rows, limit, bounds), nil
}

func (s *Store) TopPairStats(ctx context.Context, p model.PairParams) ([]model.PairStat, error) {
	s.mu.RLock()
	out := make([]model.PairStat, 0, len(s.pairs))
	for _, r := range s.pairs {
		out = append(out, r)
	}
	s.mu.RUnlock()
	aggregate.SortPairStats(out)
	return aggregate.FilterPairs(out, p), nil
}

func (s *Store) YearlyStats(ctx context.Context) ([]model.YearlyStat, error) {
	s.mu.RLock()
	out := make([]model.YearlyStat, 0, len(s.years))
	for _, r := range s.years {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

func (s *Store) TopRanks(ctx context.Context, limit int) ([]model.RankEntry, error) {
	s.mu.RLock()
	out := make([]model.RankEntry, 0, len(s.ranks))
	for _, r := range s.ranks {
		out = append(out, r)
	}
	s.mu.RUnlock()
	return aggregate.TopRanks(out, limit), nil
}
