package aggregate

import (
	"sort"

	"ViewBench/internal/model"
)

// YearReducer 按年份聚合，只统计 year >= minYear 的游戏
type YearReducer struct {
	minYear int
	acc     map[int]*model.YearlyStat
}

func NewYearReducer(minYear int) *YearReducer {
	return &YearReducer{minYear: minYear, acc: make(map[int]*model.YearlyStat)}
}

func (r *YearReducer) Observe(g *model.Game) {
	if g.Year == nil || *g.Year < r.minYear {
		return
	}
	s, ok := r.acc[*g.Year]
	if !ok {
		s = &model.YearlyStat{Year: *g.Year}
		r.acc[*g.Year] = s
	}
	s.Count++
	if rating := g.RatingOrBayes(); rating != nil {
		s.RatingSum += *rating
		s.RatingCount++
	}
	s.SumOwned += g.Popularity.NumOwned
}

func (r *YearReducer) Len() int { return len(r.acc) }

// Results 按年份升序
func (r *YearReducer) Results() []model.YearlyStat {
	out := make([]model.YearlyStat, 0, len(r.acc))
	for _, s := range r.acc {
		out = append(out, FinishYear(*s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

func FinishYear(s model.YearlyStat) model.YearlyStat {
	s.AvgRating = ratio(s.RatingSum, s.RatingCount)
	return s
}
