package aggregate

import (
	"sort"

	"ViewBench/internal/model"
	"ViewBench/internal/normalize"
)

// CategoryReducer 按类别标签（机制/主题）累加统计。
// 评分优先取 avgRating、缺失时退回 bayesAvg；bayes 反之；stdDev 缺失按 0 计。
type CategoryReducer struct {
	minRating *float64
	acc       map[string]*model.CategoryStat
}

// NewCategoryReducer minRating 非空时只统计 avgRating 严格大于它的游戏
func NewCategoryReducer(minRating *float64) *CategoryReducer {
	return &CategoryReducer{minRating: minRating, acc: make(map[string]*model.CategoryStat)}
}

// Qualifies 游戏是否满足过滤条件
func (r *CategoryReducer) Qualifies(g *model.Game) bool {
	if r.minRating == nil {
		return true
	}
	return g.AvgRating != nil && *g.AvgRating > *r.minRating
}

// Observe 对游戏的每个标签贡献一次
func (r *CategoryReducer) Observe(g *model.Game, labels []string) {
	if !r.Qualifies(g) {
		return
	}
	rating := g.RatingOrBayes()
	bayes := g.BayesOrRating()
	for _, label := range normalize.Dedupe(labels) {
		s, ok := r.acc[label]
		if !ok {
			s = &model.CategoryStat{Label: label}
			r.acc[label] = s
		}
		s.GamesCount++
		if rating != nil {
			s.RatingSum += *rating
			s.RatingCount++
		}
		if bayes != nil {
			s.BayesSum += *bayes
			s.BayesCount++
		}
		s.SumNumRatings += g.Popularity.NumRatings
		s.SumNumOwned += g.Popularity.NumOwned
		if g.StdDev != nil {
			s.StdDevSum += *g.StdDev
		}
	}
}

// Len 当前类别数
func (r *CategoryReducer) Len() int { return len(r.acc) }

// Results 计算派生平均值，按 gamesCount 降序、标签升序返回
func (r *CategoryReducer) Results() []model.CategoryStat {
	out := make([]model.CategoryStat, 0, len(r.acc))
	for _, s := range r.acc {
		out = append(out, FinishCategory(*s))
	}
	SortCategoryStats(out)
	return out
}

// FinishCategory 由 sum/count 计算平均值
func FinishCategory(s model.CategoryStat) model.CategoryStat {
	s.AvgAvgRating = ratio(s.RatingSum, s.RatingCount)
	s.AvgBayes = ratio(s.BayesSum, s.BayesCount)
	s.AvgStdDev = 0
	if s.GamesCount > 0 {
		s.AvgStdDev = s.StdDevSum / float64(s.GamesCount)
	}
	return s
}

// SortCategoryStats gamesCount 降序，标签升序
func SortCategoryStats(rows []model.CategoryStat) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].GamesCount != rows[j].GamesCount {
			return rows[i].GamesCount > rows[j].GamesCount
		}
		return rows[i].Label < rows[j].Label
	})
}

// Limit 取前 n 项；n <= 0 表示全部
func Limit[T any](rows []T, n int) []T {
	if n <= 0 || len(rows) <= n {
		return rows
	}
	return rows[:n]
}

func ratio(sum float64, count int64) *float64 {
	if count == 0 {
		return nil
	}
	v := sum / float64(count)
	return &v
}
