package aggregate

import (
	"sort"

	"ViewBench/internal/model"
	"ViewBench/internal/normalize"
)

// PairReducer 设计师×出版商笛卡尔积统计；平均评分只在读出时由 sum/count 计算
type PairReducer struct {
	acc map[string]*model.PairStat
}

func NewPairReducer() *PairReducer {
	return &PairReducer{acc: make(map[string]*model.PairStat)}
}

// Observe 每个 (designer, publisher) 组合贡献一次
func (r *PairReducer) Observe(g *model.Game) {
	designers := normalize.Dedupe(g.Designers)
	publishers := normalize.Dedupe(g.Publishers)
	for _, d := range designers {
		for _, p := range publishers {
			key := d + "||" + p
			s, ok := r.acc[key]
			if !ok {
				s = &model.PairStat{Designer: d, Publisher: p}
				r.acc[key] = s
			}
			s.GamesCount++
			s.SumNumRatings += g.Popularity.NumRatings
			if g.AvgRating != nil {
				s.AvgSum += *g.AvgRating
				s.AvgCount++
			}
		}
	}
}

func (r *PairReducer) Len() int { return len(r.acc) }

// Results 全部组合，已排序
func (r *PairReducer) Results() []model.PairStat {
	out := make([]model.PairStat, 0, len(r.acc))
	for _, s := range r.acc {
		out = append(out, FinishPair(*s))
	}
	SortPairStats(out)
	return out
}

// FinishPair 由 sum/count 计算平均评分
func FinishPair(s model.PairStat) model.PairStat {
	s.AvgRating = ratio(s.AvgSum, s.AvgCount)
	return s
}

// SortPairStats gamesCount 降序，再按设计师、出版商升序
func SortPairStats(rows []model.PairStat) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.GamesCount != b.GamesCount {
			return a.GamesCount > b.GamesCount
		}
		if a.Designer != b.Designer {
			return a.Designer < b.Designer
		}
		return a.Publisher < b.Publisher
	})
}

// FilterPairs 保留 sumNumRatings >= MinRatings 的组合并截断（输入须已排序）
func FilterPairs(rows []model.PairStat, p model.PairParams) []model.PairStat {
	out := make([]model.PairStat, 0)
	for _, r := range rows {
		if r.SumNumRatings >= p.MinRatings {
			out = append(out, r)
		}
	}
	return Limit(out, p.Limit)
}
