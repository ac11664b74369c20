package aggregate

import (
	"sort"

	"ViewBench/internal/model"
	"ViewBench/internal/normalize"
)

// ThemeCount 单个游戏的主题数行
func ThemeCount(g *model.Game) model.ThemeCountRank {
	return model.ThemeCountRank{
		ID:          g.ID,
		Name:        g.Name,
		ThemesCount: len(normalize.Dedupe(g.Themes)),
		AvgRating:   g.AvgRating,
		NumOwned:    g.Popularity.NumOwned,
	}
}

// SortThemeCounts themesCount 降序，avgRating 降序（null 最后），id 升序
func SortThemeCounts(rows []model.ThemeCountRank) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.ThemesCount != b.ThemesCount {
			return a.ThemesCount > b.ThemesCount
		}
		if c := compareDescNullsLast(a.AvgRating, b.AvgRating); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
}

// compareDescNullsLast 降序比较，nil 排在最后；返回 -1 表示 a 在前
func compareDescNullsLast(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a > *b:
		return -1
	case *a < *b:
		return 1
	}
	return 0
}

// BucketOf 主题数所在分桶下界；不在任何区间内时 ok 为 false
func BucketOf(v int, bounds []int) (int, bool) {
	for i := 0; i+1 < len(bounds); i++ {
		if v >= bounds[i] && v < bounds[i+1] {
			return bounds[i], true
		}
	}
	return 0, false
}

// BuildThemeReport 由全部主题数行生成 Q2 结果：前 limit 个游戏、它们的平均主题数、全量分桶
func BuildThemeReport(rows []model.ThemeCountRank, limit int, bounds []int) *model.ThemeReport {
	sorted := append([]model.ThemeCountRank(nil), rows...)
	SortThemeCounts(sorted)
	top := Limit(sorted, limit)

	rep := &model.ThemeReport{Top: append([]model.ThemeCountRank{}, top...)}
	if len(top) > 0 {
		var sum int
		for _, r := range top {
			sum += r.ThemesCount
		}
		avg := float64(sum) / float64(len(top))
		rep.AvgThemes = &avg
	}

	counts := make(map[int]int64)
	var other int64
	for _, r := range rows {
		if lower, ok := BucketOf(r.ThemesCount, bounds); ok {
			counts[lower]++
		} else {
			other++
		}
	}
	rep.Buckets = BucketsFromCounts(counts, other, bounds)
	return rep
}

// BucketsFromCounts 只输出非空分桶，按下界升序，越界计数放在最后
func BucketsFromCounts(counts map[int]int64, other int64, bounds []int) []model.ThemeBucket {
	out := []model.ThemeBucket{}
	for i := 0; i+1 < len(bounds); i++ {
		if n := counts[bounds[i]]; n > 0 {
			out = append(out, model.ThemeBucket{Lower: bounds[i], Count: n})
		}
	}
	if other > 0 {
		out = append(out, model.ThemeBucket{Other: true, Count: other})
	}
	return out
}
