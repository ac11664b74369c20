package aggregate

import (
	"sort"
	"strconv"
	"strings"

	"ViewBench/internal/model"
)

// Scored 参与排名的一项
type Scored struct {
	ID    string
	Value float64
}

// Ranked 排名结果
type Ranked struct {
	Scored
	Rank int64
}

// DenseRank 按 Value 降序（同值按 ID 升序）排列并分配 dense rank：
// 第一项为 1，只有值变化时才加 1，并列共享名次且不留空档。
func DenseRank(items []Scored) []Ranked {
	sorted := append([]Scored(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value > sorted[j].Value
		}
		return sorted[i].ID < sorted[j].ID
	})
	out := make([]Ranked, len(sorted))
	var rank int64
	for i, s := range sorted {
		if i == 0 || s.Value != sorted[i-1].Value {
			rank++
		}
		out[i] = Ranked{Scored: s, Rank: rank}
	}
	return out
}

// PctAtOrAbove 评分分布中标签数值 >= threshold 的人数占比（百分比）。
// 分母为全部桶之和；分布缺失或总数为 0 时返回 nil。
func PctAtOrAbove(dist map[string]float64, threshold float64) *float64 {
	if len(dist) == 0 {
		return nil
	}
	var total, keep float64
	for label, n := range dist {
		total += n
		if v, err := strconv.ParseFloat(strings.TrimSpace(label), 64); err == nil && v >= threshold {
			keep += n
		}
	}
	if total == 0 {
		return nil
	}
	pct := keep / total * 100
	return &pct
}

// BuildRanks 两次独立的排名：质量（只含 bayesAvg 非空的游戏）与热度（全部游戏）。
// 两组结果各自携带名称与高分占比，供缓存按 id 合并。
func BuildRanks(sources []model.RankSource, pctThreshold float64) (quality, popularity []model.RankEntry) {
	byID := make(map[string]model.RankSource, len(sources))
	q := make([]Scored, 0, len(sources))
	p := make([]Scored, 0, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
		if s.BayesAvg != nil {
			q = append(q, Scored{ID: s.ID, Value: *s.BayesAvg})
		}
		p = append(p, Scored{ID: s.ID, Value: float64(s.NumOwned)})
	}
	entry := func(id string) model.RankEntry {
		s := byID[id]
		return model.RankEntry{ID: id, Name: s.Name, PctGE8: PctAtOrAbove(s.Distribution, pctThreshold)}
	}
	for _, r := range DenseRank(q) {
		e := entry(r.ID)
		rank := r.Rank
		e.RankQuality = &rank
		quality = append(quality, e)
	}
	for _, r := range DenseRank(p) {
		e := entry(r.ID)
		rank := r.Rank
		e.RankPopularity = &rank
		popularity = append(popularity, e)
	}
	return quality, popularity
}

// MergeRanks 按 id 合并两次排名；热度排名对缺少质量排名的游戏同样插入
func MergeRanks(quality, popularity []model.RankEntry) []model.RankEntry {
	merged := make(map[string]*model.RankEntry, len(quality))
	order := make([]string, 0, len(quality))
	for _, q := range quality {
		e := q
		merged[e.ID] = &e
		order = append(order, e.ID)
	}
	for _, p := range popularity {
		if e, ok := merged[p.ID]; ok {
			e.RankPopularity = p.RankPopularity
			continue
		}
		e := p
		merged[e.ID] = &e
		order = append(order, e.ID)
	}
	out := make([]model.RankEntry, 0, len(order))
	for _, id := range order {
		out = append(out, *merged[id])
	}
	return out
}

// TopRanks 有质量排名的条目，按质量排名升序、id 升序取前 limit 个
func TopRanks(entries []model.RankEntry, limit int) []model.RankEntry {
	out := make([]model.RankEntry, 0, len(entries))
	for _, e := range entries {
		if e.RankQuality != nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if *out[i].RankQuality != *out[j].RankQuality {
			return *out[i].RankQuality < *out[j].RankQuality
		}
		return out[i].ID < out[j].ID
	})
	return Limit(out, limit)
}
