package report

import (
	"sort"
	"time"

	"ViewBench/internal/model"
)

// VariantStats 某个查询某种策略的历史指标汇总（每条记录本身已是一次测量的最坏值）
type VariantStats struct {
	Runs        int
	Min         float64
	Max         float64
	IndexSet    string   // 最近一次记录的索引/视图
	LogicHashes []string // 出现过的逻辑指纹，按首次出现顺序
}

// Stale 逻辑指纹在历史记录中发生过变化，比较可能不成立
func (v *VariantStats) Stale() bool { return v != nil && len(v.LogicHashes) > 1 }

// Row 报告中的一行
type Row struct {
	QueryID   string
	Baseline  *VariantStats
	Optimized *VariantStats
}

// Speedup baseline 最坏值 / optimized 最坏值；任一策略缺失或分母为 0 时为 nil
func (r Row) Speedup() *float64 {
	return ratio(r.Baseline, r.Optimized)
}

// IndexSet 优化策略使用的索引/视图；没有优化记录时为 none
func (r Row) IndexSet() string {
	if r.Optimized == nil || r.Optimized.IndexSet == "" {
		return "none"
	}
	return r.Optimized.IndexSet
}

func ratio(base, opt *VariantStats) *float64 {
	if base == nil || opt == nil || opt.Max <= 0 {
		return nil
	}
	v := base.Max / opt.Max
	return &v
}

// Summary 报告汇总
type Summary struct {
	Rows            []Row
	Global          Row // 全部查询合并后的最坏值
	Records         int
	DatasetVersions []string
	GeneratedAt     time.Time
}

// Aggregate 按查询、策略分组计算 min/max，并给出全局最坏值
func Aggregate(records []model.RunMetric, now time.Time) *Summary {
	sorted := append([]model.RunMetric(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TS.Before(sorted[j].TS) })

	byQuery := make(map[string]*Row)
	versions := make(map[string]struct{})
	s := &Summary{Records: len(sorted), GeneratedAt: now, Global: Row{QueryID: "ALL"}}
	for _, r := range sorted {
		row, ok := byQuery[r.QueryID]
		if !ok {
			row = &Row{QueryID: r.QueryID}
			byQuery[r.QueryID] = row
		}
		switch r.Variant {
		case model.VariantBaseline:
			row.Baseline = observe(row.Baseline, r)
			s.Global.Baseline = observe(s.Global.Baseline, r)
		case model.VariantOptimized:
			row.Optimized = observe(row.Optimized, r)
			s.Global.Optimized = observe(s.Global.Optimized, r)
		}
		if r.DatasetVersion != "" {
			versions[r.DatasetVersion] = struct{}{}
		}
	}
	for _, row := range byQuery {
		s.Rows = append(s.Rows, *row)
	}
	sort.Slice(s.Rows, func(i, j int) bool { return s.Rows[i].QueryID < s.Rows[j].QueryID })
	for v := range versions {
		s.DatasetVersions = append(s.DatasetVersions, v)
	}
	sort.Strings(s.DatasetVersions)
	return s
}

func observe(v *VariantStats, r model.RunMetric) *VariantStats {
	if v == nil {
		v = &VariantStats{Min: r.DurationMs, Max: r.DurationMs}
	}
	v.Runs++
	if r.DurationMs < v.Min {
		v.Min = r.DurationMs
	}
	if r.DurationMs > v.Max {
		v.Max = r.DurationMs
	}
	if r.IndexSet != "" {
		v.IndexSet = r.IndexSet
	}
	if r.LogicHash != "" && !contains(v.LogicHashes, r.LogicHash) {
		v.LogicHashes = append(v.LogicHashes, r.LogicHash)
	}
	return v
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
