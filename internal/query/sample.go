package query

import (
	"ViewBench/internal/aggregate"
	"ViewBench/internal/model"
)

// Sample 取结果的前 n 行作为指标记录中的样本
func Sample(out *Outcome, n int) any {
	if out == nil {
		return nil
	}
	switch r := out.Result.(type) {
	case []model.CategoryStat:
		return aggregate.Limit(r, n)
	case []model.PairStat:
		return aggregate.Limit(r, n)
	case []model.YearlyStat:
		return aggregate.Limit(r, n)
	case []model.RankEntry:
		return aggregate.Limit(r, n)
	case *model.ThemeReport:
		if r == nil {
			return nil
		}
		return &model.ThemeReport{Top: aggregate.Limit(r.Top, n), AvgThemes: r.AvgThemes, Buckets: r.Buckets}
	}
	return out.Result
}
