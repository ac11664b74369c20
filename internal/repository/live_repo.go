package repository

import (
	"context"
	"fmt"
	"strings"

	"ViewBench/internal/aggregate"
	"ViewBench/internal/interfaces"
	"ViewBench/internal/model"
	"ViewBench/internal/query"

	"gorm.io/gorm"
)

// liveAggregator 直接在 games 上用 SQL 实时计算五个查询。
// useIndexes 为 false 时在事务内关闭索引扫描，作为没有任何优化的基线。
type liveAggregator struct {
	db         *gorm.DB
	useIndexes bool
}

// NewLiveAggregator useIndexes=false 为 baseline；true 为 optimized 视图缺失时的回退路径
func NewLiveAggregator(db *gorm.DB, useIndexes bool) interfaces.LiveAggregator {
	return &liveAggregator{db: db, useIndexes: useIndexes}
}

// run 在只读事务中执行 fn；基线模式下本事务内禁止使用索引
func (r *liveAggregator) run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !r.useIndexes {
			for _, stmt := range []string{
				"SET LOCAL enable_indexscan = off",
				"SET LOCAL enable_indexonlyscan = off",
				"SET LOCAL enable_bitmapscan = off",
			} {
				if err := tx.Exec(stmt).Error; err != nil {
					return err
				}
			}
		}
		return fn(tx)
	})
}

// jsonArray 非数组（null、标量）按空数组处理
func jsonArray(col string) string {
	return fmt.Sprintf("CASE WHEN jsonb_typeof(%[1]s) = 'array' THEN %[1]s ELSE '[]'::jsonb END", col)
}

func limitClause(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", n)
}

func (r *liveAggregator) CategoryStatsLive(ctx context.Context, p model.CategoryParams) ([]model.CategoryStat, error) {
	col := "mechanics"
	if p.Dimension == "themes" {
		col = "themes"
	}
	var where string
	var args []any
	if p.MinRating != nil {
		where = "WHERE g.avg_rating > ?"
		args = append(args, *p.MinRating)
	}
	sql := `SELECT l.label,
       COUNT(*) AS games_count,
       COALESCE(SUM(COALESCE(g.avg_rating, g.bayes_avg)), 0) AS rating_sum,
       COUNT(COALESCE(g.avg_rating, g.bayes_avg)) AS rating_count,
       COALESCE(SUM(COALESCE(g.bayes_avg, g.avg_rating)), 0) AS bayes_sum,
       COUNT(COALESCE(g.bayes_avg, g.avg_rating)) AS bayes_count,
       COALESCE(SUM(g.num_ratings), 0) AS sum_num_ratings,
       COALESCE(SUM(g.num_owned), 0) AS sum_num_owned,
       COALESCE(SUM(COALESCE(g.std_dev, 0)), 0) AS std_dev_sum
FROM games g
CROSS JOIN LATERAL (SELECT DISTINCT value AS label FROM jsonb_array_elements_text(` + jsonArray("g."+col) + `)) l
` + where + `
GROUP BY l.label
ORDER BY games_count DESC, l.label ASC` + limitClause(p.Limit)

	var rows []model.CategoryStat
	if err := r.run(ctx, func(tx *gorm.DB) error { return tx.Raw(sql, args...).Scan(&rows).Error }); err != nil {
		return nil, fmt.Errorf("实时类别统计失败: %w", err)
	}
	for i := range rows {
		rows[i] = aggregate.FinishCategory(rows[i])
	}
	return rows, nil
}

func (r *liveAggregator) ThemeReportLive(ctx context.Context, limit int, bounds []int) (*model.ThemeReport, error) {
	expr := query.ThemesCountExpr("")
	topSQL := `SELECT id, name, ` + expr + ` AS themes_count, avg_rating, num_owned
FROM games
ORDER BY ` + expr + ` DESC, avg_rating DESC NULLS LAST, id ASC` + limitClause(limit)
	histSQL := `SELECT ` + expr + ` AS themes_count, COUNT(*) AS n FROM games GROUP BY 1`

	var top []model.ThemeCountRank
	var hist []themeHistRow
	err := r.run(ctx, func(tx *gorm.DB) error {
		if err := tx.Raw(topSQL).Scan(&top).Error; err != nil {
			return err
		}
		return tx.Raw(histSQL).Scan(&hist).Error
	})
	if err != nil {
		return nil, fmt.Errorf("实时主题统计失败: %w", err)
	}
	return themeReport(top, hist, bounds), nil
}

// themeHistRow 每个主题数的游戏数
type themeHistRow struct {
	ThemesCount int   `gorm:"column:themes_count"`
	N           int64 `gorm:"column:n"`
}

// themeReport 前 N 行的平均主题数 + 全量分桶（视图与实时共用）
func themeReport(top []model.ThemeCountRank, hist []themeHistRow, bounds []int) *model.ThemeReport {
	rep := &model.ThemeReport{Top: append([]model.ThemeCountRank{}, top...)}
	if len(top) > 0 {
		var sum int
		for _, t := range top {
			sum += t.ThemesCount
		}
		avg := float64(sum) / float64(len(top))
		rep.AvgThemes = &avg
	}
	counts := make(map[int]int64)
	var other int64
	for _, h := range hist {
		if lower, ok := aggregate.BucketOf(h.ThemesCount, bounds); ok {
			counts[lower] += h.N
		} else {
			other += h.N
		}
	}
	rep.Buckets = aggregate.BucketsFromCounts(counts, other, bounds)
	return rep
}

func (r *liveAggregator) PairStatsLive(ctx context.Context, p model.PairParams) ([]model.PairStat, error) {
	sql := `SELECT d.designer, pb.publisher,
       COUNT(*) AS games_count,
       COALESCE(SUM(g.num_ratings), 0) AS sum_num_ratings,
       COALESCE(SUM(g.avg_rating), 0) AS avg_sum,
       COUNT(g.avg_rating) AS avg_count
FROM games g
CROSS JOIN LATERAL (SELECT DISTINCT value AS designer FROM jsonb_array_elements_text(` + jsonArray("g.designers") + `)) d
CROSS JOIN LATERAL (SELECT DISTINCT value AS publisher FROM jsonb_array_elements_text(` + jsonArray("g.publishers") + `)) pb
GROUP BY d.designer, pb.publisher
HAVING COALESCE(SUM(g.num_ratings), 0) >= ?
ORDER BY games_count DESC, d.designer ASC, pb.publisher ASC` + limitClause(p.Limit)

	var rows []model.PairStat
	if err := r.run(ctx, func(tx *gorm.DB) error { return tx.Raw(sql, p.MinRatings).Scan(&rows).Error }); err != nil {
		return nil, fmt.Errorf("实时组合统计失败: %w", err)
	}
	for i := range rows {
		rows[i] = aggregate.FinishPair(rows[i])
	}
	return rows, nil
}

func (r *liveAggregator) YearlyStatsLive(ctx context.Context, minYear int) ([]model.YearlyStat, error) {
	sql := `SELECT year,
       COUNT(*) AS count,
       COALESCE(SUM(COALESCE(avg_rating, bayes_avg)), 0) AS rating_sum,
       COUNT(COALESCE(avg_rating, bayes_avg)) AS rating_count,
       COALESCE(SUM(num_owned), 0) AS sum_owned
FROM games
WHERE year IS NOT NULL AND year >= ?
GROUP BY year
ORDER BY year ASC`

	var rows []model.YearlyStat
	if err := r.run(ctx, func(tx *gorm.DB) error { return tx.Raw(sql, minYear).Scan(&rows).Error }); err != nil {
		return nil, fmt.Errorf("实时年份统计失败: %w", err)
	}
	for i := range rows {
		rows[i] = aggregate.FinishYear(rows[i])
	}
	return rows, nil
}

// rankRow 窗口排名的结果行，高分占比在 Go 侧由分布计算
type rankRow struct {
	ID             string             `gorm:"column:id"`
	Name           string             `gorm:"column:name"`
	RankQuality    *int64             `gorm:"column:rank_quality"`
	RankPopularity *int64             `gorm:"column:rank_popularity"`
	Distribution   map[string]float64 `gorm:"column:ratings_distribution;serializer:json"`
}

// rankSQL 两次独立的 dense rank：质量只含 bayes_avg 非空的游戏，热度含全部游戏
var rankSQL = strings.TrimSpace(`
WITH quality AS (
    SELECT id, DENSE_RANK() OVER (ORDER BY bayes_avg DESC) AS rank_quality
    FROM games WHERE bayes_avg IS NOT NULL
), popularity AS (
    SELECT id, DENSE_RANK() OVER (ORDER BY num_owned DESC) AS rank_popularity
    FROM games
)
SELECT g.id, g.name, q.rank_quality, p.rank_popularity, g.ratings_distribution
FROM quality q
JOIN games g ON g.id = q.id
JOIN popularity p ON p.id = q.id
ORDER BY q.rank_quality ASC, g.id ASC`)

func (r *liveAggregator) RankingsLive(ctx context.Context, limit int, pctThreshold float64) ([]model.RankEntry, error) {
	var rows []rankRow
	if err := r.run(ctx, func(tx *gorm.DB) error { return tx.Raw(rankSQL + limitClause(limit)).Scan(&rows).Error }); err != nil {
		return nil, fmt.Errorf("实时排名失败: %w", err)
	}
	out := make([]model.RankEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.RankEntry{
			ID:             row.ID,
			Name:           row.Name,
			RankQuality:    row.RankQuality,
			RankPopularity: row.RankPopularity,
			PctGE8:         aggregate.PctAtOrAbove(row.Distribution, pctThreshold),
		})
	}
	return out, nil
}
