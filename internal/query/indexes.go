package query

import (
	"strings"

	"ViewBench/internal/model"
)

// 优化索引名
const (
	IdxQ1Mech         = "idx_q1_mech"
	IdxQ2Themes       = "idx_q2_themes"
	IdxQ3Designers    = "idx_q3_designers"
	IdxQ3Publishers   = "idx_q3_publishers"
	IdxQ4Year         = "idx_q4_year"
	IdxQ5Bayes        = "idx_q5_bayes"
	IdxQ5Popularity   = "idx_q5_popularity"
	IndexSetBaseline  = "none"
	themesCountColumn = "jsonb_array_length(COALESCE(themes, '[]'::jsonb))"
)

// OptimizedIndexes games 上的回退索引与视图侧排序索引
var OptimizedIndexes = []model.IndexDef{
	{Name: IdxQ1Mech, Table: "games", Columns: "avg_rating DESC", Include: "mechanics, bayes_avg, std_dev, num_ratings, num_owned", QueryID: Q1},
	{Name: IdxQ2Themes, Table: "games", Columns: "(" + themesCountColumn + ") DESC, avg_rating DESC NULLS LAST, id", QueryID: Q2},
	{Name: IdxQ3Designers, Table: "games", Columns: "designers", Using: "gin", QueryID: Q3},
	{Name: IdxQ3Publishers, Table: "games", Columns: "publishers", Using: "gin", QueryID: Q3},
	{Name: IdxQ4Year, Table: "games", Columns: "year, avg_rating DESC, num_owned DESC", QueryID: Q4},
	{Name: IdxQ5Bayes, Table: "games", Columns: "bayes_avg DESC NULLS LAST, id", QueryID: Q5},
	{Name: IdxQ5Popularity, Table: "games", Columns: "num_owned DESC, id", QueryID: Q5},

	{Name: "idx_mechanic_stats_rated_order", Table: model.ViewRatedMechanicStats, Columns: "games_count DESC, label"},
	{Name: "idx_theme_count_rank_order", Table: model.ViewThemeCountRank, Columns: "themes_count DESC, avg_rating DESC NULLS LAST, id"},
	{Name: "idx_designer_publisher_stats_order", Table: model.ViewPairStats, Columns: "games_count DESC, designer, publisher"},
	{Name: "idx_rank_cache_quality", Table: model.ViewRankCache, Columns: "rank_quality, id"},
}

// IndexNames 某个查询依赖的 games 索引名（按定义顺序）
func IndexNames(queryID string) []string {
	var names []string
	for _, d := range OptimizedIndexes {
		if d.QueryID == queryID {
			names = append(names, d.Name)
		}
	}
	return names
}

// ThemesCountExpr 主题数表达式，实时 SQL 与 idx_q2_themes 必须一致
func ThemesCountExpr(alias string) string {
	if alias == "" {
		return themesCountColumn
	}
	return strings.Replace(themesCountColumn, "themes", alias+".themes", 1)
}
