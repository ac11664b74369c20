package interfaces

import (
	"context"

	"ViewBench/internal/model"
)

// RawSource 原始集合（导入后的原样文档）
type RawSource interface {
	HasRaw(ctx context.Context, collection string) (bool, error)                                              // 集合是否存在且非空
	CountRaw(ctx context.Context, collection string) (int64, error)                                           // 集合文档数
	StreamRaw(ctx context.Context, collection string, batchSize int, fn func([]model.RawEntity) error) error // 按批次流式读取
	InsertRaw(ctx context.Context, collection string, docs []map[string]any) (int, error)                    // 批量插入
	DropRaw(ctx context.Context, collection string) (int64, error)                                           // 清空集合
	RawCollections(ctx context.Context) (map[string]int64, error)                                            // 各集合文档数
}

// GameStore 规范化游戏记录存储
type GameStore interface {
	UpsertGames(ctx context.Context, games []*model.Game) (model.BulkResult, error)      // 按 id 整行替换
	StreamGames(ctx context.Context, batchSize int, fn func([]*model.Game) error) error // 按 id 顺序流式读取
	CountGames(ctx context.Context) (int64, error)                                      // 记录数
	DeleteInvalidYears(ctx context.Context, minYear int) (int64, error)                 // 删除 year < minYear 的记录
}

// LiveAggregator 直接在 games 上实时计算五个查询的结果
type LiveAggregator interface {
	CategoryStatsLive(ctx context.Context, p model.CategoryParams) ([]model.CategoryStat, error)
	ThemeReportLive(ctx context.Context, limit int, bounds []int) (*model.ThemeReport, error)
	PairStatsLive(ctx context.Context, p model.PairParams) ([]model.PairStat, error)
	YearlyStatsLive(ctx context.Context, minYear int) ([]model.YearlyStat, error)
	RankingsLive(ctx context.Context, limit int, pctThreshold float64) ([]model.RankEntry, error)
}

// ViewStore 派生视图的写入与读取
type ViewStore interface {
	ViewHasRows(ctx context.Context, view string) (bool, error) // 视图存在且至少一行
	CountView(ctx context.Context, view string) (int64, error)
	ClearView(ctx context.Context, view string) (int64, error)

	UpsertCategoryStats(ctx context.Context, view string, rows []model.CategoryStat) (model.BulkResult, error)
	UpsertPairStats(ctx context.Context, rows []model.PairStat) (model.BulkResult, error)
	UpsertYearlyStats(ctx context.Context, rows []model.YearlyStat) (model.BulkResult, error)
	UpsertThemeCounts(ctx context.Context, rows []model.ThemeCountRank) (model.BulkResult, error)
	UpsertQualityRanks(ctx context.Context, rows []model.RankEntry) (model.BulkResult, error)    // 写入名称、质量排名与高分占比
	UpsertPopularityRanks(ctx context.Context, rows []model.RankEntry) (model.BulkResult, error) // 只更新热度排名，不存在时插入

	TopCategoryStats(ctx context.Context, view string, limit int) ([]model.CategoryStat, error)
	ThemeReport(ctx context.Context, limit int, bounds []int) (*model.ThemeReport, error)
	TopPairStats(ctx context.Context, p model.PairParams) ([]model.PairStat, error)
	YearlyStats(ctx context.Context) ([]model.YearlyStat, error)
	TopRanks(ctx context.Context, limit int) ([]model.RankEntry, error)
}

// MetricStore 基准指标（只追加）
type MetricStore interface {
	InsertMetric(ctx context.Context, m *model.RunMetric) error
	ListMetrics(ctx context.Context) ([]model.RunMetric, error)
}

// IndexAdmin 优化索引管理
type IndexAdmin interface {
	CreateIndexes(ctx context.Context, defs []model.IndexDef) ([]string, error)
	DropIndexes(ctx context.Context, defs []model.IndexDef) ([]string, error)
	ListIndexes(ctx context.Context) ([]model.IndexInfo, error)
}
