package repository

import (
	"context"
	"fmt"

	"ViewBench/internal/interfaces"
	"ViewBench/internal/model"

	"gorm.io/gorm"
)

type viewRepository struct {
	db *gorm.DB
}

// NewViewRepository 派生视图（每个视图一张表）
func NewViewRepository(db *gorm.DB) interfaces.ViewStore {
	return &viewRepository{db: db}
}

func checkView(view string) error {
	if !model.IsView(view) {
		return fmt.Errorf("未知视图: %s", view)
	}
	return nil
}

func withLimit(db *gorm.DB, limit int) *gorm.DB {
	if limit > 0 {
		return db.Limit(limit)
	}
	return db
}

// ViewHasRows 表不存在时返回 false 而不是错误
func (r *viewRepository) ViewHasRows(ctx context.Context, view string) (bool, error) {
	if err := checkView(view); err != nil {
		return false, err
	}
	db := r.db.WithContext(ctx)
	if !db.Migrator().HasTable(view) {
		return false, nil
	}
	var exists bool
	err := db.Raw("SELECT EXISTS (SELECT 1 FROM " + quoteIdent(view) + ")").Scan(&exists).Error
	return exists, err
}

func (r *viewRepository) CountView(ctx context.Context, view string) (int64, error) {
	if err := checkView(view); err != nil {
		return 0, err
	}
	var n int64
	err := r.db.WithContext(ctx).Table(view).Count(&n).Error
	return n, err
}

func (r *viewRepository) ClearView(ctx context.Context, view string) (int64, error) {
	if err := checkView(view); err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).Exec("DELETE FROM " + quoteIdent(view))
	return res.RowsAffected, res.Error
}

func (r *viewRepository) UpsertCategoryStats(ctx context.Context, view string, rows []model.CategoryStat) (model.BulkResult, error) {
	if !isCategoryView(view) {
		return model.BulkResult{}, fmt.Errorf("%s 不是类别视图", view)
	}
	return upsertRows(ctx, r.db, view, rows,
		func(s model.CategoryStat) string { return s.Label }, onConflictReplace("label"))
}

func (r *viewRepository) UpsertPairStats(ctx context.Context, rows []model.PairStat) (model.BulkResult, error) {
	return upsertRows(ctx, r.db, model.ViewPairStats, rows,
		func(s model.PairStat) string { return s.Key() }, onConflictReplace("designer", "publisher"))
}

func (r *viewRepository) UpsertYearlyStats(ctx context.Context, rows []model.YearlyStat) (model.BulkResult, error) {
	return upsertRows(ctx, r.db, model.ViewYearlyStats, rows,
		func(s model.YearlyStat) string { return fmt.Sprint(s.Year) }, onConflictReplace("year"))
}

func (r *viewRepository) UpsertThemeCounts(ctx context.Context, rows []model.ThemeCountRank) (model.BulkResult, error) {
	return upsertRows(ctx, r.db, model.ViewThemeCountRank, rows,
		func(s model.ThemeCountRank) string { return s.ID }, onConflictReplace("id"))
}

// UpsertQualityRanks 写入名称、质量排名与高分占比，保留已有的热度排名
func (r *viewRepository) UpsertQualityRanks(ctx context.Context, rows []model.RankEntry) (model.BulkResult, error) {
	return upsertRows(ctx, r.db, model.ViewRankCache, rows,
		func(e model.RankEntry) string { return e.ID }, onConflictUpdate("id", "name", "rank_quality", "pct_ge8"))
}

// UpsertPopularityRanks 已存在的行只更新热度排名；没有质量排名的游戏按新行插入
func (r *viewRepository) UpsertPopularityRanks(ctx context.Context, rows []model.RankEntry) (model.BulkResult, error) {
	popularity := make([]model.RankEntry, 0, len(rows))
	for _, e := range rows {
		e.RankQuality = nil
		popularity = append(popularity, e)
	}
	return upsertRows(ctx, r.db, model.ViewRankCache, popularity,
		func(e model.RankEntry) string { return e.ID }, onConflictUpdate("id", "rank_popularity"))
}

func (r *viewRepository) TopCategoryStats(ctx context.Context, view string, limit int) ([]model.CategoryStat, error) {
	if !isCategoryView(view) {
		return nil, fmt.Errorf("%s 不是类别视图", view)
	}
	var rows []model.CategoryStat
	err := withLimit(r.db.WithContext(ctx).Table(view).Order("games_count DESC, label ASC"), limit).Find(&rows).Error
	return rows, err
}

func (r *viewRepository) ThemeReport(ctx context.Context, limit int, bounds []int) (*model.ThemeReport, error) {
	db := r.db.WithContext(ctx)
	var top []model.ThemeCountRank
	if err := withLimit(db.Order("themes_count DESC, avg_rating DESC NULLS LAST, id ASC"), limit).Find(&top).Error; err != nil {
		return nil, err
	}
	var hist []themeHistRow
	if err := db.Model(&model.ThemeCountRank{}).
		Select("themes_count, COUNT(*) AS n").
		Group("themes_count").
		Scan(&hist).Error; err != nil {
		return nil, err
	}
	return themeReport(top, hist, bounds), nil
}

func (r *viewRepository) TopPairStats(ctx context.Context, p model.PairParams) ([]model.PairStat, error) {
	var rows []model.PairStat
	err := withLimit(r.db.WithContext(ctx).
		Where("sum_num_ratings >= ?", p.MinRatings).
		Order("games_count DESC, designer ASC, publisher ASC"), p.Limit).
		Find(&rows).Error
	return rows, err
}

func (r *viewRepository) YearlyStats(ctx context.Context) ([]model.YearlyStat, error) {
	var rows []model.YearlyStat
	err := r.db.WithContext(ctx).Order("year ASC").Find(&rows).Error
	return rows, err
}

func (r *viewRepository) TopRanks(ctx context.Context, limit int) ([]model.RankEntry, error) {
	var rows []model.RankEntry
	err := withLimit(r.db.WithContext(ctx).
		Where("rank_quality IS NOT NULL").
		Order("rank_quality ASC, id ASC"), limit).
		Find(&rows).Error
	return rows, err
}
