package repository

import (
	"context"

	"ViewBench/internal/interfaces"
	"ViewBench/internal/model"

	"gorm.io/gorm"
)

type gameRepository struct {
	db *gorm.DB
}

// NewGameRepository 规范化游戏记录（games 表）
func NewGameRepository(db *gorm.DB) interfaces.GameStore {
	return &gameRepository{db: db}
}

// UpsertGames 按 id 整行替换；同一批内重复的 id 以最后一条为准
func (r *gameRepository) UpsertGames(ctx context.Context, games []*model.Game) (model.BulkResult, error) {
	return upsertRows(ctx, r.db, model.Game{}.TableName(), dedupeGames(games),
		func(g *model.Game) string { return g.ID }, onConflictReplace("id"))
}

func dedupeGames(games []*model.Game) []*model.Game {
	pos := make(map[string]int, len(games))
	out := make([]*model.Game, 0, len(games))
	for _, g := range games {
		if i, ok := pos[g.ID]; ok {
			out[i] = g
			continue
		}
		pos[g.ID] = len(out)
		out = append(out, g)
	}
	return out
}

func (r *gameRepository) StreamGames(ctx context.Context, batchSize int, fn func([]*model.Game) error) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	var batch []*model.Game
	return r.db.WithContext(ctx).FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	}).Error
}

func (r *gameRepository) CountGames(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Game{}).Count(&n).Error
	return n, err
}

func (r *gameRepository) DeleteInvalidYears(ctx context.Context, minYear int) (int64, error) {
	res := r.db.WithContext(ctx).Where("year IS NOT NULL AND year < ?", minYear).Delete(&model.Game{})
	return res.RowsAffected, res.Error
}
