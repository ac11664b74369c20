package repository

import (
	"context"
	"fmt"

	"ViewBench/internal/interfaces"
	"ViewBench/internal/model"

	"gorm.io/gorm"
)

type rawRepository struct {
	db *gorm.DB
}

// NewRawRepository 原始集合存储：raw_documents 一张表，按 collection 区分
func NewRawRepository(db *gorm.DB) interfaces.RawSource {
	return &rawRepository{db: db}
}

func (r *rawRepository) HasRaw(ctx context.Context, collection string) (bool, error) {
	var exists bool
	err := r.db.WithContext(ctx).
		Raw("SELECT EXISTS (SELECT 1 FROM raw_documents WHERE collection = ?)", collection).
		Scan(&exists).Error
	return exists, err
}

func (r *rawRepository) CountRaw(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.RawDocument{}).Where("collection = ?", collection).Count(&n).Error
	return n, err
}

// StreamRaw 按主键顺序分批读取，每批解码后交给 fn；fn 返回错误时停止
func (r *rawRepository) StreamRaw(ctx context.Context, collection string, batchSize int, fn func([]model.RawEntity) error) error {
	if batchSize <= 0 {
		batchSize = 1000
	}
	var batch []model.RawDocument
	return r.db.WithContext(ctx).
		Where("collection = ?", collection).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			entities := make([]model.RawEntity, 0, len(batch))
			for i := range batch {
				entities = append(entities, batch[i].ToEntity())
			}
			return fn(entities)
		}).Error
}

func (r *rawRepository) InsertRaw(ctx context.Context, collection string, docs []map[string]any) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	rows := make([]*model.RawDocument, 0, len(docs))
	for i, d := range docs {
		row, err := model.NewRawDocument(collection, d)
		if err != nil {
			return 0, fmt.Errorf("编码第 %d 条文档失败: %w", i, err)
		}
		rows = append(rows, row)
	}
	if err := r.db.WithContext(ctx).CreateInBatches(rows, 1000).Error; err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *rawRepository) DropRaw(ctx context.Context, collection string) (int64, error) {
	res := r.db.WithContext(ctx).Where("collection = ?", collection).Delete(&model.RawDocument{})
	return res.RowsAffected, res.Error
}

func (r *rawRepository) RawCollections(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Collection string
		N          int64
	}
	if err := r.db.WithContext(ctx).Model(&model.RawDocument{}).
		Select("collection, COUNT(*) AS n").
		Group("collection").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Collection] = row.N
	}
	return out, nil
}
