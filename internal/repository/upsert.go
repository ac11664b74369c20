package repository

import (
	"context"

	"ViewBench/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertRows 多行 INSERT .. ON CONFLICT 写入一批。
// 整条语句失败时逐行重试，同批其他行照常落库；只统计确认写入的行，任一行失败返回 *BatchWriteError。
func upsertRows[T any](ctx context.Context, db *gorm.DB, table string, rows []T, key func(T) string, conflict clause.OnConflict) (model.BulkResult, error) {
	res := model.BulkResult{Attempted: len(rows)}
	if len(rows) == 0 {
		return res, nil
	}
	if err := db.WithContext(ctx).Table(table).Clauses(conflict).Create(rows).Error; err == nil {
		res.Written = len(rows)
		return res, nil
	}

	var firstErr error
	for i := range rows {
		if err := db.WithContext(ctx).Table(table).Clauses(conflict).Create(rows[i : i+1]).Error; err != nil {
			res.Failed = append(res.Failed, key(rows[i]))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		res.Written++
	}
	if firstErr != nil {
		return res, &model.BatchWriteError{Collection: table, Result: res, Err: firstErr}
	}
	return res, nil
}

func onConflictReplace(keys ...string) clause.OnConflict {
	cols := make([]clause.Column, 0, len(keys))
	for _, k := range keys {
		cols = append(cols, clause.Column{Name: k})
	}
	return clause.OnConflict{Columns: cols, UpdateAll: true}
}

func onConflictUpdate(key string, updates ...string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: key}},
		DoUpdates: clause.AssignmentColumns(updates),
	}
}
