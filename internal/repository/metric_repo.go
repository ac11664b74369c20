package repository

import (
	"context"

	"ViewBench/internal/interfaces"
	"ViewBench/internal/model"

	"gorm.io/gorm"
)

type metricRepository struct {
	db *gorm.DB
}

// NewMetricRepository 基准指标（run_metrics，只追加）
func NewMetricRepository(db *gorm.DB) interfaces.MetricStore {
	return &metricRepository{db: db}
}

func (r *metricRepository) InsertMetric(ctx context.Context, m *model.RunMetric) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *metricRepository) ListMetrics(ctx context.Context) ([]model.RunMetric, error) {
	var rows []model.RunMetric
	if err := r.db.WithContext(ctx).Order("ts ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
