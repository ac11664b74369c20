package service

import (
	"context"
	"fmt"

	"ViewBench/internal/interfaces"
	"ViewBench/internal/model"

	"github.com/sirupsen/logrus"
)

// VariantRunner 测量某种策略下的全部查询
type VariantRunner interface {
	RunVariant(ctx context.Context, v model.Variant) ([]model.RunMetric, error)
}

// FullRun 完整实验流程：删除优化索引 → baseline 测量 → ETL → 创建优化索引 → optimized 测量 → 报告。
// 任一步失败即停止。
type FullRun struct {
	indexes  interfaces.IndexAdmin
	defs     []model.IndexDef
	pipeline *Pipeline
	runner   VariantRunner
	report   func(ctx context.Context) error
	logger   *logrus.Logger
}

func NewFullRun(indexes interfaces.IndexAdmin, defs []model.IndexDef, pipeline *Pipeline, runner VariantRunner, report func(ctx context.Context) error, logger *logrus.Logger) *FullRun {
	return &FullRun{indexes: indexes, defs: defs, pipeline: pipeline, runner: runner, report: report, logger: logger}
}

func (f *FullRun) Run(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"删除优化索引", func(ctx context.Context) error {
			dropped, err := f.indexes.DropIndexes(ctx, f.defs)
			f.logger.Infof("已删除 %d 个索引", len(dropped))
			return err
		}},
		{"baseline 测量", func(ctx context.Context) error {
			_, err := f.runner.RunVariant(ctx, model.VariantBaseline)
			return err
		}},
		{"ETL", func(ctx context.Context) error {
			_, err := f.pipeline.Run(ctx, StageAll)
			return err
		}},
		{"创建优化索引", func(ctx context.Context) error {
			created, err := f.indexes.CreateIndexes(ctx, f.defs)
			f.logger.Infof("已创建 %d 个索引", len(created))
			return err
		}},
		{"optimized 测量", func(ctx context.Context) error {
			_, err := f.runner.RunVariant(ctx, model.VariantOptimized)
			return err
		}},
		{"生成报告", f.report},
	}
	for i, step := range steps {
		f.logger.Infof(">>> [%d/%d] %s", i+1, len(steps), step.name)
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("完整流程在「%s」失败: %w", step.name, err)
		}
	}
	f.logger.Info("完整流程结束")
	return nil
}
