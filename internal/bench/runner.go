package bench

import (
	"context"
	"errors"

	"ViewBench/internal/model"
	"ViewBench/internal/query"

	"github.com/sirupsen/logrus"
)

// Runner 用测量器依次执行目录中某种策略的全部查询
type Runner struct {
	catalog    *query.Catalog
	harness    *Harness
	sampleSize int
	logger     *logrus.Logger
}

func NewRunner(catalog *query.Catalog, harness *Harness, sampleSize int, logger *logrus.Logger) *Runner {
	return &Runner{catalog: catalog, harness: harness, sampleSize: sampleSize, logger: logger}
}

// RunOne 测量一个策略；样本取自预热那次执行的结果
func (r *Runner) RunOne(ctx context.Context, s query.Strategy) (*model.RunMetric, error) {
	var first *query.Outcome
	spec := Spec{
		QueryID:   s.QueryID(),
		Variant:   s.Variant(),
		IndexSet:  s.IndexSet(),
		LogicHash: s.LogicHash(),
		Sample:    func() any { return query.Sample(first, r.sampleSize) },
	}
	return r.harness.Measure(ctx, spec, func(ctx context.Context) error {
		out, err := s.Run(ctx)
		if err == nil && first == nil {
			first = out
		}
		return err
	})
}

// RunVariant 测量某种策略下的全部查询。单个查询失败不影响其余查询，错误汇总返回。
func (r *Runner) RunVariant(ctx context.Context, v model.Variant) ([]model.RunMetric, error) {
	strategies, err := r.catalog.All(v)
	if err != nil {
		return nil, err
	}
	var out []model.RunMetric
	var errs []error
	for _, s := range strategies {
		rec, err := r.RunOne(ctx, s)
		if err != nil {
			r.logger.WithError(err).WithField("query", s.QueryID()).Error("测量失败，未写入指标")
			errs = append(errs, err)
			continue
		}
		out = append(out, *rec)
	}
	return out, errors.Join(errs...)
}
