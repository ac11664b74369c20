package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ViewBench/internal/interfaces"
	"ViewBench/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// DefaultTrials 预热后的计时次数
const DefaultTrials = 5

// Spec 一次测量的元数据
type Spec struct {
	QueryID   string
	Variant   model.Variant
	IndexSet  string
	LogicHash string
	Sample    func() any // 计时结束后调用，结果写入指标记录
}

// Harness 预热一次，再计时 trials 次，取最大值（最坏情况）作为代表时长，每次调用写入一条指标记录
type Harness struct {
	store          interfaces.MetricStore
	trials         int
	datasetVersion string
	metrics        *Metrics
	now            func() time.Time
	logger         *logrus.Logger
}

func NewHarness(store interfaces.MetricStore, trials int, datasetVersion string, metrics *Metrics, logger *logrus.Logger) *Harness {
	if trials <= 0 {
		trials = DefaultTrials
	}
	return &Harness{
		store:          store,
		trials:         trials,
		datasetVersion: datasetVersion,
		metrics:        metrics,
		now:            time.Now,
		logger:         logger,
	}
}

// WithClock 替换时钟（测试用）
func (h *Harness) WithClock(now func() time.Time) *Harness {
	h.now = now
	return h
}

// Measure 执行测量。预热或任一次计时失败都返回 *model.MeasurementError，且不写入指标记录；不重试。
func (h *Harness) Measure(ctx context.Context, spec Spec, op func(context.Context) error) (*model.RunMetric, error) {
	if err := op(ctx); err != nil {
		h.metrics.observeFailure(spec.QueryID, spec.Variant, model.PhaseWarmup)
		return nil, &model.MeasurementError{QueryID: spec.QueryID, Variant: spec.Variant, Phase: model.PhaseWarmup, Err: err}
	}

	var worst time.Duration
	for i := 1; i <= h.trials; i++ {
		start := h.now()
		err := op(ctx)
		d := h.now().Sub(start)
		if err != nil {
			h.metrics.observeFailure(spec.QueryID, spec.Variant, model.PhaseTrial)
			return nil, &model.MeasurementError{QueryID: spec.QueryID, Variant: spec.Variant, Phase: model.PhaseTrial, Trial: i, Err: err}
		}
		h.metrics.observeTrial(spec.QueryID, spec.Variant, d)
		if d > worst {
			worst = d
		}
	}

	rec := &model.RunMetric{
		ID:             uuid.New(),
		TS:             h.now().UTC(),
		DatasetVersion: h.datasetVersion,
		QueryID:        spec.QueryID,
		Variant:        spec.Variant,
		IndexSet:       spec.IndexSet,
		LogicHash:      spec.LogicHash,
		DurationMs:     float64(worst) / float64(time.Millisecond),
		Trials:         h.trials,
	}
	if spec.Sample != nil {
		if b, err := json.Marshal(spec.Sample()); err == nil {
			rec.ResultSample = datatypes.JSON(b)
		} else {
			h.logger.WithError(err).WithField("query", spec.QueryID).Warn("结果样本序列化失败，忽略样本")
		}
	}
	if err := h.store.InsertMetric(ctx, rec); err != nil {
		return nil, fmt.Errorf("写入指标记录失败: %w", err)
	}
	h.metrics.observeWorst(spec.QueryID, spec.Variant, worst)
	h.logger.WithFields(logrus.Fields{
		"query":     spec.QueryID,
		"variant":   spec.Variant,
		"index_set": spec.IndexSet,
		"trials":    h.trials,
	}).Infof("%s.%s ms (max): %.3f", spec.QueryID, spec.Variant, rec.DurationMs)
	return rec, nil
}
