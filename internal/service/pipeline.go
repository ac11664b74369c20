package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ETL 阶段
const (
	StageGames      = "games"
	StageViews      = "views"
	StageCleanYears = "clean-years"
	StageAll        = "all"
)

// Stages 可触发的阶段
var Stages = []string{StageGames, StageViews, StageCleanYears, StageAll}

// ErrBusy 已有 ETL 在运行；同一视图不允许并发重建
var ErrBusy = errors.New("已有 ETL 任务在运行")

// StageResult 一次 ETL 调用的结果
type StageResult struct {
	Stage   string            `json:"stage"`
	Games   *MaterializeStats `json:"games,omitempty"`
	Views   *ViewStats        `json:"views,omitempty"`
	Deleted int64             `json:"deleted"`
}

// Pipeline 串行执行 ETL 各阶段：games → clean-years → views
type Pipeline struct {
	materializer *Materializer
	views        *ViewService
	logger       *logrus.Logger
	mu           sync.Mutex
}

func NewPipeline(m *Materializer, v *ViewService, logger *logrus.Logger) *Pipeline {
	return &Pipeline{materializer: m, views: v, logger: logger}
}

// Run 等待其他 ETL 结束后执行
func (p *Pipeline) Run(ctx context.Context, stage string) (*StageResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run(ctx, stage)
}

// TryRun 已有 ETL 在运行时立即返回 ErrBusy
func (p *Pipeline) TryRun(ctx context.Context, stage string) (*StageResult, error) {
	if !p.mu.TryLock() {
		return nil, ErrBusy
	}
	defer p.mu.Unlock()
	return p.run(ctx, stage)
}

func (p *Pipeline) run(ctx context.Context, stage string) (*StageResult, error) {
	res := &StageResult{Stage: stage}
	var err error
	switch stage {
	case StageGames:
		res.Games, err = p.materializer.Run(ctx)
	case StageCleanYears:
		res.Deleted, err = p.materializer.CleanInvalidYears(ctx)
	case StageViews:
		res.Views, err = p.views.Build(ctx)
	case StageAll:
		if res.Games, err = p.materializer.Run(ctx); err != nil {
			break
		}
		if res.Deleted, err = p.materializer.CleanInvalidYears(ctx); err != nil {
			break
		}
		res.Views, err = p.views.Build(ctx)
	default:
		return nil, fmt.Errorf("未知 ETL 阶段: %s", stage)
	}
	if err != nil {
		return res, fmt.Errorf("ETL 阶段 %s 失败: %w", stage, err)
	}
	p.logger.WithField("stage", stage).Info("ETL 阶段完成")
	return res, nil
}
