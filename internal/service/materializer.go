package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ViewBench/internal/config"
	"ViewBench/internal/interfaces"
	"ViewBench/internal/model"
	"ViewBench/internal/normalize"
	"ViewBench/internal/relation"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// MaterializeStats 一次物化的统计
type MaterializeStats struct {
	Processed        int64
	Written          int64
	DesignersFilled  int64 // 由关系索引补全 designers 的记录数
	PublishersFilled int64
	WithDistribution int64
	Normalize        normalize.Stats
	Duration         time.Duration
}

// Materializer 扫描主原始集合，规范化并关联辅助关系后批量 upsert 到 games
type Materializer struct {
	raw    interfaces.RawSource
	games  interfaces.GameStore
	cfg    config.ETLConfig
	logger *logrus.Logger
}

func NewMaterializer(raw interfaces.RawSource, games interfaces.GameStore, cfg config.ETLConfig, logger *logrus.Logger) *Materializer {
	return &Materializer{raw: raw, games: games, cfg: cfg, logger: logger}
}

// relations 本次运行预加载的辅助索引
type relations struct {
	designers    *relation.Index
	publishers   *relation.Index
	distribution *relation.DistributionIndex
}

func (m *Materializer) preload(ctx context.Context) relations {
	m.logger.Info("预加载辅助关系集合（designers/publishers/ratings_distribution）")
	var rel relations
	var err error
	// 辅助集合缺失只降级为空索引，Build 内部已记录日志
	if rel.designers, err = relation.Build(ctx, m.raw, m.cfg.DesignersCollection, relation.DesignerNameFields, m.cfg.BatchSize, m.logger); err != nil && !errors.Is(err, model.ErrSourceAbsent) {
		m.logger.WithError(err).Warn("designers 索引加载异常")
	}
	if rel.publishers, err = relation.Build(ctx, m.raw, m.cfg.PublishersCollection, relation.PublisherNameFields, m.cfg.BatchSize, m.logger); err != nil && !errors.Is(err, model.ErrSourceAbsent) {
		m.logger.WithError(err).Warn("publishers 索引加载异常")
	}
	if rel.distribution, err = relation.BuildDistribution(ctx, m.raw, m.cfg.DistributionCollection, m.cfg.BatchSize, m.logger); err != nil && !errors.Is(err, model.ErrSourceAbsent) {
		m.logger.WithError(err).Warn("评分分布索引加载异常")
	}
	return rel
}

// Build 由一条原始记录生成最终的规范化记录（含关系补全与评分分布）
func (rel relations) Build(raw model.RawEntity, st *MaterializeStats) *model.Game {
	g, rep := normalize.Normalize(raw)
	st.Normalize.Observe(rep)

	aliases := normalize.Aliases(raw)
	if len(g.Designers) == 0 {
		if names := rel.designers.Lookup(aliases...); len(names) > 0 {
			g.Designers = normalize.Dedupe(names)
			st.DesignersFilled++
		}
	}
	if len(g.Publishers) == 0 {
		if names := rel.publishers.Lookup(aliases...); len(names) > 0 {
			g.Publishers = normalize.Dedupe(names)
			st.PublishersFilled++
		}
	}
	if dist := rel.distribution.Lookup(aliases...); len(dist) > 0 {
		g.RatingsDistribution = dist
		g.RatingsTotal = relation.Total(dist)
		st.WithDistribution++
	}
	return g
}

// Run 执行一次完整物化。批量写入失败即终止本次运行（返回 *model.BatchWriteError），
// 已提交的批次保留，重新运行即可收敛。
func (m *Materializer) Run(ctx context.Context) (*MaterializeStats, error) {
	start := time.Now()
	st := &MaterializeStats{}
	rel := m.preload(ctx)

	ok, err := m.raw.HasRaw(ctx, m.cfg.GamesCollection)
	if err != nil {
		return st, fmt.Errorf("检查主原始集合失败: %w", err)
	}
	if !ok {
		m.logger.WithField("collection", m.cfg.GamesCollection).Warn("主原始集合不存在或为空，无记录可物化")
		return st, nil
	}

	m.logger.WithField("collection", m.cfg.GamesCollection).Info("开始物化 games")
	var lastTick int64
	err = m.raw.StreamRaw(ctx, m.cfg.GamesCollection, m.cfg.BatchSize, func(batch []model.RawEntity) error {
		games := make([]*model.Game, 0, len(batch))
		for _, r := range batch {
			games = append(games, rel.Build(r, st))
		}
		st.Processed += int64(len(batch))
		res, err := m.games.UpsertGames(ctx, dedupeByID(games))
		st.Written += int64(res.Written)
		if err != nil {
			return err
		}
		if every := int64(m.cfg.ProgressEvery); every > 0 && st.Processed/every > lastTick {
			lastTick = st.Processed / every
			m.logProgress(st)
		}
		return nil
	})
	st.Duration = time.Since(start)
	if err != nil {
		return st, fmt.Errorf("物化 games 失败（已处理 %d 行，已写入 %d 行）: %w", st.Processed, st.Written, err)
	}
	m.logProgress(st)
	m.logger.WithFields(logrus.Fields{
		"designers_filled":  st.DesignersFilled,
		"publishers_filled": st.PublishersFilled,
		"with_distribution": st.WithDistribution,
		"duration":          st.Duration.String(),
	}).Info("games 物化完成")
	return st, nil
}

func (m *Materializer) logProgress(st *MaterializeStats) {
	m.logger.WithFields(logrus.Fields{
		"unparsed":     st.Normalize.UnparsedTotal(),
		"flag_derived": st.Normalize.FlagDerived,
	}).Infof("已处理 %s 行，已写入 %s 行", humanize.Comma(st.Processed), humanize.Comma(st.Written))
}

// CleanInvalidYears 删除 year 小于合法下限的记录
func (m *Materializer) CleanInvalidYears(ctx context.Context) (int64, error) {
	n, err := m.games.DeleteInvalidYears(ctx, m.cfg.MinValidYear)
	if err != nil {
		return 0, fmt.Errorf("清理非法年份失败: %w", err)
	}
	m.logger.Infof("已删除 %s 条 year < %d 的记录", humanize.Comma(n), m.cfg.MinValidYear)
	return n, nil
}

// dedupeByID 同一批内重复的 id 只保留最后一条（与逐条替换的结果一致）
func dedupeByID(games []*model.Game) []*model.Game {
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
