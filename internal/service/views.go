package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ViewBench/internal/aggregate"
	"ViewBench/internal/config"
	"ViewBench/internal/interfaces"
	"ViewBench/internal/model"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// viewBuilder 一个派生视图的构建器：先在单次扫描中观察每条记录，再写出结果
type viewBuilder interface {
	Name() string
	Observe(g *model.Game)
	Flush(ctx context.Context) (model.BulkResult, error)
}

// ViewService 由 games 构建全部派生视图
type ViewService struct {
	games  interfaces.GameStore
	views  interfaces.ViewStore
	etl    config.ETLConfig
	q      config.QueryConfig
	logger *logrus.Logger
}

func NewViewService(games interfaces.GameStore, views interfaces.ViewStore, etl config.ETLConfig, q config.QueryConfig, logger *logrus.Logger) *ViewService {
	return &ViewService{games: games, views: views, etl: etl, q: q, logger: logger}
}

// ViewStats 每个视图的写入结果
type ViewStats struct {
	Scanned  int64
	Results  map[string]model.BulkResult
	Duration time.Duration
}

func (s *ViewService) builders() []viewBuilder {
	threshold := s.q.QualityThreshold
	return []viewBuilder{
		&categoryBuilder{s: s, view: model.ViewMechanicStats, dimension: "mechanics", r: aggregate.NewCategoryReducer(nil)},
		&categoryBuilder{s: s, view: model.ViewThemeStats, dimension: "themes", r: aggregate.NewCategoryReducer(nil)},
		&categoryBuilder{s: s, view: model.ViewRatedMechanicStats, dimension: "mechanics", r: aggregate.NewCategoryReducer(&threshold), clearFirst: true},
		&pairBuilder{s: s, r: aggregate.NewPairReducer()},
		&yearBuilder{s: s, r: aggregate.NewYearReducer(s.etl.MinValidYear)},
		&themeCountBuilder{s: s},
		&rankBuilder{s: s},
	}
}

// Build 构建指定视图（为空时构建全部）。只扫描 games 一次，各视图在扫描结束后并行写出，
// 并行度由 etl.view_parallelism 限制；同一视图只有一个写入者。
func (s *ViewService) Build(ctx context.Context, names ...string) (*ViewStats, error) {
	start := time.Now()
	selected, err := s.selectBuilders(names)
	if err != nil {
		return nil, err
	}

	st := &ViewStats{Results: make(map[string]model.BulkResult)}
	err = s.games.StreamGames(ctx, s.etl.BatchSize, func(batch []*model.Game) error {
		for _, g := range batch {
			for _, b := range selected {
				b.Observe(g)
			}
		}
		st.Scanned += int64(len(batch))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("扫描 games 失败: %w", err)
	}
	s.logger.Infof("已扫描 %s 条 games，开始写出 %d 个视图", humanize.Comma(st.Scanned), len(selected))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if s.etl.ViewParallelism > 0 {
		g.SetLimit(s.etl.ViewParallelism)
	}
	for _, b := range selected {
		b := b
		g.Go(func() error {
			began := time.Now()
			res, err := b.Flush(gctx)
			mu.Lock()
			st.Results[b.Name()] = res
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("写出视图 %s 失败: %w", b.Name(), err)
			}
			s.logger.WithFields(logrus.Fields{
				"view":     b.Name(),
				"written":  res.Written,
				"duration": time.Since(began).String(),
			}).Info("视图已写出")
			return nil
		})
	}
	err = g.Wait()
	st.Duration = time.Since(start)
	return st, err
}

func (s *ViewService) selectBuilders(names []string) ([]viewBuilder, error) {
	all := s.builders()
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]viewBuilder, len(all))
	for _, b := range all {
		byName[b.Name()] = b
	}
	out := make([]viewBuilder, 0, len(names))
	for _, n := range names {
		b, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("未知视图: %s", n)
		}
		out = append(out, b)
	}
	return out, nil
}

// writeChunks 按 view_batch_size 分批写入并累加结果；任一批失败立即返回
func writeChunks[T any](ctx context.Context, rows []T, size int, write func(context.Context, []T) (model.BulkResult, error)) (model.BulkResult, error) {
	var total model.BulkResult
	if size <= 0 {
		size = len(rows)
	}
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		res, err := write(ctx, rows[start:end])
		total.Add(res)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ---------------- builders ----------------

type categoryBuilder struct {
	s          *ViewService
	view       string
	dimension  string
	r          *aggregate.CategoryReducer
	clearFirst bool // 阈值视图每次重建前清空，避免残留上一次较宽松条件下的类别
}

func (b *categoryBuilder) Name() string { return b.view }

func (b *categoryBuilder) Observe(g *model.Game) {
	if b.dimension == "themes" {
		b.r.Observe(g, g.Themes)
		return
	}
	b.r.Observe(g, g.Mechanics)
}

func (b *categoryBuilder) Flush(ctx context.Context) (model.BulkResult, error) {
	if b.clearFirst {
		n, err := b.s.views.ClearView(ctx, b.view)
		if err != nil {
			return model.BulkResult{}, fmt.Errorf("清空视图失败: %w", err)
		}
		b.s.logger.WithField("view", b.view).Infof("重建前已清空 %d 行", n)
	}
	return writeChunks(ctx, b.r.Results(), b.s.etl.ViewBatchSize, func(ctx context.Context, rows []model.CategoryStat) (model.BulkResult, error) {
		return b.s.views.UpsertCategoryStats(ctx, b.view, rows)
	})
}

type pairBuilder struct {
	s *ViewService
	r *aggregate.PairReducer
}

func (b *pairBuilder) Name() string          { return model.ViewPairStats }
func (b *pairBuilder) Observe(g *model.Game) { b.r.Observe(g) }
func (b *pairBuilder) Flush(ctx context.Context) (model.BulkResult, error) {
	return writeChunks(ctx, b.r.Results(), b.s.etl.ViewBatchSize, b.s.views.UpsertPairStats)
}

type yearBuilder struct {
	s *ViewService
	r *aggregate.YearReducer
}

func (b *yearBuilder) Name() string          { return model.ViewYearlyStats }
func (b *yearBuilder) Observe(g *model.Game) { b.r.Observe(g) }
func (b *yearBuilder) Flush(ctx context.Context) (model.BulkResult, error) {
	return writeChunks(ctx, b.r.Results(), b.s.etl.ViewBatchSize, b.s.views.UpsertYearlyStats)
}

type themeCountBuilder struct {
	s    *ViewService
	rows []model.ThemeCountRank
}

func (b *themeCountBuilder) Name() string { return model.ViewThemeCountRank }
func (b *themeCountBuilder) Observe(g *model.Game) {
	b.rows = append(b.rows, aggregate.ThemeCount(g))
}
func (b *themeCountBuilder) Flush(ctx context.Context) (model.BulkResult, error) {
	return writeChunks(ctx, b.rows, b.s.etl.ViewBatchSize, b.s.views.UpsertThemeCounts)
}

// rankBuilder 两次独立的 dense rank：重建前清空缓存，质量排名写入后，热度排名只更新自身列，缺行时插入。
// 失去 bayesAvg 的游戏重建后质量排名为空。
type rankBuilder struct {
	s       *ViewService
	sources []model.RankSource
}

func (b *rankBuilder) Name() string { return model.ViewRankCache }
func (b *rankBuilder) Observe(g *model.Game) {
	b.sources = append(b.sources, model.RankSource{
		ID:           g.ID,
		Name:         g.Name,
		BayesAvg:     g.BayesAvg,
		NumOwned:     g.Popularity.NumOwned,
		Distribution: g.RatingsDistribution,
	})
}
func (b *rankBuilder) Flush(ctx context.Context) (model.BulkResult, error) {
	quality, popularity := aggregate.BuildRanks(b.sources, b.s.q.PctThreshold)
	n, err := b.s.views.ClearView(ctx, model.ViewRankCache)
	if err != nil {
		return model.BulkResult{}, fmt.Errorf("清空视图失败: %w", err)
	}
	b.s.logger.WithField("view", model.ViewRankCache).Infof("重建前已清空 %d 行", n)
	total, err := writeChunks(ctx, quality, b.s.etl.ViewBatchSize, b.s.views.UpsertQualityRanks)
	if err != nil {
		return total, fmt.Errorf("写入质量排名失败: %w", err)
	}
	res, err := writeChunks(ctx, popularity, b.s.etl.ViewBatchSize, b.s.views.UpsertPopularityRanks)
	total.Add(res)
	if err != nil {
		return total, fmt.Errorf("写入热度排名失败: %w", err)
	}
	return total, nil
}
