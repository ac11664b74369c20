package query

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"ViewBench/internal/config"
	"ViewBench/internal/interfaces"
	"ViewBench/internal/model"

	"github.com/sirupsen/logrus"
)

// 五个基准查询
const (
	Q1 = "Q1-mechanics-gt8"
	Q2 = "Q2-most-themes"
	Q3 = "Q3-designer-publisher"
	Q4 = "Q4-year-averages"
	Q5 = "Q5-quality-popularity"
)

// IDs 按编号排列的查询ID
var IDs = []string{Q1, Q2, Q3, Q4, Q5}

// 数据来源标签
const (
	SourceLive     = "live"
	SourceView     = "view"
	SourceFallback = "fallback"
)

// Outcome 一次执行的结果
type Outcome struct {
	Source string `json:"source"`
	View   string `json:"view,omitempty"`
	Rows   int    `json:"rows"`
	Result any    `json:"result"`
}

// Strategy 一个查询的一种实现
type Strategy interface {
	QueryID() string
	Variant() model.Variant
	IndexSet() string
	LogicHash() string
	Run(ctx context.Context) (*Outcome, error)
}

// Deps 策略依赖：Baseline 为禁用索引的实时聚合，Indexed 为允许使用优化索引的实时聚合
type Deps struct {
	Baseline interfaces.LiveAggregator
	Indexed  interfaces.LiveAggregator
	Views    interfaces.ViewStore
	Params   config.QueryConfig
	MinYear  int
	Logger   *logrus.Logger
}

// definition 一个查询的两种读法
type definition struct {
	id     string
	view   string
	params string
	live   func(ctx context.Context, agg interfaces.LiveAggregator) (any, int, error)
	read   func(ctx context.Context, views interfaces.ViewStore) (any, int, error)
}

// Catalog 全部查询策略
type Catalog struct {
	deps Deps
	defs map[string]definition
}

func NewCatalog(d Deps) *Catalog {
	p := d.Params
	threshold := p.QualityThreshold
	defs := []definition{
		{
			id:     Q1,
			view:   model.ViewRatedMechanicStats,
			params: fmt.Sprintf("avgRating>%v;limit=%d", p.QualityThreshold, p.MechanicsLimit),
			live: func(ctx context.Context, agg interfaces.LiveAggregator) (any, int, error) {
				rows, err := agg.CategoryStatsLive(ctx, model.CategoryParams{Dimension: "mechanics", MinRating: &threshold, Limit: p.MechanicsLimit})
				return rows, len(rows), err
			},
			read: func(ctx context.Context, views interfaces.ViewStore) (any, int, error) {
				rows, err := views.TopCategoryStats(ctx, model.ViewRatedMechanicStats, p.MechanicsLimit)
				return rows, len(rows), err
			},
		},
		{
			id:     Q2,
			view:   model.ViewThemeCountRank,
			params: fmt.Sprintf("limit=%d;buckets=%v", p.ThemesLimit, p.ThemeBuckets),
			live: func(ctx context.Context, agg interfaces.LiveAggregator) (any, int, error) {
				rep, err := agg.ThemeReportLive(ctx, p.ThemesLimit, p.ThemeBuckets)
				return rep, themeRows(rep), err
			},
			read: func(ctx context.Context, views interfaces.ViewStore) (any, int, error) {
				rep, err := views.ThemeReport(ctx, p.ThemesLimit, p.ThemeBuckets)
				return rep, themeRows(rep), err
			},
		},
		{
			id:     Q3,
			view:   model.ViewPairStats,
			params: fmt.Sprintf("sumNumRatings>=%d;limit=%d", p.PairMinRatings, p.PairsLimit),
			live: func(ctx context.Context, agg interfaces.LiveAggregator) (any, int, error) {
				rows, err := agg.PairStatsLive(ctx, model.PairParams{MinRatings: p.PairMinRatings, Limit: p.PairsLimit})
				return rows, len(rows), err
			},
			read: func(ctx context.Context, views interfaces.ViewStore) (any, int, error) {
				rows, err := views.TopPairStats(ctx, model.PairParams{MinRatings: p.PairMinRatings, Limit: p.PairsLimit})
				return rows, len(rows), err
			},
		},
		{
			id:     Q4,
			view:   model.ViewYearlyStats,
			params: fmt.Sprintf("year>=%d", d.MinYear),
			live: func(ctx context.Context, agg interfaces.LiveAggregator) (any, int, error) {
				rows, err := agg.YearlyStatsLive(ctx, d.MinYear)
				return rows, len(rows), err
			},
			read: func(ctx context.Context, views interfaces.ViewStore) (any, int, error) {
				rows, err := views.YearlyStats(ctx)
				return rows, len(rows), err
			},
		},
		{
			id:     Q5,
			view:   model.ViewRankCache,
			params: fmt.Sprintf("limit=%d;pct>=%v", p.RanksLimit, p.PctThreshold),
			live: func(ctx context.Context, agg interfaces.LiveAggregator) (any, int, error) {
				rows, err := agg.RankingsLive(ctx, p.RanksLimit, p.PctThreshold)
				return rows, len(rows), err
			},
			read: func(ctx context.Context, views interfaces.ViewStore) (any, int, error) {
				rows, err := views.TopRanks(ctx, p.RanksLimit)
				return rows, len(rows), err
			},
		},
	}
	c := &Catalog{deps: d, defs: make(map[string]definition, len(defs))}
	for _, def := range defs {
		c.defs[def.id] = def
	}
	return c
}

func themeRows(rep *model.ThemeReport) int {
	if rep == nil {
		return 0
	}
	return len(rep.Top)
}

// Get 取某个查询的某种策略
func (c *Catalog) Get(id string, v model.Variant) (Strategy, error) {
	def, ok := c.defs[id]
	if !ok {
		return nil, fmt.Errorf("未知查询: %s", id)
	}
	switch v {
	case model.VariantBaseline:
		return &baseline{def: def, agg: c.deps.Baseline}, nil
	case model.VariantOptimized:
		return &optimized{def: def, agg: c.deps.Indexed, views: c.deps.Views, logger: c.deps.Logger}, nil
	}
	return nil, fmt.Errorf("未知策略: %s", v)
}

// All 某种策略下的全部查询，按编号排列
func (c *Catalog) All(v model.Variant) ([]Strategy, error) {
	out := make([]Strategy, 0, len(IDs))
	for _, id := range IDs {
		s, err := c.Get(id, v)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ViewOf 查询对应的物化视图
func (c *Catalog) ViewOf(id string) string { return c.defs[id].view }

// logicHash 查询逻辑的内容指纹：ID、策略、数据来源与参数任一变化都会改变
func logicHash(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "sha256:" + hex.EncodeToString(h[:])
}

type baseline struct {
	def definition
	agg interfaces.LiveAggregator
}

func (b *baseline) QueryID() string        { return b.def.id }
func (b *baseline) Variant() model.Variant { return model.VariantBaseline }
func (b *baseline) IndexSet() string       { return IndexSetBaseline }
func (b *baseline) LogicHash() string {
	return logicHash(b.def.id, string(model.VariantBaseline), "games:live", b.def.params)
}

// Run 每次都在 games 上完整地过滤、展开、归约
func (b *baseline) Run(ctx context.Context) (*Outcome, error) {
	res, n, err := b.def.live(ctx, b.agg)
	if err != nil {
		return nil, fmt.Errorf("%s baseline 执行失败: %w", b.def.id, err)
	}
	return &Outcome{Source: SourceLive, Rows: n, Result: res}, nil
}

type optimized struct {
	def    definition
	agg    interfaces.LiveAggregator
	views  interfaces.ViewStore
	logger *logrus.Logger
}

func (o *optimized) QueryID() string        { return o.def.id }
func (o *optimized) Variant() model.Variant { return model.VariantOptimized }
func (o *optimized) IndexSet() string {
	return o.def.view + "/" + strings.Join(IndexNames(o.def.id), "/")
}
func (o *optimized) LogicHash() string {
	return logicHash(o.def.id, string(model.VariantOptimized), "view:"+o.def.view, "fallback:"+strings.Join(IndexNames(o.def.id), ","), o.def.params)
}

// Run 视图非空时直接读视图，否则回退到带索引的实时聚合（索引只影响执行计划，不影响结果）
func (o *optimized) Run(ctx context.Context) (*Outcome, error) {
	ok, err := o.views.ViewHasRows(ctx, o.def.view)
	if err != nil {
		return nil, fmt.Errorf("%s 检查视图 %s 失败: %w", o.def.id, o.def.view, err)
	}
	if ok {
		res, n, err := o.def.read(ctx, o.views)
		if err != nil {
			return nil, fmt.Errorf("%s 读取视图 %s 失败: %w", o.def.id, o.def.view, err)
		}
		return &Outcome{Source: SourceView, View: o.def.view, Rows: n, Result: res}, nil
	}
	if o.logger != nil {
		o.logger.WithFields(logrus.Fields{"query": o.def.id, "view": o.def.view}).Debug("视图为空，回退到带索引的实时聚合")
	}
	res, n, err := o.def.live(ctx, o.agg)
	if err != nil {
		return nil, fmt.Errorf("%s optimized 回退执行失败: %w", o.def.id, err)
	}
	return &Outcome{Source: SourceFallback, Rows: n, Result: res}, nil
}
