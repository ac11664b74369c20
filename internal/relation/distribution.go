package relation

import (
	"context"
	"fmt"

	"ViewBench/internal/interfaces"
	"ViewBench/internal/model"
	"ViewBench/internal/normalize"

	"github.com/sirupsen/logrus"
)

// 评分分布子对象的候选字段
var DistributionFields = []string{"distribution", "ratingsDistribution", "dist"}

// DistributionIndex 别名 -> 评分分布（桶标签 -> 人数）；同一别名先注册者保留
type DistributionIndex struct {
	dists map[string]map[string]float64
}

func NewDistributionIndex() *DistributionIndex {
	return &DistributionIndex{dists: make(map[string]map[string]float64)}
}

// Add 注册一条分布；空分布忽略
func (ix *DistributionIndex) Add(aliases []string, dist map[string]float64) {
	if len(dist) == 0 {
		return
	}
	for _, a := range aliases {
		if a == "" {
			continue
		}
		if _, exists := ix.dists[a]; !exists {
			ix.dists[a] = dist
		}
	}
}

// Lookup 第一个命中的别名对应的分布
func (ix *DistributionIndex) Lookup(aliases ...string) map[string]float64 {
	if ix == nil {
		return nil
	}
	for _, a := range aliases {
		if d, ok := ix.dists[a]; ok {
			return d
		}
	}
	return nil
}

func (ix *DistributionIndex) Len() int { return len(ix.dists) }

// ExtractDistribution 优先取分布子对象，否则取记录自身的数值型非标识字段
func ExtractDistribution(fields map[string]any) map[string]float64 {
	src := fields
	if v, ok := normalize.Lookup(fields, DistributionFields); ok {
		if m, ok := v.(map[string]any); ok {
			src = m
		}
	}
	out := make(map[string]float64)
	for k, v := range src {
		if normalize.IsKnownField(k) {
			continue
		}
		if c := normalize.CoerceNumber(v); c.Kind == normalize.Coerced {
			out[k] = c.Value
		}
	}
	return out
}

// Total 分布各桶之和；分布为空时返回 nil
func Total(dist map[string]float64) *float64 {
	if len(dist) == 0 {
		return nil
	}
	var sum float64
	for _, v := range dist {
		sum += v
	}
	return &sum
}

// BuildDistribution 读取评分分布集合；降级规则同 Build
func BuildDistribution(ctx context.Context, src interfaces.RawSource, collection string, batchSize int, logger *logrus.Logger) (*DistributionIndex, error) {
	ix := NewDistributionIndex()
	ok, err := src.HasRaw(ctx, collection)
	if err != nil || !ok {
		logger.WithField("collection", collection).Info("评分分布集合不存在或为空，跳过")
		return ix, fmt.Errorf("评分分布集合 %s: %w", collection, model.ErrSourceAbsent)
	}
	err = src.StreamRaw(ctx, collection, batchSize, func(batch []model.RawEntity) error {
		for _, r := range batch {
			ix.Add(RelationAliases(r.Fields), ExtractDistribution(r.Fields))
		}
		return nil
	})
	if err != nil {
		logger.WithError(err).WithField("collection", collection).Warn("读取评分分布集合失败，跳过")
		return NewDistributionIndex(), fmt.Errorf("评分分布集合 %s 读取失败 (%v): %w", collection, err, model.ErrSourceAbsent)
	}
	logger.WithFields(logrus.Fields{"collection": collection, "aliases": ix.Len()}).Info("评分分布已加载")
	return ix, nil
}
