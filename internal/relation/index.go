package relation

import (
	"context"
	"fmt"
	"sort"

	"ViewBench/internal/interfaces"
	"ViewBench/internal/model"
	"ViewBench/internal/normalize"

	"github.com/sirupsen/logrus"
)

// 关系记录中名称字段的候选
var (
	DesignerNameFields  = []string{"name", "Name", "Designer", "DesignerName", "designer"}
	PublisherNameFields = []string{"name", "Name", "Publisher", "PublisherName", "publisher"}
)

// Index 别名 -> 名称列表。同一条关系记录的所有别名指向同一组名称，按出现顺序追加。
type Index struct {
	names map[string][]string
	rows  int
}

func NewIndex() *Index {
	return &Index{names: make(map[string][]string)}
}

// Add 把 names 注册到每个别名下（跳过空名称与空别名）
func (ix *Index) Add(aliases []string, names ...string) {
	ix.rows++
	for _, a := range aliases {
		if a == "" {
			continue
		}
		for _, n := range names {
			if n == "" {
				continue
			}
			ix.names[a] = append(ix.names[a], n)
		}
	}
}

// Lookup 依次尝试各别名，返回第一个非空命中
func (ix *Index) Lookup(aliases ...string) []string {
	if ix == nil {
		return nil
	}
	for _, a := range aliases {
		if list := ix.names[a]; len(list) > 0 {
			return list
		}
	}
	return nil
}

// Len 已注册的别名数
func (ix *Index) Len() int { return len(ix.names) }

// Rows 已读取的关系记录数
func (ix *Index) Rows() int { return ix.rows }

// RelationAliases 关系记录的别名（不含存储内部ID，避免与游戏内部ID误配）
func RelationAliases(fields map[string]any) []string {
	out := make([]string, 0, len(normalize.RelationAliasFields))
	for _, f := range normalize.RelationAliasFields {
		if v, ok := fields[f]; ok {
			out = append(out, normalize.ToText(v))
		}
	}
	return normalize.Dedupe(out)
}

// RelationNames 提取关系记录中的名称；没有名称字段时按透视格式处理：值为 1 的列名即名称
func RelationNames(fields map[string]any, nameFields []string) []string {
	if v, ok := normalize.Lookup(fields, nameFields); ok {
		if n := normalize.ToText(v); n != "" {
			return []string{n}
		}
		return nil
	}
	var names []string
	for k, v := range fields {
		if normalize.IsKnownField(k) {
			continue
		}
		if c := normalize.CoerceNumber(v); c.Kind == normalize.Coerced && c.Value == 1 {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// Build 流式读取一个辅助关系集合并构建索引。
// 集合不存在或读取失败时返回空索引（非 nil）和包装了 model.ErrSourceAbsent 的错误，调用方降级继续。
func Build(ctx context.Context, src interfaces.RawSource, collection string, nameFields []string, batchSize int, logger *logrus.Logger) (*Index, error) {
	ix := NewIndex()
	ok, err := src.HasRaw(ctx, collection)
	if err != nil || !ok {
		logger.WithField("collection", collection).Info("关系集合不存在或为空，使用空索引")
		return ix, fmt.Errorf("关系集合 %s: %w", collection, model.ErrSourceAbsent)
	}
	err = src.StreamRaw(ctx, collection, batchSize, func(batch []model.RawEntity) error {
		for _, r := range batch {
			ix.Add(RelationAliases(r.Fields), RelationNames(r.Fields, nameFields)...)
		}
		return nil
	})
	if err != nil {
		logger.WithError(err).WithField("collection", collection).Warn("读取关系集合失败，使用空索引")
		return NewIndex(), fmt.Errorf("关系集合 %s 读取失败 (%v): %w", collection, err, model.ErrSourceAbsent)
	}
	logger.WithFields(logrus.Fields{
		"collection": collection,
		"rows":       ix.Rows(),
		"aliases":    ix.Len(),
	}).Info("关系索引已加载")
	return ix, nil
}
