package normalize

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"ViewBench/internal/model"

	"gorm.io/datatypes"
)

// 二元标记启发式阈值：0/1 值的个数必须超过 max(flagMinKeys, flagMinRatio*键总数)
const (
	flagMinKeys  = 5
	flagMinRatio = 0.1
)

// Report 单条记录的规范化报告
type Report struct {
	Unparsed    []string // 存在但无法转换的规范字段
	FlagDerived bool     // mechanics 来自二元标记启发式
}

// Stats 按进度节奏汇总的规范化统计
type Stats struct {
	Records     int64
	Unparsed    map[string]int64
	FlagDerived int64
}

// Observe 累加一条记录的报告
func (s *Stats) Observe(r Report) {
	s.Records++
	if r.FlagDerived {
		s.FlagDerived++
	}
	if len(r.Unparsed) == 0 {
		return
	}
	if s.Unparsed == nil {
		s.Unparsed = make(map[string]int64)
	}
	for _, f := range r.Unparsed {
		s.Unparsed[f]++
	}
}

// UnparsedTotal 转换失败总数
func (s *Stats) UnparsedTotal() int64 {
	var n int64
	for _, v := range s.Unparsed {
		n += v
	}
	return n
}

// Lookup 按候选顺序取第一个存在且非 null 的字段值
func Lookup(fields map[string]any, candidates []string) (any, bool) {
	for _, c := range candidates {
		if v, ok := get(fields, c); ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func get(fields map[string]any, path string) (any, bool) {
	if v, ok := fields[path]; ok {
		return v, true
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}
	var cur any = fields
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Aliases 记录的全部候选标识（字符串化、去重）；没有任何候选时退回内部ID
func Aliases(raw model.RawEntity) []string {
	ids := make([]string, 0, len(IDFields))
	for _, c := range IDFields {
		if v, ok := raw.Fields[c]; ok {
			ids = append(ids, ToText(v))
		}
	}
	ids = Dedupe(ids)
	if len(ids) == 0 && raw.SourceID != "" {
		ids = append(ids, raw.SourceID)
	}
	return ids
}

// Normalize 把一条原始记录映射为规范化游戏记录。纯函数，从不失败：
// 最坏情况下得到空数组和 null 标量。designers/publishers 的关系补全与评分分布由物化器负责。
func Normalize(raw model.RawEntity) (*model.Game, Report) {
	var rep Report
	f := raw.Fields
	if f == nil {
		f = map[string]any{}
	}

	g := &model.Game{SourceID: raw.SourceID}
	if v, ok := Lookup(f, IDFields); ok {
		g.ID = ToText(v)
	}
	if g.ID == "" {
		g.ID = raw.SourceID
	}
	if v, ok := Lookup(f, NameFields); ok {
		g.Name = ToText(v)
	}

	num := func(field string, candidates []string) Coercion {
		v, _ := Lookup(f, candidates)
		c := CoerceNumber(v)
		if c.Kind == Unparsed {
			rep.Unparsed = append(rep.Unparsed, field)
		}
		return c
	}
	if y := num("year", YearFields); y.Kind == Coerced {
		year := int(math.Trunc(y.Value))
		g.Year = &year
	}
	g.AvgRating = num("avgRating", AvgRatingFields).Float()
	g.BayesAvg = num("bayesAvg", BayesAvgFields).Float()
	g.StdDev = num("stdDev", StdDevFields).Float()
	g.Popularity = model.Popularity{
		NumOwned:   nonNegative(num("numOwned", NumOwnedFields).Int64Or(0)),
		NumWants:   nonNegative(num("numWants", NumWantsFields).Int64Or(0)),
		NumRatings: nonNegative(num("numRatings", NumRatingsFields).Int64Or(0)),
	}

	g.Ranks = datatypes.JSON("{}")
	if v, ok := Lookup(f, RanksFields); ok {
		if b, err := json.Marshal(v); err == nil {
			g.Ranks = datatypes.JSON(b)
		}
	}

	g.Mechanics = directList(f, MechanicsFields)
	if len(g.Mechanics) == 0 {
		if labels, ok := FlagLabels(f); ok {
			g.Mechanics = labels
			rep.FlagDerived = len(labels) > 0
		}
	}
	g.Themes = directList(f, ThemesFields)
	g.Subcategories = directList(f, SubcategoriesFields)
	g.Designers = directList(f, DesignersFields)
	g.Artists = directList(f, ArtistsFields)
	g.Publishers = directList(f, PublishersFields)
	return g, rep
}

func directList(fields map[string]any, candidates []string) []string {
	if v, ok := Lookup(fields, candidates); ok {
		return ToStringList(v)
	}
	return []string{}
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// FlagLabels 二元标记启发式：当值恰为 0 或 1 的键足够多时，值为 1 的键即类别标签。
// 已知字段名不作为标签；结果按字典序排列。未触发阈值时 ok 为 false。
func FlagLabels(fields map[string]any) ([]string, bool) {
	binary := 0
	for _, v := range fields {
		if isFlag(v, 0) || isFlag(v, 1) {
			binary++
		}
	}
	if float64(binary) <= math.Max(flagMinKeys, float64(len(fields))*flagMinRatio) {
		return nil, false
	}
	labels := make([]string, 0, binary)
	for k, v := range fields {
		if isFlag(v, 1) && !IsKnownField(k) {
			labels = append(labels, k)
		}
	}
	sort.Strings(labels)
	return labels, true
}

func isFlag(v any, want float64) bool {
	switch t := v.(type) {
	case float64:
		return t == want
	case int:
		return float64(t) == want
	case int64:
		return float64(t) == want
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == want
	}
	return false
}
