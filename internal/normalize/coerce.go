package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind 数值转换结果的类别
type Kind int

const (
	Missing  Kind = iota // 字段不存在或为 null
	Coerced              // 成功转换为数值
	Unparsed             // 存在但无法转换，Raw 保留原值
)

// Coercion 带标签的数值转换结果；调用方必须显式处理 Unparsed
type Coercion struct {
	Kind  Kind
	Value float64
	Raw   string
}

// Float 转换成功时返回指针，否则返回 nil
func (c Coercion) Float() *float64 {
	if c.Kind != Coerced {
		return nil
	}
	v := c.Value
	return &v
}

// Int64Or 转换成功时截断为整数，否则返回 fallback
func (c Coercion) Int64Or(fallback int64) int64 {
	if c.Kind != Coerced {
		return fallback
	}
	return int64(math.Trunc(c.Value))
}

// CoerceNumber 把任意原始值转换为数值
func CoerceNumber(v any) Coercion {
	switch t := v.(type) {
	case nil:
		return Coercion{Kind: Missing}
	case float64:
		return finite(t, "")
	case float32:
		return finite(float64(t), "")
	case int:
		return Coercion{Kind: Coerced, Value: float64(t)}
	case int64:
		return Coercion{Kind: Coerced, Value: float64(t)}
	case int32:
		return Coercion{Kind: Coerced, Value: float64(t)}
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Coercion{Kind: Unparsed, Raw: t.String()}
		}
		return finite(f, t.String())
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return Coercion{Kind: Missing}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Coercion{Kind: Unparsed, Raw: t}
		}
		return finite(f, t)
	default:
		b, _ := json.Marshal(t)
		return Coercion{Kind: Unparsed, Raw: string(b)}
	}
}

func finite(f float64, raw string) Coercion {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Coercion{Kind: Unparsed, Raw: raw}
	}
	return Coercion{Kind: Coerced, Value: f}
}

// FormatNumber 数值转字符串（整数不带小数点）
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToText 标量转字符串；非标量或 null 返回空串
func ToText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return FormatNumber(t)
	case float32:
		return FormatNumber(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// ToStringList 把数组值（或 JSON 数组字符串）转换为去重后的字符串列表，从不返回 nil
func ToStringList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			out = append(out, ToText(e))
		}
	case []string:
		out = append(out, t...)
	case string:
		s := strings.TrimSpace(t)
		if strings.HasPrefix(s, "[") {
			var arr []any
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				return ToStringList(arr)
			}
		}
		out = append(out, s)
	}
	return Dedupe(out)
}

// Dedupe 去重并去掉空串，保留首次出现的顺序
func Dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
