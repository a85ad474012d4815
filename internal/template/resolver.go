// Package template 实现 {{placeholder}} 占位符替换。
//
// 解析顺序：先输入参数，后运行时变量。对象类型的变量先展开
// {{name.field}} 形式的字段引用，再整体替换为 JSON 文本。
// 无法解析的占位符原样保留，便于排查拼写错误。
package template

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Resolve substitutes placeholders of the form {{name}} and {{name.field}}
// in s. Inputs take precedence over variables: an input placeholder is
// already gone by the time variables are applied.
func Resolve(s string, inputs, variables map[string]any) string {
	if !strings.Contains(s, "{{") {
		return s
	}

	for key, value := range inputs {
		s = strings.ReplaceAll(s, "{{"+key+"}}", Stringify(value))
	}

	for key, value := range variables {
		if obj, ok := value.(map[string]any); ok {
			// 字段引用优先于整体替换，否则 {{user.name}} 会被
			// {{user}} 的 JSON 文本截断
			for field, fv := range obj {
				s = strings.ReplaceAll(s, "{{"+key+"."+field+"}}", Stringify(fv))
			}
			if encoded, err := json.Marshal(obj); err == nil {
				s = strings.ReplaceAll(s, "{{"+key+"}}", string(encoded))
			}
			continue
		}
		s = strings.ReplaceAll(s, "{{"+key+"}}", Stringify(value))
	}

	return s
}

// ResolveParams applies Resolve to every string value of a params map and
// stringifies the rest. 设备动作的参数统一成字符串后下发。
func ResolveParams(params map[string]any, inputs, variables map[string]any) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if s, ok := v.(string); ok {
			out[k] = Resolve(s, inputs, variables)
			continue
		}
		out[k] = Stringify(v)
	}
	return out
}

// HasPlaceholder reports whether s still contains an unresolved {{...}} pair.
func HasPlaceholder(s string) bool {
	open := strings.Index(s, "{{")
	return open >= 0 && strings.Contains(s[open:], "}}")
}

// Stringify renders a value the way it should appear inside resolved text:
// strings verbatim, numbers without a trailing .0, booleans as true/false,
// everything else as compact JSON.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case json.Number:
		return t.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
