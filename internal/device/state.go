package device

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// ElementCenter 在 UI 状态树里按可见文本找元素并算出中心坐标。
// JSONPath 递归下钻整棵树，第一个匹配的元素生效。
func ElementCenter(stateJSON []byte, text string) (x, y int, err error) {
	state, err := oj.Parse(stateJSON)
	if err != nil {
		return 0, 0, fmt.Errorf("parse ui state: %w", err)
	}

	query := fmt.Sprintf("$..[?(@.text == '%s')]", strings.ReplaceAll(text, "'", "\\'"))
	expr, err := jp.ParseString(query)
	if err != nil {
		return 0, 0, fmt.Errorf("build element query: %w", err)
	}

	for _, node := range expr.Get(state) {
		element, ok := node.(map[string]any)
		if !ok {
			continue
		}
		if x, y, ok := centerOf(element); ok {
			return x, y, nil
		}
	}
	return 0, 0, fmt.Errorf("no element with text %q", text)
}

// centerOf 兼容状态树里出现过的几种几何表示
func centerOf(element map[string]any) (int, int, bool) {
	// {"bounds": {"left":..,"top":..,"right":..,"bottom":..}}
	if bounds, ok := element["bounds"].(map[string]any); ok {
		l, lok := asInt(bounds["left"])
		t, tok := asInt(bounds["top"])
		r, rok := asInt(bounds["right"])
		b, bok := asInt(bounds["bottom"])
		if lok && tok && rok && bok {
			return (l + r) / 2, (t + b) / 2, true
		}
	}

	// {"bounds": "[l,t][r,b]"} uiautomator 风格
	if raw, ok := element["bounds"].(string); ok {
		var l, t, r, b int
		if _, err := fmt.Sscanf(raw, "[%d,%d][%d,%d]", &l, &t, &r, &b); err == nil {
			return (l + r) / 2, (t + b) / 2, true
		}
	}

	// {"x":..,"y":..,"width":..,"height":..}
	if px, ok := asInt(element["x"]); ok {
		if py, ok := asInt(element["y"]); ok {
			w, _ := asInt(element["width"])
			h, _ := asInt(element["height"])
			return px + w/2, py + h/2, true
		}
	}
	return 0, 0, false
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case int:
		return t, true
	default:
		return 0, false
	}
}
