package gemini

import (
	"crypto/sha256"
	"encoding/json"
	"regexp"
	"strings"
)

// RepairJSON 容错解析 AI 返回的 JSON。按顺序尝试：
//  1. 去掉 markdown 代码围栏
//  2. 去掉尾随逗号和单行注释
//  3. 用跟踪字符串/转义状态的花括号计数器抠出第一个顶层 {…} 对象
//  4. 标准解析
//  5. 失败则截断到最后一个 } 再试
//  6. 再失败则用正则抢救 title_en，合成最小骨架
//  7. 彻底失败返回 (nil, false)，调用方必须走确定性兜底
//
// 这个函数永远不会 panic。
func RepairJSON(raw string) (map[string]any, bool) {
	cleaned := stripFences(raw)
	cleaned = stripComments(cleaned)
	cleaned = stripTrailingCommas(cleaned)

	candidate := extractObject(cleaned)
	if candidate == "" {
		candidate = cleaned
	}

	if m, ok := tryParse(candidate); ok {
		return m, true
	}

	// 截断到最后一个 } 再试 (输出被 token 上限截断的常见情形)
	if idx := strings.LastIndex(candidate, "}"); idx >= 0 {
		if m, ok := tryParse(candidate[:idx+1]); ok {
			return m, true
		}
	}

	// 正则抢救 title_en，合成最小骨架
	if title := salvageTitle(raw); title != "" {
		return map[string]any{"title_en": title}, true
	}

	return nil, false
}

func tryParse(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	if m == nil {
		return nil, false
	}
	return m, true
}

// stripFences 去掉 ```json … ``` 这种 markdown 围栏
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	s = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*").ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// stripComments 去掉字符串外的 // 单行注释
func stripComments(s string) string {
	var b strings.Builder
	inString := false
	escaped := false
	i := 0
	for i < len(s) {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			i++
			continue
		}
		if ch == '"' {
			inString = true
			b.WriteByte(ch)
			i++
			continue
		}
		if ch == '/' && i+1 < len(s) && s[i+1] == '/' {
			// 跳到行尾
			for i < len(s) && s[i] != '\n' {
				i++
			}
			continue
		}
		b.WriteByte(ch)
		i++
	}
	return b.String()
}

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// stripTrailingCommas 去掉 }、] 前的尾随逗号
func stripTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

// extractObject 用花括号计数器抠出第一个顶层 JSON 对象。
// 计数时跟踪字符串状态和转义字符，避免被字符串里的花括号骗到。
func extractObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	// 没闭合：返回从 start 开始的剩余部分，交给上层截断重试
	return s[start:]
}

var titleRe = regexp.MustCompile(`"title_en"\s*:\s*"((?:[^"\\]|\\.)*)"`)

// salvageTitle 从碎掉的输出里抢救 title_en
func salvageTitle(raw string) string {
	m := titleRe.FindStringSubmatch(raw)
	if len(m) < 2 {
		return ""
	}
	var title string
	if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &title); err != nil {
		return m[1]
	}
	return title
}

// --- map 取值辅助 ---

func getString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func getList(m map[string]any, key string, max int) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

func getFloat(m map[string]any, key string) (float64, bool) {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return f, true
		}
	}
	return 0, false
}

func sha256Sum(s string) []byte {
	h := sha256.Sum256([]byte(s))
	return h[:]
}
