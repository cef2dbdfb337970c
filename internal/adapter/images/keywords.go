package images

import (
	"sort"
	"strings"
)

// stopWords 关键词提取要剔除的高频虚词
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"from": {}, "have": {}, "has": {}, "are": {}, "was": {}, "were": {},
	"will": {}, "can": {}, "could": {}, "would": {}, "should": {}, "been": {},
	"into": {}, "over": {}, "after": {}, "before": {}, "about": {}, "your": {},
	"their": {}, "they": {}, "its": {}, "his": {}, "her": {}, "our": {},
	"new": {}, "more": {}, "most": {}, "how": {}, "why": {}, "what": {},
	"when": {}, "who": {}, "than": {}, "then": {}, "also": {}, "just": {},
	"not": {}, "but": {}, "all": {}, "out": {}, "now": {}, "you": {},
}

// ExtractKeywords 从标题+正文里按词频取前 n 个关键词。
// 只保留长度 ≥4 的字母词，剔除停用词，频率相同时按字典序保证确定性。
func ExtractKeywords(title, body string, n int) []string {
	freq := map[string]int{}
	for _, w := range strings.Fields(strings.ToLower(title + " " + body)) {
		w = strings.Trim(w, ".,!?:;\"'()[]{}«»„”…-")
		if len(w) < 4 || !isAlpha(w) {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		freq[w]++
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > n {
		words = words[:n]
	}
	return words
}

// BuildQueries 生成按优先级排列的图库查询串：
// 关键词组合 → 分类 + business → 通用兜底
func BuildQueries(title, category, body string) []string {
	var queries []string

	keywords := ExtractKeywords(title, body, 5)
	if len(keywords) >= 2 {
		queries = append(queries, strings.Join(keywords[:2], " ")+" "+category)
	}
	if len(keywords) >= 1 {
		queries = append(queries, keywords[0]+" business")
	}
	queries = append(queries, category+" business", "business technology")
	return queries
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
