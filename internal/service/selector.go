package service

import (
	"sort"

	"lazysoft-news-pipeline/internal/domain"
)

// SelectTop 从已打分候选里选前 k 个 (纯函数)。
// 排序键：分数降序 → 发布时间降序 → ID 升序，保证同一输入结果确定。
func SelectTop(candidates []*domain.ScoredCandidate, k int) []*domain.ScoredCandidate {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	sorted := make([]*domain.ScoredCandidate, len(candidates))
	copy(sorted, candidates)

	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Analysis.Score != b.Analysis.Score {
			return a.Analysis.Score > b.Analysis.Score
		}
		if !a.Article.PublishedAt.Equal(b.Article.PublishedAt) {
			return a.Article.PublishedAt.After(b.Article.PublishedAt)
		}
		return a.Article.ID < b.Article.ID
	})

	if k > len(sorted) {
		k = len(sorted)
	}
	return sorted[:k]
}
