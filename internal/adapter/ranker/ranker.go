package ranker

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"lazysoft-news-pipeline/internal/domain"
	"lazysoft-news-pipeline/internal/port"
)

// categoryWeights 分类热度加权，未列出的分类记 0
var categoryWeights = map[string]float64{
	"ai":         15,
	"automation": 12,
	"chatbots":   10,
	"crm":        8,
	"ecommerce":  8,
	"seo":        6,
	"fintech":    6,
	"social":     4,
	"corporate":  2,
}

// hotKeywords 标题命中即加分的关键词
var hotKeywords = []string{"ai", "automation", "chatbot", "gpt", "no-code"}

// Ranker 每日精选排序器：对当日加工文章做确定性打分，
// 标记 top-K 并给所有文章定优先级。is_top/rank/top_selection_date
// 只允许从这里经 ApplyTopSelection 写入。
type Ranker struct {
	repo   port.Repository
	logger *zap.Logger
	topK   int
	now    func() time.Time
}

// NewRanker 创建排序器
func NewRanker(repo port.Repository, topK int, logger *zap.Logger) *Ranker {
	if topK <= 0 {
		topK = 5
	}
	return &Ranker{repo: repo, logger: logger, topK: topK, now: time.Now}
}

// RankDay 对指定日期的全部加工文章重新排序并落库。
// 同一批输入重复执行结果完全一致 (幂等)。
func (r *Ranker) RankDay(ctx context.Context, date time.Time) (int, error) {
	articles, err := r.repo.ProcessedByDate(ctx, date)
	if err != nil {
		return 0, err
	}
	if len(articles) == 0 {
		return 0, nil
	}

	now := r.now()
	scores := make(map[string]float64, len(articles))
	for _, a := range articles {
		scores[a.ID] = Score(a, now)
	}

	sort.Slice(articles, func(i, j int) bool {
		if scores[articles[i].ID] != scores[articles[j].ID] {
			return scores[articles[i].ID] > scores[articles[j].ID]
		}
		return articles[i].ID < articles[j].ID
	})

	k := r.topK
	if k > len(articles) {
		k = len(articles)
	}

	for i, a := range articles {
		if i < k {
			a.Priority = topPriority(scores[a.ID])
		} else {
			a.Priority = restPriority(scores[a.ID])
		}
	}

	// 精选标记 (连同优先级) 在一个事务里先清后写
	if err := r.repo.ApplyTopSelection(ctx, date, articles[:k]); err != nil {
		return 0, err
	}

	// 落选文章更新优先级，同时清掉可能残留的旧精选标记
	for _, a := range articles[k:] {
		a.IsTop = false
		a.Rank = 0
		a.TopSelectionDate = time.Time{}
		if err := r.repo.SaveProcessed(ctx, a); err != nil {
			return 0, err
		}
	}

	r.logger.Info("当日精选排序完成",
		zap.Time("date", date),
		zap.Int("total", len(articles)),
		zap.Int("top", k),
	)
	return k, nil
}

// Score 单篇文章的确定性排序分，夹在 [0, 100]：
// 基础 50 + 内容长度 + 洞察齐全度 + 分类权重 + 配图 + 新鲜度 + 关键词
func Score(a *domain.ProcessedArticle, now time.Time) float64 {
	score := 50.0

	en := a.Locale(domain.LangEN)
	switch l := len(en.Summary); {
	case l >= 2500:
		score += 15
	case l >= 2000:
		score += 10
	case l >= 1000:
		score += 5
	}

	if en.BusinessInsight != "" && en.LazysoftRecommendations != "" {
		score += 10
	}
	if len(en.KeyTakeaways) >= 3 {
		score += 5
	}

	score += categoryWeights[a.Category]

	if a.ImageURL != "" {
		score += 5
	}

	// 新鲜度：创建时间越近越靠前
	switch age := now.Sub(a.CreatedAt); {
	case age < 24*time.Hour:
		score += 10
	case age < 48*time.Hour:
		score += 5
	case age > 7*24*time.Hour:
		score -= 10
	}

	// 按整词匹配，避免 "plain" 这类单词里的 "ai" 误命中
	tokens := map[string]bool{}
	for _, tok := range strings.FieldsFunc(strings.ToLower(en.Title), isTokenSep) {
		tokens[tok] = true
	}
	for _, kw := range hotKeywords {
		if tokens[kw] {
			score += 3
			break
		}
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// isTokenSep 标题分词的分隔符，连字符保留给 "no-code" 这类关键词
func isTokenSep(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
}

// topPriority 精选文章优先级：max(3, min(5, score/20))
func topPriority(score float64) int {
	p := int(score / 20)
	if p < 3 {
		p = 3
	}
	if p > 5 {
		p = 5
	}
	return p
}

// restPriority 落选文章优先级：max(2, min(4, score/25))
func restPriority(score float64) int {
	p := int(score / 25)
	if p < 2 {
		p = 2
	}
	if p > 4 {
		p = 4
	}
	return p
}
