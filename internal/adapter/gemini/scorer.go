package gemini

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"lazysoft-news-pipeline/internal/domain"
	"lazysoft-news-pipeline/internal/port"
)

// Scorer 实现了 port.Appraiser 接口：
// 让 LLM 对文章做 SMB 受众相关性分析，失败时降级到关键词兜底打分
type Scorer struct {
	client  *Client
	logger  *zap.Logger
	logSink port.StageLogger
}

// NewScorer 创建打分器
func NewScorer(client *Client, logger *zap.Logger, logSink port.StageLogger) *Scorer {
	return &Scorer{client: client, logger: logger, logSink: logSink}
}

// smbProfile 目标受众画像，嵌入打分 prompt
const smbProfile = `Target audience profile:
- Small and medium businesses with 1-50 employees
- Markets: Ukraine, Poland, United Kingdom
- Typical budgets: $500-$10000 for digital projects
- Pain points: manual routine work, no in-house IT, weak online presence,
  scattered customer data, rising advertising costs
- Decision makers: owners and operations managers, not engineers`

// Score 对单篇文章产出受众相关性分析。
// 模型调用失败或 JSON 修不好时走关键词兜底，永远不返回空结果。
func (s *Scorer) Score(ctx context.Context, article *domain.RawArticle, sourceCategory string) (*domain.RelevanceAnalysis, error) {
	prompt := s.buildPrompt(article, sourceCategory)
	start := time.Now()

	res, err := s.client.GenerateJSON(ctx, prompt, maxTokensScoring)
	if err != nil {
		s.logger.Warn("打分调用失败，走关键词兜底",
			zap.String("article_id", article.ID),
			zap.Error(err),
		)
		reportStage(ctx, s.logSink, article.ID, "score", nil, start, false, err.Error(), prompt)
		return KeywordFallback(article, sourceCategory), nil
	}

	parsed, ok := RepairJSON(res.Text)
	if !ok {
		s.logger.Warn("打分结果无法解析，走关键词兜底", zap.String("article_id", article.ID))
		reportStage(ctx, s.logSink, article.ID, "score", res, start, false, "JSON 修复失败", prompt)
		return KeywordFallback(article, sourceCategory), nil
	}

	analysis := s.fromMap(parsed, sourceCategory)
	analysis.Score = AdjustScore(analysis)
	reportStage(ctx, s.logSink, article.ID, "score", res, start, true, "", prompt)
	return analysis, nil
}

func (s *Scorer) buildPrompt(article *domain.RawArticle, sourceCategory string) string {
	return fmt.Sprintf(`You are a business analyst for a European digital agency.
%s

Analyze the following news article for relevance to this audience:

Title: %s
Category hint: %s
Content: %s

Return a strict JSON object with exactly these fields:
{
  "score": <number 1-10>,
  "category_match": "<one of: ai, automation, crm, seo, social, chatbots, ecommerce, fintech, corporate, general>",
  "target_audience": "<one of: ukraine, poland, uk, general>",
  "business_impact": "<low|medium|high>",
  "implementation_complexity": "<easy|medium|hard>",
  "cost_implications": "<low|medium|high>",
  "key_benefits": [<up to 5 strings>],
  "potential_concerns": [<up to 3 strings>],
  "confidence": <number 0-1>,
  "reasoning": "<one paragraph>"
}

Return JSON only, no markdown fences.`,
		smbProfile, article.OriginalTitle, sourceCategory, truncateRunes(article.Body, 2000))
}

// fromMap 把解析出的 map 转成 RelevanceAnalysis，缺字段补中性默认值
func (s *Scorer) fromMap(m map[string]any, sourceCategory string) *domain.RelevanceAnalysis {
	a := &domain.RelevanceAnalysis{
		CategoryMatch:            getString(m, "category_match"),
		TargetAudience:           getString(m, "target_audience"),
		BusinessImpact:           getString(m, "business_impact"),
		ImplementationComplexity: getString(m, "implementation_complexity"),
		CostImplications:         getString(m, "cost_implications"),
		KeyBenefits:              getList(m, "key_benefits", 5),
		PotentialConcerns:        getList(m, "potential_concerns", 3),
		Reasoning:                getString(m, "reasoning"),
	}

	if score, ok := getFloat(m, "score"); ok {
		a.Score = score
	} else {
		a.Score = 5
	}
	if conf, ok := getFloat(m, "confidence"); ok {
		a.Confidence = conf
	} else {
		a.Confidence = 0.5
	}

	if !domain.IsValidCategory(a.CategoryMatch) {
		a.CategoryMatch = sourceCategory
	}
	if a.TargetAudience == "" {
		a.TargetAudience = "general"
	}
	return a
}

// AdjustScore 先把原始分压到 1..10，再按实施难度/成本/影响/地域/置信度修正，
// 最后四舍五入并夹回 1..10
func AdjustScore(a *domain.RelevanceAnalysis) float64 {
	score := clampFloat(a.Score, 1, 10)

	switch a.ImplementationComplexity {
	case "easy":
		score++
	case "hard":
		score--
	}
	switch a.CostImplications {
	case "low":
		score++
	case "high":
		score--
	}
	switch a.BusinessImpact {
	case "high":
		score++
	case "low":
		score--
	}
	switch a.TargetAudience {
	case "ukraine", "poland", "uk":
		score += 0.5
	}
	if a.Confidence < 0.6 {
		score--
	}

	return clampFloat(math.Round(score), 1, 10)
}

// smbKeywords 兜底打分用的关键词表
var smbKeywords = []string{
	"small business", "smb", "sme", "startup", "automation", "ai", "chatbot",
	"crm", "e-commerce", "ecommerce", "online store", "marketing", "seo",
	"productivity", "no-code", "low-code", "integration", "saas",
	"cost saving", "workflow", "digital transformation", "payments",
}

// KeywordFallback 确定性兜底打分：按关键词命中数给 3..10 分，
// 分类沿用订阅源的声明分类
func KeywordFallback(article *domain.RawArticle, sourceCategory string) *domain.RelevanceAnalysis {
	text := strings.ToLower(article.OriginalTitle + " " + article.Body)
	matches := 0
	for _, kw := range smbKeywords {
		if strings.Contains(text, kw) {
			matches++
		}
	}

	category := sourceCategory
	if !domain.IsValidCategory(category) {
		category = "general"
	}

	return &domain.RelevanceAnalysis{
		Score:                    clampFloat(float64(3+matches), 3, 10),
		CategoryMatch:            category,
		TargetAudience:           "general",
		BusinessImpact:           "medium",
		ImplementationComplexity: "medium",
		CostImplications:         "medium",
		Confidence:               0.3,
		Reasoning:                "keyword fallback scoring",
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
