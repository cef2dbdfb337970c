package gemini

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lazysoft-news-pipeline/internal/adapter/content"
	"lazysoft-news-pipeline/internal/domain"
	"lazysoft-news-pipeline/internal/port"
)

// Generator 实现了 port.Generator 接口：
// 产出三语改写。这是语义风险最高的阶段，所以返回值走统一归一化，
// en/uk/pl 三个键保证齐全，内容永不为空。
type Generator struct {
	client  *Client
	logger  *zap.Logger
	logSink port.StageLogger
}

// NewGenerator 创建内容生成器
func NewGenerator(client *Client, logger *zap.Logger, logSink port.StageLogger) *Generator {
	return &Generator{client: client, logger: logger, logSink: logSink}
}

// Generate 生成三语改写 + 洞察字段。
// 模型挂掉或 JSON 修不好时降级到确定性兜底字典，调用方永远拿到可用内容。
func (g *Generator) Generate(ctx context.Context, article *domain.RawArticle, insights map[domain.Lang]*domain.InsightBundle, category string) (domain.LocaleMap, error) {
	prompt := g.buildPrompt(article, category)
	start := time.Now()

	res, err := g.client.GenerateJSON(ctx, prompt, maxTokensContent)
	if err != nil {
		g.logger.Warn("内容生成调用失败，使用确定性兜底",
			zap.String("article_id", article.ID),
			zap.Error(err),
		)
		reportStage(ctx, g.logSink, article.ID, "generate", nil, start, false, err.Error(), prompt)
		return content.Normalize(nil, article, insights), nil
	}

	parsed, ok := RepairJSON(res.Text)
	if !ok {
		g.logger.Warn("内容生成结果无法解析，使用确定性兜底", zap.String("article_id", article.ID))
		reportStage(ctx, g.logSink, article.ID, "generate", res, start, false, "JSON 修复失败", prompt)
		return content.Normalize(nil, article, insights), nil
	}

	draft := draftFromMap(parsed)
	reportStage(ctx, g.logSink, article.ID, "generate", res, start, true, "", prompt)
	return content.Normalize(draft, article, insights), nil
}

func (g *Generator) buildPrompt(article *domain.RawArticle, category string) string {
	return fmt.Sprintf(`You are a senior content editor for LazySoft, a European digital agency.
Rewrite the following news article for small-business readers in the UK, Ukraine and Poland.

Original title: %s
Category: %s
Original content: %s

Return ONE strict JSON object with these keys (no others):
title_en, title_uk, title_pl,
summary_en, summary_uk, summary_pl,
business_insight_en, business_insight_uk, business_insight_pl,
business_opportunities_en, business_opportunities_uk, business_opportunities_pl,
lazysoft_recommendations_en, lazysoft_recommendations_uk, lazysoft_recommendations_pl,
key_takeaways_en, key_takeaways_uk, key_takeaways_pl (lists of strings),
interesting_facts_en, interesting_facts_uk, interesting_facts_pl (lists of strings)

Rules:
1. Each summary must be 2000-3000 characters long.
2. Never copy or translate the original article verbatim - rewrite with a business angle.
3. Frame everything for European small and medium businesses.
4. Every _en field must be English, every _uk field Ukrainian, every _pl field Polish.
5. Return JSON only, without markdown fences.`,
		article.OriginalTitle, category, truncateRunes(article.Body, 4000))
}

// draftFromMap 把后缀键的扁平 map 转成按语言组织的草稿
func draftFromMap(m map[string]any) domain.LocaleMap {
	draft := domain.LocaleMap{}
	for _, lang := range domain.AllLangs() {
		suffix := "_" + string(lang)
		draft[lang] = domain.LocalizedContent{
			Title:                   getString(m, "title"+suffix),
			Summary:                 getString(m, "summary"+suffix),
			BusinessInsight:         getString(m, "business_insight"+suffix),
			BusinessOpportunities:   getString(m, "business_opportunities"+suffix),
			LazysoftRecommendations: getString(m, "lazysoft_recommendations"+suffix),
			KeyTakeaways:            getList(m, "key_takeaways"+suffix, 5),
			InterestingFacts:        getList(m, "interesting_facts"+suffix, 5),
		}
	}
	return draft
}
