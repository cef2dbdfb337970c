package gemini

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"lazysoft-news-pipeline/internal/domain"
	"lazysoft-news-pipeline/internal/port"
)

// Enricher 实现了 port.Enricher 接口：
// 为入选文章生成三个本地化市场的商业洞察包
type Enricher struct {
	client  *Client
	logger  *zap.Logger
	logSink port.StageLogger
}

// NewEnricher 创建洞察分析器
func NewEnricher(client *Client, logger *zap.Logger, logSink port.StageLogger) *Enricher {
	return &Enricher{client: client, logger: logger, logSink: logSink}
}

// brandContext 品牌上下文，注入洞察 prompt
const brandContext = `Brand context:
- LazySoft is a digital agency building automation, AI and web solutions for SMBs
- Expertise: CRM integration, chatbots, e-commerce, business process automation
- Typical project budgets: $500-$10000
- Market pain points: manual work, fragmented tooling, limited technical staff`

// 语言 → 目标市场映射 (en→uk 市场, pl→poland, uk→ukraine)
var langMarkets = map[domain.Lang]string{
	domain.LangEN: "the United Kingdom",
	domain.LangPL: "Poland",
	domain.LangUK: "Ukraine",
}

var langNames = map[domain.Lang]string{
	domain.LangEN: "English",
	domain.LangPL: "Polish",
	domain.LangUK: "Ukrainian",
}

// Insights 为三个语言/市场各生成一份洞察包。
// 单个语言失败不影响其他语言，缺失字段用中性兜底填充。
func (e *Enricher) Insights(ctx context.Context, article *domain.RawArticle, category string) (map[domain.Lang]*domain.InsightBundle, error) {
	out := make(map[domain.Lang]*domain.InsightBundle, 3)

	for _, lang := range domain.AllLangs() {
		bundle, err := e.insightsForLang(ctx, article, category, lang)
		if err != nil {
			e.logger.Warn("洞察生成失败，用兜底内容",
				zap.String("article_id", article.ID),
				zap.String("lang", string(lang)),
				zap.Error(err),
			)
			bundle = neutralBundle(lang)
		}
		out[lang] = bundle
	}

	return out, nil
}

func (e *Enricher) insightsForLang(ctx context.Context, article *domain.RawArticle, category string, lang domain.Lang) (*domain.InsightBundle, error) {
	prompt := fmt.Sprintf(`%s

Write business insights in %s for SMB readers in %s about this article:

Title: %s
Category: %s
Content: %s

Return a strict JSON object:
{
  "main_insight": "<key business takeaway>",
  "practical_applications": [<up to 5 strings>],
  "lazysoft_perspective": "<agency viewpoint>",
  "implementation_steps": [<up to 5 strings>],
  "roi_estimate": "<expected return description>",
  "key_takeaways": [<up to 5 strings>],
  "interesting_facts": [<up to 5 strings>],
  "business_opportunity": "<opportunity for local SMBs>",
  "lazysoft_recommendation": "<what LazySoft recommends to do now>"
}

All values must be written in %s. Return JSON only.`,
		brandContext, langNames[lang], langMarkets[lang],
		article.OriginalTitle, category, truncateRunes(article.Body, 1500), langNames[lang])

	start := time.Now()
	res, err := e.client.GenerateJSON(ctx, prompt, maxTokensInsights)
	if err != nil {
		reportStage(ctx, e.logSink, article.ID, "insights", nil, start, false, err.Error(), prompt)
		return nil, err
	}

	parsed, ok := RepairJSON(res.Text)
	if !ok {
		reportStage(ctx, e.logSink, article.ID, "insights", res, start, false, "JSON 修复失败", prompt)
		return nil, fmt.Errorf("洞察 JSON 无法修复")
	}
	reportStage(ctx, e.logSink, article.ID, "insights", res, start, true, "", prompt)

	bundle := &domain.InsightBundle{
		MainInsight:            getString(parsed, "main_insight"),
		PracticalApplications:  getList(parsed, "practical_applications", 5),
		LazysoftPerspective:    getString(parsed, "lazysoft_perspective"),
		ImplementationSteps:    getList(parsed, "implementation_steps", 5),
		ROIEstimate:            getString(parsed, "roi_estimate"),
		KeyTakeaways:           getList(parsed, "key_takeaways", 5),
		InterestingFacts:       getList(parsed, "interesting_facts", 5),
		BusinessOpportunity:    getString(parsed, "business_opportunity"),
		LazysoftRecommendation: getString(parsed, "lazysoft_recommendation"),
	}

	fillNeutral(bundle, lang)
	return bundle, nil
}

// neutralFallbacks 缺字段时的中性兜底文案
var neutralFallbacks = map[domain.Lang]struct {
	insight, recommendation string
}{
	domain.LangEN: {
		insight:        "This development is worth watching for small businesses adopting digital tools.",
		recommendation: "Review how this trend applies to your processes and start with a small pilot.",
	},
	domain.LangUK: {
		insight:        "Ця подія варта уваги малого бізнесу, що впроваджує цифрові інструменти.",
		recommendation: "Оцініть, як цей тренд стосується ваших процесів, і почніть з малого пілота.",
	},
	domain.LangPL: {
		insight:        "To wydarzenie jest warte uwagi małych firm wdrażających narzędzia cyfrowe.",
		recommendation: "Oceń, jak ten trend dotyczy Twoich procesów, i zacznij od małego pilotażu.",
	},
}

// fillNeutral 把空字段补成中性兜底
func fillNeutral(b *domain.InsightBundle, lang domain.Lang) {
	fb := neutralFallbacks[lang]
	if b.MainInsight == "" {
		b.MainInsight = fb.insight
	}
	if b.LazysoftRecommendation == "" {
		b.LazysoftRecommendation = fb.recommendation
	}
	if b.LazysoftPerspective == "" {
		b.LazysoftPerspective = fb.insight
	}
	if b.BusinessOpportunity == "" {
		b.BusinessOpportunity = fb.insight
	}
	if b.ROIEstimate == "" {
		b.ROIEstimate = "n/a"
	}
}

// neutralBundle 全兜底的洞察包
func neutralBundle(lang domain.Lang) *domain.InsightBundle {
	b := &domain.InsightBundle{}
	fillNeutral(b, lang)
	return b
}
