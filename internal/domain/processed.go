package domain

import "time"

// ArticleStatus 加工文章的发布状态
type ArticleStatus string

const (
	StatusDraft     ArticleStatus = "draft"
	StatusReview    ArticleStatus = "review"
	StatusPublished ArticleStatus = "published"
	StatusArchived  ArticleStatus = "archived"
)

// LocalizedContent 单语言的全部内容字段。
// 原实现用 title_{lang} 这种反射后缀访问，这里改成按语言显式建模，
// 对外 JSON 形状保持不变。
type LocalizedContent struct {
	Title                   string   `json:"title"`
	Summary                 string   `json:"summary"`
	BusinessInsight         string   `json:"business_insight"`
	BusinessOpportunities   string   `json:"business_opportunities"`
	LazysoftRecommendations string   `json:"lazysoft_recommendations"`
	LocalContext            string   `json:"local_context"`
	MetaTitle               string   `json:"meta_title"`
	MetaDescription         string   `json:"meta_description"`
	KeyTakeaways            []string `json:"key_takeaways"`
	InterestingFacts        []string `json:"interesting_facts"`
	ImagePrompt             string   `json:"image_prompt"`
	FullContent             string   `json:"full_content,omitempty"`
}

// LocaleMap 按语言组织的内容，入库时序列化为 JSONB
type LocaleMap map[Lang]LocalizedContent

// CTAButton 行动号召按钮的三语文案
type CTAButton struct {
	TextEN string `json:"text_en"`
	TextUK string `json:"text_uk"`
	TextPL string `json:"text_pl"`
	URL    string `json:"url"`
}

// CTABlock 文章底部的行动号召区块
type CTABlock struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Buttons     []CTAButton `json:"buttons"`
}

// ProcessedArticle 代表一篇加工完成的三语文章，是公开站点消费的最终产物
type ProcessedArticle struct {
	ID           string `json:"id" gorm:"primaryKey"`       // UUID
	Slug         string `json:"slug" gorm:"uniqueIndex"`    // URL 安全，全局唯一
	RawArticleID string `json:"raw_article_id" gorm:"uniqueIndex"` // 与 RawArticle 1:1
	Category     string `json:"category" gorm:"index:idx_status_category"`

	Status   ArticleStatus `json:"status" gorm:"index:idx_status_category;index:idx_status_published"`
	Priority int           `json:"priority"` // 1..5

	// 三语内容：en/uk/pl 三个键必须全部存在 (允许空串兜底)
	Locales LocaleMap `json:"locales" gorm:"serializer:json"`
	CTA     CTABlock  `json:"cta" gorm:"serializer:json"`

	ImageURL string `json:"image_url"`

	// 当日精选标记：is_top 的文章在同一天最多 K 篇，rank 为 1..k 连续排列
	IsTop            bool      `json:"is_top" gorm:"index:idx_top_rank"`
	Rank             int       `json:"rank" gorm:"index:idx_top_rank"`
	TopSelectionDate time.Time `json:"top_selection_date" gorm:"index"`

	RelevanceScore    float64 `json:"relevance_score"`
	ProcessingCostUSD float64 `json:"processing_cost_usd"`
	ProcessingSeconds float64 `json:"processing_seconds"`

	FullContentParsed  bool `json:"full_content_parsed"`
	ReadingTimeMinutes int  `json:"reading_time_minutes"`

	ViewsEN int `json:"views_en"`
	ViewsUK int `json:"views_uk"`
	ViewsPL int `json:"views_pl"`

	PublishedAt *time.Time `json:"published_at" gorm:"index:idx_status_published"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Locale 返回指定语言的内容，缺失时回退英语，再缺失返回零值
func (p *ProcessedArticle) Locale(lang Lang) LocalizedContent {
	if p.Locales == nil {
		return LocalizedContent{}
	}
	if c, ok := p.Locales[lang]; ok {
		return c
	}
	return p.Locales[LangEN]
}

// SetLocale 写入指定语言的内容，按需初始化 map
func (p *ProcessedArticle) SetLocale(lang Lang, c LocalizedContent) {
	if p.Locales == nil {
		p.Locales = LocaleMap{}
	}
	p.Locales[lang] = c
}

// HasAllLangs 校验三语内容是否齐全 (不变式：每个内容字段恰好一组语言三元组)
func (p *ProcessedArticle) HasAllLangs() bool {
	for _, lang := range AllLangs() {
		if _, ok := p.Locales[lang]; !ok {
			return false
		}
	}
	return true
}
