package domain

import "time"

// PostStatus 社交发布任务的状态机：
// draft → scheduled → published，或 scheduled → failed → scheduled (重试)
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostScheduled PostStatus = "scheduled"
	PostPublished PostStatus = "published"
	PostFailed    PostStatus = "failed"
)

// SocialPost 代表 (文章, 平台) 的一次下游发布记录。
// (article_id, platform) 唯一，保证每个平台对每篇文章至多持久化一次。
type SocialPost struct {
	ID        string `json:"id" gorm:"primaryKey"` // UUID
	ArticleID string `json:"article_id" gorm:"uniqueIndex:idx_article_platform"`
	Platform  string `json:"platform" gorm:"uniqueIndex:idx_article_platform"` // 例如 telegram_uk

	Content  string `json:"content" gorm:"type:text"`
	ImageURL string `json:"image_url"`

	Status         PostStatus `json:"status"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	PublishedAt    *time.Time `json:"published_at"`
	ExternalPostID string     `json:"external_post_id"`
	RetryCount     int        `json:"retry_count"`
	ErrorMessage   string     `json:"error_message"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Digest 按日期聚合的当日精选摘要，公开站首页消费
type Digest struct {
	ID   string    `json:"id" gorm:"primaryKey"` // UUID
	Date time.Time `json:"date" gorm:"uniqueIndex"`

	TitleEN string `json:"title_en"`
	TitleUK string `json:"title_uk"`
	TitlePL string `json:"title_pl"`
	IntroEN string `json:"intro_en" gorm:"type:text"`
	IntroUK string `json:"intro_uk" gorm:"type:text"`
	IntroPL string `json:"intro_pl" gorm:"type:text"`

	// 精选文章 ID 列表，必须是同日 top 集合的子集
	ArticleIDs    []string `json:"article_ids" gorm:"serializer:json"`
	TotalArticles int      `json:"total_articles"`

	IsPublished bool       `json:"is_published"`
	GeneratedAt time.Time  `json:"generated_at"`
	PublishedAt *time.Time `json:"published_at"`
}

// ProcessingLog 按阶段追加的处理流水，供编排器统计指标和后台看板使用
type ProcessingLog struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	RawArticleID string    `json:"raw_article_id" gorm:"index"`
	Stage        string    `json:"stage"` // score / extract / insights / generate / image / persist
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	DurationMS   int64     `json:"duration_ms"`
	CostUSD      float64   `json:"cost_usd"`
	Success      bool      `json:"success"`
	Error        string    `json:"error"`
	InputDigest  string    `json:"input_digest"`
	OutputDigest string    `json:"output_digest"`
	CreatedAt    time.Time `json:"created_at"`
}

// ImageCacheEntry 图片搜索结果缓存，按首个查询串的 MD5 键控，30 天过期
type ImageCacheEntry struct {
	QueryHash string    `json:"query_hash" gorm:"primaryKey"` // MD5
	Query     string    `json:"query"`
	ImageURL  string    `json:"image_url"`
	Provider  string    `json:"provider"` // unsplash / pexels / pixabay
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
