package port

import (
	"context"
	"time"

	"lazysoft-news-pipeline/internal/domain"
)

// StageLogger 各 AI 阶段上报 ProcessingLog 流水的回调，允许为 nil
type StageLogger func(ctx context.Context, entry *domain.ProcessingLog)

// FeedFetcher (采集员): 负责拉取并归一化单个 RSS 源的条目。
// targetDate 非空时只保留当天发布的条目；传 nil 表示默认取"昨天"的完整一天。
type FeedFetcher interface {
	Fetch(ctx context.Context, source *domain.Source, targetDate *time.Time) ([]*domain.ParsedArticle, error)
}

// Extractor (全文提取员): 调用本地抽取服务拿文章正文。
// 拿不到返回空串，错误不应该中断流水线。
type Extractor interface {
	Extract(ctx context.Context, articleURL string) (string, error)
}

// Appraiser (鉴定师): 负责调用 LLM 对原始文章做 SMB 受众相关性打分。
// LLM 挂掉时实现方必须降级到关键词兜底打分，永远返回可用的分析结果。
type Appraiser interface {
	Score(ctx context.Context, article *domain.RawArticle, sourceCategory string) (*domain.RelevanceAnalysis, error)
}

// Enricher (洞察分析师): 为入选文章生成三个本地化市场的商业洞察包。
type Enricher interface {
	Insights(ctx context.Context, article *domain.RawArticle, category string) (map[domain.Lang]*domain.InsightBundle, error)
}

// Generator (内容生成器): 产出三语改写 + SEO 元数据。
// 返回的 LocaleMap 保证 en/uk/pl 三个键齐全，内容永不为空 (解析失败走确定性兜底)。
type Generator interface {
	Generate(ctx context.Context, article *domain.RawArticle, insights map[domain.Lang]*domain.InsightBundle, category string) (domain.LocaleMap, error)
}

// ImageFinder (配图员): 按关键词在多个图库间做顺序兜底查询。
// 整个操作是尽力而为的，允许返回空串。
type ImageFinder interface {
	FindImage(ctx context.Context, title, category string, content string) (string, error)
}

// PostScheduler (信使): 为已发布文章在各配置平台排队 SocialPost 记录。
// (article, platform) 唯一约束保证重复调用是幂等的，返回新建的行数。
type PostScheduler interface {
	Schedule(ctx context.Context, article *domain.ProcessedArticle) (int, error)
}

// CacheInvalidator (缓存清理员): 批次结束后失效首页缓存，外部协作方实现
type CacheInvalidator interface {
	InvalidateHome(ctx context.Context) error
}

// Repository (仓库管理员): 唯一的持久化共享资源，所有写入都在事务中完成
type Repository interface {
	// --- 订阅源 ---
	ListActiveSources(ctx context.Context) ([]*domain.Source, error)
	SaveSource(ctx context.Context, source *domain.Source) error
	TouchSourceFetched(ctx context.Context, sourceID string, at time.Time) error

	// --- 原始文章 (C2 去重入库) ---
	LoadContentHashes(ctx context.Context, sourceID string) (map[string]struct{}, error)
	InsertRawArticles(ctx context.Context, articles []*domain.RawArticle) (int, error)
	CandidatesForDate(ctx context.Context, date time.Time, limit int) ([]*domain.RawArticle, error)
	UpdateRawArticle(ctx context.Context, article *domain.RawArticle) error

	// --- 加工文章 (C9) ---
	SaveProcessed(ctx context.Context, article *domain.ProcessedArticle) error
	// ProcessedByDate 按原始文章的发布日取加工行，回填历史日期时也成立
	ProcessedByDate(ctx context.Context, date time.Time) ([]*domain.ProcessedArticle, error)
	// ApplyTopSelection 先清除同日旧的 top 标记，再按给定顺序写入 rank 1..k。
	// is_top/rank/top_selection_date 只允许从这里写入。
	ApplyTopSelection(ctx context.Context, date time.Time, ranked []*domain.ProcessedArticle) error

	// --- 摘要 / 社交 / 流水 ---
	UpsertDigest(ctx context.Context, digest *domain.Digest) error
	EnsureSocialPost(ctx context.Context, post *domain.SocialPost) (bool, error)
	AppendLog(ctx context.Context, entry *domain.ProcessingLog) error
	RunCost(ctx context.Context, since time.Time) (tokens int, costUSD float64, err error)

	// --- 图片缓存 (C8, 30 天 TTL) ---
	GetCachedImage(ctx context.Context, queryHash string) (string, bool, error)
	PutCachedImage(ctx context.Context, entry *domain.ImageCacheEntry) error

	// Ping 健康检查，存储不可用是整个批次唯一的致命错误
	Ping(ctx context.Context) error
}
