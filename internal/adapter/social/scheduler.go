package social

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lazysoft-news-pipeline/internal/config"
	"lazysoft-news-pipeline/internal/domain"
	"lazysoft-news-pipeline/internal/port"
)

// 发布档期：批次结束后 2 小时起，各平台错开半小时
const (
	scheduleDelay   = 2 * time.Hour
	platformStagger = 30 * time.Minute
)

// platformLangs 平台后缀 → 文案语言，未知平台默认英语
var platformLangs = map[string]domain.Lang{
	"uk": domain.LangUK,
	"pl": domain.LangPL,
	"en": domain.LangEN,
}

// Scheduler 实现了 port.PostScheduler 接口：
// 为已发布文章在各配置平台排队 SocialPost 记录，实际投递由外部发布器完成
type Scheduler struct {
	repo      port.Repository
	platforms []string
	siteBase  string
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduler 创建社交排期器
func NewScheduler(repo port.Repository, cfg config.SocialConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		repo:      repo,
		platforms: cfg.Platforms,
		siteBase:  strings.TrimRight(cfg.SiteBaseURL, "/"),
		logger:    logger,
		now:       time.Now,
	}
}

// Schedule 为一篇文章在所有配置平台排队发布记录。
// (article, platform) 唯一约束保证重复调用幂等，返回本次新建的行数。
func (s *Scheduler) Schedule(ctx context.Context, article *domain.ProcessedArticle) (int, error) {
	created := 0
	base := s.now().Add(scheduleDelay)

	for i, platform := range s.platforms {
		lang := platformLang(platform)
		c := article.Locale(lang)

		post := &domain.SocialPost{
			ID:          uuid.NewString(),
			ArticleID:   article.ID,
			Platform:    platform,
			Content:     renderPost(c, article, lang, s.siteBase),
			ImageURL:    article.ImageURL,
			Status:      domain.PostScheduled,
			ScheduledAt: base.Add(time.Duration(i) * platformStagger),
		}

		inserted, err := s.repo.EnsureSocialPost(ctx, post)
		if err != nil {
			return created, err
		}
		if inserted {
			created++
		}
	}

	if created > 0 {
		s.logger.Info("社交发布已排期",
			zap.String("article_id", article.ID),
			zap.Int("created", created),
		)
	}
	return created, nil
}

// platformLang 按平台名后缀挑文案语言，例如 telegram_uk → uk
func platformLang(platform string) domain.Lang {
	idx := strings.LastIndex(platform, "_")
	if idx >= 0 {
		if lang, ok := platformLangs[platform[idx+1:]]; ok {
			return lang
		}
	}
	return domain.LangEN
}

// renderPost 拼社交文案：标题 + 主要洞察 + 链接 + 标签
func renderPost(c domain.LocalizedContent, article *domain.ProcessedArticle, lang domain.Lang, siteBase string) string {
	var b strings.Builder
	b.WriteString("📰 " + c.Title + "\n\n")

	if c.BusinessInsight != "" {
		b.WriteString(firstSentences(c.BusinessInsight, 2) + "\n\n")
	}

	b.WriteString(fmt.Sprintf("%s/%s/news/%s\n\n", siteBase, lang, article.Slug))
	b.WriteString(hashtags(article.Category))
	return b.String()
}

func hashtags(category string) string {
	tags := []string{"#LazySoft", "#SMB"}
	if category != "" && category != "general" {
		tags = append(tags, "#"+category)
	}
	return strings.Join(tags, " ")
}

// firstSentences 取前 n 句
func firstSentences(s string, n int) string {
	count := 0
	for i, r := range s {
		switch r {
		case '.', '!', '?':
			count++
			if count == n {
				return s[:i+1]
			}
		}
	}
	return s
}
