package social

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lazysoft-news-pipeline/internal/config"
	"lazysoft-news-pipeline/internal/domain"
	"lazysoft-news-pipeline/internal/port"
)

// fakePostRepo 只实现 EnsureSocialPost，(article, platform) 去重
type fakePostRepo struct {
	port.Repository
	posts map[string]*domain.SocialPost
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: map[string]*domain.SocialPost{}}
}

func (f *fakePostRepo) EnsureSocialPost(ctx context.Context, post *domain.SocialPost) (bool, error) {
	key := post.ArticleID + "|" + post.Platform
	if _, exists := f.posts[key]; exists {
		return false, nil
	}
	f.posts[key] = post
	return true, nil
}

func testArticle() *domain.ProcessedArticle {
	return &domain.ProcessedArticle{
		ID:       "art-1",
		Slug:     "openai-releases-new-model",
		Category: "ai",
		ImageURL: "https://img.example/1.jpg",
		Locales: domain.LocaleMap{
			domain.LangEN: {Title: "English title", BusinessInsight: "EN insight. More detail."},
			domain.LangUK: {Title: "Українська назва", BusinessInsight: "UK інсайт."},
			domain.LangPL: {Title: "Polski tytuł", BusinessInsight: "PL wgląd."},
		},
	}
}

func TestScheduler_Schedule(t *testing.T) {
	repo := newFakePostRepo()
	cfg := config.SocialConfig{
		Platforms:   []string{"telegram_uk", "telegram_pl"},
		SiteBaseURL: "https://lazysoft.dev/",
	}
	s := NewScheduler(repo, cfg, zap.NewNop())
	now := time.Date(2025, 11, 4, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	created, err := s.Schedule(context.Background(), testArticle())
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	ukPost := repo.posts["art-1|telegram_uk"]
	require.NotNil(t, ukPost)

	// 平台后缀决定文案语言
	assert.Contains(t, ukPost.Content, "Українська назва")
	// 链接从站点地址 + 语言 + slug 拼出，末尾斜杠被归一化
	assert.Contains(t, ukPost.Content, "https://lazysoft.dev/uk/news/openai-releases-new-model")
	assert.Contains(t, ukPost.Content, "#LazySoft")
	assert.Contains(t, ukPost.Content, "#ai")
	assert.Equal(t, domain.PostScheduled, ukPost.Status)
	assert.Equal(t, "https://img.example/1.jpg", ukPost.ImageURL)

	// 发布时间按平台错开
	plPost := repo.posts["art-1|telegram_pl"]
	require.NotNil(t, plPost)
	assert.Equal(t, now.Add(2*time.Hour), ukPost.ScheduledAt)
	assert.Equal(t, now.Add(2*time.Hour+30*time.Minute), plPost.ScheduledAt)
}

func TestScheduler_Schedule_Idempotent(t *testing.T) {
	repo := newFakePostRepo()
	cfg := config.SocialConfig{Platforms: []string{"telegram_uk"}, SiteBaseURL: "https://lazysoft.dev"}
	s := NewScheduler(repo, cfg, zap.NewNop())

	article := testArticle()
	created, err := s.Schedule(context.Background(), article)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	// 重复排期：唯一约束兜住，不再新建
	created, err = s.Schedule(context.Background(), article)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Len(t, repo.posts, 1)
}

func TestPlatformLang(t *testing.T) {
	tests := []struct {
		platform string
		expected domain.Lang
	}{
		{platform: "telegram_uk", expected: domain.LangUK},
		{platform: "telegram_pl", expected: domain.LangPL},
		{platform: "linkedin_en", expected: domain.LangEN},
		{platform: "twitter", expected: domain.LangEN}, // 无后缀默认英语
		{platform: "facebook_de", expected: domain.LangEN},
	}

	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			assert.Equal(t, tt.expected, platformLang(tt.platform))
		})
	}
}

func TestRenderPost_UnknownCategorySkipsTag(t *testing.T) {
	article := testArticle()
	article.Category = "general"
	content := renderPost(article.Locale(domain.LangEN), article, domain.LangEN, "https://lazysoft.dev")
	assert.NotContains(t, content, "#general")
	assert.Contains(t, content, "#LazySoft")
}
