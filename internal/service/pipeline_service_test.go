package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lazysoft-news-pipeline/internal/adapter/content"
	"lazysoft-news-pipeline/internal/adapter/ranker"
	"lazysoft-news-pipeline/internal/adapter/social"
	"lazysoft-news-pipeline/internal/config"
	"lazysoft-news-pipeline/internal/domain"
)

// --- 内存仓库，完整实现 port.Repository ---

type memRepo struct {
	mu        sync.Mutex
	sources   map[string]*domain.Source
	raws      map[string]*domain.RawArticle
	processed map[string]*domain.ProcessedArticle
	digests   map[string]*domain.Digest
	posts     map[string]*domain.SocialPost
	logs      []*domain.ProcessingLog
	images    map[string]*domain.ImageCacheEntry
	pingErr   error
}

func newMemRepo() *memRepo {
	return &memRepo{
		sources:   map[string]*domain.Source{},
		raws:      map[string]*domain.RawArticle{},
		processed: map[string]*domain.ProcessedArticle{},
		digests:   map[string]*domain.Digest{},
		posts:     map[string]*domain.SocialPost{},
		images:    map[string]*domain.ImageCacheEntry{},
	}
}

func (r *memRepo) ListActiveSources(ctx context.Context) ([]*domain.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Source
	for _, s := range r.sources {
		if s.Active {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) SaveSource(ctx context.Context, source *domain.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.ID] = source
	return nil
}

func (r *memRepo) TouchSourceFetched(ctx context.Context, sourceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sources[sourceID]; ok {
		s.LastFetchedAt = at
	}
	return nil
}

func (r *memRepo) LoadContentHashes(ctx context.Context, sourceID string) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := map[string]struct{}{}
	for _, a := range r.raws {
		if a.SourceID == sourceID {
			set[a.ContentHash] = struct{}{}
		}
	}
	return set, nil
}

func (r *memRepo) InsertRawArticles(ctx context.Context, articles []*domain.RawArticle) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inserted := 0
	for _, a := range articles {
		dup := false
		for _, existing := range r.raws {
			if existing.SourceID == a.SourceID && existing.ContentHash == a.ContentHash {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		r.raws[a.ID] = a
		inserted++
	}
	return inserted, nil
}

func (r *memRepo) CandidatesForDate(ctx context.Context, date time.Time, limit int) ([]*domain.RawArticle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := date.Add(24 * time.Hour)
	var out []*domain.RawArticle
	for _, a := range r.raws {
		if a.IsProcessed || a.IsDuplicate {
			continue
		}
		if a.PublishedAt.Before(date) || !a.PublishedAt.Before(end) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].PublishedAt.After(out[j].PublishedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRepo) UpdateRawArticle(ctx context.Context, article *domain.RawArticle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raws[article.ID] = article
	return nil
}

func (r *memRepo) SaveProcessed(ctx context.Context, article *domain.ProcessedArticle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now()
	}
	r.processed[article.ID] = article
	return nil
}

func (r *memRepo) ProcessedByDate(ctx context.Context, date time.Time) ([]*domain.ProcessedArticle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	end := date.Add(24 * time.Hour)
	var out []*domain.ProcessedArticle
	for _, a := range r.processed {
		raw, ok := r.raws[a.RawArticleID]
		if !ok {
			continue
		}
		if !raw.PublishedAt.Before(date) && raw.PublishedAt.Before(end) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) ApplyTopSelection(ctx context.Context, date time.Time, ranked []*domain.ProcessedArticle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.processed {
		if a.IsTop && a.TopSelectionDate.Equal(date) {
			a.IsTop = false
			a.Rank = 0
		}
	}
	for i, a := range ranked {
		stored := r.processed[a.ID]
		stored.IsTop = true
		stored.Rank = i + 1
		stored.TopSelectionDate = date
		stored.Priority = a.Priority
	}
	return nil
}

func (r *memRepo) UpsertDigest(ctx context.Context, digest *domain.Digest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.digests[digest.Date.Format("2006-01-02")] = digest
	return nil
}

func (r *memRepo) EnsureSocialPost(ctx context.Context, post *domain.SocialPost) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := post.ArticleID + "|" + post.Platform
	if _, exists := r.posts[key]; exists {
		return false, nil
	}
	r.posts[key] = post
	return true, nil
}

func (r *memRepo) AppendLog(ctx context.Context, entry *domain.ProcessingLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, entry)
	return nil
}

func (r *memRepo) RunCost(ctx context.Context, since time.Time) (int, float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tokens := 0
	cost := 0.0
	for _, l := range r.logs {
		tokens += l.InputTokens + l.OutputTokens
		cost += l.CostUSD
	}
	return tokens, cost, nil
}

func (r *memRepo) GetCachedImage(ctx context.Context, queryHash string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.images[queryHash]; ok {
		return e.ImageURL, true, nil
	}
	return "", false, nil
}

func (r *memRepo) PutCachedImage(ctx context.Context, entry *domain.ImageCacheEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[entry.QueryHash] = entry
	return nil
}

func (r *memRepo) Ping(ctx context.Context) error {
	return r.pingErr
}

// --- Mock 适配器 ---

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, source *domain.Source, targetDate *time.Time) ([]*domain.ParsedArticle, error) {
	args := m.Called(ctx, source, targetDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ParsedArticle), args.Error(1)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, articleURL string) (string, error) {
	args := m.Called(ctx, articleURL)
	return args.String(0), args.Error(1)
}

type MockAppraiser struct {
	mock.Mock
}

func (m *MockAppraiser) Score(ctx context.Context, article *domain.RawArticle, sourceCategory string) (*domain.RelevanceAnalysis, error) {
	args := m.Called(ctx, article, sourceCategory)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RelevanceAnalysis), args.Error(1)
}

type MockEnricher struct {
	mock.Mock
}

func (m *MockEnricher) Insights(ctx context.Context, article *domain.RawArticle, category string) (map[domain.Lang]*domain.InsightBundle, error) {
	args := m.Called(ctx, article, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.Lang]*domain.InsightBundle), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, article *domain.RawArticle, insights map[domain.Lang]*domain.InsightBundle, category string) (domain.LocaleMap, error) {
	args := m.Called(ctx, article, insights, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.LocaleMap), args.Error(1)
}

type MockImageFinder struct {
	mock.Mock
}

func (m *MockImageFinder) FindImage(ctx context.Context, title, category string, body string) (string, error) {
	args := m.Called(ctx, title, category, body)
	return args.String(0), args.Error(1)
}

// --- 测试脚手架 ---

type pipelineFixture struct {
	repo      *memRepo
	fetcher   *MockFetcher
	extract   *MockExtractor
	appraiser *MockAppraiser
	enricher  *MockEnricher
	generator *MockGenerator
	images    *MockImageFinder
	svc       *PipelineService
}

func newFixture(topK int) *pipelineFixture {
	logger := zap.NewNop()
	repo := newMemRepo()

	f := &pipelineFixture{
		repo:      repo,
		fetcher:   &MockFetcher{},
		extract:   &MockExtractor{},
		appraiser: &MockAppraiser{},
		enricher:  &MockEnricher{},
		generator: &MockGenerator{},
		images:    &MockImageFinder{},
	}

	scheduler := social.NewScheduler(repo, config.SocialConfig{
		Platforms:   []string{"telegram_uk", "telegram_pl"},
		SiteBaseURL: "https://lazysoft.dev",
	}, logger)

	sources := []*domain.Source{
		{ID: "technews", Name: "Tech News", FeedURL: "https://technews.example/feed", Language: domain.LangEN, Category: "ai", Active: true},
	}

	f.svc = NewPipelineService(
		repo, f.fetcher, f.extract, f.appraiser, f.enricher, f.generator,
		f.images, scheduler, nil,
		ranker.NewRanker(repo, topK, logger),
		NewCostTracker(repo, logger),
		nil, logger, sources,
		Params{TopK: topK, CandidateLimit: 20, MaxParallel: 2, RunTimeout: time.Minute},
	)
	return f
}

func articleTitle(i int) string {
	return fmt.Sprintf("Article number %d about automation", i)
}

func parsedArticle(i int, day time.Time) *domain.ParsedArticle {
	return &domain.ParsedArticle{
		SourceID:    "technews",
		URL:         fmt.Sprintf("https://technews.example/a%d", i),
		Title:       articleTitle(i),
		Body:        strings.Repeat(fmt.Sprintf("Body of article %d. ", i), 30),
		Summary:     fmt.Sprintf("Summary %d", i),
		PublishedAt: day.Add(time.Duration(i) * time.Hour),
		ContentHash: fmt.Sprintf("hash-%d", i),
	}
}

// titled 按标题匹配流水线内部构造的 RawArticle (ID 是运行时生成的 UUID)
func titled(i int) interface{} {
	return mock.MatchedBy(func(a *domain.RawArticle) bool {
		return a.OriginalTitle == articleTitle(i)
	})
}

func testInsights() map[domain.Lang]*domain.InsightBundle {
	out := map[domain.Lang]*domain.InsightBundle{}
	for _, lang := range domain.AllLangs() {
		out[lang] = &domain.InsightBundle{
			MainInsight:            "Insight " + string(lang) + ".",
			BusinessOpportunity:    "Opportunity " + string(lang) + ".",
			LazysoftRecommendation: "Recommendation " + string(lang) + ".",
			KeyTakeaways:           []string{"one", "two"},
		}
	}
	return out
}

// localesFor 用确定性兜底预先算好第 i 篇文章的三语内容
func localesFor(i int) domain.LocaleMap {
	standIn := &domain.RawArticle{
		SourceID:      "technews",
		OriginalTitle: articleTitle(i),
		Summary:       fmt.Sprintf("Summary %d", i),
	}
	return content.Normalize(nil, standIn, testInsights())
}

func analysis(score float64) *domain.RelevanceAnalysis {
	return &domain.RelevanceAnalysis{Score: score, CategoryMatch: "ai", Confidence: 0.9}
}

func TestRunDaily_HappyPath(t *testing.T) {
	day := domain.DayOf(time.Now().AddDate(0, 0, -1))
	f := newFixture(2)

	parsed := []*domain.ParsedArticle{
		parsedArticle(1, day),
		parsedArticle(2, day),
		parsedArticle(3, day),
	}
	f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(parsed, nil)
	f.extract.On("Extract", mock.Anything, mock.Anything).Return("", nil)
	f.images.On("FindImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("https://img.example/pic.jpg", nil)

	// a3 > a2 > a1，topK=2 应淘汰 a1
	f.appraiser.On("Score", mock.Anything, titled(1), "ai").Return(analysis(5), nil)
	f.appraiser.On("Score", mock.Anything, titled(2), "ai").Return(analysis(7), nil)
	f.appraiser.On("Score", mock.Anything, titled(3), "ai").Return(analysis(9), nil)

	f.enricher.On("Insights", mock.Anything, mock.Anything, "ai").Return(testInsights(), nil)
	f.generator.On("Generate", mock.Anything, titled(2), mock.Anything, "ai").Return(localesFor(2), nil)
	f.generator.On("Generate", mock.Anything, titled(3), mock.Anything, "ai").Return(localesFor(3), nil)

	result, err := f.svc.RunDaily(context.Background(), &day, false)
	require.NoError(t, err)

	assert.Equal(t, day.Format("2006-01-02"), result.Date)
	assert.Equal(t, 3, result.TotalArticlesProcessed)
	assert.Equal(t, 2, result.TopArticlesSelected)
	assert.Equal(t, 2, result.ArticlesPublished)
	assert.True(t, result.DigestCreated)
	assert.True(t, result.ROICalculated)
	assert.InDelta(t, 100, result.SuccessRatePercent, 0.001)
	assert.Empty(t, result.Errors)

	// 原始文章全部入库，精选的两篇被标记已加工
	assert.Len(t, f.repo.raws, 3)
	processedCount := 0
	for _, a := range f.repo.raws {
		if a.IsProcessed {
			processedCount++
		}
	}
	assert.Equal(t, 2, processedCount)

	// 加工文章三语齐全、slug 唯一、状态 published
	require.Len(t, f.repo.processed, 2)
	slugs := map[string]bool{}
	for _, p := range f.repo.processed {
		assert.True(t, p.HasAllLangs())
		assert.Equal(t, domain.StatusPublished, p.Status)
		assert.False(t, slugs[p.Slug], "slug %s 重复", p.Slug)
		slugs[p.Slug] = true
		assert.Equal(t, "https://img.example/pic.jpg", p.ImageURL)
		assert.NotEmpty(t, p.CTA.Buttons)
	}

	// top 标记恰好 2 篇，rank 连续，按目标日聚合
	var ranks []int
	for _, p := range f.repo.processed {
		if p.IsTop {
			ranks = append(ranks, p.Rank)
			assert.True(t, p.TopSelectionDate.Equal(day))
		}
	}
	sort.Ints(ranks)
	assert.Equal(t, []int{1, 2}, ranks)

	// 摘要落在目标日，指向 top 集合
	digest := f.repo.digests[day.Format("2006-01-02")]
	require.NotNil(t, digest)
	assert.Len(t, digest.ArticleIDs, 2)

	// 每篇发布文章在两个平台各有一条排期
	assert.Len(t, f.repo.posts, 4)

	// 非 LLM 阶段也写处理流水，每篇加工文章一条
	stageCount := map[string]int{}
	for _, l := range f.repo.logs {
		stageCount[l.Stage]++
	}
	assert.Equal(t, 2, stageCount["extract"])
	assert.Equal(t, 2, stageCount["image"])
	assert.Equal(t, 2, stageCount["persist"])
}

func TestArticleSlug(t *testing.T) {
	id := "9f8e7d6c-0000-0000-0000-000000000000"

	t.Run("乌克兰语 meta 标题优先", func(t *testing.T) {
		locales := domain.LocaleMap{
			domain.LangEN: {Title: "English Title"},
			domain.LangUK: {Title: "Fallback Title", MetaTitle: "Meta Title Wins"},
		}
		assert.Equal(t, "meta-title-wins-9f8e7d6c", articleSlug(locales, id))
	})

	t.Run("缺 meta 时退到乌克兰语标题", func(t *testing.T) {
		locales := domain.LocaleMap{
			domain.LangEN: {Title: "English Title"},
			domain.LangUK: {Title: "Fallback Title"},
		}
		assert.Equal(t, "fallback-title-9f8e7d6c", articleSlug(locales, id))
	})

	t.Run("乌克兰语全缺时退到英文标题", func(t *testing.T) {
		locales := domain.LocaleMap{
			domain.LangEN: {Title: "English Title"},
		}
		assert.Equal(t, "english-title-9f8e7d6c", articleSlug(locales, id))
	})

	t.Run("全空时用兜底词", func(t *testing.T) {
		assert.Equal(t, "news-9f8e7d6c", articleSlug(domain.LocaleMap{}, id))
	})

	t.Run("基底截到 180 字符", func(t *testing.T) {
		locales := domain.LocaleMap{
			domain.LangEN: {Title: strings.Repeat("word ", 80)},
		}
		got := articleSlug(locales, id)
		assert.LessOrEqual(t, len(got), 180+1+8)
		assert.True(t, strings.HasSuffix(got, "-9f8e7d6c"))
	})

	t.Run("同标题不同 ID 不冲突", func(t *testing.T) {
		locales := domain.LocaleMap{domain.LangEN: {Title: "Same Title"}}
		a := articleSlug(locales, "aaaaaaaa-1111")
		b := articleSlug(locales, "bbbbbbbb-2222")
		assert.NotEqual(t, a, b)
	})
}

func TestRunDaily_DryRun(t *testing.T) {
	day := domain.DayOf(time.Now().AddDate(0, 0, -1))
	f := newFixture(2)

	f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.ParsedArticle{parsedArticle(1, day)}, nil)
	f.appraiser.On("Score", mock.Anything, mock.Anything, "ai").Return(analysis(8), nil)

	result, err := f.svc.RunDaily(context.Background(), &day, true)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TopArticlesSelected)
	// 演练模式：原始文章入库，但不产出任何加工内容
	assert.Len(t, f.repo.raws, 1)
	assert.Empty(t, f.repo.processed)
	assert.Empty(t, f.repo.posts)
	assert.False(t, result.DigestCreated)
	f.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunDaily_StorageDownIsFatal(t *testing.T) {
	f := newFixture(2)
	f.repo.pingErr = errors.New("connection refused")

	_, err := f.svc.RunDaily(context.Background(), nil, false)
	assert.Error(t, err)
}

func TestRunDaily_SourceFailureIsNotFatal(t *testing.T) {
	day := domain.DayOf(time.Now().AddDate(0, 0, -1))
	f := newFixture(2)

	f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("feed timeout"))

	result, err := f.svc.RunDaily(context.Background(), &day, false)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Errors)
	assert.Zero(t, result.TotalArticlesProcessed)
	// 没有精选时成功率视为 100
	assert.InDelta(t, 100, result.SuccessRatePercent, 0.001)
}

func TestRunDaily_GeneratorFailureRecorded(t *testing.T) {
	day := domain.DayOf(time.Now().AddDate(0, 0, -1))
	f := newFixture(1)

	f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.ParsedArticle{parsedArticle(1, day)}, nil)
	f.extract.On("Extract", mock.Anything, mock.Anything).Return("", nil)
	f.appraiser.On("Score", mock.Anything, mock.Anything, "ai").Return(analysis(8), nil)
	f.enricher.On("Insights", mock.Anything, mock.Anything, "ai").Return(testInsights(), nil)
	f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything, "ai").
		Return(nil, errors.New("model unavailable"))

	result, err := f.svc.RunDaily(context.Background(), &day, false)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TopArticlesSelected)
	assert.Zero(t, result.ArticlesPublished)
	assert.NotEmpty(t, result.Errors)
	assert.InDelta(t, 0, result.SuccessRatePercent, 0.001)

	// 失败被记到原始文章上，保留下次重试的资格
	for _, a := range f.repo.raws {
		assert.Equal(t, 1, a.ProcessingAttempts)
		assert.Contains(t, a.LastError, "model unavailable")
		assert.False(t, a.IsProcessed)
	}
}

func TestRunDaily_RerunIsIdempotentForSocial(t *testing.T) {
	day := domain.DayOf(time.Now().AddDate(0, 0, -1))
	f := newFixture(1)

	f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.ParsedArticle{parsedArticle(1, day)}, nil)
	f.extract.On("Extract", mock.Anything, mock.Anything).Return("", nil)
	f.images.On("FindImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", nil)
	f.appraiser.On("Score", mock.Anything, mock.Anything, "ai").Return(analysis(8), nil)
	f.enricher.On("Insights", mock.Anything, mock.Anything, "ai").Return(testInsights(), nil)
	f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything, "ai").
		Return(localesFor(1), nil)

	_, err := f.svc.RunDaily(context.Background(), &day, false)
	require.NoError(t, err)
	assert.Len(t, f.repo.posts, 2)

	// 第二次执行：原始文章已标记加工、内容哈希已存在，不会重复发布
	result, err := f.svc.RunDaily(context.Background(), &day, false)
	require.NoError(t, err)
	assert.Len(t, f.repo.raws, 1)
	assert.Len(t, f.repo.processed, 1)
	assert.Len(t, f.repo.posts, 2)
	assert.Zero(t, result.TopArticlesSelected)
}
