package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"lazysoft-news-pipeline/internal/adapter/content"
	"lazysoft-news-pipeline/internal/adapter/extractor"
	"lazysoft-news-pipeline/internal/domain"
	"lazysoft-news-pipeline/internal/metrics"
	"lazysoft-news-pipeline/internal/port"
)

// TopRanker 当日精选排序器 (C9)，由 ranker 适配器实现
type TopRanker interface {
	RankDay(ctx context.Context, date time.Time) (int, error)
}

// Params 每日批次的运行参数
type Params struct {
	TopK           int
	CandidateLimit int
	MaxParallel    int
	RunTimeout     time.Duration
}

// PipelineService 编排每日批处理的完整流程：
// 抓取 → 去重入库 → 打分 → 精选 → 洞察 → 生成 → 配图 → 持久化 → 排序 → 摘要 → 社交排期
type PipelineService struct {
	repo        port.Repository
	fetcher     port.FeedFetcher
	extract     port.Extractor
	appraiser   port.Appraiser
	enricher    port.Enricher
	generator   port.Generator
	imageFinder port.ImageFinder
	scheduler   port.PostScheduler
	invalidator port.CacheInvalidator
	ranker      TopRanker
	costs       *CostTracker
	collector   *metrics.Collector
	logger      *zap.Logger
	sources     []*domain.Source
	params      Params
}

// NewPipelineService 创建流水线编排服务。
// invalidator 允许为 nil (没有下游缓存时)。
func NewPipelineService(
	repo port.Repository,
	fetcher port.FeedFetcher,
	extract port.Extractor,
	appraiser port.Appraiser,
	enricher port.Enricher,
	generator port.Generator,
	imageFinder port.ImageFinder,
	scheduler port.PostScheduler,
	invalidator port.CacheInvalidator,
	ranker TopRanker,
	costs *CostTracker,
	collector *metrics.Collector,
	logger *zap.Logger,
	sources []*domain.Source,
	params Params,
) *PipelineService {
	if params.TopK <= 0 {
		params.TopK = 5
	}
	if params.CandidateLimit <= 0 {
		params.CandidateLimit = 20
	}
	if params.MaxParallel <= 0 {
		params.MaxParallel = 1
	}
	if params.RunTimeout <= 0 {
		params.RunTimeout = 30 * time.Minute
	}
	return &PipelineService{
		repo:        repo,
		fetcher:     fetcher,
		extract:     extract,
		appraiser:   appraiser,
		enricher:    enricher,
		generator:   generator,
		imageFinder: imageFinder,
		scheduler:   scheduler,
		invalidator: invalidator,
		ranker:      ranker,
		costs:       costs,
		collector:   collector,
		logger:      logger,
		sources:     sources,
		params:      params,
	}
}

// RunDaily 执行一次每日批处理。
// target 为 nil 时处理"昨天"的文章。存储不可用是唯一的致命错误，
// 其余阶段的失败都记进结果报告并继续。
func (s *PipelineService) RunDaily(ctx context.Context, target *time.Time, dryRun bool) (*domain.PipelineResult, error) {
	runStart := time.Now()

	day := domain.DayOf(runStart.AddDate(0, 0, -1))
	if target != nil {
		day = domain.DayOf(*target)
	}

	ctx, cancel := context.WithTimeout(ctx, s.params.RunTimeout)
	defer cancel()

	result := &domain.PipelineResult{Date: day.Format("2006-01-02")}

	fmt.Printf("🚀 [每日批次] 开始处理 %s 的新闻...\n", result.Date)

	// 存储健康检查，挂了直接终止
	if err := s.repo.Ping(ctx); err != nil {
		return nil, fmt.Errorf("存储不可用: %w", err)
	}

	// 1. 订阅源种子 + 抓取入库
	s.seedSources(ctx, result)
	s.fetchAll(ctx, &day, result)

	// 2. 候选打分
	fmt.Println("🧠 开始受众相关性打分...")
	candidates, err := s.repo.CandidatesForDate(ctx, day, s.params.CandidateLimit)
	if err != nil {
		result.AddError(fmt.Sprintf("读取候选失败: %v", err))
		candidates = nil
	}
	fmt.Printf("✅ 共 %d 篇候选文章\n", len(candidates))

	scored := s.scoreAll(ctx, candidates, result)
	result.TotalArticlesProcessed = len(scored)

	// 3. 精选 top-K
	top := SelectTop(scored, s.params.TopK)
	result.TopArticlesSelected = len(top)
	fmt.Printf("🏆 精选 %d 篇进入加工\n", len(top))

	if dryRun {
		fmt.Println("🔍 [演练模式] 跳过加工和持久化，仅打印精选结果")
		for i, c := range top {
			fmt.Printf("  %d. [%.1f] %s\n", i+1, c.Analysis.Score, c.Article.OriginalTitle)
		}
		result.ProcessingTimeSeconds = time.Since(runStart).Seconds()
		result.SuccessRatePercent = result.SuccessRate()
		return result, nil
	}

	// 4. 逐篇加工 (洞察 → 生成 → 配图 → 持久化 → 社交排期)
	fmt.Println("✍️ 开始内容加工...")
	published := s.processAll(ctx, top, result)
	result.ArticlesPublished = published
	fmt.Printf("✅ 成功发布 %d 篇\n", published)

	// 5. 当日排序。排序和摘要都按目标日聚合，
	// 回填历史日期时摘要同样落在被回填的那一天。
	rankStart := time.Now()
	_, rankErr := s.ranker.RankDay(ctx, day)
	s.collector.ObserveStage("rank", time.Since(rankStart), rankErr == nil)
	if rankErr != nil {
		result.AddError(fmt.Sprintf("当日排序失败: %v", rankErr))
	}

	// 6. 当日摘要
	s.buildDigest(ctx, day, result)

	// 7. 首页缓存失效
	if s.invalidator != nil {
		if err := s.invalidator.InvalidateHome(ctx); err != nil {
			s.logger.Warn("首页缓存失效失败", zap.Error(err))
			result.AddError(fmt.Sprintf("缓存失效失败: %v", err))
		}
	}

	// 8. ROI 统计
	if tokens, cost, err := s.repo.RunCost(ctx, runStart); err != nil {
		result.AddError(fmt.Sprintf("ROI 统计失败: %v", err))
	} else {
		result.ROICalculated = true
		fmt.Printf("💰 本轮消耗 %d tokens，约 $%.4f\n", tokens, cost)
	}

	result.ProcessingTimeSeconds = time.Since(runStart).Seconds()
	result.SuccessRatePercent = result.SuccessRate()
	s.collector.RecordRun()

	fmt.Printf("🎉 批次完成: 发布 %d/%d，耗时 %.1fs，错误 %d 条\n",
		result.ArticlesPublished, result.TopArticlesSelected,
		result.ProcessingTimeSeconds, len(result.Errors))
	return result, nil
}

// seedSources 把配置声明的订阅源 Upsert 进库
func (s *PipelineService) seedSources(ctx context.Context, result *domain.PipelineResult) {
	for _, src := range s.sources {
		if err := s.repo.SaveSource(ctx, src); err != nil {
			s.logger.Warn("订阅源种子写入失败", zap.String("source", src.ID), zap.Error(err))
			result.AddError(fmt.Sprintf("订阅源 %s 种子失败: %v", src.ID, err))
		}
	}
}

// fetchAll 抓取所有启用的订阅源并去重入库。
// 单个源失败不影响其他源。
func (s *PipelineService) fetchAll(ctx context.Context, day *time.Time, result *domain.PipelineResult) {
	fmt.Println("📥 开始抓取订阅源...")

	sources, err := s.repo.ListActiveSources(ctx)
	if err != nil {
		result.AddError(fmt.Sprintf("读取订阅源失败: %v", err))
		return
	}

	totalInserted := 0
	for _, src := range sources {
		start := time.Now()
		inserted, err := s.fetchOne(ctx, src, day)
		s.collector.ObserveStage("fetch", time.Since(start), err == nil)
		if err != nil {
			s.logger.Warn("订阅源抓取失败", zap.String("source", src.ID), zap.Error(err))
			result.AddError(fmt.Sprintf("源 %s 抓取失败: %v", src.ID, err))
			continue
		}
		totalInserted += inserted
		fmt.Printf("✅ 源 %s 新增 %d 篇\n", src.ID, inserted)
	}
	fmt.Printf("📦 抓取完成，共新增 %d 篇原始文章\n", totalInserted)
}

func (s *PipelineService) fetchOne(ctx context.Context, src *domain.Source, day *time.Time) (int, error) {
	parsed, err := s.fetcher.Fetch(ctx, src, day)
	if err != nil {
		return 0, err
	}

	known, err := s.repo.LoadContentHashes(ctx, src.ID)
	if err != nil {
		return 0, err
	}

	// 批内 + 历史双重去重，同批出现的重复哈希只保留先到的
	now := time.Now()
	var fresh []*domain.RawArticle
	for _, p := range parsed {
		if _, dup := known[p.ContentHash]; dup {
			continue
		}
		known[p.ContentHash] = struct{}{}
		fresh = append(fresh, &domain.RawArticle{
			ID:            uuid.NewString(),
			SourceID:      p.SourceID,
			OriginalURL:   p.URL,
			OriginalTitle: p.Title,
			Body:          p.Body,
			Summary:       p.Summary,
			Author:        p.Author,
			PublishedAt:   p.PublishedAt,
			FetchedAt:     now,
			ContentHash:   p.ContentHash,
		})
	}

	inserted, err := s.repo.InsertRawArticles(ctx, fresh)
	if err != nil {
		return 0, err
	}

	if err := s.repo.TouchSourceFetched(ctx, src.ID, now); err != nil {
		s.logger.Warn("更新抓取时间失败", zap.String("source", src.ID), zap.Error(err))
	}
	return inserted, nil
}

// scoreAll 并发打分，并发度受 MaxParallel 限制
func (s *PipelineService) scoreAll(ctx context.Context, candidates []*domain.RawArticle, result *domain.PipelineResult) []*domain.ScoredCandidate {
	if len(candidates) == 0 {
		return nil
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		scored []*domain.ScoredCandidate
	)
	sem := make(chan struct{}, s.params.MaxParallel)

	for _, article := range candidates {
		article := article
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			analysis, err := s.appraiser.Score(ctx, article, s.sourceCategory(article.SourceID))
			s.collector.ObserveStage("score", time.Since(start), err == nil)
			if err != nil {
				mu.Lock()
				result.AddError(fmt.Sprintf("文章 %s 打分失败: %v", article.ID, err))
				mu.Unlock()
				return
			}

			mu.Lock()
			scored = append(scored, &domain.ScoredCandidate{Article: article, Analysis: analysis})
			mu.Unlock()
		}()
	}
	wg.Wait()
	return scored
}

// processAll 逐篇完成洞察、生成、配图和持久化，返回成功发布的篇数。
// 单篇失败记录错误并继续。
func (s *PipelineService) processAll(ctx context.Context, top []*domain.ScoredCandidate, result *domain.PipelineResult) int {
	published := 0
	for i, c := range top {
		select {
		case <-ctx.Done():
			fmt.Println("⏰ 批次时间预算用尽，提前结束加工阶段")
			result.AddError("批次超时，部分精选文章未加工")
			return published
		default:
		}

		fmt.Printf("✍️ [%d/%d] %s\n", i+1, len(top), c.Article.OriginalTitle)
		if err := s.processOne(ctx, c); err != nil {
			s.failArticle(ctx, c.Article, err)
			result.AddError(fmt.Sprintf("文章 %s 加工失败: %v", c.Article.ID, err))
			continue
		}
		published++
	}
	return published
}

func (s *PipelineService) processOne(ctx context.Context, c *domain.ScoredCandidate) error {
	article := c.Article
	category := c.Analysis.CategoryMatch
	articleStart := time.Now()

	// 全文提取：抽取结果明显更长才替换原正文
	start := time.Now()
	fullText, err := s.extract.Extract(ctx, article.OriginalURL)
	s.collector.ObserveStage("extract", time.Since(start), err == nil)
	s.logStage(ctx, article.ID, "extract", start, err == nil, err)
	if err != nil {
		s.logger.Warn("全文提取失败，沿用 RSS 正文", zap.String("article_id", article.ID), zap.Error(err))
	} else if extractor.ShouldUpgrade(article.Body, fullText) {
		article.Body = fullText
		article.HasFullContent = true
		if err := s.repo.UpdateRawArticle(ctx, article); err != nil {
			return fmt.Errorf("保存全文失败: %w", err)
		}
	}

	// 三语洞察
	start = time.Now()
	insights, err := s.enricher.Insights(ctx, article, category)
	s.collector.ObserveStage("insights", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("洞察生成失败: %w", err)
	}

	// 三语改写 (内部有确定性兜底，不会返回空内容)
	start = time.Now()
	locales, err := s.generator.Generate(ctx, article, insights, category)
	s.collector.ObserveStage("generate", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("内容生成失败: %w", err)
	}

	readingTime := 0
	if article.HasFullContent {
		var words int
		locales, words = content.BuildFullContent(locales, insights)
		readingTime = content.ReadingTime(words)
	}

	// 配图 (尽力而为)
	start = time.Now()
	en := locales[domain.LangEN]
	imageURL, err := s.imageFinder.FindImage(ctx, en.Title, category, article.Body)
	s.collector.ObserveStage("image", time.Since(start), err == nil)
	s.logStage(ctx, article.ID, "image", start, err == nil, err)
	if err != nil {
		s.logger.Warn("配图查询失败", zap.String("article_id", article.ID), zap.Error(err))
		imageURL = ""
	}

	id := uuid.NewString()
	now := time.Now()
	processed := &domain.ProcessedArticle{
		ID:                 id,
		Slug:               articleSlug(locales, id),
		RawArticleID:       article.ID,
		Category:           category,
		Status:             domain.StatusPublished,
		Priority:           3,
		Locales:            locales,
		CTA:                content.BuildCTA(category),
		ImageURL:           imageURL,
		RelevanceScore:     c.Analysis.Score,
		ProcessingCostUSD:  s.costs.CostFor(article.ID),
		ProcessingSeconds:  time.Since(articleStart).Seconds(),
		FullContentParsed:  article.HasFullContent,
		ReadingTimeMinutes: readingTime,
		PublishedAt:        &now,
	}

	start = time.Now()
	err = s.repo.SaveProcessed(ctx, processed)
	s.collector.ObserveStage("persist", time.Since(start), err == nil)
	s.logStage(ctx, article.ID, "persist", start, err == nil, err)
	if err != nil {
		return fmt.Errorf("持久化失败: %w", err)
	}
	s.collector.RecordArticleSaved()

	article.IsProcessed = true
	article.LastError = ""
	if err := s.repo.UpdateRawArticle(ctx, article); err != nil {
		s.logger.Warn("标记原始文章已加工失败", zap.String("article_id", article.ID), zap.Error(err))
	}

	// 社交排期 (幂等)
	start = time.Now()
	_, err = s.scheduler.Schedule(ctx, processed)
	s.collector.ObserveStage("social", time.Since(start), err == nil)
	if err != nil {
		s.logger.Warn("社交排期失败", zap.String("article_id", article.ID), zap.Error(err))
	}
	return nil
}

// failArticle 记录单篇加工失败：累计尝试次数和最近错误
func (s *PipelineService) failArticle(ctx context.Context, article *domain.RawArticle, cause error) {
	article.ProcessingAttempts++
	article.LastError = cause.Error()
	if err := s.repo.UpdateRawArticle(ctx, article); err != nil {
		s.logger.Warn("记录加工失败状态出错", zap.String("article_id", article.ID), zap.Error(err))
	}
}

// buildDigest 聚合当日精选为三语摘要并幂等落库
func (s *PipelineService) buildDigest(ctx context.Context, day time.Time, result *domain.PipelineResult) {
	start := time.Now()

	all, err := s.repo.ProcessedByDate(ctx, day)
	if err != nil {
		s.collector.ObserveStage("digest", time.Since(start), false)
		result.AddError(fmt.Sprintf("读取当日文章失败: %v", err))
		return
	}

	var top []*domain.ProcessedArticle
	for _, a := range all {
		if a.IsTop {
			top = append(top, a)
		}
	}
	sort.Slice(top, func(i, j int) bool { return top[i].Rank < top[j].Rank })

	if len(top) == 0 {
		s.collector.ObserveStage("digest", time.Since(start), true)
		fmt.Println("📭 当日无精选文章，跳过摘要")
		return
	}

	digest := BuildDigest(day, top, len(all))
	if err := s.repo.UpsertDigest(ctx, digest); err != nil {
		s.collector.ObserveStage("digest", time.Since(start), false)
		result.AddError(fmt.Sprintf("摘要落库失败: %v", err))
		return
	}

	s.collector.ObserveStage("digest", time.Since(start), true)
	result.DigestCreated = true
	fmt.Printf("📰 当日摘要已生成 (%d 篇精选)\n", len(top))
}

// logStage 把非 LLM 阶段也记进处理流水，和 AI 阶段共用一张表
func (s *PipelineService) logStage(ctx context.Context, articleID, stage string, start time.Time, success bool, cause error) {
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	s.costs.Log(ctx, &domain.ProcessingLog{
		RawArticleID: articleID,
		Stage:        stage,
		DurationMS:   time.Since(start).Milliseconds(),
		Success:      success,
		Error:        errMsg,
	})
}

// articleSlug 生成文章 slug：乌克兰语 meta 标题优先，缺失时退到
// 乌克兰语标题、再退到英文标题；截到 180 字符后拼上文章 ID 前 8 位保证唯一
func articleSlug(locales domain.LocaleMap, id string) string {
	uk := locales[domain.LangUK]
	title := uk.MetaTitle
	if title == "" {
		title = uk.Title
	}
	if title == "" {
		title = locales[domain.LangEN].Title
	}

	base := slug.Make(title)
	if base == "" {
		base = "news"
	}
	if len(base) > 180 {
		base = strings.TrimRight(base[:180], "-")
	}

	suffix := id
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return base + "-" + suffix
}

// sourceCategory 按源 ID 查配置声明的分类，找不到就归 general
func (s *PipelineService) sourceCategory(sourceID string) string {
	for _, src := range s.sources {
		if src.ID == sourceID {
			return src.Category
		}
	}
	return "general"
}
