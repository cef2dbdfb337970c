package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"lazysoft-news-pipeline/internal/adapter/gemini"
	"lazysoft-news-pipeline/internal/adapter/rss"
	"lazysoft-news-pipeline/internal/config"
	"lazysoft-news-pipeline/internal/domain"
	"lazysoft-news-pipeline/internal/logging"
)

// 调试入口：抓一个源，对第一篇文章跑打分和三语生成，不碰数据库
func main() {
	feedURL := flag.String("feed", "", "要调试的 RSS 源地址")
	category := flag.String("category", "general", "源的声明分类")
	flag.Parse()

	if *feedURL == "" {
		fmt.Println("⚠️ 请用 -feed 指定一个 RSS 源地址")
		return
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ 配置加载失败: %v", err)
	}

	logger, err := logging.NewLogger(true)
	if err != nil {
		log.Fatalf("❌ 日志初始化失败: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	client, err := gemini.NewClient(ctx, cfg.Gemini, logger)
	if err != nil {
		log.Fatalf("❌ AI 初始化失败: %v", err)
	}
	defer client.Close()

	fetcher := rss.NewFetcher(logger)
	fetcher.DisableDateFilter() // 调试时不按日期过滤

	fmt.Println("🔍 调试模式：抓取并分析单篇文章")

	source := &domain.Source{
		ID:       "debug",
		Name:     "debug source",
		FeedURL:  *feedURL,
		Category: *category,
	}

	fmt.Printf("📥 正在抓取 %s ...\n", *feedURL)
	parsed, err := fetcher.Fetch(ctx, source, nil)
	if err != nil {
		log.Fatalf("❌ 抓取失败: %v", err)
	}
	fmt.Printf("✅ 成功获取 %d 条\n", len(parsed))

	if len(parsed) == 0 {
		fmt.Println("📭 源里没有条目")
		return
	}

	p := parsed[0]
	article := &domain.RawArticle{
		ID:            "debug-article",
		SourceID:      source.ID,
		OriginalURL:   p.URL,
		OriginalTitle: p.Title,
		Body:          p.Body,
		Summary:       p.Summary,
		PublishedAt:   p.PublishedAt,
		ContentHash:   p.ContentHash,
	}

	fmt.Printf("\n📄 标题: %s\n🔗 链接: %s\n📅 发布: %s\n\n",
		article.OriginalTitle, article.OriginalURL, article.PublishedAt.Format("2006-01-02 15:04"))

	// 打分
	fmt.Println("🧠 正在打分...")
	scorer := gemini.NewScorer(client, logger, nil)
	analysis, err := scorer.Score(ctx, article, *category)
	if err != nil {
		log.Fatalf("❌ 打分失败: %v", err)
	}
	fmt.Printf("✅ 相关性分数: %.1f (分类 %s, 置信度 %.2f)\n",
		analysis.Score, analysis.CategoryMatch, analysis.Confidence)
	fmt.Printf("   理由: %s\n\n", analysis.Reasoning)

	// 洞察 + 生成
	fmt.Println("💡 正在生成三语洞察...")
	enricher := gemini.NewEnricher(client, logger, nil)
	insights, err := enricher.Insights(ctx, article, analysis.CategoryMatch)
	if err != nil {
		log.Fatalf("❌ 洞察生成失败: %v", err)
	}

	fmt.Println("✍️ 正在生成三语内容...")
	generator := gemini.NewGenerator(client, logger, nil)
	locales, err := generator.Generate(ctx, article, insights, analysis.CategoryMatch)
	if err != nil {
		log.Fatalf("❌ 内容生成失败: %v", err)
	}

	for _, lang := range domain.AllLangs() {
		c := locales[lang]
		fmt.Printf("\n================ [ %s ] ================\n", lang)
		fmt.Printf("标题: %s\n", c.Title)
		fmt.Printf("SEO: %s | %s\n", c.MetaTitle, c.MetaDescription)
		fmt.Printf("摘要 (%d 字符): %.200s...\n", len([]rune(c.Summary)), c.Summary)
		fmt.Printf("洞察: %s\n", c.BusinessInsight)
	}
	fmt.Println("\n🎉 调试完成")
}
