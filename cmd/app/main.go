package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"lazysoft-news-pipeline/internal/adapter/extractor"
	"lazysoft-news-pipeline/internal/adapter/gemini"
	"lazysoft-news-pipeline/internal/adapter/images"
	"lazysoft-news-pipeline/internal/adapter/ranker"
	"lazysoft-news-pipeline/internal/adapter/repository"
	"lazysoft-news-pipeline/internal/adapter/rss"
	"lazysoft-news-pipeline/internal/adapter/social"
	"lazysoft-news-pipeline/internal/config"
	"lazysoft-news-pipeline/internal/logging"
	"lazysoft-news-pipeline/internal/metrics"
	"lazysoft-news-pipeline/internal/service"
)

func main() {
	// 1. 命令行参数
	mode := flag.String("mode", "run", "运行模式: run (单次执行)、cron (定时执行) 或 health (健康检查)")
	dateStr := flag.String("date", "", "目标日期 YYYY-MM-DD，留空表示昨天")
	topK := flag.Int("top", 0, "覆盖每日精选数量，0 表示用配置值")
	dryRun := flag.Bool("dry-run", false, "演练模式：打分和精选后不做任何写入")
	debug := flag.Bool("debug", false, "输出 debug 级日志")
	flag.Parse()

	// 2. 加载环境和配置
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ 配置加载失败: %v", err)
	}
	if *topK > 0 {
		cfg.Pipeline.TopK = *topK
	}

	logger, err := logging.NewLogger(*debug)
	if err != nil {
		log.Fatalf("❌ 日志初始化失败: %v", err)
	}
	defer logger.Sync()

	// 3. 存储
	repo, err := repository.NewPostgresRepo(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("❌ DB 初始化失败: %v", err)
	}
	if err := repo.SeedCategories(context.Background()); err != nil {
		log.Fatalf("❌ 分类种子数据写入失败: %v", err)
	}

	if *mode == "health" {
		runHealthCheck(repo, cfg)
		return
	}

	// 4. AI 依赖
	ctx := context.Background()
	client, err := gemini.NewClient(ctx, cfg.Gemini, logger)
	if err != nil {
		log.Fatalf("❌ AI 初始化失败: %v", err)
	}
	defer client.Close()

	// 5. 组装流水线
	costs := service.NewCostTracker(repo, logger)
	svc := buildPipeline(cfg, repo, client, costs, logger, nil)

	var target *time.Time
	if *dateStr != "" {
		day, err := time.ParseInLocation("2006-01-02", *dateStr, time.UTC)
		if err != nil {
			log.Fatalf("❌ 日期格式应为 YYYY-MM-DD: %v", err)
		}
		target = &day
	}

	// 6. 按模式分流
	switch *mode {
	case "run":
		runOnce(svc, cfg, target, *dryRun)
	case "cron":
		runScheduled(svc, cfg, repo, client, costs, logger)
	default:
		fmt.Println("❌ 未知模式，请使用 -mode=run、-mode=cron 或 -mode=health")
	}
}

// buildPipeline 组装全部适配器和编排服务
func buildPipeline(
	cfg config.Config,
	repo *repository.PostgresRepo,
	client *gemini.Client,
	costs *service.CostTracker,
	logger *zap.Logger,
	collector *metrics.Collector,
) *service.PipelineService {
	fetcher := rss.NewFetcher(logger)
	extract := extractor.NewClient(cfg.Extractor.BaseURL, logger)
	scorer := gemini.NewScorer(client, logger, costs.Log)
	enricher := gemini.NewEnricher(client, logger, costs.Log)
	generator := gemini.NewGenerator(client, logger, costs.Log)
	resolver := images.NewResolver(cfg.Images, repo, logger)
	topRanker := ranker.NewRanker(repo, cfg.Pipeline.TopK, logger)
	scheduler := social.NewScheduler(repo, cfg.Social, logger)

	return service.NewPipelineService(
		repo, fetcher, extract, scorer, enricher, generator,
		resolver, scheduler, nil, topRanker, costs, collector, logger,
		cfg.DomainSources(),
		service.Params{
			TopK:           cfg.Pipeline.TopK,
			CandidateLimit: cfg.Pipeline.CandidateLimit,
			MaxParallel:    cfg.Pipeline.MaxParallel,
			RunTimeout:     time.Duration(cfg.Pipeline.RunTimeoutMinutes) * time.Minute,
		},
	)
}

// runOnce 单次执行一个批次
func runOnce(svc *service.PipelineService, cfg config.Config, target *time.Time, dryRun bool) {
	result, err := svc.RunDaily(context.Background(), target, dryRun)
	if err != nil {
		log.Fatalf("❌ 批次执行失败: %v", err)
	}
	for _, msg := range result.Errors {
		fmt.Printf("⚠️ %s\n", msg)
	}
	if result.SuccessRatePercent < 100 {
		os.Exit(1)
	}
}

// runScheduled 定时执行模式：cron 调度 + /metrics + 优雅退出
func runScheduled(
	svc *service.PipelineService,
	cfg config.Config,
	repo *repository.PostgresRepo,
	client *gemini.Client,
	costs *service.CostTracker,
	logger *zap.Logger,
) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 定时模式下重建带指标收集的服务
	svc = buildPipeline(cfg, repo, client, costs, logger, collector)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	server := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics 监听失败", zap.Error(err))
		}
	}()

	scheduler := cron.New(cron.WithLocation(cfg.Location()))
	_, err := scheduler.AddFunc(cfg.Pipeline.CronExpression, func() {
		result, err := svc.RunDaily(context.Background(), nil, false)
		if err != nil {
			logger.Error("定时批次执行失败", zap.Error(err))
			return
		}
		logger.Info("定时批次完成",
			zap.String("date", result.Date),
			zap.Int("published", result.ArticlesPublished),
			zap.Float64("success_rate", result.SuccessRatePercent),
		)
	})
	if err != nil {
		log.Fatalf("❌ cron 表达式无效: %v", err)
	}

	scheduler.Start()
	fmt.Printf("⏰ 定时执行模式已启动 (%s, %s)\n", cfg.Pipeline.CronExpression, cfg.Location())
	fmt.Println("按下 Ctrl+C 可以优雅停止程序")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n👋 收到停止信号，正在退出...")
	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

// runHealthCheck 健康检查：探测存储并报告已配置的外部依赖，退出码供容器探针使用
func runHealthCheck(repo *repository.PostgresRepo, cfg config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := repo.Ping(ctx); err != nil {
		fmt.Printf("❌ 存储不可用: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ 存储连接正常")

	report := func(name string, configured bool) {
		if configured {
			fmt.Printf("✅ %s 已配置\n", name)
		} else {
			fmt.Printf("⚠️ %s 未配置\n", name)
		}
	}
	report("Gemini", cfg.Gemini.APIKey != "")
	report("全文抽取服务", cfg.Extractor.BaseURL != "")
	report("Unsplash", cfg.Images.UnsplashKey != "")
	report("Pexels", cfg.Images.PexelsKey != "")
	report("Pixabay", cfg.Images.PixabayKey != "")
	fmt.Printf("📡 订阅源 %d 个，发布平台 %d 个\n", len(cfg.Sources), len(cfg.Social.Platforms))
}
