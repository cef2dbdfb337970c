package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"lazysoft-news-pipeline/internal/domain"
)

// 环境变量名，敏感信息只从环境读取，不进 YAML
const (
	envConfigPath   = "NEWS_PIPELINE_CONFIG"
	envDatabaseDSN  = "DATABASE_DSN"
	envGeminiKey    = "GEMINI_API_KEY"
	envExtractorURL = "EXTRACTOR_URL"
	envUnsplashKey  = "UNSPLASH_ACCESS_KEY"
	envPexelsKey    = "PEXELS_API_KEY"
	envPixabayKey   = "PIXABAY_API_KEY"
)

// Config 全局配置
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Images    ImagesConfig    `yaml:"images"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Social    SocialConfig    `yaml:"social"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Sources   []SourceConfig  `yaml:"sources"`
}

// DatabaseConfig Postgres 连接配置
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// GeminiConfig 模型供应商配置，FallbackModel 用于限流后的降级重试
type GeminiConfig struct {
	APIKey            string `yaml:"apiKey"`
	Model             string `yaml:"model"`
	FallbackModel     string `yaml:"fallbackModel"`
	RequestsPerMinute int    `yaml:"requestsPerMinute"`
}

// ExtractorConfig 全文抽取服务地址 (extract.php)
type ExtractorConfig struct {
	BaseURL string `yaml:"baseUrl"`
}

// ImagesConfig 图库供应商的密钥，没配密钥的供应商会被跳过
type ImagesConfig struct {
	UnsplashKey string `yaml:"unsplashKey"`
	PexelsKey   string `yaml:"pexelsKey"`
	PixabayKey  string `yaml:"pixabayKey"`
}

// PipelineConfig 每日批处理参数
type PipelineConfig struct {
	TopK              int    `yaml:"topK"`              // 每日精选数量，默认 5
	CandidateLimit    int    `yaml:"candidateLimit"`    // 打分候选上限，控制 LLM 成本
	MaxParallel       int    `yaml:"maxParallel"`       // 加工阶段并发数 (1..4)
	RunTimeoutMinutes int    `yaml:"runTimeoutMinutes"` // 整个批次的墙钟上限
	CronExpression    string `yaml:"cronExpression"`
	Timezone          string `yaml:"timezone"`
}

// SocialConfig 下游发布平台列表和站点地址 (用于拼文章链接)
type SocialConfig struct {
	Platforms   []string `yaml:"platforms"` // 例如 telegram_uk, telegram_pl
	SiteBaseURL string   `yaml:"siteBaseUrl"`
}

// MetricsConfig /metrics 监听地址，只在定时模式下启用
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// SourceConfig 一个 RSS 订阅源的声明
type SourceConfig struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	URL             string `yaml:"url"`
	Language        string `yaml:"language"` // en / pl / uk
	Category        string `yaml:"category"`
	IntervalMinutes int    `yaml:"intervalMinutes"`
}

// Load 读取 YAML 配置 (如果有)，再应用环境变量覆盖
func Load() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(envConfigPath); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(envDatabaseDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(envGeminiKey); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv(envExtractorURL); v != "" {
		c.Extractor.BaseURL = v
	}
	if v := os.Getenv(envUnsplashKey); v != "" {
		c.Images.UnsplashKey = v
	}
	if v := os.Getenv(envPexelsKey); v != "" {
		c.Images.PexelsKey = v
	}
	if v := os.Getenv(envPixabayKey); v != "" {
		c.Images.PixabayKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Pipeline.TopK <= 0 {
		c.Pipeline.TopK = 5
	}
	if c.Pipeline.CandidateLimit <= 0 {
		c.Pipeline.CandidateLimit = 20
	}
	if c.Pipeline.MaxParallel <= 0 {
		c.Pipeline.MaxParallel = 1
	}
	if c.Pipeline.MaxParallel > 4 {
		c.Pipeline.MaxParallel = 4
	}
	if c.Pipeline.RunTimeoutMinutes <= 0 {
		c.Pipeline.RunTimeoutMinutes = 30
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Gemini.FallbackModel == "" {
		c.Gemini.FallbackModel = "gemini-2.5-flash-lite"
	}
	if c.Gemini.RequestsPerMinute <= 0 {
		c.Gemini.RequestsPerMinute = 12
	}
}

func (c *Config) validate() error {
	for _, s := range c.Sources {
		if !domain.IsValidCategory(s.Category) {
			return fmt.Errorf("订阅源 %s 的分类 %q 不在固定分类集合内", s.ID, s.Category)
		}
		switch domain.Lang(s.Language) {
		case domain.LangEN, domain.LangUK, domain.LangPL:
		default:
			return fmt.Errorf("订阅源 %s 的语言 %q 不受支持", s.ID, s.Language)
		}
	}
	return nil
}

// Location 解析调度时区，默认 Europe/Warsaw
func (c *Config) Location() *time.Location {
	tz := c.Pipeline.Timezone
	if tz == "" {
		tz = "Europe/Warsaw"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return loc
}

// DomainSources 把配置里的订阅源声明转成领域对象，供入库做种子数据
func (c *Config) DomainSources() []*domain.Source {
	out := make([]*domain.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		interval := s.IntervalMinutes
		if interval <= 0 {
			interval = 1440
		}
		out = append(out, &domain.Source{
			ID:                   s.ID,
			Name:                 s.Name,
			FeedURL:              s.URL,
			Language:             domain.Lang(s.Language),
			Category:             s.Category,
			Active:               true,
			FetchIntervalMinutes: interval,
		})
	}
	return out
}

func defaultConfig() Config {
	return Config{
		Database: DatabaseConfig{
			DSN: "host=localhost user=postgres password=postgres dbname=lazysoft_news port=5432 sslmode=disable TimeZone=Europe/Warsaw",
		},
		Gemini: GeminiConfig{
			Model:             "gemini-2.5-flash",
			FallbackModel:     "gemini-2.5-flash-lite",
			RequestsPerMinute: 12,
		},
		Extractor: ExtractorConfig{BaseURL: "http://localhost:8081"},
		Pipeline: PipelineConfig{
			TopK:              5,
			CandidateLimit:    20,
			MaxParallel:       1,
			RunTimeoutMinutes: 30,
			CronExpression:    "0 6 * * *",
			Timezone:          "Europe/Warsaw",
		},
		Social: SocialConfig{
			Platforms:   []string{"telegram_uk", "telegram_pl"},
			SiteBaseURL: "https://lazysoft.dev",
		},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}
