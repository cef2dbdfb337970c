package domain

import "time"

// Lang 支持的内容语言 (英语/乌克兰语/波兰语)
type Lang string

const (
	LangEN Lang = "en"
	LangUK Lang = "uk"
	LangPL Lang = "pl"
)

// AllLangs 返回固定顺序的语言列表，所有三语字段必须按这个集合补全
func AllLangs() []Lang {
	return []Lang{LangEN, LangUK, LangPL}
}

// Source 代表一个 RSS 订阅源 (由运营人员配置，有原始文章引用时不可删除)
type Source struct {
	ID                   string    `json:"id" gorm:"primaryKey"`
	Name                 string    `json:"name"`
	FeedURL              string    `json:"feed_url"`
	Language             Lang      `json:"language"` // en / pl / uk
	Category             string    `json:"category"` // 十个固定分类之一
	Active               bool      `json:"active" gorm:"default:true"`
	FetchIntervalMinutes int       `json:"fetch_interval_minutes" gorm:"default:1440"`
	LastFetchedAt        time.Time `json:"last_fetched_at"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// RawArticle 代表一条抓取并归一化后的原始文章，还没有经过 AI 加工
type RawArticle struct {
	ID            string    `json:"id" gorm:"primaryKey"` // UUID
	SourceID      string    `json:"source_id" gorm:"uniqueIndex:idx_source_hash"`
	OriginalURL   string    `json:"original_url"`
	OriginalTitle string    `json:"original_title"`
	Body          string    `json:"body" gorm:"type:text"`
	Summary       string    `json:"summary" gorm:"type:text"`
	Author        string    `json:"author"`
	PublishedAt   time.Time `json:"published_at"`
	FetchedAt     time.Time `json:"fetched_at"`

	// SHA-256(标题‖正文‖URL)，同一来源内去重的唯一依据
	ContentHash string `json:"content_hash" gorm:"uniqueIndex:idx_source_hash"`

	ProcessingAttempts int    `json:"processing_attempts"`
	LastError          string `json:"last_error"`
	IsProcessed        bool   `json:"is_processed"`
	IsDuplicate        bool   `json:"is_duplicate"`
	HasFullContent     bool   `json:"has_full_content"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParsedArticle 是 Fetcher 的输出：已归一化但尚未入库的条目
type ParsedArticle struct {
	SourceID    string
	URL         string
	Title       string
	Body        string
	Summary     string
	Author      string
	PublishedAt time.Time
	ContentHash string
}

// Category 固定的十个业务分类标签，由种子数据创建
type Category struct {
	Slug      string    `json:"slug" gorm:"primaryKey"` // ai, automation, crm...
	NameEN    string    `json:"name_en"`
	NameUK    string    `json:"name_uk"`
	NamePL    string    `json:"name_pl"`
	Icon      string    `json:"icon"`
	Color     string    `json:"color"`
	CTAEN     string    `json:"cta_en"`
	CTAUK     string    `json:"cta_uk"`
	CTAPL     string    `json:"cta_pl"`
	CreatedAt time.Time `json:"created_at"`
}

// CategorySlugs 分类闭集，ProcessedArticle.Category 必须落在这个集合内
func CategorySlugs() []string {
	return []string{
		"ai", "automation", "crm", "seo", "social",
		"chatbots", "ecommerce", "fintech", "corporate", "general",
	}
}

// IsValidCategory 判断分类是否在闭集内
func IsValidCategory(slug string) bool {
	for _, s := range CategorySlugs() {
		if s == slug {
			return true
		}
	}
	return false
}

// DefaultCategories 种子数据：十个分类的三语名称和 CTA 文案
func DefaultCategories() []Category {
	return []Category{
		{Slug: "ai", NameEN: "Artificial Intelligence", NameUK: "Штучний інтелект", NamePL: "Sztuczna inteligencja", Icon: "🤖", Color: "#6C5CE7", CTAEN: "Automate with AI", CTAUK: "Автоматизуйте з ШІ", CTAPL: "Automatyzuj z AI"},
		{Slug: "automation", NameEN: "Automation", NameUK: "Автоматизація", NamePL: "Automatyzacja", Icon: "⚙️", Color: "#00B894", CTAEN: "Automate your workflow", CTAUK: "Автоматизуйте процеси", CTAPL: "Zautomatyzuj procesy"},
		{Slug: "crm", NameEN: "CRM", NameUK: "CRM-системи", NamePL: "Systemy CRM", Icon: "📇", Color: "#0984E3", CTAEN: "Build your CRM", CTAUK: "Впровадьте CRM", CTAPL: "Wdróż CRM"},
		{Slug: "seo", NameEN: "SEO", NameUK: "SEO-просування", NamePL: "Pozycjonowanie SEO", Icon: "🔍", Color: "#FDCB6E", CTAEN: "Boost your SEO", CTAUK: "Покращте SEO", CTAPL: "Popraw SEO"},
		{Slug: "social", NameEN: "Social Media", NameUK: "Соціальні мережі", NamePL: "Media społecznościowe", Icon: "📣", Color: "#E17055", CTAEN: "Grow your audience", CTAUK: "Розвивайте аудиторію", CTAPL: "Rozwijaj zasięgi"},
		{Slug: "chatbots", NameEN: "Chatbots", NameUK: "Чат-боти", NamePL: "Chatboty", Icon: "💬", Color: "#00CEC9", CTAEN: "Launch a chatbot", CTAUK: "Запустіть чат-бота", CTAPL: "Uruchom chatbota"},
		{Slug: "ecommerce", NameEN: "E-commerce", NameUK: "Електронна комерція", NamePL: "E-commerce", Icon: "🛒", Color: "#A29BFE", CTAEN: "Sell online", CTAUK: "Продавайте онлайн", CTAPL: "Sprzedawaj online"},
		{Slug: "fintech", NameEN: "Fintech", NameUK: "Фінтех", NamePL: "Fintech", Icon: "💳", Color: "#55EFC4", CTAEN: "Modernize payments", CTAUK: "Оновіть платежі", CTAPL: "Unowocześnij płatności"},
		{Slug: "corporate", NameEN: "Corporate", NameUK: "Корпоративні рішення", NamePL: "Rozwiązania korporacyjne", Icon: "🏢", Color: "#636E72", CTAEN: "Digitize your business", CTAUK: "Цифровізуйте бізнес", CTAPL: "Cyfryzuj biznes"},
		{Slug: "general", NameEN: "General", NameUK: "Загальне", NamePL: "Ogólne", Icon: "📰", Color: "#B2BEC3", CTAEN: "Get a consultation", CTAUK: "Отримайте консультацію", CTAPL: "Umów konsultację"},
	}
}
