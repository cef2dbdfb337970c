package content

import "lazysoft-news-pipeline/internal/domain"

// ctaButtons 按分类的静态按钮配置。
// 没有专属配置的分类走 default (咨询 + 案例)。
var ctaButtons = map[string][]domain.CTAButton{
	"ai": {
		{TextEN: "Automate with AI", TextUK: "Автоматизуйте з ШІ", TextPL: "Automatyzuj z AI", URL: "/services/ai"},
		{TextEN: "Free consultation", TextUK: "Безкоштовна консультація", TextPL: "Bezpłatna konsultacja", URL: "/contact"},
	},
	"automation": {
		{TextEN: "Automate your workflow", TextUK: "Автоматизуйте процеси", TextPL: "Zautomatyzuj procesy", URL: "/services/automation"},
		{TextEN: "Free consultation", TextUK: "Безкоштовна консультація", TextPL: "Bezpłatna konsultacja", URL: "/contact"},
	},
	"seo": {
		{TextEN: "Boost your SEO", TextUK: "Покращте SEO", TextPL: "Popraw SEO", URL: "/services/seo"},
		{TextEN: "Get an audit", TextUK: "Замовте аудит", TextPL: "Zamów audyt", URL: "/contact"},
	},
	"chatbots": {
		{TextEN: "Launch a chatbot", TextUK: "Запустіть чат-бота", TextPL: "Uruchom chatbota", URL: "/services/chatbots"},
		{TextEN: "Free consultation", TextUK: "Безкоштовна консультація", TextPL: "Bezpłatna konsultacja", URL: "/contact"},
	},
}

var defaultButtons = []domain.CTAButton{
	{TextEN: "Get a consultation", TextUK: "Отримайте консультацію", TextPL: "Umów konsultację", URL: "/contact"},
	{TextEN: "See our work", TextUK: "Наші кейси", TextPL: "Nasze realizacje", URL: "/portfolio"},
}

// BuildCTA 按分类返回文章底部的行动号召区块，配置是静态的不依赖模型
func BuildCTA(category string) domain.CTABlock {
	buttons, ok := ctaButtons[category]
	if !ok {
		buttons = defaultButtons
	}
	return domain.CTABlock{
		Title:       "Ready to apply this in your business?",
		Description: "LazySoft builds automation, AI and web solutions for small and medium businesses.",
		Buttons:     buttons,
	}
}
