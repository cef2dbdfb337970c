package content

import (
	"fmt"
	"strings"

	"lazysoft-news-pipeline/internal/domain"
)

// 阅读速度假设：200 词/分钟，下限 5 分钟
const (
	wordsPerMinute = 200
	minReadingTime = 5
)

var sectionHeadings = map[domain.Lang]struct {
	takeaways, steps, recommendation string
}{
	domain.LangEN: {takeaways: "Key takeaways", steps: "How to get started", recommendation: "LazySoft recommends"},
	domain.LangUK: {takeaways: "Головні висновки", steps: "З чого почати", recommendation: "LazySoft рекомендує"},
	domain.LangPL: {takeaways: "Najważniejsze wnioski", steps: "Od czego zacząć", recommendation: "LazySoft rekomenduje"},
}

// BuildFullContent 当原始文章有全文时，把摘要 + 洞察拼成每种语言的长文。
// 返回英语版的词数，供阅读时长估算用。
func BuildFullContent(locales domain.LocaleMap, insights map[domain.Lang]*domain.InsightBundle) (domain.LocaleMap, int) {
	enWords := 0

	for _, lang := range domain.AllLangs() {
		c := locales[lang]
		var bundle *domain.InsightBundle
		if insights != nil {
			bundle = insights[lang]
		}
		if bundle == nil {
			bundle = &domain.InsightBundle{}
		}

		h := sectionHeadings[lang]
		var b strings.Builder
		b.WriteString(c.Summary)

		if len(c.KeyTakeaways) > 0 {
			b.WriteString("\n\n## " + h.takeaways + "\n")
			for _, t := range c.KeyTakeaways {
				b.WriteString("- " + t + "\n")
			}
		}
		if len(bundle.ImplementationSteps) > 0 {
			b.WriteString("\n## " + h.steps + "\n")
			for i, s := range bundle.ImplementationSteps {
				b.WriteString(fmt.Sprintf("%d. %s\n", i+1, s))
			}
		}
		if c.LazysoftRecommendations != "" {
			b.WriteString("\n## " + h.recommendation + "\n")
			b.WriteString(c.LazysoftRecommendations)
		}

		c.FullContent = b.String()
		locales[lang] = c

		if lang == domain.LangEN {
			enWords = len(strings.Fields(c.FullContent))
		}
	}

	return locales, enWords
}

// ReadingTime 阅读时长 (分钟)，下限 5
func ReadingTime(words int) int {
	minutes := words / wordsPerMinute
	if minutes < minReadingTime {
		return minReadingTime
	}
	return minutes
}
