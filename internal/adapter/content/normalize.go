package content

import (
	"fmt"
	"strings"

	"lazysoft-news-pipeline/internal/domain"
)

// 摘要长度边界 (字符数)
const (
	summaryMin = 2000
	summaryMax = 3000
)

// Normalize 是模型输出进入持久化前的唯一归一化点。
// 输入可以是部分缺失的草稿甚至 nil；输出保证 en/uk/pl 三个键齐全，
// 所有内容字段非空，摘要落在 [2000, 3000] 区间 (纯兜底内容除外，但也非空)。
func Normalize(draft domain.LocaleMap, article *domain.RawArticle, insights map[domain.Lang]*domain.InsightBundle) domain.LocaleMap {
	out := domain.LocaleMap{}

	for _, lang := range domain.AllLangs() {
		var c domain.LocalizedContent
		if draft != nil {
			c = draft[lang]
		}

		var bundle *domain.InsightBundle
		if insights != nil {
			bundle = insights[lang]
		}
		if bundle == nil {
			bundle = &domain.InsightBundle{}
		}

		if c.Title == "" {
			c.Title = templatedTitle(lang, article)
		}
		if c.Summary == "" {
			c.Summary = fallbackSummary(lang, article)
		}
		c.Summary = EnsureSummaryBounds(c.Summary, summaryFiller(lang, bundle))

		if c.BusinessInsight == "" {
			c.BusinessInsight = firstNonEmpty(bundle.MainInsight, fallbackInsight(lang))
		}
		if c.BusinessOpportunities == "" {
			c.BusinessOpportunities = firstNonEmpty(bundle.BusinessOpportunity, fallbackInsight(lang))
		}
		if c.LazysoftRecommendations == "" {
			c.LazysoftRecommendations = firstNonEmpty(bundle.LazysoftRecommendation, fallbackInsight(lang))
		}
		if c.LocalContext == "" {
			c.LocalContext = firstNonEmpty(bundle.LazysoftPerspective, fallbackInsight(lang))
		}
		if len(c.KeyTakeaways) == 0 {
			c.KeyTakeaways = firstNonEmptyList(bundle.KeyTakeaways, []string{c.BusinessInsight})
		}
		if len(c.InterestingFacts) == 0 {
			c.InterestingFacts = firstNonEmptyList(bundle.InterestingFacts, []string{c.BusinessInsight})
		}

		c.MetaTitle = ClipMetaTitle(c.Title)
		c.MetaDescription = ClipMetaDescription(c.Summary)
		if c.ImagePrompt == "" {
			c.ImagePrompt = fmt.Sprintf("professional business illustration, %s", c.Title)
		}

		out[lang] = c
	}

	return EnsureOriginalTitles(out, article)
}

// EnsureSummaryBounds 把摘要夹进 [2000, 3000]：
// 不够长就循环追加补充句子，超长就在句子边界软切，实在不行硬切
func EnsureSummaryBounds(summary string, filler []string) string {
	runes := []rune(summary)

	// 补齐：追加 filler 句子，耗尽后循环
	if len(runes) < summaryMin && len(filler) > 0 {
		var b strings.Builder
		b.WriteString(summary)
		i := 0
		for len([]rune(b.String())) < summaryMin {
			b.WriteString(" ")
			b.WriteString(filler[i%len(filler)])
			i++
		}
		runes = []rune(b.String())
	}

	if len(runes) <= summaryMax {
		return string(runes)
	}

	// 超长：在 [min, max] 区间内找最后一个句子边界软切
	clipped := runes[:summaryMax]
	for i := len(clipped) - 1; i >= summaryMin; i-- {
		switch clipped[i] {
		case '.', '!', '?':
			return string(clipped[:i+1])
		}
	}
	return string(clipped)
}

// EnsureOriginalTitles 标题原创性检查：
// 三个标题两两相同、或任何一个等于原文标题时，全部替换为模板标题
func EnsureOriginalTitles(locales domain.LocaleMap, article *domain.RawArticle) domain.LocaleMap {
	titles := map[domain.Lang]string{}
	for _, lang := range domain.AllLangs() {
		titles[lang] = strings.TrimSpace(locales[lang].Title)
	}

	violated := false
	original := strings.TrimSpace(article.OriginalTitle)
	langs := domain.AllLangs()
	for i, a := range langs {
		if strings.EqualFold(titles[a], original) {
			violated = true
		}
		for _, b := range langs[i+1:] {
			if strings.EqualFold(titles[a], titles[b]) {
				violated = true
			}
		}
	}

	if !violated {
		return locales
	}

	for _, lang := range langs {
		c := locales[lang]
		c.Title = templatedTitle(lang, article)
		c.MetaTitle = ClipMetaTitle(c.Title)
		locales[lang] = c
	}
	return locales
}

// ClipMetaTitle SEO 标题：60 字符上限，在词边界截断并加省略号
func ClipMetaTitle(title string) string {
	return clipAtWord(title, 60)
}

// ClipMetaDescription SEO 描述：优先取第一句，超过 160 字符截断加省略号
func ClipMetaDescription(summary string) string {
	first := firstSentence(summary)
	if first != "" && len([]rune(first)) <= 160 {
		return first
	}
	return clipAtWord(summary, 160)
}

func clipAtWord(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	clipped := string(runes[:max-1])
	if idx := strings.LastIndex(clipped, " "); idx > 0 {
		clipped = clipped[:idx]
	}
	return clipped + "…"
}

func firstSentence(s string) string {
	for i, r := range s {
		switch r {
		case '.', '!', '?':
			return s[:i+1]
		}
	}
	return ""
}

// templatedTitle 确定性模板标题，按语言区分，保证两两不同且不等于原文
func templatedTitle(lang domain.Lang, article *domain.RawArticle) string {
	topic := article.OriginalTitle
	source := article.SourceID
	if source == "" {
		source = "the original source"
	}
	switch lang {
	case domain.LangUK:
		return fmt.Sprintf("LazySoft аналізує: %s. Висновки з %s", topic, source)
	case domain.LangPL:
		return fmt.Sprintf("LazySoft analizuje: %s. Wnioski z %s", topic, source)
	default:
		return fmt.Sprintf("LazySoft analyzes: %s. Insights from %s", topic, source)
	}
}

// fallbackSummary 确定性兜底摘要，永不为空
func fallbackSummary(lang domain.Lang, article *domain.RawArticle) string {
	topic := article.OriginalTitle
	switch lang {
	case domain.LangUK:
		return fmt.Sprintf("Стаття «%s» описує подію, важливу для малого та середнього бізнесу в Європі. "+
			"Команда LazySoft підготує детальний розбір найближчим часом.", topic)
	case domain.LangPL:
		return fmt.Sprintf("Artykuł „%s” opisuje wydarzenie istotne dla małych i średnich firm w Europie. "+
			"Zespół LazySoft wkrótce przygotuje szczegółową analizę.", topic)
	default:
		return fmt.Sprintf("The article \"%s\" covers a development that matters for small and medium "+
			"businesses across Europe. The LazySoft team will publish a detailed breakdown shortly.", topic)
	}
}

func fallbackInsight(lang domain.Lang) string {
	switch lang {
	case domain.LangUK:
		return "Ця тема заслуговує на увагу бізнесу, що цифровізується."
	case domain.LangPL:
		return "Ten temat zasługuje na uwagę firm przechodzących cyfryzację."
	default:
		return "This topic deserves attention from businesses going digital."
	}
}

// summaryFiller 摘要补齐用的句子池：洞察包里的文本 + 本地化样板段
func summaryFiller(lang domain.Lang, bundle *domain.InsightBundle) []string {
	var filler []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			filler = append(filler, s)
		}
	}
	add(bundle.MainInsight)
	add(bundle.BusinessOpportunity)
	add(bundle.LazysoftRecommendation)
	add(bundle.ROIEstimate)
	for _, s := range bundle.PracticalApplications {
		add(s)
	}
	for _, s := range bundle.KeyTakeaways {
		add(s)
	}
	add(boilerplate(lang))
	return filler
}

func boilerplate(lang domain.Lang) string {
	switch lang {
	case domain.LangUK:
		return "Для малого бізнесу такі зміни означають нові можливості автоматизації, " +
			"скорочення ручної роботи та швидший вихід на клієнта. LazySoft допомагає компаніям " +
			"у Великій Британії, Польщі та Україні впроваджувати подібні рішення з обмеженим бюджетом."
	case domain.LangPL:
		return "Dla małych firm takie zmiany oznaczają nowe możliwości automatyzacji, " +
			"mniej pracy ręcznej i szybsze dotarcie do klienta. LazySoft pomaga firmom " +
			"w Wielkiej Brytanii, Polsce i Ukrainie wdrażać podobne rozwiązania przy ograniczonym budżecie."
	default:
		return "For small businesses such changes mean new automation opportunities, " +
			"less manual work and a faster route to the customer. LazySoft helps companies " +
			"in the UK, Poland and Ukraine adopt similar solutions on a limited budget."
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptyList(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}
