package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"lazysoft-news-pipeline/internal/domain"
)

// BuildDigest 把当日精选聚合成三语摘要 (纯函数)。
// Date 取规范化的当天零点，ArticleIDs 恰好是 top 集合。
// 摘要生成即发布：is_published 和 published_at 在这里一并盖章。
func BuildDigest(date time.Time, top []*domain.ProcessedArticle, total int) *domain.Digest {
	day := domain.DayOf(date)
	dateStr := day.Format("2006-01-02")

	ids := make([]string, 0, len(top))
	for _, a := range top {
		ids = append(ids, a.ID)
	}

	now := time.Now()
	return &domain.Digest{
		ID:            uuid.NewString(),
		Date:          day,
		TitleEN:       fmt.Sprintf("LazySoft Daily Digest, %s", dateStr),
		TitleUK:       fmt.Sprintf("Щоденний дайджест LazySoft, %s", dateStr),
		TitlePL:       fmt.Sprintf("Codzienny przegląd LazySoft, %s", dateStr),
		IntroEN:       digestIntro(top, domain.LangEN),
		IntroUK:       digestIntro(top, domain.LangUK),
		IntroPL:       digestIntro(top, domain.LangPL),
		ArticleIDs:    ids,
		TotalArticles: total,
		IsPublished:   true,
		GeneratedAt:   now,
		PublishedAt:   &now,
	}
}

func digestIntro(top []*domain.ProcessedArticle, lang domain.Lang) string {
	lead := map[domain.Lang]string{
		domain.LangEN: "Today's picks for small and medium businesses:",
		domain.LangUK: "Сьогоднішня добірка для малого та середнього бізнесу:",
		domain.LangPL: "Dzisiejszy wybór dla małych i średnich firm:",
	}[lang]

	var b strings.Builder
	b.WriteString(lead)
	for i, a := range top {
		b.WriteString(fmt.Sprintf("\n%d. %s", i+1, a.Locale(lang).Title))
	}
	return b.String()
}
