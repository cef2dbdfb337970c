package rss

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"lazysoft-news-pipeline/internal/common"
	"lazysoft-news-pipeline/internal/domain"
)

const (
	// 固定桌面 UA，部分站点会拒绝默认的 Go UA
	userAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	httpTimeout = 30 * time.Second
	maxBodySize = 10 << 20 // 10MB
)

// Fetcher 实现了 port.FeedFetcher 接口：
// 拉取单个 RSS/Atom 源，归一化条目并计算内容哈希
type Fetcher struct {
	client     *http.Client
	parser     *gofeed.Parser
	sanitizer  *bluemonday.Policy
	logger     *zap.Logger
	noFilter   bool             // 显式关闭日期过滤
	nowFunc    func() time.Time // 便于测试注入当前时间
}

// NewFetcher 初始化采集器
func NewFetcher(logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: httpTimeout},
		parser:    gofeed.NewParser(),
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// DisableDateFilter 关闭日期过滤 (回填历史数据时用)
func (f *Fetcher) DisableDateFilter() {
	f.noFilter = true
}

// Fetch 拉取并归一化一个订阅源的条目。
// 传输错误让整个源失败；feed 本身畸形 (bozo) 时 gofeed 能解析多少算多少。
// targetDate 为 nil 且未关闭过滤时，默认取"昨天"以拿到完整的一天。
func (f *Fetcher) Fetch(ctx context.Context, source *domain.Source, targetDate *time.Time) ([]*domain.ParsedArticle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.FeedURL, nil)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeTransport, "构造请求失败", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	var body []byte
	err = common.Do(ctx, func() error {
		resp, httpErr := f.client.Do(req)
		if httpErr != nil {
			return httpErr
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("源 %s 返回状态码 %d", source.ID, resp.StatusCode)
		}
		body, httpErr = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		return httpErr
	}, common.WithMaxRetries(2), common.WithInitialDelay(time.Second))
	if err != nil {
		return nil, common.WrapError(common.ErrCodeTransport, fmt.Sprintf("拉取源 %s 失败", source.ID), err)
	}

	feed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, common.WrapError(common.ErrCodeParse, fmt.Sprintf("解析源 %s 失败", source.ID), err)
	}

	now := f.nowFunc()
	filter, useFilter := f.resolveDateFilter(targetDate, now)

	var articles []*domain.ParsedArticle
	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		parsed := f.normalizeItem(source, item, now)
		if parsed.Title == "" || parsed.URL == "" {
			continue
		}

		// 日期过滤：只保留目标日期发布的条目
		if useFilter && !sameDay(parsed.PublishedAt, filter) {
			continue
		}

		articles = append(articles, parsed)
	}

	f.logger.Info("源拉取完成",
		zap.String("source_id", source.ID),
		zap.Int("items_total", len(feed.Items)),
		zap.Int("items_kept", len(articles)),
	)

	return articles, nil
}

// resolveDateFilter 决定日期过滤的目标：显式目标 > 默认昨天 > 关闭
func (f *Fetcher) resolveDateFilter(targetDate *time.Time, now time.Time) (time.Time, bool) {
	if targetDate != nil {
		return domain.DayOf(*targetDate), true
	}
	if f.noFilter {
		return time.Time{}, false
	}
	return domain.DayOf(now.AddDate(0, 0, -1)), true
}

// normalizeItem 把 gofeed 条目转成归一化的 ParsedArticle
func (f *Fetcher) normalizeItem(source *domain.Source, item *gofeed.Item, now time.Time) *domain.ParsedArticle {
	title := f.cleanText(item.Title)

	bodyText := item.Content
	if bodyText == "" {
		bodyText = item.Description
	}
	bodyText = f.cleanText(bodyText)

	summary := f.cleanText(item.Description)
	if summary == "" {
		summary = truncate(bodyText, 500)
	}

	link := resolveLink(source.FeedURL, item.Link)

	// 发布时间：published → updated → now
	publishedAt := now
	if item.PublishedParsed != nil {
		publishedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		publishedAt = *item.UpdatedParsed
	}

	return &domain.ParsedArticle{
		SourceID:    source.ID,
		URL:         link,
		Title:       title,
		Body:        bodyText,
		Summary:     summary,
		Author:      extractAuthor(item),
		PublishedAt: publishedAt,
		ContentHash: ContentHash(title, bodyText, link),
	}
}

// cleanText 去掉 HTML 标签并折叠空白
func (f *Fetcher) cleanText(s string) string {
	stripped := f.sanitizer.Sanitize(s)
	stripped = html.UnescapeString(stripped)
	return strings.Join(strings.Fields(stripped), " ")
}

// ContentHash 内容哈希：SHA-256(标题‖正文‖URL)
func ContentHash(title, body, link string) string {
	h := sha256.Sum256([]byte(title + body + link))
	return hex.EncodeToString(h[:])
}

// resolveLink 把相对链接解析到 feed URL 上
func resolveLink(feedURL, link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	if u.IsAbs() {
		return link
	}
	base, err := url.Parse(feedURL)
	if err != nil {
		return link
	}
	return base.ResolveReference(u).String()
}

// extractAuthor 从常见字段里提取作者
func extractAuthor(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil && item.Authors[0].Name != "" {
		return item.Authors[0].Name
	}
	if dc, ok := item.Custom["dc:creator"]; ok && dc != "" {
		return dc
	}
	return ""
}

func sameDay(t, day time.Time) bool {
	return domain.DayOf(t).Equal(day)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
