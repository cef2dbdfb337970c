package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"lazysoft-news-pipeline/internal/common"
)

// trivialSlack 抽取结果必须比现有正文长出这个余量才值得替换
const trivialSlack = 100

// minFullContent 标记 has_full_content 的正文长度下限
const minFullContent = 1500

// Client 实现了 port.Extractor 接口：
// 调用本地抽取服务 (extract.php) 拿文章全文。
// 只对入选的 top-K 文章调用，任何错误都是非致命的。
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient 初始化抽取客户端
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

type extractResponse struct {
	Content string `json:"content"`
}

// Extract 请求 GET {base}/extract.php?url=…&format=json，返回正文内容。
// 服务不可用或返回为空时返回空串，调用方继续用 RSS 摘要。
func (c *Client) Extract(ctx context.Context, articleURL string) (string, error) {
	if c.baseURL == "" {
		return "", nil
	}

	endpoint := fmt.Sprintf("%s/extract.php?url=%s&format=json", c.baseURL, url.QueryEscape(articleURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", common.WrapError(common.ErrCodeTransport, "构造抽取请求失败", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", common.WrapError(common.ErrCodeTransport, "抽取服务不可达", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", common.NewError(common.ErrCodeTransport, fmt.Sprintf("抽取服务返回状态码 %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return "", common.WrapError(common.ErrCodeTransport, "读取抽取响应失败", err)
	}

	var parsed extractResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", common.WrapError(common.ErrCodeParse, "抽取响应不是合法 JSON", err)
	}

	return parsed.Content, nil
}

// ShouldUpgrade 判断抽取结果是否配得上 has_full_content 标记：
// 至少 1500 字符、至少是现有正文的 1.5 倍，且明显更长 (trivial_slack 余量)，
// 避免把一段略长的摘要当成全文
func ShouldUpgrade(existing, extracted string) bool {
	if len(extracted) < minFullContent {
		return false
	}
	if len(extracted)*2 < len(existing)*3 {
		return false
	}
	return len(extracted) > len(existing)+trivialSlack
}
