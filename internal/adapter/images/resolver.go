package images

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"lazysoft-news-pipeline/internal/config"
	"lazysoft-news-pipeline/internal/domain"
)

// 图片缓存 TTL：同一查询 30 天内不重复打图库
const cacheTTL = 30 * 24 * time.Hour

const requestTimeout = 15 * time.Second

// imageCache 只依赖仓库的图片缓存两个方法
type imageCache interface {
	GetCachedImage(ctx context.Context, queryHash string) (string, bool, error)
	PutCachedImage(ctx context.Context, entry *domain.ImageCacheEntry) error
}

// provider 单个图库的查询实现，没配密钥时 enabled 为 false
type provider struct {
	name    string
	enabled bool
	search  func(ctx context.Context, query string) (string, error)
}

// Resolver 实现了 port.ImageFinder 接口：
// 按 Unsplash → Pexels → Pixabay 的顺序查配图，整个操作尽力而为
type Resolver struct {
	client    *http.Client
	cache     imageCache
	logger    *zap.Logger
	providers []provider
}

// NewResolver 创建配图解析器，密钥缺失的图库自动跳过
func NewResolver(cfg config.ImagesConfig, cache imageCache, logger *zap.Logger) *Resolver {
	r := &Resolver{
		client: &http.Client{Timeout: requestTimeout},
		cache:  cache,
		logger: logger,
	}
	r.providers = []provider{
		{name: "unsplash", enabled: cfg.UnsplashKey != "", search: r.searchUnsplash(cfg.UnsplashKey)},
		{name: "pexels", enabled: cfg.PexelsKey != "", search: r.searchPexels(cfg.PexelsKey)},
		{name: "pixabay", enabled: cfg.PixabayKey != "", search: r.searchPixabay(cfg.PixabayKey)},
	}
	return r
}

// FindImage 为文章找一张配图。
// 缓存键是首选查询串的 MD5，命中后 30 天内不再访问图库。
// 所有图库都失败时返回空串而不是错误，配图缺失不阻塞流水线。
func (r *Resolver) FindImage(ctx context.Context, title, category string, content string) (string, error) {
	queries := BuildQueries(title, category, content)
	if len(queries) == 0 {
		return "", nil
	}

	hash := QueryHash(queries[0])
	if r.cache != nil {
		if cached, ok, err := r.cache.GetCachedImage(ctx, hash); err == nil && ok {
			return cached, nil
		}
	}

	for _, q := range queries {
		for _, p := range r.providers {
			if !p.enabled {
				continue
			}
			imageURL, err := p.search(ctx, q)
			if err != nil {
				r.logger.Warn("图库查询失败",
					zap.String("provider", p.name),
					zap.String("query", q),
					zap.Error(err),
				)
				continue
			}
			if imageURL == "" {
				continue
			}

			if r.cache != nil {
				entry := &domain.ImageCacheEntry{
					QueryHash: hash,
					Query:     queries[0],
					ImageURL:  imageURL,
					Provider:  p.name,
					ExpiresAt: time.Now().Add(cacheTTL),
				}
				if err := r.cache.PutCachedImage(ctx, entry); err != nil {
					r.logger.Warn("图片缓存写入失败", zap.Error(err))
				}
			}
			return imageURL, nil
		}
	}

	return "", nil
}

// QueryHash 缓存键：查询串的 MD5 十六进制
func QueryHash(query string) string {
	sum := md5.Sum([]byte(query))
	return hex.EncodeToString(sum[:])
}

func (r *Resolver) searchUnsplash(key string) func(ctx context.Context, query string) (string, error) {
	return func(ctx context.Context, query string) (string, error) {
		endpoint := "https://api.unsplash.com/search/photos?per_page=1&orientation=landscape&query=" + url.QueryEscape(query)
		var body struct {
			Results []struct {
				URLs struct {
					Regular string `json:"regular"`
				} `json:"urls"`
			} `json:"results"`
		}
		if err := r.getJSON(ctx, endpoint, "Authorization", "Client-ID "+key, &body); err != nil {
			return "", err
		}
		if len(body.Results) == 0 {
			return "", nil
		}
		return body.Results[0].URLs.Regular, nil
	}
}

func (r *Resolver) searchPexels(key string) func(ctx context.Context, query string) (string, error) {
	return func(ctx context.Context, query string) (string, error) {
		endpoint := "https://api.pexels.com/v1/search?per_page=1&orientation=landscape&query=" + url.QueryEscape(query)
		var body struct {
			Photos []struct {
				Src struct {
					Large string `json:"large"`
				} `json:"src"`
			} `json:"photos"`
		}
		if err := r.getJSON(ctx, endpoint, "Authorization", key, &body); err != nil {
			return "", err
		}
		if len(body.Photos) == 0 {
			return "", nil
		}
		return body.Photos[0].Src.Large, nil
	}
}

func (r *Resolver) searchPixabay(key string) func(ctx context.Context, query string) (string, error) {
	return func(ctx context.Context, query string) (string, error) {
		endpoint := fmt.Sprintf("https://pixabay.com/api/?key=%s&per_page=3&image_type=photo&q=%s",
			url.QueryEscape(key), url.QueryEscape(query))
		var body struct {
			Hits []struct {
				WebformatURL string `json:"webformatURL"`
			} `json:"hits"`
		}
		if err := r.getJSON(ctx, endpoint, "", "", &body); err != nil {
			return "", err
		}
		if len(body.Hits) == 0 {
			return "", nil
		}
		return body.Hits[0].WebformatURL, nil
	}
}

func (r *Resolver) getJSON(ctx context.Context, endpoint, headerKey, headerValue string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if headerKey != "" {
		req.Header.Set(headerKey, headerValue)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("图库返回状态码 %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
