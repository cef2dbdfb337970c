package images

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"lazysoft-news-pipeline/internal/config"
	"lazysoft-news-pipeline/internal/domain"
)

func TestExtractKeywords(t *testing.T) {
	t.Run("按词频取词并剔除停用词", func(t *testing.T) {
		title := "Automation tools automation platforms"
		body := "The automation market is growing. Chatbot chatbot platforms help with automation."
		got := ExtractKeywords(title, body, 3)

		assert.Equal(t, "automation", got[0]) // 出现 4 次
		assert.Contains(t, got, "chatbot")
		assert.NotContains(t, got, "the")
		assert.NotContains(t, got, "with")
	})

	t.Run("同频词按字典序保证确定性", func(t *testing.T) {
		got1 := ExtractKeywords("zebra apple zebra apple", "", 2)
		got2 := ExtractKeywords("zebra apple zebra apple", "", 2)
		assert.Equal(t, got1, got2)
		assert.Equal(t, []string{"apple", "zebra"}, got1)
	})

	t.Run("短词和非字母词被剔除", func(t *testing.T) {
		got := ExtractKeywords("AI v2 go 2024 automation", "", 5)
		assert.Equal(t, []string{"automation"}, got)
	})
}

func TestBuildQueries(t *testing.T) {
	queries := BuildQueries("Automation chatbot platforms for automation teams", "ai", "")

	assert.NotEmpty(t, queries)
	// 首选查询是关键词组合，末位永远是通用兜底
	assert.Contains(t, queries[0], "automation")
	assert.Equal(t, "business technology", queries[len(queries)-1])
	assert.Contains(t, queries, "ai business")
}

// fakeCache 内存版图片缓存
type fakeCache struct {
	entries map[string]*domain.ImageCacheEntry
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*domain.ImageCacheEntry{}}
}

func (f *fakeCache) GetCachedImage(ctx context.Context, queryHash string) (string, bool, error) {
	if e, ok := f.entries[queryHash]; ok && e.ExpiresAt.After(time.Now()) {
		return e.ImageURL, true, nil
	}
	return "", false, nil
}

func (f *fakeCache) PutCachedImage(ctx context.Context, entry *domain.ImageCacheEntry) error {
	f.entries[entry.QueryHash] = entry
	return nil
}

func TestResolver_FindImage_NoProviders(t *testing.T) {
	// 没配任何密钥：全部供应商被跳过，尽力而为地返回空串
	r := NewResolver(config.ImagesConfig{}, newFakeCache(), zap.NewNop())

	url, err := r.FindImage(context.Background(), "Some automation title here", "ai", "")
	assert.NoError(t, err)
	assert.Empty(t, url)
}

func TestResolver_FindImage_CacheHit(t *testing.T) {
	cache := newFakeCache()
	queries := BuildQueries("Some automation title here", "ai", "")
	hash := QueryHash(queries[0])
	cache.entries[hash] = &domain.ImageCacheEntry{
		QueryHash: hash,
		ImageURL:  "https://img.example/cached.jpg",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	// 缓存命中时完全不触达图库 (没配密钥也能返回)
	r := NewResolver(config.ImagesConfig{}, cache, zap.NewNop())
	url, err := r.FindImage(context.Background(), "Some automation title here", "ai", "")
	assert.NoError(t, err)
	assert.Equal(t, "https://img.example/cached.jpg", url)
}

func TestResolver_FindImage_ExpiredCacheMiss(t *testing.T) {
	cache := newFakeCache()
	queries := BuildQueries("Some automation title here", "ai", "")
	hash := QueryHash(queries[0])
	cache.entries[hash] = &domain.ImageCacheEntry{
		QueryHash: hash,
		ImageURL:  "https://img.example/stale.jpg",
		ExpiresAt: time.Now().Add(-time.Hour),
	}

	r := NewResolver(config.ImagesConfig{}, cache, zap.NewNop())
	url, err := r.FindImage(context.Background(), "Some automation title here", "ai", "")
	assert.NoError(t, err)
	assert.Empty(t, url)
}

func TestQueryHash(t *testing.T) {
	assert.Equal(t, QueryHash("same"), QueryHash("same"))
	assert.NotEqual(t, QueryHash("one"), QueryHash("two"))
	assert.Len(t, QueryHash("x"), 32)
}
