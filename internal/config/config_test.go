package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazysoft-news-pipeline/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(envConfigPath, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pipeline.TopK)
	assert.Equal(t, 20, cfg.Pipeline.CandidateLimit)
	assert.Equal(t, 1, cfg.Pipeline.MaxParallel)
	assert.Equal(t, 30, cfg.Pipeline.RunTimeoutMinutes)
	assert.Equal(t, "0 6 * * *", cfg.Pipeline.CronExpression)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.Gemini.FallbackModel)
	assert.Equal(t, []string{"telegram_uk", "telegram_pl"}, cfg.Social.Platforms)
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
pipeline:
  topK: 3
  maxParallel: 9
gemini:
  apiKey: from-yaml
sources:
  - id: techcrunch
    name: TechCrunch
    url: https://techcrunch.com/feed/
    language: en
    category: ai
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv(envConfigPath, path)
	t.Setenv(envGeminiKey, "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pipeline.TopK)
	// maxParallel 超出 1..4 被夹到 4
	assert.Equal(t, 4, cfg.Pipeline.MaxParallel)
	// 环境变量覆盖 YAML
	assert.Equal(t, "from-env", cfg.Gemini.APIKey)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "ai", cfg.Sources[0].Category)
}

func TestLoad_RejectsInvalidSource(t *testing.T) {
	dir := t.TempDir()

	t.Run("非法分类", func(t *testing.T) {
		path := filepath.Join(dir, "bad-category.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
sources:
  - id: x
    url: https://x.example/feed
    language: en
    category: crypto
`), 0o644))
		t.Setenv(envConfigPath, path)

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("非法语言", func(t *testing.T) {
		path := filepath.Join(dir, "bad-lang.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
sources:
  - id: x
    url: https://x.example/feed
    language: de
    category: ai
`), 0o644))
		t.Setenv(envConfigPath, path)

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestDomainSources(t *testing.T) {
	cfg := Config{
		Sources: []SourceConfig{
			{ID: "a", Name: "A", URL: "https://a/feed", Language: "en", Category: "ai"},
			{ID: "b", Name: "B", URL: "https://b/feed", Language: "pl", Category: "seo", IntervalMinutes: 60},
		},
	}

	sources := cfg.DomainSources()
	require.Len(t, sources, 2)

	assert.Equal(t, domain.LangEN, sources[0].Language)
	assert.Equal(t, 1440, sources[0].FetchIntervalMinutes) // 默认每天一次
	assert.Equal(t, 60, sources[1].FetchIntervalMinutes)
	assert.True(t, sources[0].Active)
}

func TestLocation(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, "Europe/Warsaw", cfg.Location().String())

	cfg.Pipeline.Timezone = "not-a-zone"
	assert.Equal(t, "UTC", cfg.Location().String())
}
