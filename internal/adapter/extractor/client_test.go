package extractor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClient_Extract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract.php", r.URL.Path)
		assert.Equal(t, "https://news.example/a", r.URL.Query().Get("url"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		fmt.Fprint(w, `{"content": "Full article text"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	content, err := client.Extract(context.Background(), "https://news.example/a")
	require.NoError(t, err)
	assert.Equal(t, "Full article text", content)
}

func TestClient_Extract_NotConfigured(t *testing.T) {
	client := NewClient("", zap.NewNop())
	content, err := client.Extract(context.Background(), "https://news.example/a")
	assert.NoError(t, err)
	assert.Empty(t, content)
}

func TestClient_Extract_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	_, err := client.Extract(context.Background(), "https://news.example/a")
	assert.Error(t, err)
}

func TestClient_Extract_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	_, err := client.Extract(context.Background(), "https://news.example/a")
	assert.Error(t, err)
}

func TestShouldUpgrade(t *testing.T) {
	tests := []struct {
		name      string
		existing  string
		extracted string
		expected  bool
	}{
		{name: "明显更长且达标时替换", existing: strings.Repeat("a", 500), extracted: strings.Repeat("b", 2000), expected: true},
		{name: "短摘要翻倍仍不算全文", existing: strings.Repeat("a", 150), extracted: strings.Repeat("b", 300), expected: false},
		{name: "更长但不足 1500 不替换", existing: strings.Repeat("a", 500), extracted: strings.Repeat("b", 700), expected: false},
		{name: "不足现有正文 1.5 倍不替换", existing: strings.Repeat("a", 1500), extracted: strings.Repeat("b", 1600), expected: false},
		{name: "长正文的合格抽取替换", existing: strings.Repeat("a", 1500), extracted: strings.Repeat("b", 2300), expected: true},
		{name: "无现有正文时达标即替换", existing: "", extracted: strings.Repeat("b", 1500), expected: true},
		{name: "更短不替换", existing: strings.Repeat("a", 500), extracted: strings.Repeat("b", 100), expected: false},
		{name: "空结果不替换", existing: strings.Repeat("a", 500), extracted: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShouldUpgrade(tt.existing, tt.extracted))
		})
	}
}
