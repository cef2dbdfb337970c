package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"lazysoft-news-pipeline/internal/domain"
	"lazysoft-news-pipeline/internal/port"
)

// CostTracker 是 AI 适配器的 StageLogger 落点：
// 把流水写进仓库，同时按文章累计美元开销，持久化阶段回填到 ProcessedArticle
type CostTracker struct {
	repo   port.Repository
	logger *zap.Logger

	mu        sync.Mutex
	byArticle map[string]float64
}

// NewCostTracker 创建开销追踪器
func NewCostTracker(repo port.Repository, logger *zap.Logger) *CostTracker {
	return &CostTracker{
		repo:      repo,
		logger:    logger,
		byArticle: make(map[string]float64),
	}
}

// Log 实现 port.StageLogger，写流水失败只告警不中断
func (t *CostTracker) Log(ctx context.Context, entry *domain.ProcessingLog) {
	if entry == nil {
		return
	}

	t.mu.Lock()
	t.byArticle[entry.RawArticleID] += entry.CostUSD
	t.mu.Unlock()

	if t.repo != nil {
		if err := t.repo.AppendLog(ctx, entry); err != nil {
			t.logger.Warn("处理流水写入失败", zap.String("stage", entry.Stage), zap.Error(err))
		}
	}
}

// CostFor 返回一篇文章到目前为止累计的美元开销
func (t *CostTracker) CostFor(articleID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byArticle[articleID]
}
