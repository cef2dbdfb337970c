package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"lazysoft-news-pipeline/internal/domain"
)

func TestCostTracker_AccumulatesPerArticle(t *testing.T) {
	repo := newMemRepo()
	tracker := NewCostTracker(repo, zap.NewNop())
	ctx := context.Background()

	tracker.Log(ctx, &domain.ProcessingLog{RawArticleID: "a1", Stage: "score", CostUSD: 0.001, InputTokens: 100, OutputTokens: 20})
	tracker.Log(ctx, &domain.ProcessingLog{RawArticleID: "a1", Stage: "insights", CostUSD: 0.004})
	tracker.Log(ctx, &domain.ProcessingLog{RawArticleID: "a2", Stage: "score", CostUSD: 0.002})
	tracker.Log(ctx, nil)

	assert.InDelta(t, 0.005, tracker.CostFor("a1"), 1e-9)
	assert.InDelta(t, 0.002, tracker.CostFor("a2"), 1e-9)
	assert.Zero(t, tracker.CostFor("unknown"))

	// 每条非空流水都落库
	assert.Len(t, repo.logs, 3)

	tokens, cost, err := repo.RunCost(ctx, time.Time{})
	assert.NoError(t, err)
	assert.Equal(t, 120, tokens)
	assert.InDelta(t, 0.007, cost, 1e-9)
}

func TestCostTracker_NilRepo(t *testing.T) {
	tracker := NewCostTracker(nil, zap.NewNop())
	tracker.Log(context.Background(), &domain.ProcessingLog{RawArticleID: "a1", CostUSD: 0.01})
	assert.InDelta(t, 0.01, tracker.CostFor("a1"), 1e-9)
}
