package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"lazysoft-news-pipeline/internal/common"
	"lazysoft-news-pipeline/internal/config"
	"lazysoft-news-pipeline/internal/domain"
	"lazysoft-news-pipeline/internal/port"
)

// 各阶段的输出 token 上限
const (
	maxTokensScoring  = 2000
	maxTokensContent  = 3000
	maxTokensInsights = 1200

	callTimeout = 60 * time.Second
	temperature = 0.7
)

// 粗略计价 (USD / 1K tokens)，只用于 ROI 统计，不追求精确
const (
	costPerKInputTokens  = 0.000075
	costPerKOutputTokens = 0.0003
)

// Client 封装 Gemini 调用：限速、JSON 模式、主模型失败后降级备用模型。
// 生命周期由编排器管理：批次开始时创建，结束时 Close。
type Client struct {
	genai         *genai.Client
	model         string
	fallbackModel string
	limiter       *rate.Limiter
	logger        *zap.Logger
}

// GenResult 一次生成调用的结果和用量信息
type GenResult struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// CostUSD 估算本次调用成本
func (r *GenResult) CostUSD() float64 {
	return float64(r.InputTokens)/1000*costPerKInputTokens +
		float64(r.OutputTokens)/1000*costPerKOutputTokens
}

// NewClient 初始化 Gemini 客户端
func NewClient(ctx context.Context, cfg config.GeminiConfig, logger *zap.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, common.WrapError(common.ErrCodeAIProcessing, "Gemini 客户端初始化失败", err)
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 12
	}

	return &Client{
		genai:         client,
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
		limiter:       rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		logger:        logger,
	}, nil
}

// Close 释放底层连接
func (c *Client) Close() error {
	return c.genai.Close()
}

// GenerateJSON 以 JSON 模式发起一次生成调用。
// 失败策略：主模型不认 JSON 响应格式时去掉格式约束重试；
// 限流或其他错误时用备用 (更小的) 模型再试一次，之后交给调用方兜底。
func (c *Client) GenerateJSON(ctx context.Context, prompt string, maxTokens int32) (*GenResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	res, err := c.generateOnce(ctx, c.model, prompt, maxTokens, true)
	if err == nil {
		return res, nil
	}

	// 供应商不认 response_format：同模型去掉 JSON 约束重试
	if isFormatUnsupported(err) {
		c.logger.Warn("供应商不支持 JSON 响应格式，去掉约束重试", zap.Error(err))
		if res, retryErr := c.generateOnce(ctx, c.model, prompt, maxTokens, false); retryErr == nil {
			return res, nil
		}
	}

	// 限流等错误：降级备用模型重试一次
	c.logger.Warn("主模型调用失败，降级备用模型",
		zap.String("model", c.model),
		zap.String("fallback", c.fallbackModel),
		zap.Error(err),
	)
	res, fallbackErr := c.generateOnce(ctx, c.fallbackModel, prompt, maxTokens, true)
	if fallbackErr != nil {
		return nil, common.WrapError(common.ErrCodeAIProcessing, "主模型和备用模型均调用失败", err)
	}
	return res, nil
}

// generateOnce 单次调用，60 秒硬超时
func (c *Client) generateOnce(ctx context.Context, modelName, prompt string, maxTokens int32, jsonMode bool) (*GenResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	model := c.genai.GenerativeModel(modelName)
	temp := float32(temperature)
	model.Temperature = &temp
	model.MaxOutputTokens = &maxTokens
	if jsonMode {
		model.ResponseMIMEType = "application/json"
	}

	resp, err := model.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, common.NewError(common.ErrCodeAIProcessing, "AI 返回内容为空")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, common.NewError(common.ErrCodeAIProcessing, "AI 返回格式错误")
	}

	result := &GenResult{Text: string(text), Model: modelName}
	if resp.UsageMetadata != nil {
		result.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}

// isFormatUnsupported 识别供应商不支持 response_format 的报错
func isFormatUnsupported(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "response_mime_type") ||
		strings.Contains(msg, "response_format") ||
		strings.Contains(msg, "json mode")
}

// reportStage 上报一条阶段流水，sink 为 nil 时跳过。
// res 为 nil 表示调用根本没成功，没有用量可记。
func reportStage(ctx context.Context, sink port.StageLogger, articleID, stage string, res *GenResult, start time.Time, success bool, errMsg, prompt string) {
	if sink == nil {
		return
	}
	entry := &domain.ProcessingLog{
		RawArticleID: articleID,
		Stage:        stage,
		DurationMS:   time.Since(start).Milliseconds(),
		Success:      success,
		Error:        errMsg,
		InputDigest:  digest(prompt),
	}
	if res != nil {
		entry.Model = res.Model
		entry.InputTokens = res.InputTokens
		entry.OutputTokens = res.OutputTokens
		entry.CostUSD = res.CostUSD()
		entry.OutputDigest = digest(res.Text)
	}
	sink(ctx, entry)
}

// digest 取文本前 12 个字符的哈希摘要，流水日志用
func digest(s string) string {
	if s == "" {
		return ""
	}
	return fmt.Sprintf("%x", sha256Sum(s))[:12]
}
