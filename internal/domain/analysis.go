package domain

import "time"

// RelevanceAnalysis 受众打分的临时结果，只在内存中流转，不落库
type RelevanceAnalysis struct {
	Score                    float64  `json:"score"`          // 1..10
	CategoryMatch            string   `json:"category_match"` // 十个固定分类之一
	TargetAudience           string   `json:"target_audience"`
	BusinessImpact           string   `json:"business_impact"`           // low / medium / high
	ImplementationComplexity string   `json:"implementation_complexity"` // easy / medium / hard
	CostImplications         string   `json:"cost_implications"`         // low / medium / high
	KeyBenefits              []string `json:"key_benefits"`      // ≤5
	PotentialConcerns        []string `json:"potential_concerns"` // ≤3
	Confidence               float64  `json:"confidence"`         // 0..1
	Reasoning                string   `json:"reasoning"`
}

// ScoredCandidate 打分后的候选：原始文章和对应的受众分析
type ScoredCandidate struct {
	Article  *RawArticle
	Analysis *RelevanceAnalysis
}

// InsightBundle 单一语言/市场的洞察包 (C6 的输出)
type InsightBundle struct {
	MainInsight            string   `json:"main_insight"`
	PracticalApplications  []string `json:"practical_applications"` // ≤5
	LazysoftPerspective    string   `json:"lazysoft_perspective"`
	ImplementationSteps    []string `json:"implementation_steps"` // ≤5
	ROIEstimate            string   `json:"roi_estimate"`
	KeyTakeaways           []string `json:"key_takeaways"`      // ≤5
	InterestingFacts       []string `json:"interesting_facts"`  // ≤5
	BusinessOpportunity    string   `json:"business_opportunity"`
	LazysoftRecommendation string   `json:"lazysoft_recommendation"`
}

// PipelineResult 一次每日批处理的运行报告 (§外部接口的返回值契约)
type PipelineResult struct {
	Date                   string   `json:"date"`
	TotalArticlesProcessed int      `json:"total_articles_processed"`
	TopArticlesSelected    int      `json:"top_articles_selected"`
	ArticlesPublished      int      `json:"articles_published"`
	DigestCreated          bool     `json:"digest_created"`
	ROICalculated          bool     `json:"roi_calculated"`
	ProcessingTimeSeconds  float64  `json:"processing_time_seconds"`
	Errors                 []string `json:"errors"`
	SuccessRatePercent     float64  `json:"success_rate_percent"`
}

// SuccessRate 根据精选数和发布数计算成功率
func (r *PipelineResult) SuccessRate() float64 {
	if r.TopArticlesSelected == 0 {
		return 100
	}
	return float64(r.ArticlesPublished) / float64(r.TopArticlesSelected) * 100
}

// AddError 记录阶段错误，不中断整个批次
func (r *PipelineResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// DayOf 把时间戳截断到当天零点 (UTC)，作为 top_selection_date 和 Digest.Date 的规范形式
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
