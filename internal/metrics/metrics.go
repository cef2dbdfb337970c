package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 按阶段收集流水线指标，定时模式下通过 /metrics 暴露。
// stage 取值: fetch / score / extract / insights / generate / image / persist / rank / digest / social
type Collector struct {
	stageSuccess  *prometheus.CounterVec
	stageFailure  *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	articlesSaved prometheus.Counter
	runsTotal     prometheus.Counter
}

// NewCollector 创建收集器并注册到给定的 registry
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		stageSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "news_pipeline_stage_success_total",
			Help: "按阶段统计的成功次数",
		}, []string{"stage"}),
		stageFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "news_pipeline_stage_failure_total",
			Help: "按阶段统计的失败次数",
		}, []string{"stage"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "news_pipeline_stage_duration_seconds",
			Help:    "按阶段统计的耗时（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		articlesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "news_pipeline_articles_saved_total",
			Help: "入库的加工文章总数",
		}),
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "news_pipeline_runs_total",
			Help: "每日批次的执行总数",
		}),
	}

	reg.MustRegister(
		c.stageSuccess,
		c.stageFailure,
		c.stageDuration,
		c.articlesSaved,
		c.runsTotal,
	)

	return c
}

// ObserveStage 记录一次阶段执行
func (c *Collector) ObserveStage(stage string, d time.Duration, success bool) {
	if c == nil {
		return
	}
	if success {
		c.stageSuccess.WithLabelValues(stage).Inc()
	} else {
		c.stageFailure.WithLabelValues(stage).Inc()
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordArticleSaved 记录一篇入库文章
func (c *Collector) RecordArticleSaved() {
	if c == nil {
		return
	}
	c.articlesSaved.Inc()
}

// RecordRun 记录一次批次执行
func (c *Collector) RecordRun() {
	if c == nil {
		return
	}
	c.runsTotal.Inc()
}

// Handler 返回 /metrics 的 HTTP handler
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
