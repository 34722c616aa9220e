package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 引擎的核心观测指标。注册走默认 Registry，/metrics 路由由组装根挂载。
var (
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promotion_evaluations_total",
		Help: "Number of evaluation operations, partitioned by operation and outcome.",
	}, []string{"operation", "outcome"})

	PromotionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promotion_accepted_total",
		Help: "Number of promotions accepted across all evaluations.",
	})

	CommitConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promotion_commit_conflicts_total",
		Help: "Number of usage-counter contention retries observed at commit.",
	})

	EvaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "promotion_evaluation_duration_seconds",
		Help:    "Latency of a full match/resolve/calculate pass.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)
