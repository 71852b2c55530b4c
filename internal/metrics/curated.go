package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 生成结果。
const (
	OutcomeSaved    = "saved"
	OutcomeUpstream = "upstream_error"
	OutcomeFailed   = "failed"
)

var (
	generationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumate",
			Subsystem: "curated",
			Name:      "generations_total",
			Help:      "定制简历生成次数，按结果区分。",
		},
		[]string{"outcome"},
	)

	skippedItemsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "resumate",
			Subsystem: "curated",
			Name:      "skipped_items_total",
			Help:      "因无法关联主简历条目而跳过的条目数。",
		},
	)
)

// ObserveGeneration 记录一次生成的结果与被跳过的条目数。
func ObserveGeneration(outcome string, skipped int) {
	generationsTotal.WithLabelValues(outcome).Inc()
	if skipped > 0 {
		skippedItemsTotal.Add(float64(skipped))
	}
}
