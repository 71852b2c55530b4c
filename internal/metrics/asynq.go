package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resumate",
		Subsystem: "worker",
		Name:      "tasks_total",
		Help:      "后台任务处理次数，按队列、类型与结果区分。",
	}, []string{"queue", "task_type", "outcome"})

	taskSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "resumate",
		Subsystem: "worker",
		Name:      "task_seconds",
		Help:      "后台任务耗时（秒）。生成依赖 AI 服务，分桶偏长。",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"task_type"})

	tasksRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "resumate",
		Subsystem: "worker",
		Name:      "tasks_running",
		Help:      "正在执行的后台任务数。",
	}, []string{"task_type"})

	taskAttempt = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "resumate",
		Subsystem: "worker",
		Name:      "task_attempt",
		Help:      "任务执行时的重试序号，0 为首次执行。",
		Buckets:   []float64{0, 1, 2, 3, 5},
	}, []string{"task_type"})
)

// taskOutcome 区分成功、放弃重试（不可恢复的失败）与普通失败。
func taskOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, asynq.SkipRetry):
		return "skip_retry"
	default:
		return "error"
	}
}

// AsynqMetricsMiddleware 为每个任务记录耗时、结果与重试序号。
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			kind := task.Type()
			queue, _ := asynq.GetQueueName(ctx)
			if retried, ok := asynq.GetRetryCount(ctx); ok {
				taskAttempt.WithLabelValues(kind).Observe(float64(retried))
			}

			running := tasksRunning.WithLabelValues(kind)
			running.Inc()
			defer running.Dec()

			start := time.Now()
			err := next.ProcessTask(ctx, task)
			taskSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds())
			tasksTotal.WithLabelValues(queue, kind, taskOutcome(err)).Inc()
			return err
		})
	}
}

