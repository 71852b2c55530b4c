package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "resumate",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP 请求耗时（秒），同步生成会落在长尾分桶。",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30, 60, 120},
	}, []string{"method", "route", "status"})

	responseBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "resumate",
		Subsystem: "http",
		Name:      "response_bytes",
		Help:      "响应体大小（字节）。",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 7),
	}, []string{"route"})

	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "resumate",
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "正在处理的 HTTP 请求数。",
	})
)

// GinMiddleware 按路由模板记录耗时、响应大小与并发数；未匹配的请求归到 "unmatched"。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestsInFlight.Inc()
		defer requestsInFlight.Dec()

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Observe(elapsed.Seconds())
		if size := c.Writer.Size(); size > 0 {
			responseBytes.WithLabelValues(route).Observe(float64(size))
		}
	}
}
