// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやハンドラー層から利用する。
type MetricsCollector interface {
	RecordNoticeGenerated(profile string)
	RecordQualityFailure()
	RecordQueueSent()
	RecordQueueFailed(reason string)
	RecordQueueRetried()
	RecordSendLatency(duration time.Duration)
	RecordCaptureFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	noticesGenerated *prometheus.CounterVec
	qualityFailures  prometheus.Counter
	queueSent        prometheus.Counter
	queueFailed      *prometheus.CounterVec
	queueRetried     prometheus.Counter
	sendLatency      prometheus.Histogram
	captureFailures  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		noticesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "productguard_notices_generated_total",
			Help: "生成されたDMCA通知の合計数（プロファイル別）",
		}, []string{"profile"}),
		qualityFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "productguard_quality_failures_total",
			Help: "品質チェックで送付をブロックされた通知の合計数",
		}),
		queueSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "productguard_queue_sent_total",
			Help: "送信に成功したキュー項目の合計数",
		}),
		queueFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "productguard_queue_failed_total",
			Help: "終端状態failedになったキュー項目の合計数（理由別）",
		}, []string{"reason"}),
		queueRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "productguard_queue_retried_total",
			Help: "再スケジュールされたキュー項目の合計数",
		}),
		sendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "productguard_send_latency_seconds",
			Help:    "メール送信のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		captureFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "productguard_capture_failures_total",
			Help: "侵害ページキャプチャ失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.noticesGenerated,
		c.qualityFailures,
		c.queueSent,
		c.queueFailed,
		c.queueRetried,
		c.sendLatency,
		c.captureFailures,
	)

	return c
}

// RecordNoticeGenerated は通知生成を記録する。
func (c *Collector) RecordNoticeGenerated(profile string) {
	c.noticesGenerated.WithLabelValues(profile).Inc()
}

// RecordQualityFailure は品質チェックのブロックを記録する。
func (c *Collector) RecordQualityFailure() {
	c.qualityFailures.Inc()
}

// RecordQueueSent は送信成功を記録する。
func (c *Collector) RecordQueueSent() {
	c.queueSent.Inc()
}

// RecordQueueFailed は終端の送信失敗を記録する。
func (c *Collector) RecordQueueFailed(reason string) {
	c.queueFailed.WithLabelValues(reason).Inc()
}

// RecordQueueRetried は再スケジュールを記録する。
func (c *Collector) RecordQueueRetried() {
	c.queueRetried.Inc()
}

// RecordSendLatency は送信レイテンシを記録する。
func (c *Collector) RecordSendLatency(duration time.Duration) {
	c.sendLatency.Observe(duration.Seconds())
}

// RecordCaptureFailure はページキャプチャ失敗を記録する。
func (c *Collector) RecordCaptureFailure() {
	c.captureFailures.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
