// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordWebhookEvent(eventType string)
	RecordWebhookFailure(eventType string)
	RecordPayment(status string)
	RecordSagaRollback(sagaName string)
	RecordBlueprintGeneration()
	RecordAILatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	webhookEvents   *prometheus.CounterVec
	webhookFailures *prometheus.CounterVec
	payments        *prometheus.CounterVec
	sagaRollbacks   *prometheus.CounterVec
	generations     prometheus.Counter
	aiLatency       prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polaris_webhook_events_total",
			Help: "処理されたWebhookイベントのイベント種別ごとの合計数",
		}, []string{"event_type"}),
		webhookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polaris_webhook_failures_total",
			Help: "処理に失敗したWebhookイベントのイベント種別ごとの合計数",
		}, []string{"event_type"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polaris_payments_total",
			Help: "記録された決済の状態ごとの合計数",
		}, []string{"status"}),
		sagaRollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "polaris_saga_rollbacks_total",
			Help: "補償処理が実行されたサガのフローごとの合計数",
		}, []string{"saga"}),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "polaris_blueprint_generations_total",
			Help: "AI生成が実行された合計数",
		}),
		aiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "polaris_ai_latency_seconds",
			Help:    "AIサービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.webhookEvents,
		c.webhookFailures,
		c.payments,
		c.sagaRollbacks,
		c.generations,
		c.aiLatency,
	)

	return c
}

// RecordWebhookEvent はWebhookイベントの処理完了を記録する。
func (c *Collector) RecordWebhookEvent(eventType string) {
	c.webhookEvents.WithLabelValues(eventType).Inc()
}

// RecordWebhookFailure はWebhookイベントの処理失敗を記録する。
func (c *Collector) RecordWebhookFailure(eventType string) {
	c.webhookFailures.WithLabelValues(eventType).Inc()
}

// RecordPayment は決済の記録を状態別にカウントする。
func (c *Collector) RecordPayment(status string) {
	c.payments.WithLabelValues(status).Inc()
}

// RecordSagaRollback はサガの補償処理実行を記録する。
func (c *Collector) RecordSagaRollback(sagaName string) {
	c.sagaRollbacks.WithLabelValues(sagaName).Inc()
}

// RecordBlueprintGeneration はAI生成の実行を記録する。
func (c *Collector) RecordBlueprintGeneration() {
	c.generations.Inc()
}

// RecordAILatency はAIサービス呼び出しのレイテンシを記録する。
func (c *Collector) RecordAILatency(duration time.Duration) {
	c.aiLatency.Observe(duration.Seconds())
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
