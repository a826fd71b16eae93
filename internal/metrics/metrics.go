// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// サービス層およびWebhookディスパッチャから利用する。
type Recorder interface {
	// RecordMutation はエンティティの変更操作（created/updated/deleted）を記録する。
	RecordMutation(entity, action string)
	// RecordValidationFailure はバリデーション失敗をエラーコード別に記録する。
	RecordValidationFailure(code string)
	// RecordRateLimitHit はレート制限による拒否を記録する。
	RecordRateLimitHit()
	// RecordAuditFailure は監査レコード記録の失敗を記録する。
	RecordAuditFailure()
	// RecordSearchLatency はアイテム検索のレイテンシを記録する。
	RecordSearchLatency(duration time.Duration)
	// RecordWebhookDelivery はWebhook配信の結果を記録する。
	RecordWebhookDelivery(success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	mutations          *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	rateLimitHits      prometheus.Counter
	auditFailures      prometheus.Counter
	searchLatency      prometheus.Histogram
	webhookDeliveries  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quickstore_mutations_total",
			Help: "エンティティ変更操作の合計数",
		}, []string{"entity", "action"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quickstore_validation_failures_total",
			Help: "バリデーション失敗のエラーコード別合計数",
		}, []string{"code"}),
		rateLimitHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quickstore_rate_limit_hits_total",
			Help: "レート制限による拒否の合計数",
		}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quickstore_audit_failures_total",
			Help: "監査レコード記録失敗の合計数",
		}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quickstore_search_latency_seconds",
			Help:    "アイテム検索のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quickstore_webhook_deliveries_total",
			Help: "Webhook配信の結果別合計数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.mutations,
		c.validationFailures,
		c.rateLimitHits,
		c.auditFailures,
		c.searchLatency,
		c.webhookDeliveries,
	)

	return c
}

// RecordMutation はエンティティの変更操作を記録する。
func (c *Collector) RecordMutation(entity, action string) {
	c.mutations.WithLabelValues(entity, action).Inc()
}

// RecordValidationFailure はバリデーション失敗をエラーコード別に記録する。
func (c *Collector) RecordValidationFailure(code string) {
	c.validationFailures.WithLabelValues(code).Inc()
}

// RecordRateLimitHit はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimitHit() {
	c.rateLimitHits.Inc()
}

// RecordAuditFailure は監査レコード記録の失敗を記録する。
func (c *Collector) RecordAuditFailure() {
	c.auditFailures.Inc()
}

// RecordSearchLatency はアイテム検索のレイテンシを記録する。
func (c *Collector) RecordSearchLatency(duration time.Duration) {
	c.searchLatency.Observe(duration.Seconds())
}

// RecordWebhookDelivery はWebhook配信の結果を記録する。
func (c *Collector) RecordWebhookDelivery(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.webhookDeliveries.WithLabelValues(result).Inc()
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
