// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 届出APIクライアント、クエリキャッシュ、届出サービスから利用する。
type MetricsCollector interface {
	RecordAPIRequest(operation string, statusCode int, duration time.Duration)
	RecordCacheHit(scope string)
	RecordCacheMiss(scope string)
	RecordReport(kind string)
	RecordMatchCandidates(kind string, count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiRequests     *prometheus.CounterVec
	apiLatency      *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	reports         *prometheus.CounterVec
	matchCandidates *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idfinder_api_requests_total",
			Help: "届出APIへのリクエスト数（操作・ステータス別）",
		}, []string{"operation", "status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idfinder_api_request_duration_seconds",
			Help:    "届出APIのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idfinder_query_cache_lookups_total",
			Help: "クエリキャッシュの参照数（スコープ・結果別）",
		}, []string{"scope", "result"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idfinder_reports_total",
			Help: "登録された届出の数（種類別）",
		}, []string{"kind"}),
		matchCandidates: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idfinder_match_candidates",
			Help:    "届出登録時に推定された一致候補数",
			Buckets: []float64{0, 1, 2, 5, 10, 25},
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.cacheLookups,
		c.reports,
		c.matchCandidates,
	)

	return c
}

// RecordAPIRequest は届出APIの呼び出し結果を記録する。
// ネットワークエラー（statusCode=0）は "error" として集計する。
func (c *Collector) RecordAPIRequest(operation string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	c.apiRequests.WithLabelValues(operation, status).Inc()
	c.apiLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(scope string) {
	c.cacheLookups.WithLabelValues(scope, "hit").Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(scope string) {
	c.cacheLookups.WithLabelValues(scope, "miss").Inc()
}

// RecordReport は届出の登録を記録する。
func (c *Collector) RecordReport(kind string) {
	c.reports.WithLabelValues(kind).Inc()
}

// RecordMatchCandidates は一致候補数を記録する。
func (c *Collector) RecordMatchCandidates(kind string, count int) {
	c.matchCandidates.WithLabelValues(kind).Observe(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
