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
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordListingCreated()
	RecordListingUpdated()
	RecordListingDeleted()
	RecordReviewCreated()
	RecordReviewDeleted()
	RecordCascadeFailure()
	RecordOrphansSwept(count int64)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	listingsCreated prometheus.Counter
	listingsUpdated prometheus.Counter
	listingsDeleted prometheus.Counter
	reviewsCreated  prometheus.Counter
	reviewsDeleted  prometheus.Counter
	cascadeFail     prometheus.Counter
	orphansSwept    prometheus.Counter
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		listingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wanderlust_listings_created_total",
			Help: "作成された物件の合計数",
		}),
		listingsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wanderlust_listings_updated_total",
			Help: "更新された物件の合計数",
		}),
		listingsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wanderlust_listings_deleted_total",
			Help: "削除された物件の合計数",
		}),
		reviewsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wanderlust_reviews_created_total",
			Help: "作成されたレビューの合計数",
		}),
		reviewsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wanderlust_reviews_deleted_total",
			Help: "削除されたレビューの合計数",
		}),
		cascadeFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wanderlust_review_cascade_failures_total",
			Help: "物件削除後のレビュー連鎖削除に失敗した回数",
		}),
		orphansSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wanderlust_orphan_reviews_swept_total",
			Help: "定期ジョブで削除された孤立レビューの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wanderlust_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wanderlust_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.listingsCreated,
		c.listingsUpdated,
		c.listingsDeleted,
		c.reviewsCreated,
		c.reviewsDeleted,
		c.cascadeFail,
		c.orphansSwept,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

func (c *Collector) RecordListingCreated() { c.listingsCreated.Inc() }
func (c *Collector) RecordListingUpdated() { c.listingsUpdated.Inc() }
func (c *Collector) RecordListingDeleted() { c.listingsDeleted.Inc() }
func (c *Collector) RecordReviewCreated()  { c.reviewsCreated.Inc() }
func (c *Collector) RecordReviewDeleted()  { c.reviewsDeleted.Inc() }

// RecordCascadeFailure は連鎖削除の失敗を記録する。
func (c *Collector) RecordCascadeFailure() {
	c.cascadeFail.Inc()
}

// RecordOrphansSwept は定期ジョブで削除した孤立レビュー数を記録する。
func (c *Collector) RecordOrphansSwept(count int64) {
	c.orphansSwept.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordListingCreated()              {}
func (Nop) RecordListingUpdated()              {}
func (Nop) RecordListingDeleted()              {}
func (Nop) RecordReviewCreated()               {}
func (Nop) RecordReviewDeleted()               {}
func (Nop) RecordCascadeFailure()              {}
func (Nop) RecordOrphansSwept(int64)           {}
func (Nop) RecordHTTPStatus(int)               {}
func (Nop) RecordRequestLatency(time.Duration) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
