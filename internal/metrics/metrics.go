// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証結果ラベル。
const (
	ResultSuccess            = "success"
	ResultDuplicate          = "duplicate"
	ResultInvalid            = "invalid"
	ResultInvalidCredentials = "invalid_credentials"
	ResultError              = "error"
)

// トークン拒否理由ラベル。
const (
	ReasonMissing = "missing"
	ReasonInvalid = "invalid"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービス、ミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordRegister(result string)
	RecordLogin(result string)
	RecordTokenRejected(reason string)
	RecordHTTPStatus(statusCode int)
	RecordPasswordHash(duration time.Duration)
	RecordImagesRemoved(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	register      *prometheus.CounterVec
	login         *prometheus.CounterVec
	tokenRejected *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
	passwordHash  prometheus.Histogram
	imagesRemoved prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		register: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invman_auth_register_total",
			Help: "結果別のユーザー登録試行数",
		}, []string{"result"}),
		login: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invman_auth_login_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		tokenRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invman_token_rejected_total",
			Help: "理由別の拒否されたアクセストークン数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		passwordHash: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "invman_password_hash_seconds",
			Help:    "パスワードハッシュ計算・照合の所要時間（秒）",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		imagesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invman_orphan_images_removed_total",
			Help: "クリーンアップで削除された未参照画像の合計数",
		}),
	}

	reg.MustRegister(
		c.register,
		c.login,
		c.tokenRejected,
		c.httpStatus,
		c.passwordHash,
		c.imagesRemoved,
	)

	return c
}

// RecordRegister はユーザー登録の結果を記録する。
func (c *Collector) RecordRegister(result string) {
	c.register.WithLabelValues(result).Inc()
}

// RecordLogin はログインの結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.login.WithLabelValues(result).Inc()
}

// RecordTokenRejected はアクセストークンの拒否を記録する。
func (c *Collector) RecordTokenRejected(reason string) {
	c.tokenRejected.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordPasswordHash はパスワードハッシュ処理の所要時間を記録する。
func (c *Collector) RecordPasswordHash(duration time.Duration) {
	c.passwordHash.Observe(duration.Seconds())
}

// RecordImagesRemoved は削除された未参照画像数を記録する。
func (c *Collector) RecordImagesRemoved(count int) {
	c.imagesRemoved.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordRegister(string)            {}
func (Nop) RecordLogin(string)               {}
func (Nop) RecordTokenRejected(string)       {}
func (Nop) RecordHTTPStatus(int)             {}
func (Nop) RecordPasswordHash(time.Duration) {}
func (Nop) RecordImagesRemoved(int)          {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
