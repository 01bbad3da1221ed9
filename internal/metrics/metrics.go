// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値
const (
	LoginSuccess          = "success"
	LoginInvalidAssertion = "invalid_assertion"
	LoginEmailConflict    = "email_conflict"
	LoginRateLimited      = "rate_limited"
	LoginError            = "error"
)

// セッション検証結果のラベル値
const (
	VerifyValid   = "valid"
	VerifyInvalid = "invalid"
	VerifyError   = "error"
)

// Recorder はメトリクス記録のインターフェース。
// 認証サービスやミドルウェアから利用する。
type Recorder interface {
	RecordLogin(result string)
	RecordUserCreated()
	RecordSessionVerify(result string)
	RecordProviderVerify(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	login          *prometheus.CounterVec
	usersCreated   prometheus.Counter
	sessionVerify  *prometheus.CounterVec
	providerVerify prometheus.Histogram
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		login: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idgate_login_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		usersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "idgate_users_created_total",
			Help: "初回ログインで作成されたユーザー数",
		}),
		sessionVerify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idgate_session_verify_total",
			Help: "結果別のセッショントークン検証数",
		}, []string{"result"}),
		providerVerify: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "idgate_provider_verify_seconds",
			Help:    "IdPアサーション検証のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idgate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.login,
		c.usersCreated,
		c.sessionVerify,
		c.providerVerify,
		c.httpStatus,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.login.WithLabelValues(result).Inc()
}

// RecordUserCreated はユーザーの新規作成を記録する。
func (c *Collector) RecordUserCreated() {
	c.usersCreated.Inc()
}

// RecordSessionVerify はセッション検証の結果を記録する。
func (c *Collector) RecordSessionVerify(result string) {
	c.sessionVerify.WithLabelValues(result).Inc()
}

// RecordProviderVerify はIdPアサーション検証にかかった時間を記録する。
func (c *Collector) RecordProviderVerify(duration time.Duration) {
	c.providerVerify.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないRecorder。メトリクスを使わない構成やテストで利用する。
type Nop struct{}

func (Nop) RecordLogin(string)                 {}
func (Nop) RecordUserCreated()                 {}
func (Nop) RecordSessionVerify(string)         {}
func (Nop) RecordProviderVerify(time.Duration) {}
func (Nop) RecordHTTPStatus(int)               {}

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
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
