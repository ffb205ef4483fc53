// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービス、RequestGate、掃除ジョブ、ロギングミドルウェアから利用する。
type MetricsCollector interface {
	RecordLogin(result string)
	RecordTokenIssued(kind string)
	RecordRefresh(result string)
	RecordRevocation()
	RecordGateRejection(reason string)
	RecordSwept(count int)
	SetRevocationEntries(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginTotal        *prometheus.CounterVec
	tokensIssued      *prometheus.CounterVec
	refreshTotal      *prometheus.CounterVec
	revocations       prometheus.Counter
	gateRejections    *prometheus.CounterVec
	swept             prometheus.Counter
	revocationEntries prometheus.Gauge
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suppleit_auth_login_total",
			Help: "ログイン試行の結果別合計数",
		}, []string{"result"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suppleit_auth_tokens_issued_total",
			Help: "種別ごとのトークン発行数",
		}, []string{"kind"}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suppleit_auth_refresh_total",
			Help: "トークン再発行の結果別合計数",
		}, []string{"result"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "suppleit_auth_revocations_total",
			Help: "ログアウトにより失効したアクセストークン数",
		}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suppleit_gate_rejections_total",
			Help: "RequestGateで拒否したリクエスト数",
		}, []string{"reason"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "suppleit_revocation_swept_total",
			Help: "掃除で削除した失効エントリ数",
		}),
		revocationEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "suppleit_revocation_entries",
			Help: "現在の失効エントリ数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "suppleit_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.loginTotal,
		c.tokensIssued,
		c.refreshTotal,
		c.revocations,
		c.gateRejections,
		c.swept,
		c.revocationEntries,
		c.httpStatus,
	)

	return c
}

// RecordLogin はログイン結果（success / failure）を記録する。
func (c *Collector) RecordLogin(result string) {
	c.loginTotal.WithLabelValues(result).Inc()
}

// RecordTokenIssued はトークン発行を記録する。
func (c *Collector) RecordTokenIssued(kind string) {
	c.tokensIssued.WithLabelValues(kind).Inc()
}

// RecordRefresh はトークン再発行の結果を記録する。
func (c *Collector) RecordRefresh(result string) {
	c.refreshTotal.WithLabelValues(result).Inc()
}

// RecordRevocation はアクセストークンの失効を記録する。
func (c *Collector) RecordRevocation() {
	c.revocations.Inc()
}

// RecordGateRejection はRequestGateでの拒否を理由別に記録する。
func (c *Collector) RecordGateRejection(reason string) {
	c.gateRejections.WithLabelValues(reason).Inc()
}

// RecordSwept は掃除で削除したエントリ数を記録する。
func (c *Collector) RecordSwept(count int) {
	c.swept.Add(float64(count))
}

// SetRevocationEntries は現在の失効エントリ数を設定する。
func (c *Collector) SetRevocationEntries(count int) {
	c.revocationEntries.Set(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordLogin(string)         {}
func (Nop) RecordTokenIssued(string)   {}
func (Nop) RecordRefresh(string)       {}
func (Nop) RecordRevocation()          {}
func (Nop) RecordGateRejection(string) {}
func (Nop) RecordSwept(int)            {}
func (Nop) SetRevocationEntries(int)   {}
func (Nop) RecordHTTPStatus(int)       {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
