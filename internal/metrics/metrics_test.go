package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordLogin_CountsByResult はログイン結果がラベル別に集計されることを検証する。
func TestRecordLogin_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin("success")
	c.RecordLogin("success")
	c.RecordLogin("failure")

	if got := testutil.ToFloat64(c.loginTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("login success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.loginTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("login failure = %v, want 1", got)
	}
}

// TestRecordTokenIssued_CountsByKind はトークン種別ごとに集計されることを検証する。
func TestRecordTokenIssued_CountsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTokenIssued("access")
	c.RecordTokenIssued("refresh")
	c.RecordTokenIssued("access")

	if got := testutil.ToFloat64(c.tokensIssued.WithLabelValues("access")); got != 2 {
		t.Errorf("access issued = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.tokensIssued.WithLabelValues("refresh")); got != 1 {
		t.Errorf("refresh issued = %v, want 1", got)
	}
}

// TestRevocationMetrics は失効関連のカウンタとゲージを検証する。
func TestRevocationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRevocation()
	c.RecordSwept(3)
	c.RecordSwept(2)
	c.SetRevocationEntries(7)
	c.SetRevocationEntries(4)

	if got := testutil.ToFloat64(c.revocations); got != 1 {
		t.Errorf("revocations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.swept); got != 5 {
		t.Errorf("swept = %v, want 5", got)
	}
	if got := testutil.ToFloat64(c.revocationEntries); got != 4 {
		t.Errorf("entries = %v, want 4", got)
	}
}

// TestRecordGateRejection_CountsByReason はRequestGateの拒否理由別の集計を検証する。
func TestRecordGateRejection_CountsByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGateRejection("revoked")
	c.RecordGateRejection("invalid")
	c.RecordGateRejection("revoked")

	if got := testutil.ToFloat64(c.gateRejections.WithLabelValues("revoked")); got != 2 {
		t.Errorf("revoked rejections = %v, want 2", got)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はステータスコード別に集計されることを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(401)
	c.RecordHTTPStatus(401)

	if got := testutil.ToFloat64(c.httpStatus.WithLabelValues("401")); got != 2 {
		t.Errorf("status 401 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.httpStatus.WithLabelValues("200")); got != 1 {
		t.Errorf("status 200 = %v, want 1", got)
	}
}

// TestMultipleCollectors_IndependentRegistries は別レジストリのCollectorが独立していることを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordRevocation()

	if got := testutil.ToFloat64(c2.revocations); got != 0 {
		t.Errorf("c2 revocations = %v, want 0", got)
	}
}

func TestNop_ImplementsMetricsCollector(t *testing.T) {
	var c MetricsCollector = Nop{}
	c.RecordLogin("success")
	c.RecordSwept(1)
}
