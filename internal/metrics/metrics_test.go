package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily はレジストリから指定名のメトリクスファミリーを取得する。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelCounts はラベル値ごとのカウンタ値を返す。
func labelCounts(mf *dto.MetricFamily) map[string]float64 {
	counts := map[string]float64{}
	for _, m := range mf.GetMetric() {
		counts[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	return counts
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestNewCollector_DoubleRegisterPanics は同一レジストリへの二重登録がpanicすることを検証する。
func TestNewCollector_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	_ = NewCollector(reg)
}

// TestRecordLogin_IncrementsCounterWithLabel はログイン結果がラベル別に集計されることを検証する。
func TestRecordLogin_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(LoginSuccess)
	c.RecordLogin(LoginSuccess)
	c.RecordLogin(LoginInvalidAssertion)

	counts := labelCounts(findMetricFamily(t, reg, "idgate_login_total"))
	if counts[LoginSuccess] != 2 {
		t.Errorf("login_total{result=success} = %v, want 2", counts[LoginSuccess])
	}
	if counts[LoginInvalidAssertion] != 1 {
		t.Errorf("login_total{result=invalid_assertion} = %v, want 1", counts[LoginInvalidAssertion])
	}
}

// TestRecordUserCreated_IncrementsCounter はユーザー作成カウンタが増加することを検証する。
func TestRecordUserCreated_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUserCreated()
	c.RecordUserCreated()
	c.RecordUserCreated()

	mf := findMetricFamily(t, reg, "idgate_users_created_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 3 {
		t.Errorf("users_created_total = %v, want 3", val)
	}
}

// TestRecordSessionVerify_IncrementsCounterWithLabel はセッション検証結果がラベル別に集計されることを検証する。
func TestRecordSessionVerify_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionVerify(VerifyValid)
	c.RecordSessionVerify(VerifyInvalid)
	c.RecordSessionVerify(VerifyInvalid)

	counts := labelCounts(findMetricFamily(t, reg, "idgate_session_verify_total"))
	if counts[VerifyValid] != 1 {
		t.Errorf("session_verify_total{result=valid} = %v, want 1", counts[VerifyValid])
	}
	if counts[VerifyInvalid] != 2 {
		t.Errorf("session_verify_total{result=invalid} = %v, want 2", counts[VerifyInvalid])
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(403)

	mf := findMetricFamily(t, reg, "idgate_http_status_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	counts := labelCounts(mf)
	if counts["200"] != 2 {
		t.Errorf("http_status_total{status_code=200} = %v, want 2", counts["200"])
	}
	if counts["403"] != 1 {
		t.Errorf("http_status_total{status_code=403} = %v, want 1", counts["403"])
	}
}

// TestRecordProviderVerify_ObservesHistogram はIdP検証のレイテンシがヒストグラムに記録されることを検証する。
func TestRecordProviderVerify_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProviderVerify(150 * time.Millisecond)
	c.RecordProviderVerify(50 * time.Millisecond)

	mf := findMetricFamily(t, reg, "idgate_provider_verify_seconds")
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample count = %d, want 2", h.GetSampleCount())
	}
	if got := h.GetSampleSum(); got < 0.199 || got > 0.201 {
		t.Errorf("sample sum = %v, want 0.2", got)
	}
}

// TestNop_DoesNotPanic はNopが全メソッドを安全に受け付けることを検証する。
func TestNop_DoesNotPanic(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordLogin(LoginSuccess)
	r.RecordUserCreated()
	r.RecordSessionVerify(VerifyValid)
	r.RecordProviderVerify(time.Second)
	r.RecordHTTPStatus(500)
}
