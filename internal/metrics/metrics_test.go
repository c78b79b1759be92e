package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	if m == nil {
		t.Fatal("NewMetricsWithRegistry returned nil")
	}
	if m.HandshakesStarted == nil {
		t.Error("HandshakesStarted metric is nil")
	}
	if m.PacketsSent == nil {
		t.Error("PacketsSent metric is nil")
	}
}

func TestHandshakeCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.HandshakesStarted.Inc()
	m.HandshakesStarted.Inc()
	m.HandshakesCompleted.Inc()
	m.HandshakesFailed.WithLabelValues("auth_failure").Inc()

	if got := testutil.ToFloat64(m.HandshakesStarted); got != 2 {
		t.Errorf("HandshakesStarted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.HandshakesCompleted); got != 1 {
		t.Errorf("HandshakesCompleted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HandshakesFailed.WithLabelValues("auth_failure")); got != 1 {
		t.Errorf("HandshakesFailed{auth_failure} = %v, want 1", got)
	}
}

func TestRekeyAndGarbageCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RekeysPerformed.Add(3)
	m.GarbageBytesSent.Add(100)
	m.GarbageBytesReceived.Add(42)

	if got := testutil.ToFloat64(m.RekeysPerformed); got != 3 {
		t.Errorf("RekeysPerformed = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.GarbageBytesSent); got != 100 {
		t.Errorf("GarbageBytesSent = %v, want 100", got)
	}
	if got := testutil.ToFloat64(m.GarbageBytesReceived); got != 42 {
		t.Errorf("GarbageBytesReceived = %v, want 42", got)
	}
}

func TestDefaultIsSingleton(t *testing.T) {
	if Default() != Default() {
		t.Fatal("Default() should return the same instance on repeated calls")
	}
}
