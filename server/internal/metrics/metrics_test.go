package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetricsRegistered 验证所有指标已注册到默认 registry。
func TestMetricsRegistered(t *testing.T) {
	TurnsTotal.WithLabelValues("ok").Inc()
	ProviderRequestsTotal.WithLabelValues("mock", "ok").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	seen := map[string]bool{}
	for _, f := range families {
		seen[f.GetName()] = true
	}
	for _, name := range []string{"bella_turns_total", "bella_provider_requests_total", "bella_ws_connections_active"} {
		if !seen[name] {
			t.Fatalf("metric %s not registered", name)
		}
	}
}

func TestDegradedCounter(t *testing.T) {
	before := testutil.ToFloat64(DegradedTotal.WithLabelValues("voice"))
	DegradedTotal.WithLabelValues("voice").Inc()
	if got := testutil.ToFloat64(DegradedTotal.WithLabelValues("voice")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}

	expected := `
# HELP bella_ws_connections_active Active websocket observers
# TYPE bella_ws_connections_active gauge
bella_ws_connections_active 0
`
	if err := testutil.CollectAndCompare(WSConnections, strings.NewReader(expected)); err != nil {
		t.Fatalf("unexpected gauge output: %v", err)
	}
}
