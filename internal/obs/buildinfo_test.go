package obs

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestInitBuildInfoKeepsOneSeries(t *testing.T) {
	InitBuildInfo("1.0.0", "abc")
	InitBuildInfo("1.0.1", "def")

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "spcs_build_info" {
			continue
		}
		if n := len(mf.GetMetric()); n != 1 {
			t.Fatalf("expected one series, got %d", n)
		}
		for _, lp := range mf.GetMetric()[0].GetLabel() {
			if lp.GetName() == "version" && lp.GetValue() != "1.0.1" {
				t.Fatalf("expected latest version label, got %q", lp.GetValue())
			}
		}
		return
	}
	t.Fatalf("spcs_build_info not registered")
}
