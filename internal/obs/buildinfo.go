package obs

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce sync.Once

	// buildInfo is a constant 1 labelled with the running build.
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spcs_build_info",
			Help: "SPCS dispatch API build information.",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// InitBuildInfo registers spcs_build_info once. Calling it again replaces the
// labels instead of adding a second series.
func InitBuildInfo(version, commit string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfo)
	})
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}
