package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Set at link time: -ldflags "-X alma.org.ar/internal/obs.Version=..."
var (
	Version = "dev"
	Commit  = "unknown"
)

// InitBuildInfo registers almadb_build_info on the run registry with value 1.
func (m *Metrics) InitBuildInfo(version, commit string) {
	if m == nil {
		return
	}
	buildInfo := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "almadb_build_info",
			Help: "almadb build information.",
		},
		[]string{"version", "commit"},
	)
	if err := m.registry.Register(buildInfo); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return
		}
		buildInfo = are.ExistingCollector.(*prometheus.GaugeVec)
	}
	buildInfo.WithLabelValues(version, commit).Set(1)
}
