// Package version holds the hwmeter build metadata, injected with
//
//	-ldflags "-X github.com/HerbHall/hwmeter/internal/version.Version=..."
package version

import (
	"fmt"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the one-line --version output.
func Info() string {
	return fmt.Sprintf("hwmeter %s (commit %s, built %s, %s %s/%s)",
		Version, GitCommit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version string, e.g. "0.3.0" or "dev".
func Short() string {
	return Version
}

// Map returns the build metadata for the health endpoint.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}

// Collector exposes hwmeter_build_info, a constant 1 labelled with the
// build metadata.
func Collector() prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "hwmeter",
		Name:      "build_info",
		Help:      "Build metadata of the running hwmeter binary.",
		ConstLabels: prometheus.Labels{
			"version":    Version,
			"git_commit": GitCommit,
			"go_version": runtime.Version(),
		},
	}, func() float64 { return 1 })
}
