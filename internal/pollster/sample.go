package pollster

import (
	"time"

	"github.com/HerbHall/hwmeter/internal/host"
)

// Kind is the metering type of a sample.
type Kind string

// Sample kinds.
const (
	KindGauge      Kind = "gauge"
	KindCumulative Kind = "cumulative"
)

// Units used by the pollsters.
const (
	UnitPercent     = "%"
	UnitNanoseconds = "ns"
	UnitBytes       = "B"
	UnitBytesPerSec = "B/s"
	UnitPacket      = "packet"
)

// Sample is one metering data point.
type Sample struct {
	Name             string            `json:"name"`
	Kind             Kind              `json:"kind"`
	Unit             string            `json:"unit"`
	Volume           float64           `json:"volume"`
	ResourceID       string            `json:"resource_id"`
	Timestamp        time.Time         `json:"timestamp"`
	ResourceMetadata map[string]string `json:"resource_metadata"`
}

// Instance distinguishes samples of the same name and resource, such as
// one disk from another. It is empty for host-level samples. Interfaces
// whose index differs from their name are "name#index", since several
// NICs of one host may share a name.
func (s Sample) Instance() string {
	md := s.ResourceMetadata
	if p, ok := md["path"]; ok {
		return p
	}
	n, ok := md["name"]
	if !ok {
		return ""
	}
	if idx := md["index"]; idx != "" && idx != n {
		return n + "#" + idx
	}
	return n
}

// SeriesKey identifies the series a sample belongs to.
func (s Sample) SeriesKey() string {
	key := s.ResourceID + "/" + s.Name
	if inst := s.Instance(); inst != "" {
		key += "/" + inst
	}
	return key
}

func newSample(h *host.Host, name string, kind Kind, unit string, volume float64, at time.Time, extra map[string]string) Sample {
	md := h.Metadata()
	for k, v := range extra {
		md[k] = v
	}
	return Sample{
		Name:             name,
		Kind:             kind,
		Unit:             unit,
		Volume:           volume,
		ResourceID:       h.ID,
		Timestamp:        at.UTC(),
		ResourceMetadata: md,
	}
}
