// Package testutil provides shared test helpers for hwmeter packages.
package testutil

import (
	"github.com/HerbHall/hwmeter/internal/host"
)

// NewHost returns a Host at 10.0.0.5 with a fixed identity, suitable for
// test fixtures. Options mutate the host options before construction.
func NewHost(opts ...func(*host.Options)) *host.Host {
	return NewHostAt("10.0.0.5", opts...)
}

// NewHostAt is NewHost for a specific address.
func NewHostAt(ip string, opts ...func(*host.Options)) *host.Host {
	o := host.Options{}
	for _, fn := range opts {
		fn(&o)
	}
	return host.New(ip, o, host.Identity{ID: host.DeriveID(ip), Name: "test-host"})
}

// DisableInspectors is a NewHost option.
func DisableInspectors(names ...string) func(*host.Options) {
	return func(o *host.Options) { o.DisabledInspectors = append(o.DisabledInspectors, names...) }
}
