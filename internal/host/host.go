// Package host describes the machines hwmeter polls: their address, their
// stable resource identity, and the per-host overrides from the host list.
package host

import (
	"errors"
	"slices"
)

// Errors raised while deriving a host's identity. Neither is fatal: the host
// keeps a derived ID and is still polled.
var (
	// ErrUnreachable means the host did not answer the reachability probe
	// or has no entry in the ARP table.
	ErrUnreachable = errors.New("host not reachable")

	// ErrUnsupportedAgent means the platform hwmeter runs on has no way
	// to read the ARP table.
	ErrUnsupportedAgent = errors.New("agent platform not supported")
)

// Options carries the per-host settings from the host list.
type Options struct {
	DisabledPollsters       []string                  `mapstructure:"disabled_pollsters" yaml:"disabled_pollsters" json:"disabled_pollsters"`
	DisabledInspectors      []string                  `mapstructure:"disabled_inspectors" yaml:"disabled_inspectors" json:"disabled_inspectors"`
	InspectorConfigurations map[string]map[string]any `mapstructure:"inspector_configurations" yaml:"inspector_configurations" json:"inspector_configurations"`
}

// Spec is one entry of the host list.
type Spec struct {
	IP      string  `mapstructure:"ip" yaml:"ip"`
	Options Options `mapstructure:",squash" yaml:",inline"`
}

// Identity is the resolved, stable identity of an address.
type Identity struct {
	ID   string
	Name string
}

// Host is a polling target for one cycle.
type Host struct {
	ipAddress string

	// ID is a MAC-like token used as the sample resource ID and as the
	// utilization memo key. It must not change between cycles.
	ID string
	// Name is the reverse-DNS name, or empty.
	Name string

	disabledPollsters       map[string]struct{}
	disabledInspectors      map[string]struct{}
	inspectorConfigurations map[string]map[string]any
}

// New builds a Host. The IP address cannot be changed afterwards.
func New(ip string, opts Options, id Identity) *Host {
	h := &Host{
		ipAddress:               ip,
		ID:                      id.ID,
		Name:                    id.Name,
		disabledPollsters:       toSet(opts.DisabledPollsters),
		disabledInspectors:      toSet(opts.DisabledInspectors),
		inspectorConfigurations: opts.InspectorConfigurations,
	}
	if h.inspectorConfigurations == nil {
		h.inspectorConfigurations = map[string]map[string]any{}
	}
	return h
}

// IPAddress returns the address the host was created with.
func (h *Host) IPAddress() string { return h.ipAddress }

// IsLocal reports whether the host is the machine hwmeter runs on.
func (h *Host) IsLocal() bool { return isLoopback(h.ipAddress) }

// PollsterDisabled reports whether the named pollster is excluded for this host.
func (h *Host) PollsterDisabled(name string) bool {
	_, ok := h.disabledPollsters[name]
	return ok
}

// InspectorDisabled reports whether the named inspector is excluded for this host.
func (h *Host) InspectorDisabled(name string) bool {
	_, ok := h.disabledInspectors[name]
	return ok
}

// DisabledInspectors returns the excluded inspector names, sorted.
func (h *Host) DisabledInspectors() []string {
	return sortedKeys(h.disabledInspectors)
}

// DisabledPollsters returns the excluded pollster names, sorted.
func (h *Host) DisabledPollsters() []string {
	return sortedKeys(h.disabledPollsters)
}

// InspectorConfig returns the host-specific configuration for an inspector,
// or nil when the host has none.
func (h *Host) InspectorConfig(name string) map[string]any {
	return h.inspectorConfigurations[name]
}

// Metadata returns the identity fields attached to every sample of this host.
func (h *Host) Metadata() map[string]string {
	return map[string]string{
		"ip_address": h.ipAddress,
		"host_name":  h.Name,
		"host_id":    h.ID,
	}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
