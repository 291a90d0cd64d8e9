package snmp

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/gosnmp/gosnmp"

	"github.com/HerbHall/hwmeter/internal/host"
)

// Hardcoded defaults, used when neither the host nor the inspector
// configuration sets a value.
const (
	DefaultPort         uint16 = 161
	DefaultSecurityName        = "public"
	DefaultVersion             = "2c"
	DefaultTimeout             = 2 * time.Second
)

// Config is the SNMP inspector configuration. The same shape is accepted
// inspector-wide (inspectors.snmp) and per host
// (inspector_configurations.snmp). Zero values mean "not set".
type Config struct {
	Port         uint16        `mapstructure:"port"`
	SecurityName string        `mapstructure:"securityName"`
	Community    string        `mapstructure:"community"`
	Version      string        `mapstructure:"version"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Retries      int           `mapstructure:"retries"`

	// Inspector-wide only.
	FilterLoopback *bool   `mapstructure:"filter_loopback"`
	RateLimit      float64 `mapstructure:"rate_limit"`
}

// community returns the configured community, accepting either key.
func (c Config) community() string {
	if c.SecurityName != "" {
		return c.SecurityName
	}
	return c.Community
}

// filterLoopback defaults to true.
func (c Config) filterLoopback() bool {
	return c.FilterLoopback == nil || *c.FilterLoopback
}

// DecodeConfig decodes an opaque configuration map. Keys are matched
// case-insensitively and values are weakly typed, so "1161" and 1161 are
// both a valid port and "2s" a valid timeout.
func DecodeConfig(raw map[string]any) (Config, error) {
	var c Config
	if len(raw) == 0 {
		return c, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           &c,
	})
	if err != nil {
		return c, err
	}
	if err := dec.Decode(raw); err != nil {
		return c, fmt.Errorf("decode snmp config: %w", err)
	}
	if c.Version != "" {
		if _, err := parseVersion(c.Version); err != nil {
			return c, err
		}
	}
	if c.Retries < 0 {
		return c, fmt.Errorf("snmp retries must not be negative, got %d", c.Retries)
	}
	return c, nil
}

// Endpoint is a fully resolved SNMP target.
type Endpoint struct {
	Address   string
	Port      uint16
	Community string
	Version   gosnmp.SnmpVersion
	Timeout   time.Duration
	Retries   int
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Address, e.Port)
}

// ResolveEndpoint builds the endpoint for h. Each setting is taken from, in
// order: the host's "snmp" inspector configuration, the inspector-level
// defaults, then the hardcoded defaults.
func ResolveEndpoint(h *host.Host, inspectorConf Config) (Endpoint, error) {
	hostConf, err := DecodeConfig(h.InspectorConfig(Name))
	if err != nil {
		return Endpoint{}, fmt.Errorf("host %s: %w", h.IPAddress(), err)
	}

	version, err := parseVersion(firstSet(hostConf.Version, inspectorConf.Version, DefaultVersion))
	if err != nil {
		return Endpoint{}, err
	}

	return Endpoint{
		Address:   h.IPAddress(),
		Port:      firstSet(hostConf.Port, inspectorConf.Port, DefaultPort),
		Community: firstSet(hostConf.community(), inspectorConf.community(), DefaultSecurityName),
		Version:   version,
		Timeout:   firstSet(hostConf.Timeout, inspectorConf.Timeout, DefaultTimeout),
		Retries:   firstSet(hostConf.Retries, inspectorConf.Retries),
	}, nil
}

// firstSet returns the first non-zero value.
func firstSet[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

func parseVersion(v string) (gosnmp.SnmpVersion, error) {
	switch strings.TrimPrefix(strings.ToLower(v), "v") {
	case "1":
		return gosnmp.Version1, nil
	case "2", "2c":
		return gosnmp.Version2c, nil
	default:
		return 0, fmt.Errorf("unsupported snmp version %q (want 1 or 2c)", v)
	}
}
