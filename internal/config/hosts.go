package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/HerbHall/hwmeter/internal/host"
)

// Hosts assembles the host list from, in order: the hosts list in the
// configuration, the file named by hosts_file, and the JSON document in
// HWMETER_HOSTS_JSON (key hosts_json). An address listed twice is an error.
//
// The configuration list uses the list form only, because viper splits keys
// on dots and so cannot hold IP addresses as map keys. The file and the
// JSON string accept both forms, see ParseHosts.
func (c *Config) Hosts() ([]host.Spec, error) {
	var all []host.Spec

	if c.IsSet("hosts") {
		var inline []host.Spec
		if err := c.UnmarshalKey("hosts", &inline); err != nil {
			return nil, fmt.Errorf("decode hosts: %w", err)
		}
		all = append(all, inline...)
	}

	if path := c.GetString("hosts_file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read hosts file: %w", err)
		}
		specs, err := ParseHosts(data)
		if err != nil {
			return nil, fmt.Errorf("hosts file %s: %w", path, err)
		}
		all = append(all, specs...)
	}

	if raw := c.GetString("hosts_json"); raw != "" {
		specs, err := ParseHosts([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%s_HOSTS_JSON: %w", EnvPrefix, err)
		}
		all = append(all, specs...)
	}

	return validateHosts(all)
}

// ParseHosts parses a YAML or JSON host list. Two forms are accepted:
//
//	10.0.0.5:
//	  disabled_pollsters: [disk]
//	10.0.0.6: {}
//
// and
//
//   - ip: 10.0.0.5
//     disabled_pollsters: [disk]
//   - 10.0.0.6
//
// Map form keeps document order.
func ParseHosts(data []byte) ([]host.Spec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]

	var specs []host.Spec
	switch root.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			spec := host.Spec{IP: root.Content[i].Value}
			if err := root.Content[i+1].Decode(&spec.Options); err != nil {
				return nil, fmt.Errorf("host %s: %w", spec.IP, err)
			}
			specs = append(specs, spec)
		}
	case yaml.SequenceNode:
		for _, item := range root.Content {
			if item.Kind == yaml.ScalarNode {
				specs = append(specs, host.Spec{IP: item.Value})
				continue
			}
			var spec host.Spec
			if err := item.Decode(&spec); err != nil {
				return nil, fmt.Errorf("line %d: %w", item.Line, err)
			}
			specs = append(specs, spec)
		}
	case yaml.ScalarNode:
		if root.Tag == "!!null" {
			return nil, nil
		}
		return nil, fmt.Errorf("host list must be a map or a list, got %q", root.Value)
	default:
		return nil, fmt.Errorf("host list must be a map or a list")
	}
	return specs, nil
}

func validateHosts(specs []host.Spec) ([]host.Spec, error) {
	seen := make(map[string]bool, len(specs))
	out := make([]host.Spec, 0, len(specs))
	for _, s := range specs {
		s.IP = strings.TrimSpace(s.IP)
		if s.IP == "" {
			return nil, fmt.Errorf("host entry without an address")
		}
		if seen[s.IP] {
			return nil, fmt.Errorf("host %s listed more than once", s.IP)
		}
		seen[s.IP] = true
		out = append(out, s)
	}
	return out, nil
}
