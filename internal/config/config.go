// Package config wraps viper with nil-safe accessors and loads the hwmeter
// configuration file, environment overrides and host list.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is a read-only view over a viper instance. The zero value and a
// Config built from a nil viper return zero values for every key.
type Config struct {
	v *viper.Viper
}

// New wraps v. A nil v gives an empty Config.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

// Viper returns the underlying viper instance, which may be nil.
func (c *Config) Viper() *viper.Viper { return c.v }

func (c *Config) GetString(key string) string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

func (c *Config) GetInt(key string) int {
	if c.v == nil {
		return 0
	}
	return c.v.GetInt(key)
}

func (c *Config) GetFloat64(key string) float64 {
	if c.v == nil {
		return 0
	}
	return c.v.GetFloat64(key)
}

func (c *Config) GetBool(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.GetBool(key)
}

func (c *Config) GetDuration(key string) time.Duration {
	if c.v == nil {
		return 0
	}
	return c.v.GetDuration(key)
}

func (c *Config) GetStringSlice(key string) []string {
	if c.v == nil {
		return nil
	}
	return c.v.GetStringSlice(key)
}

// GetStringMap returns the sub-tree at key as a plain map.
func (c *Config) GetStringMap(key string) map[string]any {
	if c.v == nil {
		return nil
	}
	return c.v.GetStringMap(key)
}

func (c *Config) IsSet(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.IsSet(key)
}

// Sub returns the sub-tree at key. It never returns nil: a missing key
// gives an empty Config.
func (c *Config) Sub(key string) *Config {
	if c.v == nil {
		return New(nil)
	}
	return New(c.v.Sub(key))
}

// Unmarshal decodes the whole configuration into target using mapstructure tags.
func (c *Config) Unmarshal(target any) error {
	if c.v == nil {
		return nil
	}
	return c.v.Unmarshal(target)
}

// UnmarshalKey decodes the sub-tree at key into target.
func (c *Config) UnmarshalKey(key string, target any) error {
	if c.v == nil {
		return nil
	}
	return c.v.UnmarshalKey(key, target)
}

// InspectorSettings returns the inspectors.<name> sub-tree for every name,
// keyed by name. Names without a sub-tree are omitted.
func (c *Config) InspectorSettings(names []string) map[string]map[string]any {
	out := make(map[string]map[string]any, len(names))
	for _, n := range names {
		if m := c.GetStringMap("inspectors." + n); len(m) > 0 {
			out[n] = m
		}
	}
	return out
}
