package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HWMETER_POLL_INTERVAL.
const EnvPrefix = "HWMETER"

// Load reads the configuration file at path and applies defaults and
// environment overrides. With an empty path, hwmeter.yaml is looked up in
// the working directory and /etc/hwmeter; not finding one is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("hwmeter")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hwmeter")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return New(v), nil
}

// setDefaults registers the defaults. There are no snmp
// defaults here so that the inspector's own hardcoded defaults apply when
// neither the host nor inspectors.snmp sets a value.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.development", false)

	v.SetDefault("poll.interval", 60*time.Second)
	v.SetDefault("poll.workers", 4)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.rate_limit", 0)

	v.SetDefault("identity.probe_timeout", 2*time.Second)
	v.SetDefault("identity.probe_count", 1)

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", "hwmeter.db")

	v.SetDefault("publish.log", true)
	v.SetDefault("publish.prometheus", true)
	v.SetDefault("publish.mqtt.enabled", false)
	v.SetDefault("publish.mqtt.topic_prefix", "hwmeter")
	v.SetDefault("publish.mqtt.qos", 0)
	v.SetDefault("publish.mqtt.retained", true)
}
