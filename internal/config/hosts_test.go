package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHosts_MapForm(t *testing.T) {
	data := []byte(`
10.0.0.5:
  disabled_pollsters: [disk]
  inspector_configurations:
    snmp:
      port: 1161
      securityName: secret
10.0.0.6: {}
10.0.0.7:
`)
	specs, err := ParseHosts(data)
	require.NoError(t, err)
	require.Len(t, specs, 3)

	assert.Equal(t, "10.0.0.5", specs[0].IP)
	assert.Equal(t, []string{"disk"}, specs[0].Options.DisabledPollsters)
	assert.Equal(t, 1161, specs[0].Options.InspectorConfigurations["snmp"]["port"])
	assert.Equal(t, "secret", specs[0].Options.InspectorConfigurations["snmp"]["securityName"])
	assert.Equal(t, "10.0.0.6", specs[1].IP)
	assert.Equal(t, "10.0.0.7", specs[2].IP)
}

func TestParseHosts_JSON(t *testing.T) {
	data := []byte(`{"10.0.0.5": {"disabled_inspectors": ["local"]}, "10.0.0.6": {}}`)
	specs, err := ParseHosts(data)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "10.0.0.5", specs[0].IP)
	assert.Equal(t, []string{"local"}, specs[0].Options.DisabledInspectors)
}

func TestParseHosts_ListForm(t *testing.T) {
	data := []byte(`
- ip: 10.0.0.5
  disabled_pollsters: [network]
- 10.0.0.6
`)
	specs, err := ParseHosts(data)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "10.0.0.5", specs[0].IP)
	assert.Equal(t, []string{"network"}, specs[0].Options.DisabledPollsters)
	assert.Equal(t, "10.0.0.6", specs[1].IP)
}

func TestParseHosts_Empty(t *testing.T) {
	for _, in := range []string{"", "~", "# nothing\n"} {
		specs, err := ParseHosts([]byte(in))
		assert.NoError(t, err, "input %q", in)
		assert.Empty(t, specs, "input %q", in)
	}
}

func TestParseHosts_Malformed(t *testing.T) {
	tests := map[string]string{
		"scalar":      "10.0.0.5",
		"bad yaml":    "{unclosed",
		"bad options": "10.0.0.5:\n  disabled_pollsters: {a: b}\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseHosts([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestHosts_AllSources(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "hosts.yaml")
	require.NoError(t, os.WriteFile(file, []byte("10.0.0.6:\n  disabled_pollsters: [disk]\n"), 0o600))

	v := viper.New()
	v.Set("hosts", []map[string]any{
		{"ip": "10.0.0.5", "disabled_inspectors": []string{"local"}},
	})
	v.Set("hosts_file", file)
	v.Set("hosts_json", `[{"ip": "10.0.0.7"}]`)

	specs, err := New(v).Hosts()
	require.NoError(t, err)
	require.Len(t, specs, 3)
	assert.Equal(t, "10.0.0.5", specs[0].IP)
	assert.Equal(t, []string{"local"}, specs[0].Options.DisabledInspectors)
	assert.Equal(t, "10.0.0.6", specs[1].IP)
	assert.Equal(t, []string{"disk"}, specs[1].Options.DisabledPollsters)
	assert.Equal(t, "10.0.0.7", specs[2].IP)
}

func TestHosts_Duplicate(t *testing.T) {
	v := viper.New()
	v.Set("hosts", []map[string]any{{"ip": "10.0.0.5"}})
	v.Set("hosts_json", `{"10.0.0.5": {}}`)

	_, err := New(v).Hosts()
	assert.ErrorContains(t, err, "more than once")
}

func TestHosts_MissingFile(t *testing.T) {
	v := viper.New()
	v.Set("hosts_file", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := New(v).Hosts()
	assert.Error(t, err)
}

func TestHosts_FromEnv(t *testing.T) {
	t.Setenv("HWMETER_HOSTS_JSON", `{"10.0.0.9": {"disabled_pollsters": ["cpu"]}}`)

	cfg, err := Load(writeConfig(t, "poll:\n  workers: 2\n"))
	require.NoError(t, err)

	specs, err := cfg.Hosts()
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "10.0.0.9", specs[0].IP)
	assert.Equal(t, []string{"cpu"}, specs[0].Options.DisabledPollsters)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hwmeter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
poll:
  workers: 8
inspectors:
  snmp:
    community: ops
hosts:
  - ip: 10.0.0.5
`))
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.GetInt("poll.workers"))
	assert.Equal(t, 60*time.Second, cfg.GetDuration("poll.interval"))
	assert.Equal(t, "8080", cfg.GetString("server.port"))
	assert.Equal(t, "ops", cfg.GetString("inspectors.snmp.community"))
	assert.False(t, cfg.IsSet("inspectors.snmp.port"), "no snmp defaults may be set")

	specs, err := cfg.Hosts()
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "10.0.0.5", specs[0].IP)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HWMETER_POLL_INTERVAL", "15s")
	cfg, err := Load(writeConfig(t, "poll:\n  interval: 30s\n"))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.GetDuration("poll.interval"))
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
