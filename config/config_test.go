package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseContentDefaults(t *testing.T) {
	t.Setenv("HOME", "/home/stack")
	config, err := ParseContent([]byte(``))
	require.NoError(t, err)
	require.Equal(t, "info", config.LogLevel)
	require.Equal(t, "heat", config.OutputFormat)
	require.Equal(t, "legacy", config.ParameterNames)
	require.Equal(t, 1500, config.MinimumSocketMemory)
	require.Equal(t, "heat-admin", config.Ssh.User)
	require.Equal(t, 22, config.Ssh.Port)
	require.Equal(t, "/home/stack/.ssh/id_rsa", config.Ssh.KeyFile)
	require.Equal(t, "/home/stack/.local/share/derive-params/parameters.json", config.ParametersFile)
	require.Equal(t, 2*time.Minute, config.OpenstackTimeout)
	require.Equal(t, 30*time.Second, config.SshTimeout)
	require.Equal(t, ":8080", config.Web.Listen)
}

func TestParseContent(t *testing.T) {
	config, err := ParseContent([]byte(`
log_level = "debug"
output_format = "json"
sort_output = true
include_iommu_pt = true
parameter_names = "current"
minimum_socket_memory = 2048
topology_source = "libvirt"
parameters_file = "/var/lib/derive-params/parameters.json"

openstack {
  command = "/usr/bin/openstack"
  timeout = "5m"
}

ssh {
  user = "tripleo-admin"
  port = 2222
  key_file = "/etc/derive-params/id_rsa"
  insecure_ignore_host_key = true
  timeout = "10s"
}

web {
  listen = "127.0.0.1:9000"
  debug = true
  trusted_proxies = ["10.0.0.1"]
}
`))
	require.NoError(t, err)
	require.Equal(t, "debug", config.LogLevel)
	require.Equal(t, "json", config.OutputFormat)
	require.True(t, config.SortOutput)
	require.Equal(t, "libvirt", config.TopologySource)
	require.Equal(t, "/var/lib/derive-params/parameters.json", config.ParametersFile)
	require.Equal(t, "/usr/bin/openstack", config.Openstack.Command)
	require.Equal(t, 5*time.Minute, config.OpenstackTimeout)
	require.Equal(t, "tripleo-admin", config.Ssh.User)
	require.Equal(t, 2222, config.Ssh.Port)
	require.True(t, config.Ssh.InsecureIgnoreHostKey)
	require.Equal(t, 10*time.Second, config.SshTimeout)
	require.Equal(t, "127.0.0.1:9000", config.Web.Listen)
	require.True(t, config.Web.Debug)
	require.Equal(t, []string{"10.0.0.1"}, config.Web.TrustedProxies)

	options := config.ComputeOptions()
	require.True(t, options.SortOutput)
	require.True(t, options.IncludeIommuPt)
	require.Equal(t, 2048, options.MinimumSocketMemory)
}

func TestParseContentInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":          `log_level = "info`,
		"unclosed block":  "web {\n listen = \":9000\"\n",
		"format":          `output_format = "xml"`,
		"topology":        `topology_source = "sysfs"`,
		"names":           `parameter_names = "future"`,
		"socket memory":   `minimum_socket_memory = -1`,
		"port":            "ssh {\n port = 70000\n}",
		"ssh timeout":     "ssh {\n timeout = \"soon\"\n}",
		"openstack limit": "openstack {\n timeout = \"1 minute\"\n}",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseContent([]byte(content))
			require.Error(t, err)
		})
	}
}

func TestParseContentZeroSocketMemory(t *testing.T) {
	config, err := ParseContent([]byte(`minimum_socket_memory = 0`))
	require.NoError(t, err)
	require.Equal(t, 1500, config.MinimumSocketMemory)
	require.Equal(t, 1500, config.ComputeOptions().MinimumSocketMemory)
}

func TestLoad(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "derive-params.conf")
	config, err := Load(missing, false)
	require.NoError(t, err)
	require.Equal(t, "heat", config.OutputFormat)

	_, err = Load(missing, true)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(missing, []byte(`output_format = "yaml"`), 0o600))
	config, err = Load(missing, true)
	require.NoError(t, err)
	require.Equal(t, "yaml", config.OutputFormat)
}
