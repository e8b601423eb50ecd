package config

import (
	"fmt"
	"io/ioutil"
	"time"

	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/util"

	"github.com/hashicorp/hcl"
	"github.com/imdario/mergo"
)

type WebConfig struct {
	Listen         string   `hcl:"listen"`
	Debug          bool     `hcl:"debug"`
	TrustedProxies []string `hcl:"trusted_proxies"`
}

type OpenstackConfig struct {
	Command string `hcl:"command"`
	Timeout string `hcl:"timeout"`
}

type SshConfig struct {
	User                  string `hcl:"user"`
	Port                  int    `hcl:"port"`
	KeyFile               string `hcl:"key_file"`
	KnownHostsFile        string `hcl:"known_hosts_file"`
	InsecureIgnoreHostKey bool   `hcl:"insecure_ignore_host_key"`
	Timeout               string `hcl:"timeout"`
}

// Config holds the settings of all commands. Zero values mean "use the
// default", so minimum_socket_memory = 0 selects 1500 MB.
type Config struct {
	LogLevel            string          `hcl:"log_level"`
	OutputFormat        string          `hcl:"output_format"`
	SortOutput          bool            `hcl:"sort_output"`
	IncludeIommuPt      bool            `hcl:"include_iommu_pt"`
	ParameterNames      string          `hcl:"parameter_names"`
	MinimumSocketMemory int             `hcl:"minimum_socket_memory"`
	TopologySource      string          `hcl:"topology_source"`
	ParametersFile      string          `hcl:"parameters_file"`
	Openstack           OpenstackConfig `hcl:"openstack"`
	Ssh                 SshConfig       `hcl:"ssh"`
	Web                 WebConfig       `hcl:"web"`

	OpenstackTimeout time.Duration `hcl:"-"`
	SshTimeout       time.Duration `hcl:"-"`
}

func Default() *Config {
	return &Config{
		LogLevel:            "info",
		OutputFormat:        "heat",
		ParameterNames:      "legacy",
		MinimumSocketMemory: compute.DefaultMinimumSocketMemory,
		TopologySource:      "lscpu",
		ParametersFile:      "~/.local/share/derive-params/parameters.json",
		Openstack: OpenstackConfig{
			Command: "openstack",
			Timeout: "2m",
		},
		Ssh: SshConfig{
			User:           "heat-admin",
			Port:           22,
			KeyFile:        "~/.ssh/id_rsa",
			KnownHostsFile: "~/.ssh/known_hosts",
			Timeout:        "30s",
		},
		Web: WebConfig{
			Listen: ":8080",
		},
	}
}

// Parse reads an HCL configuration file and completes it with defaults.
func Parse(filename string) (*Config, error) {
	content, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, util.NewError(err, "cannot read configuration file")
	}
	return ParseContent(content)
}

func ParseContent(content []byte) (*Config, error) {
	config := &Config{}
	if err := hcl.Unmarshal(content, config); err != nil {
		return nil, util.NewError(err, "invalid configuration format")
	}
	if err := config.complete(); err != nil {
		return nil, err
	}
	return config, nil
}

// Load parses filename, falling back to defaults when the file does not
// exist and mustExist is false.
func Load(filename string, mustExist bool) (*Config, error) {
	if !mustExist && !util.FileExists(filename) {
		config := &Config{}
		if err := config.complete(); err != nil {
			return nil, err
		}
		return config, nil
	}
	return Parse(filename)
}

func (config *Config) complete() error {
	if err := mergo.Merge(config, Default()); err != nil {
		return util.NewError(err, "cannot apply default configuration value")
	}

	switch config.OutputFormat {
	default:
		return fmt.Errorf("unknown output format '%s'", config.OutputFormat)
	case "heat", "yaml", "json":
	}
	switch config.TopologySource {
	default:
		return fmt.Errorf("unknown topology source '%s'", config.TopologySource)
	case "lscpu", "libvirt":
	}
	if _, err := compute.NewParameterNames(config.ParameterNames); err != nil {
		return err
	}
	if config.MinimumSocketMemory < 0 {
		return fmt.Errorf("minimum_socket_memory must not be negative")
	}
	if config.Ssh.Port <= 0 || config.Ssh.Port > 65535 {
		return fmt.Errorf("invalid ssh port %d", config.Ssh.Port)
	}

	timeout, err := time.ParseDuration(config.Openstack.Timeout)
	if err != nil {
		return fmt.Errorf("invalid openstack timeout '%s': %s", config.Openstack.Timeout, err)
	}
	config.OpenstackTimeout = timeout
	timeout, err = time.ParseDuration(config.Ssh.Timeout)
	if err != nil {
		return fmt.Errorf("invalid ssh timeout '%s': %s", config.Ssh.Timeout, err)
	}
	config.SshTimeout = timeout

	config.ParametersFile = util.ExpandHomeDir(config.ParametersFile)
	config.Ssh.KeyFile = util.ExpandHomeDir(config.Ssh.KeyFile)
	config.Ssh.KnownHostsFile = util.ExpandHomeDir(config.Ssh.KnownHostsFile)
	return nil
}

// ComputeOptions maps the configuration onto derivation options.
func (config *Config) ComputeOptions() compute.Options {
	return compute.Options{
		SortOutput:          config.SortOutput,
		IncludeIommuPt:      config.IncludeIommuPt,
		MinimumSocketMemory: config.MinimumSocketMemory,
	}
}
