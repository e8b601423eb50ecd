package livehost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/cpulist"
	"nfvpe/derive-params/libvirt"
	"nfvpe/derive-params/util"

	"github.com/rs/zerolog"
	"gopkg.in/ini.v1"
	yaml "gopkg.in/yaml.v2"
)

const TunedPartitioningProfile = "cpu-partitioning"

const (
	novaConfFile          = "/etc/nova/nova.conf"
	containerNovaConfFile = "/var/lib/config-data/nova_libvirt/etc/nova/nova.conf"
	dpdkMappingFile       = "/var/lib/os-net-config/dpdk_mapping.yaml"
	tunedVariablesFile    = "/etc/tuned/cpu-partitioning-variables.conf"
	grubDefaultsFile      = "/etc/default/grub"
	releaseFile           = "/etc/rhosp-release"
	kollaConfigDir        = "/var/lib/kolla/config_files/"
	hieraJsonFile         = "/etc/puppet/hieradata/service_configs.json"
	hieraYamlFile         = "/etc/puppet/hieradata/service_configs.yaml"
)

type TopologySource int

const (
	TopologySourceLscpu   = TopologySource(0)
	TopologySourceLibvirt = TopologySource(1)
)

func NewTopologySource(input string) TopologySource {
	if input == "libvirt" {
		return TopologySourceLibvirt
	}
	return TopologySourceLscpu
}

// Collector scrapes the hardware and the deployed parameters of a node.
type Collector struct {
	runner   Runner
	topology TopologySource
	logger   zerolog.Logger
}

func NewCollector(runner Runner, topology TopologySource, logger zerolog.Logger) *Collector {
	return &Collector{runner: runner, topology: topology, logger: logger}
}

func (collector *Collector) output(ctx context.Context, command string) (string, error) {
	stdout, stderr, err := collector.runner.Run(ctx, command)
	if err != nil {
		if strings.TrimSpace(stderr) != "" {
			return "", util.NewError(err, "%s", strings.TrimSpace(stderr))
		}
		return "", err
	}
	return stdout, nil
}

// optional is output for settings that may legitimately be absent; a
// failing command reads as an empty value.
func (collector *Collector) optional(ctx context.Context, command string) (string, error) {
	stdout, _, err := collector.runner.Run(ctx, command)
	if errors.Is(err, ErrCommandFailed) {
		collector.logger.Debug().Str("command", command).Msg("setting not found")
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return stdout, nil
}

func (collector *Collector) Cores(ctx context.Context) (compute.Cores, error) {
	if collector.topology == TopologySourceLibvirt {
		out, err := collector.output(ctx, "sudo virsh capabilities")
		if err != nil {
			return nil, util.NewError(err, "cannot get libvirt capabilities")
		}
		topology, err := libvirt.ParseCapabilities(out)
		if err != nil {
			return nil, err
		}
		collector.logger.Debug().Str("topology", topology.String()).Msg("read libvirt capabilities")
		return topology.Cpus, nil
	}
	out, err := collector.output(ctx, "sudo lscpu -p=NODE,CORE,CPU")
	if err != nil {
		return nil, util.NewError(err, "cannot get cpu topology")
	}
	return ParseLscpuTopology(out)
}

// ParseLscpuTopology groups the threads of `lscpu -p=NODE,CORE,CPU` into
// cores. A core is identified by its numa node and core id.
func ParseLscpuTopology(out string) (compute.Cores, error) {
	type key struct{ node, core int }
	index := map[key]int{}
	cores := compute.Cores{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 3 {
			return nil, fmt.Errorf("unexpected lscpu line %q", line)
		}
		values := [3]int{}
		for idx, field := range fields {
			value, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return nil, util.NewError(compute.ErrMissingTopologyData, "unexpected lscpu line %q", line)
			}
			values[idx] = value
		}
		coreKey := key{node: values[0], core: values[1]}
		if idx, exists := index[coreKey]; exists {
			cores[idx].ThreadSiblings = append(cores[idx].ThreadSiblings, values[2])
			continue
		}
		index[coreKey] = len(cores)
		cores = append(cores, compute.Core{NumaNode: values[0], CoreId: values[1], ThreadSiblings: []int{values[2]}})
	}
	if len(cores) == 0 {
		return nil, util.NewError(compute.ErrMissingTopologyData, "lscpu reported no cpus")
	}
	return compute.SortCores(cores), nil
}

// CpuInfo returns the cpu model name and flags reported by lscpu.
func (collector *Collector) CpuInfo(ctx context.Context) (string, []string, error) {
	out, err := collector.output(ctx, "sudo lscpu")
	if err != nil {
		return "", nil, util.NewError(err, "cannot get cpu info")
	}
	model := ""
	flags := []string(nil)
	for _, line := range strings.Split(out, "\n") {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(name) {
		case "Model name":
			model = strings.TrimSpace(value)
		case "Flags":
			flags = strings.Fields(value)
		}
	}
	if model == "" {
		return "", nil, errors.New("unable to determine cpu model name")
	}
	if flags == nil {
		return "", nil, errors.New("unable to determine cpu flags")
	}
	return model, flags, nil
}

// TotalMemory sums the sizes of the installed memory modules.
func (collector *Collector) TotalMemory(ctx context.Context) (compute.Size, error) {
	out, err := collector.output(ctx, "sudo dmidecode --type memory")
	if err != nil {
		return compute.Size{}, util.NewError(err, "cannot get memory info")
	}
	return ParseDmidecodeMemory(out)
}

func ParseDmidecodeMemory(out string) (compute.Size, error) {
	total := compute.NewSize(0, compute.SizeUnitB)
	for _, line := range strings.Split(out, "\n") {
		name, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || name != "Size" {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" || value[0] < '0' || value[0] > '9' {
			continue
		}
		size, err := compute.ParseSize(value)
		if err != nil {
			return compute.Size{}, err
		}
		total = total.Add(size)
	}
	if total.Bytes() == 0 {
		return compute.Size{}, errors.New("unable to determine physical memory")
	}
	return total, nil
}

// IsContainerized tells whether the node runs the containerized services,
// which moves nova.conf and the hiera format.
func (collector *Collector) IsContainerized(ctx context.Context) (bool, error) {
	_, stderr, err := collector.runner.Run(ctx, "ls -d "+kollaConfigDir)
	if err != nil && !errors.Is(err, ErrCommandFailed) {
		return false, err
	}
	return err == nil && strings.TrimSpace(stderr) == "", nil
}

func (collector *Collector) Release(ctx context.Context) (string, error) {
	out, err := collector.output(ctx, "sudo cat "+releaseFile)
	if err != nil {
		return "", util.NewError(err, "unable to determine release")
	}
	return strings.TrimSpace(out), nil
}

func (collector *Collector) TunedProfile(ctx context.Context) (string, error) {
	out, err := collector.output(ctx, "sudo tuned-adm active")
	if err != nil {
		return "", util.NewError(err, "unable to determine tuned active profile")
	}
	_, profile, ok := strings.Cut(out, ":")
	if !ok {
		return "", fmt.Errorf("unexpected tuned-adm output %q", strings.TrimSpace(out))
	}
	return strings.TrimSpace(profile), nil
}

// ovsOtherConfig reads one other_config key of the Open_vSwitch table,
// without the surrounding quotes. Missing keys read as "".
func (collector *Collector) ovsOtherConfig(ctx context.Context, key string) (string, error) {
	out, err := collector.optional(ctx, "sudo ovs-vsctl --no-wait get Open_vSwitch . other_config:"+key)
	if err != nil {
		return "", util.NewError(err, "cannot read ovs %s", key)
	}
	return strings.Trim(strings.TrimSpace(out), `"`), nil
}

func (collector *Collector) ovsMask(ctx context.Context, key string) ([]int, error) {
	mask, err := collector.ovsOtherConfig(ctx, key)
	if err != nil || mask == "" {
		return nil, err
	}
	cpus, err := cpulist.ParseMask(mask)
	if err != nil {
		return nil, util.NewError(err, "invalid ovs %s", key)
	}
	return cpus, nil
}

// ParseMemoryChannels returns the -n option of dpdk-extra, "4" when unset.
func ParseMemoryChannels(dpdkExtra string) string {
	fields := strings.Fields(dpdkExtra)
	for idx, field := range fields {
		if field == "-n" && idx+1 < len(fields) {
			return fields[idx+1]
		}
	}
	return strconv.Itoa(compute.DefaultMemoryChannels)
}

type ovsTable struct {
	Headings []string            `json:"headings"`
	Data     [][]json.RawMessage `json:"data"`
}

func ovsString(value json.RawMessage) string {
	result := ""
	if err := json.Unmarshal(value, &result); err == nil {
		return result
	}
	return strings.Trim(string(value), `"`)
}

// ovsMapValue looks key up in an OVS ["map", [[k, v], ...]] column.
func ovsMapValue(value json.RawMessage, key string) (string, bool) {
	column := []json.RawMessage{}
	if err := json.Unmarshal(value, &column); err != nil || len(column) != 2 {
		return "", false
	}
	pairs := [][]string{}
	if err := json.Unmarshal(column[1], &pairs); err != nil {
		return "", false
	}
	for _, pair := range pairs {
		if len(pair) == 2 && pair[0] == key {
			return pair[1], true
		}
	}
	return "", false
}

type dpdkMapping struct {
	Name       string `yaml:"name"`
	MacAddress string `yaml:"mac_address"`
	PciAddress string `yaml:"pci_address"`
	Driver     string `yaml:"driver"`
}

// DpdkInterfaces lists the admin-up dpdk ports of OVS with their numa node,
// mtu and the physical nic name os-net-config bound them to.
func (collector *Collector) DpdkInterfaces(ctx context.Context) ([]DpdkInterface, error) {
	out, err := collector.output(ctx, "sudo ovs-vsctl --columns=name,type,admin_state --format=json list interface")
	if err != nil {
		return nil, util.NewError(err, "cannot list ovs interfaces")
	}
	table := ovsTable{}
	if err := json.Unmarshal([]byte(out), &table); err != nil {
		return nil, util.NewError(err, "cannot parse ovs interfaces")
	}
	names := []string{}
	for _, row := range table.Data {
		if len(row) == 3 && ovsString(row[1]) == "dpdk" && ovsString(row[2]) == "up" {
			names = append(names, ovsString(row[0]))
		}
	}
	if len(names) == 0 {
		return []DpdkInterface{}, nil
	}

	out, err = collector.output(ctx, "sudo ovs-vsctl --columns=mac-in-use,mtu,status --format=json list interface "+strings.Join(names, " "))
	if err != nil {
		return nil, util.NewError(err, "cannot get ovs dpdk interfaces")
	}
	table = ovsTable{}
	if err := json.Unmarshal([]byte(out), &table); err != nil {
		return nil, util.NewError(err, "cannot parse ovs dpdk interfaces")
	}
	mappingContent, err := collector.output(ctx, "sudo cat "+dpdkMappingFile)
	if err != nil {
		return nil, util.NewError(err, "cannot read dpdk mapping")
	}
	mappings := []dpdkMapping{}
	if err := yaml.Unmarshal([]byte(mappingContent), &mappings); err != nil {
		return nil, util.NewError(err, "cannot parse dpdk mapping")
	}

	result := []DpdkInterface{}
	for _, row := range table.Data {
		if len(row) != 3 {
			continue
		}
		iface := DpdkInterface{Mac: ovsString(row[0])}
		mtu, err := strconv.Atoi(strings.TrimSpace(string(row[1])))
		if err != nil {
			return nil, fmt.Errorf("invalid mtu of dpdk interface %s", iface.Mac)
		}
		iface.Mtu = mtu
		numa, ok := ovsMapValue(row[2], "numa_id")
		if !ok {
			return nil, util.NewError(compute.ErrMissingTopologyData, "dpdk interface %s has no numa_id", iface.Mac)
		}
		if iface.NumaNode, err = strconv.Atoi(numa); err != nil {
			return nil, fmt.Errorf("invalid numa_id %q of dpdk interface %s", numa, iface.Mac)
		}
		found := false
		for _, mapping := range mappings {
			if mapping.MacAddress == iface.Mac {
				iface.Name = mapping.Name
				iface.Pci = mapping.PciAddress
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unable to determine DPDK NIC mapping for MAC: '%s'", iface.Mac)
		}
		result = append(result, iface)
	}
	return result, nil
}

// confValue reads key from section of an ini file. Shell variable files
// have no sections, their keys live in ini.DefaultSection.
func confValue(content, section, key string) (string, bool) {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:     true,
		SkipUnrecognizableLines: true,
	}, []byte(content))
	if err != nil {
		return "", false
	}
	sec, err := file.GetSection(section)
	if err != nil || !sec.HasKey(key) {
		return "", false
	}
	return sec.Key(key).String(), true
}

func (collector *Collector) readFile(ctx context.Context, filename string) (string, error) {
	out, err := collector.optional(ctx, "sudo cat "+filename)
	if err != nil {
		return "", util.NewError(err, "cannot read %s", filename)
	}
	return out, nil
}
