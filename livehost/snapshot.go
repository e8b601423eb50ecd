package livehost

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/cpulist"
	"nfvpe/derive-params/util"

	"gopkg.in/ini.v1"
	yaml "gopkg.in/yaml.v2"
)

type DpdkInterface struct {
	Name     string
	Mac      string
	Pci      string
	Mtu      int
	NumaNode int
}

// DeployedParameters are the values a node actually runs with. Empty
// strings mean the setting was not found.
type DeployedParameters struct {
	PmdCpus            []int
	HostCpus           []int
	SocketMemory       string
	MemoryChannels     string
	GuestCpus          string
	ReservedHostMemory string
	IsolatedCpus       string
	KernelArgs         compute.KernelArgs
	HasKernelArgs      bool
	TunedProfile       string
	Rebooted           bool
}

// HieraParameters are the values puppet was asked to apply.
type HieraParameters struct {
	PmdCpus            string
	SocketMemory       string
	MemoryChannels     string
	GuestCpus          string
	ReservedHostMemory string
}

// Snapshot is everything collected from a node for one validation run.
type Snapshot struct {
	Host           string
	Containerized  bool
	Release        string
	Cpus           compute.Cores
	CpuModelName   string
	CpuFlags       []string
	TotalMemory    compute.Size
	DpdkInterfaces []DpdkInterface
	Deployed       DeployedParameters
	Hiera          HieraParameters
}

// Facts turns the hardware part of the snapshot into derivation input.
// Every dpdk interface counts as an active nic.
func (snapshot *Snapshot) Facts() *compute.HardwareFacts {
	facts := &compute.HardwareFacts{
		Cpus:         snapshot.Cpus,
		CpuModelName: snapshot.CpuModelName,
		CpuFlags:     snapshot.CpuFlags,
		TotalMemory:  snapshot.TotalMemory,
		Interfaces:   []compute.Interface{},
		Nics:         []compute.Nic{},
	}
	for _, iface := range snapshot.DpdkInterfaces {
		facts.Interfaces = append(facts.Interfaces, compute.Interface{Name: iface.Name, HasCarrier: true})
		facts.Nics = append(facts.Nics, compute.Nic{Name: iface.Name, NumaNode: iface.NumaNode})
	}
	return facts
}

// DpdkNics describes the deployed dpdk interfaces the way a derivation
// resolves requested nics.
func (snapshot *Snapshot) DpdkNics() []compute.DpdkNicNumaInfo {
	nics := []compute.DpdkNicNumaInfo{}
	for _, iface := range snapshot.DpdkInterfaces {
		nics = append(nics, compute.DpdkNicNumaInfo{
			NicId:        iface.Name,
			ResolvedName: iface.Name,
			NumaNode:     iface.NumaNode,
			Mtu:          iface.Mtu,
		})
	}
	return nics
}

// ParameterNames picks the heat parameter names of the deployed release.
func (snapshot *Snapshot) ParameterNames() compute.ParameterNames {
	return compute.ParameterNamesForRelease(snapshot.Release)
}

// Snapshot collects the hardware facts and, for dpdk nodes, the OVS state
// of the node along with the nova, tuned and kernel settings.
func (collector *Collector) Snapshot(ctx context.Context, host string, mode compute.Mode) (*Snapshot, error) {
	snapshot := &Snapshot{Host: host}
	var err error
	collector.logger.Info().Str("host", host).Msg("collecting deployed parameters")

	if snapshot.Containerized, err = collector.IsContainerized(ctx); err != nil {
		return nil, err
	}
	if snapshot.Release, err = collector.Release(ctx); err != nil {
		return nil, err
	}
	if snapshot.Cpus, err = collector.Cores(ctx); err != nil {
		return nil, err
	}
	if snapshot.CpuModelName, snapshot.CpuFlags, err = collector.CpuInfo(ctx); err != nil {
		return nil, err
	}
	if snapshot.TotalMemory, err = collector.TotalMemory(ctx); err != nil {
		return nil, err
	}
	if mode == compute.ModeDpdk {
		if snapshot.DpdkInterfaces, err = collector.DpdkInterfaces(ctx); err != nil {
			return nil, err
		}
	}
	if snapshot.Deployed, err = collector.deployed(ctx, mode, snapshot.Containerized); err != nil {
		return nil, err
	}
	if snapshot.Hiera, err = collector.hiera(ctx, snapshot.Containerized); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (collector *Collector) deployed(ctx context.Context, mode compute.Mode, containerized bool) (DeployedParameters, error) {
	deployed := DeployedParameters{}
	var err error

	if mode == compute.ModeDpdk {
		if deployed.PmdCpus, err = collector.ovsMask(ctx, "pmd-cpu-mask"); err != nil {
			return deployed, err
		}
		if deployed.HostCpus, err = collector.ovsMask(ctx, "dpdk-lcore-mask"); err != nil {
			return deployed, err
		}
		if deployed.SocketMemory, err = collector.ovsOtherConfig(ctx, "dpdk-socket-mem"); err != nil {
			return deployed, err
		}
		extra, err := collector.ovsOtherConfig(ctx, "dpdk-extra")
		if err != nil {
			return deployed, err
		}
		deployed.MemoryChannels = ParseMemoryChannels(extra)
	}

	novaConf := novaConfFile
	if containerized {
		novaConf = containerNovaConfFile
	}
	content, err := collector.readFile(ctx, novaConf)
	if err != nil {
		return deployed, err
	}
	deployed.GuestCpus, _ = confValue(content, ini.DefaultSection, "vcpu_pin_set")
	deployed.ReservedHostMemory, _ = confValue(content, ini.DefaultSection, "reserved_host_memory_mb")

	if content, err = collector.readFile(ctx, tunedVariablesFile); err != nil {
		return deployed, err
	}
	deployed.IsolatedCpus, _ = confValue(content, ini.DefaultSection, "isolated_cores")

	if content, err = collector.readFile(ctx, grubDefaultsFile); err != nil {
		return deployed, err
	}
	grubKey := "GRUB_CMDLINE_LINUX"
	if containerized {
		grubKey = "TRIPLEO_HEAT_TEMPLATE_KERNEL_ARGS"
	}
	if cmdline, ok := confValue(content, ini.DefaultSection, grubKey); ok {
		deployed.KernelArgs = compute.ParseKernelArgs(cmdline)
		deployed.HasKernelArgs = compute.HasHugepageOrIommu(cmdline)
	}

	if content, err = collector.readFile(ctx, "/proc/cmdline"); err != nil {
		return deployed, err
	}
	deployed.Rebooted = compute.HasHugepageOrIommu(content)

	if deployed.TunedProfile, err = collector.TunedProfile(ctx); err != nil {
		return deployed, err
	}
	return deployed, nil
}

var hieraKeys = struct {
	PmdCpusJson, PmdCpusYaml, SocketMemory, MemoryChannels, GuestCpus, ReservedHostMemory string
}{
	PmdCpusJson:        "vswitch::dpdk::pmd_core_list",
	PmdCpusYaml:        "vswitch::dpdk::core_list",
	SocketMemory:       "vswitch::dpdk::socket_mem",
	MemoryChannels:     "vswitch::dpdk::memory_channels",
	GuestCpus:          "nova::compute::vcpu_pin_set",
	ReservedHostMemory: "nova::compute::reserved_host_memory",
}

// hieraString flattens a hiera value: lists are joined with commas, numbers
// are printed as is.
func hieraString(value interface{}) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case []interface{}:
		parts := []string{}
		for _, item := range typed {
			parts = append(parts, hieraString(item))
		}
		return strings.Join(parts, ",")
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", value)
}

// ParseHiera reads the service_configs hiera data, JSON on containerized
// nodes and YAML otherwise.
func ParseHiera(content string, isJson bool) (HieraParameters, error) {
	data := map[string]interface{}{}
	pmdKey := hieraKeys.PmdCpusYaml
	if isJson {
		pmdKey = hieraKeys.PmdCpusJson
		if err := json.Unmarshal([]byte(content), &data); err != nil {
			return HieraParameters{}, util.NewError(err, "cannot parse hiera data")
		}
	} else {
		raw := map[interface{}]interface{}{}
		if err := yaml.Unmarshal([]byte(content), &raw); err != nil {
			return HieraParameters{}, util.NewError(err, "cannot parse hiera data")
		}
		for key, value := range raw {
			data[fmt.Sprintf("%v", key)] = value
		}
	}
	return HieraParameters{
		PmdCpus:            hieraString(data[pmdKey]),
		SocketMemory:       hieraString(data[hieraKeys.SocketMemory]),
		MemoryChannels:     hieraString(data[hieraKeys.MemoryChannels]),
		GuestCpus:          hieraString(data[hieraKeys.GuestCpus]),
		ReservedHostMemory: hieraString(data[hieraKeys.ReservedHostMemory]),
	}, nil
}

func (collector *Collector) hiera(ctx context.Context, containerized bool) (HieraParameters, error) {
	filename := hieraYamlFile
	if containerized {
		filename = hieraJsonFile
	}
	content, err := collector.readFile(ctx, filename)
	if err != nil {
		return HieraParameters{}, err
	}
	if strings.TrimSpace(content) == "" {
		collector.logger.Warn().Str("file", filename).Msg("no hiera data found")
		return HieraParameters{}, nil
	}
	return ParseHiera(content, containerized)
}

// FormatCpus renders a scraped cpu list for reports, "" when unset.
func FormatCpus(cpus []int) string {
	if len(cpus) == 0 {
		return ""
	}
	return cpulist.Format(cpus)
}
