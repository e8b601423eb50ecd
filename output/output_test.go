package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"nfvpe/derive-params/compute"

	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"
)

func dpdkParameters() *compute.ParameterSet {
	return &compute.ParameterSet{
		Mode:                 compute.ModeDpdk,
		PmdCpus:              []int{1, 9, 5, 13, 6, 14},
		HostCpus:             []int{0, 8, 4, 12},
		SocketMemory:         []int{2048, 3072},
		MemoryChannels:       4,
		GuestCpus:            []int{2, 10, 3, 11, 7, 15},
		ReservedHostMemoryMb: 4096,
		IsolatedCpus:         []int{1, 9, 5, 13, 6, 14, 2, 10, 3, 11, 7, 15},
		KernelArgs: compute.KernelArgs{
			DefaultHugepagesSize: "1GB",
			HugepagesSize:        "1G",
			Hugepages:            62,
			IntelIommu:           "on",
		},
	}
}

func TestWriteHeat(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, Write(buf, FormatHeat, dpdkParameters(), compute.LegacyParameterNames))
	expected := `NeutronDpdkCoreList: "'1,5-6,9,13-14'"
HostCpusList: "'0,4,8,12'"
NeutronDpdkSocketMemory: "2048,3072"
# Memory channels recommended value (4) is hard coded here.
# Operator can use the memory channels value based on hardware manual.
NeutronDpdkMemoryChannels: "4"
NovaVcpuPinSet: ['2-3','7','10-11','15']
NovaReservedHostMemory: "4096"
HostIsolatedCoreList: "1-3,5-7,9-11,13-15"
ComputeKernelArgs: "default_hugepagesz=1GB hugepagesz=1G hugepages=62 intel_iommu=on"
`
	require.Equal(t, expected, buf.String())
}

func TestWriteHeatSriov(t *testing.T) {
	params := &compute.ParameterSet{
		Mode:                 compute.ModeSriov,
		HostCpus:             []int{0, 8},
		GuestCpus:            []int{1, 9, 2, 10},
		ReservedHostMemoryMb: 4096,
		IsolatedCpus:         []int{1, 9, 2, 10},
		KernelArgs:           compute.KernelArgs{DefaultHugepagesSize: "1GB", HugepagesSize: "1G", Hugepages: 4},
	}
	buf := &bytes.Buffer{}
	require.NoError(t, Write(buf, FormatHeat, params, compute.CurrentParameterNames))
	expected := `NovaVcpuPinSet: "1-2,9-10"
NovaReservedHostMemory: "4096"
IsolCpusList: "1-2,9-10"
KernelArgs: "default_hugepagesz=1GB hugepagesz=1G hugepages=4"
`
	require.Equal(t, expected, buf.String())
}

func TestWriteYaml(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, Write(buf, FormatYaml, dpdkParameters(), compute.CurrentParameterNames))

	document := yaml.MapSlice{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &document))
	keys := []string{}
	values := map[string]interface{}{}
	for _, item := range document {
		keys = append(keys, item.Key.(string))
		values[item.Key.(string)] = item.Value
	}
	require.Equal(t, []string{
		"OvsPmdCoreList", "HostCpusList", "OvsDpdkSocketMemory", "OvsDpdkMemoryChannels",
		"NovaVcpuPinSet", "NovaReservedHostMemory", "IsolCpusList", "KernelArgs",
	}, keys)
	require.Equal(t, "1,5-6,9,13-14", values["OvsPmdCoreList"])
	require.Equal(t, 4, values["OvsDpdkMemoryChannels"])
	require.Equal(t, 4096, values["NovaReservedHostMemory"])
	require.Equal(t, "default_hugepagesz=1GB hugepagesz=1G hugepages=62 intel_iommu=on", values["KernelArgs"])
}

func TestWriteJson(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, Write(buf, FormatJson, dpdkParameters(), compute.LegacyParameterNames))

	document := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &document))
	require.Equal(t, "2-3,7,10-11,15", document["NovaVcpuPinSet"])
	require.Equal(t, float64(4096), document["NovaReservedHostMemory"])
	require.Equal(t, map[string]interface{}{
		"default_hugepagesz": "1GB",
		"hugepagesz":         "1G",
		"hugepages":          "62",
		"intel_iommu":        "on",
	}, document["ComputeKernelArgs"])
}

func TestWriteUnknownFormat(t *testing.T) {
	require.Error(t, Write(&bytes.Buffer{}, NewFormat("xml"), dpdkParameters(), compute.LegacyParameterNames))
}

func TestWriteNumaSummary(t *testing.T) {
	derivation := &compute.Derivation{
		Facts: &compute.HardwareFacts{Cpus: compute.Cores{
			{NumaNode: 0, CoreId: 0, ThreadSiblings: []int{0, 2}},
			{NumaNode: 1, CoreId: 1, ThreadSiblings: []int{1, 3}},
		}},
		NumaNodes:  []int{0, 1},
		DpdkNics:   []compute.DpdkNicNumaInfo{{NicId: "nic2", ResolvedName: "p1p1", NumaNode: 1, Mtu: 9000}},
		Parameters: &compute.ParameterSet{SocketMemory: []int{1024, 3072}},
	}
	buf := &bytes.Buffer{}
	require.NoError(t, WriteNumaSummary(buf, derivation))
	require.True(t, strings.HasPrefix(buf.String(), "NIC's and NUMA node mapping:\n"))
	require.Contains(t, buf.String(), "NIC nic2 (p1p1) => NUMA node 1, pCPU's: [1], socket memory: 3.0 GiB\n")
}

func TestFormatRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatHeat, FormatYaml, FormatJson} {
		require.Equal(t, format, NewFormat(format.String()))
	}
}
