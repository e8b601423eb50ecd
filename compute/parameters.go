package compute

import (
	"fmt"
	"strings"
)

const (
	DefaultMemoryChannels       = 4
	DefaultReservedHostMemoryMb = 4096
)

// ParameterSet is the outcome of one derivation, before formatting.
// PmdCpus, HostCpus, SocketMemory and MemoryChannels are only meaningful
// for dpdk nodes.
type ParameterSet struct {
	Mode                 Mode
	PmdCpus              []int
	HostCpus             []int
	SocketMemory         []int
	MemoryChannels       int
	GuestCpus            []int
	ReservedHostMemoryMb int
	IsolatedCpus         []int
	KernelArgs           KernelArgs
}

// SocketMemoryString joins socket memory values, e.g. "1024,3072".
func (params *ParameterSet) SocketMemoryString() string {
	parts := make([]string, 0, len(params.SocketMemory))
	for _, memory := range params.SocketMemory {
		parts = append(parts, fmt.Sprintf("%d", memory))
	}
	return strings.Join(parts, ",")
}

// ParameterNames are the heat parameter names of a release.
type ParameterNames struct {
	PmdCpus            string
	HostCpus           string
	SocketMemory       string
	MemoryChannels     string
	GuestCpus          string
	ReservedHostMemory string
	IsolatedCpus       string
	KernelArgs         string
}

// LegacyParameterNames are used up to OSP 11.
var LegacyParameterNames = ParameterNames{
	PmdCpus:            "NeutronDpdkCoreList",
	HostCpus:           "HostCpusList",
	SocketMemory:       "NeutronDpdkSocketMemory",
	MemoryChannels:     "NeutronDpdkMemoryChannels",
	GuestCpus:          "NovaVcpuPinSet",
	ReservedHostMemory: "NovaReservedHostMemory",
	IsolatedCpus:       "HostIsolatedCoreList",
	KernelArgs:         "ComputeKernelArgs",
}

var CurrentParameterNames = ParameterNames{
	PmdCpus:            "OvsPmdCoreList",
	HostCpus:           "HostCpusList",
	SocketMemory:       "OvsDpdkSocketMemory",
	MemoryChannels:     "OvsDpdkMemoryChannels",
	GuestCpus:          "NovaVcpuPinSet",
	ReservedHostMemory: "NovaReservedHostMemory",
	IsolatedCpus:       "IsolCpusList",
	KernelArgs:         "KernelArgs",
}

func NewParameterNames(style string) (ParameterNames, error) {
	switch style {
	case "", "legacy":
		return LegacyParameterNames, nil
	case "current":
		return CurrentParameterNames, nil
	}
	return ParameterNames{}, fmt.Errorf("unknown parameter names style '%s'", style)
}

// ParameterNamesForRelease picks the names from the content of
// /etc/rhosp-release.
func ParameterNamesForRelease(release string) ParameterNames {
	if strings.Contains(release, "10") || strings.Contains(release, "11") {
		return LegacyParameterNames
	}
	return CurrentParameterNames
}
