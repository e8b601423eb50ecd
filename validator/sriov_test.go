package validator

import (
	"bytes"
	"testing"

	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/livehost"

	"github.com/stretchr/testify/require"
)

func derivedSriov() *compute.ParameterSet {
	guests := []int{2, 3, 4, 5, 6, 7, 10, 11, 12, 13, 14, 15}
	return &compute.ParameterSet{
		Mode:                 compute.ModeSriov,
		HostCpus:             []int{0, 8, 1, 9},
		GuestCpus:            guests,
		ReservedHostMemoryMb: compute.DefaultReservedHostMemoryMb,
		IsolatedCpus:         guests,
		KernelArgs:           compute.ParseKernelArgs("default_hugepagesz=1GB hugepagesz=1G hugepages=14 intel_iommu=on"),
	}
}

func TestCompareSriov(t *testing.T) {
	snapshot := &livehost.Snapshot{
		Host: "compute-0",
		Deployed: livehost.DeployedParameters{
			GuestCpus:     "['10-15','2-7']",
			KernelArgs:    compute.ParseKernelArgs("default_hugepagesz=1GB hugepagesz=1G hugepages=12 intel_iommu=on"),
			HasKernelArgs: true,
		},
		Hiera: livehost.HieraParameters{ReservedHostMemory: "4096"},
	}
	comparison := CompareSriov(derivedSriov(), snapshot, compute.LegacyParameterNames)
	require.Equal(t, []string{
		"HostIsolatedCoreList - derived: 2-7,10-15, deployed: <not configured>",
		"ComputeKernelArgs - derived: default_hugepagesz=1GB hugepagesz=1G hugepages=14 intel_iommu=on, deployed: default_hugepagesz=1GB hugepagesz=1G hugepages=12 intel_iommu=on",
	}, comparison.Differences)
	require.Equal(t, []string{
		"NovaVcpuPinSet - derived: 2-7,10-15, deployed: ['10-15','2-7']",
		"NovaReservedHostMemory - derived: 4096, deployed: 4096",
	}, comparison.NoDifferences)
	require.Error(t, comparison.Err())
}

func TestCompareSriovNoDifferences(t *testing.T) {
	snapshot := &livehost.Snapshot{
		Host: "compute-0",
		Deployed: livehost.DeployedParameters{
			GuestCpus:          "2-7,10-15",
			ReservedHostMemory: "4096",
			IsolatedCpus:       "2-7,10-15",
			KernelArgs:         compute.ParseKernelArgs("default_hugepagesz=1GB hugepagesz=1G hugepages=14 intel_iommu=on iommu=pt"),
			HasKernelArgs:      true,
		},
	}
	comparison := CompareSriov(derivedSriov(), snapshot, compute.CurrentParameterNames)
	require.Empty(t, comparison.Differences)
	require.Len(t, comparison.NoDifferences, 4)
	require.NoError(t, comparison.Err())

	buf := &bytes.Buffer{}
	require.NoError(t, comparison.Write(buf))
	require.Contains(t, buf.String(), "Differences:\n\nNo differences:\n")
}

func TestCompareSriovNothingDeployed(t *testing.T) {
	comparison := CompareSriov(derivedSriov(), &livehost.Snapshot{Host: "compute-0"}, compute.LegacyParameterNames)
	require.Len(t, comparison.Differences, 4)
	for _, line := range comparison.Differences {
		require.Contains(t, line, "deployed: <not configured>")
	}

	snapshot := &livehost.Snapshot{Deployed: livehost.DeployedParameters{GuestCpus: "2-x"}}
	comparison = CompareSriov(derivedSriov(), snapshot, compute.LegacyParameterNames)
	require.Equal(t, "NovaVcpuPinSet - derived: 2-7,10-15, deployed: 2-x", comparison.Differences[0])
}
