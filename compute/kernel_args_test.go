package compute

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func kernelArgsFacts(flags []string, model string, memoryMb int) *HardwareFacts {
	return &HardwareFacts{
		CpuFlags:     flags,
		CpuModelName: model,
		TotalMemory:  NewSize(uint64(memoryMb), SizeUnitM),
	}
}

func TestKernelArgs(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		memory  int
		percent float64
		iommuPt bool
		want    string
	}{
		{
			name:    "intel half",
			model:   "Intel(R) Xeon(R) CPU E5-2699 v4 @ 2.20GHz",
			memory:  131072,
			percent: 50,
			want:    "default_hugepagesz=1GB hugepagesz=1G hugepages=62 intel_iommu=on",
		},
		{
			name:    "amd",
			model:   "AMD EPYC 7551",
			memory:  65536,
			percent: 50,
			want:    "default_hugepagesz=1GB hugepagesz=1G hugepages=30",
		},
		{
			name:    "truncated with iommu pt",
			model:   "Intel(R) Xeon(R)",
			memory:  32768,
			percent: 33,
			iommuPt: true,
			want:    "default_hugepagesz=1GB hugepagesz=1G hugepages=9 intel_iommu=on iommu=pt",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := kernelArgsFacts([]string{"fpu", "pdpe1gb"}, tt.model, tt.memory)
			args, err := facts.KernelArgs(tt.percent, tt.iommuPt)
			require.NoError(t, err)
			require.Equal(t, tt.want, args.String())
		})
	}
}

func TestKernelArgsWithout1GbPages(t *testing.T) {
	_, err := kernelArgsFacts([]string{"fpu", "pse"}, "Intel", 131072).KernelArgs(50, false)
	if !errors.Is(err, ErrUnsupportedHugepageSize) {
		t.Errorf("KernelArgs() error = %v, want ErrUnsupportedHugepageSize", err)
	}
}

func TestKernelArgsMap(t *testing.T) {
	args := KernelArgs{DefaultHugepagesSize: "1GB", HugepagesSize: "1G", Hugepages: 8}
	require.Equal(t, map[string]string{
		"default_hugepagesz": "1GB",
		"hugepagesz":         "1G",
		"hugepages":          "8",
	}, args.Map())
}

func TestParseKernelArgs(t *testing.T) {
	cmdline := `BOOT_IMAGE=/vmlinuz ro default_hugepagesz=1GB hugepagesz=1G hugepages=62 intel_iommu=on iommu=pt isolcpus=1-3`
	args := ParseKernelArgs(cmdline)
	require.Equal(t, KernelArgs{
		DefaultHugepagesSize: "1GB",
		HugepagesSize:        "1G",
		Hugepages:            62,
		IntelIommu:           "on",
		Iommu:                "pt",
	}, args)

	derived := KernelArgs{DefaultHugepagesSize: "1GB", HugepagesSize: "1G", Hugepages: 62, IntelIommu: "on"}
	require.True(t, derived.Matches(args))
	require.False(t, derived.Matches(ParseKernelArgs(`"hugepages=x"`)))
	require.Equal(t, -1, ParseKernelArgs("hugepages=x").Hugepages)
}

func TestHasHugepageOrIommu(t *testing.T) {
	require.True(t, HasHugepageOrIommu("ro quiet hugepages=4"))
	require.True(t, HasHugepageOrIommu("intel_iommu=on"))
	require.False(t, HasHugepageOrIommu("BOOT_IMAGE=/vmlinuz ro quiet"))
}
