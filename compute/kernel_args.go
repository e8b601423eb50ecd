package compute

import (
	"strconv"
	"strings"

	"nfvpe/derive-params/util"
)

const (
	hostReservedMemoryGb = 4

	DefaultHugepagesSize = "1GB"
	HugepagesSize        = "1G"
)

// KernelArgs are the boot parameters enabling 1GB static hugepages and the
// iommu. Empty IntelIommu or Iommu means the argument is absent.
type KernelArgs struct {
	DefaultHugepagesSize string
	HugepagesSize        string
	Hugepages            int
	IntelIommu           string
	Iommu                string
}

// KernelArgs converts a share of the host memory, minus 4GB kept for the
// host, into 1GB hugepages. The page count is truncated.
func (facts *HardwareFacts) KernelArgs(hugepagePercent float64, iommuPt bool) (KernelArgs, error) {
	if !facts.HasCpuFlag("pdpe1gb") {
		return KernelArgs{}, util.NewError(ErrUnsupportedHugepageSize, "cpu flags do not contain pdpe1gb")
	}
	available := facts.TotalMemoryMb()/1024 - hostReservedMemoryGb
	args := KernelArgs{
		DefaultHugepagesSize: DefaultHugepagesSize,
		HugepagesSize:        HugepagesSize,
		Hugepages:            int(float64(available) * (hugepagePercent / 100)),
	}
	if facts.IsIntel() {
		args.IntelIommu = "on"
	}
	if iommuPt {
		args.Iommu = "pt"
	}
	return args, nil
}

func (args KernelArgs) String() string {
	parts := []string{
		"default_hugepagesz=" + args.DefaultHugepagesSize,
		"hugepagesz=" + args.HugepagesSize,
		"hugepages=" + strconv.Itoa(args.Hugepages),
	}
	if args.IntelIommu != "" {
		parts = append(parts, "intel_iommu="+args.IntelIommu)
	}
	if args.Iommu != "" {
		parts = append(parts, "iommu="+args.Iommu)
	}
	return strings.Join(parts, " ")
}

func (args KernelArgs) Map() map[string]string {
	result := map[string]string{
		"default_hugepagesz": args.DefaultHugepagesSize,
		"hugepagesz":         args.HugepagesSize,
		"hugepages":          strconv.Itoa(args.Hugepages),
	}
	if args.IntelIommu != "" {
		result["intel_iommu"] = args.IntelIommu
	}
	if args.Iommu != "" {
		result["iommu"] = args.Iommu
	}
	return result
}

// Matches compares the arguments that decide the hugepage and iommu setup.
// iommu=pt is advisory and ignored.
func (args KernelArgs) Matches(other KernelArgs) bool {
	return args.IntelIommu == other.IntelIommu &&
		args.DefaultHugepagesSize == other.DefaultHugepagesSize &&
		args.HugepagesSize == other.HugepagesSize &&
		args.Hugepages == other.Hugepages
}

// ParseKernelArgs picks the hugepage and iommu arguments out of a kernel
// command line, ignoring everything else. A hugepages count that is not a
// number is reported as -1.
func ParseKernelArgs(cmdline string) KernelArgs {
	args := KernelArgs{}
	for _, field := range strings.Fields(strings.Trim(cmdline, `"' `)) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "default_hugepagesz":
			args.DefaultHugepagesSize = value
		case "hugepagesz":
			args.HugepagesSize = value
		case "hugepages":
			count, err := strconv.Atoi(value)
			if err != nil {
				count = -1
			}
			args.Hugepages = count
		case "intel_iommu":
			args.IntelIommu = value
		case "iommu":
			args.Iommu = value
		}
	}
	return args
}

// HasHugepageOrIommu reports whether a kernel command line carries any
// hugepage or iommu argument, i.e. whether a node booted with them.
func HasHugepageOrIommu(cmdline string) bool {
	for _, field := range strings.Fields(cmdline) {
		if strings.Contains(field, "hugepages") || strings.Contains(field, "iommu") {
			return true
		}
	}
	return false
}
