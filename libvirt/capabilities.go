package libvirt

import (
	"fmt"
	"slices"

	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/cpulist"
	"nfvpe/derive-params/util"

	libvirtxml "github.com/libvirt/libvirt-go-xml"
)

// Topology is the part of the host capabilities that cpu partitioning
// needs.
type Topology struct {
	Cpus        compute.Cores
	TotalMemory compute.Size
	Iommu       bool
	CpuVendor   string
	CpuModel    string
}

func ComputeSizeFromLibvirtSize(unit string, value uint64) compute.Size {
	if unit == "" {
		unit = "KiB"
	}
	return compute.NewSize(value, compute.NewSizeUnit(unit))
}

type coreKey struct {
	node int
	core int
}

// ParseCapabilities reads the numa cells of a `virsh capabilities`
// document. Threads are grouped into cores by numa cell and core_id.
func ParseCapabilities(capsXml string) (*Topology, error) {
	capsConfig := &libvirtxml.Caps{}
	if err := capsConfig.Unmarshal(capsXml); err != nil {
		return nil, util.NewError(err, "cannot parse capabilities")
	}
	topology := &Topology{Cpus: compute.Cores{}}
	if capsConfig.Host.IOMMU != nil {
		topology.Iommu = capsConfig.Host.IOMMU.Support == "yes"
	}
	if capsConfig.Host.CPU != nil {
		topology.CpuVendor = capsConfig.Host.CPU.Vendor
		topology.CpuModel = capsConfig.Host.CPU.Model
	}
	if capsConfig.Host.NUMA == nil || capsConfig.Host.NUMA.Cells == nil {
		return nil, util.NewError(compute.ErrMissingTopologyData, "capabilities have no numa cells")
	}

	cores := map[coreKey]*compute.Core{}
	order := []coreKey{}
	totalMemory := compute.NewSize(0, compute.SizeUnitB)
	for _, cell := range capsConfig.Host.NUMA.Cells.Cells {
		if cell.Memory != nil {
			totalMemory = totalMemory.Add(ComputeSizeFromLibvirtSize(cell.Memory.Unit, cell.Memory.Size))
		}
		if cell.CPUS == nil {
			continue
		}
		for _, cpu := range cell.CPUS.CPUs {
			if cpu.CoreID == nil {
				return nil, util.NewError(compute.ErrMissingTopologyData, "cpu %d has no core_id", cpu.ID)
			}
			siblings := []int{cpu.ID}
			if cpu.Siblings != "" {
				parsed, err := cpulist.Parse(cpu.Siblings)
				if err != nil {
					return nil, util.NewError(err, "invalid siblings of cpu %d", cpu.ID)
				}
				siblings = parsed
			}
			key := coreKey{node: cell.ID, core: *cpu.CoreID}
			core, exists := cores[key]
			if !exists {
				core = &compute.Core{NumaNode: cell.ID, CoreId: *cpu.CoreID}
				cores[key] = core
				order = append(order, key)
			}
			for _, sibling := range siblings {
				if !slices.Contains(core.ThreadSiblings, sibling) {
					core.ThreadSiblings = append(core.ThreadSiblings, sibling)
				}
			}
		}
	}
	if len(order) == 0 {
		return nil, util.NewError(compute.ErrMissingTopologyData, "capabilities have no cpus")
	}
	for _, key := range order {
		core := cores[key]
		slices.Sort(core.ThreadSiblings)
		topology.Cpus = append(topology.Cpus, *core)
	}
	topology.Cpus = compute.SortCores(topology.Cpus)
	topology.TotalMemory = totalMemory
	return topology, nil
}

func (topology *Topology) String() string {
	return fmt.Sprintf("%d cores on %d numa nodes, %d MB", len(topology.Cpus), len(topology.Cpus.NumaNodes()), topology.TotalMemory.M())
}
