package compute

import (
	"encoding/json"
	"slices"
	"sort"
	"strings"

	"nfvpe/derive-params/util"
)

// Core is a physical core with the logical cpus (hyperthreads) it carries.
type Core struct {
	NumaNode       int
	CoreId         int
	ThreadSiblings []int
}

type Nic struct {
	Name     string
	NumaNode int
}

type Interface struct {
	Name       string
	HasCarrier bool
}

// HardwareFacts is the normalized view of one compute host.
// Cpus are kept ordered by (NumaNode, CoreId), see SortCores.
type HardwareFacts struct {
	Interfaces   []Interface
	Cpus         Cores
	Nics         []Nic
	CpuFlags     []string
	CpuModelName string
	TotalMemory  Size
}

func (facts *HardwareFacts) TotalMemoryMb() int {
	return int(facts.TotalMemory.M())
}

func (facts *HardwareFacts) HasCpuFlag(flag string) bool {
	return slices.Contains(facts.CpuFlags, flag)
}

func (facts *HardwareFacts) IsIntel() bool {
	return strings.HasPrefix(facts.CpuModelName, "Intel")
}

// SortCores orders cores by numa node then core id. The order is stable so
// cores reported twice keep their source order.
func SortCores(cores Cores) Cores {
	sorted := make(Cores, len(cores))
	copy(sorted, cores)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].NumaNode != sorted[j].NumaNode {
			return sorted[i].NumaNode < sorted[j].NumaNode
		}
		return sorted[i].CoreId < sorted[j].CoreId
	})
	return sorted
}

type introspectionInterface struct {
	Name       string `json:"name"`
	HasCarrier bool   `json:"has_carrier"`
}

type introspectionNic struct {
	Name     string `json:"name"`
	NumaNode *int   `json:"numa_node"`
}

type introspectionCpu struct {
	Cpu            int   `json:"cpu"`
	NumaNode       *int  `json:"numa_node"`
	ThreadSiblings []int `json:"thread_siblings"`
}

type introspectionDocument struct {
	Inventory *struct {
		Interfaces []introspectionInterface `json:"interfaces"`
		Memory     *struct {
			PhysicalMb *uint64 `json:"physical_mb"`
		} `json:"memory"`
		Cpu *struct {
			ModelName string   `json:"model_name"`
			Flags     []string `json:"flags"`
		} `json:"cpu"`
	} `json:"inventory"`
	NumaTopology *struct {
		Nics []introspectionNic `json:"nics"`
		Cpus []introspectionCpu `json:"cpus"`
	} `json:"numa_topology"`
}

// ParseIntrospection builds HardwareFacts from a bare metal introspection
// document. Inventory cpu and memory data are mandatory; numa topology
// absence is reported later by the accessors that need it.
func ParseIntrospection(content []byte) (*HardwareFacts, error) {
	doc := introspectionDocument{}
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, util.NewError(err, "cannot parse introspection data")
	}
	if doc.Inventory == nil {
		return nil, util.NewError(ErrMissingTopologyData, "introspection data does not have inventory")
	}
	if doc.Inventory.Cpu == nil {
		return nil, util.NewError(ErrMissingTopologyData, "introspection data does not have inventory.cpu")
	}
	if doc.Inventory.Memory == nil || doc.Inventory.Memory.PhysicalMb == nil {
		return nil, util.NewError(ErrMissingTopologyData, "introspection data does not have inventory.memory.physical_mb")
	}

	facts := &HardwareFacts{
		CpuFlags:     doc.Inventory.Cpu.Flags,
		CpuModelName: doc.Inventory.Cpu.ModelName,
		TotalMemory:  NewSize(*doc.Inventory.Memory.PhysicalMb, SizeUnitM),
		Interfaces:   []Interface{},
		Nics:         []Nic{},
		Cpus:         Cores{},
	}
	for _, iface := range doc.Inventory.Interfaces {
		facts.Interfaces = append(facts.Interfaces, Interface{Name: iface.Name, HasCarrier: iface.HasCarrier})
	}
	if doc.NumaTopology == nil {
		return facts, nil
	}
	for _, nic := range doc.NumaTopology.Nics {
		if nic.NumaNode == nil {
			return nil, util.NewError(ErrMissingTopologyData, "numa_topology.nics entry %q has no numa_node", nic.Name)
		}
		facts.Nics = append(facts.Nics, Nic{Name: nic.Name, NumaNode: *nic.NumaNode})
	}
	cores := Cores{}
	for _, cpu := range doc.NumaTopology.Cpus {
		if cpu.NumaNode == nil {
			return nil, util.NewError(ErrMissingTopologyData, "numa_topology.cpus entry %d has no numa_node", cpu.Cpu)
		}
		if len(cpu.ThreadSiblings) == 0 {
			return nil, util.NewError(ErrMissingTopologyData, "numa_topology.cpus entry %d has no thread_siblings", cpu.Cpu)
		}
		cores = append(cores, Core{NumaNode: *cpu.NumaNode, CoreId: cpu.Cpu, ThreadSiblings: cpu.ThreadSiblings})
	}
	facts.Cpus = SortCores(cores)
	return facts, nil
}
