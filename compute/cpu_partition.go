package compute

import (
	"slices"

	"github.com/hashicorp/go-set/v3"

	"nfvpe/derive-params/util"
)

// CpuPartition splits the logical cpus of a host between the host itself,
// the dpdk poll mode driver threads and the guests.
//
// HostCpus and PmdCpus never overlap, GuestCpus holds everything else and
// IsolatedCpus is PmdCpus followed by GuestCpus.
type CpuPartition struct {
	HostCpus     []int `json:"host_cpus"`
	PmdCpus      []int `json:"pmd_cpus"`
	GuestCpus    []int `json:"guest_cpus"`
	IsolatedCpus []int `json:"isolated_cpus"`
}

// HostCpus picks, for every numa node, the core holding the lowest thread of
// the node and reserves all of its threads. Only the first such core in
// core order counts.
func HostCpus(cores Cores) ([]int, error) {
	threads, err := cores.ThreadsByNumaNode()
	if err != nil {
		return nil, err
	}
	host := []int{}
	for _, node := range cores.NumaNodes() {
		nodeMin := slices.Min(threads[node])
		for _, core := range cores.OnNode(node) {
			if slices.Contains(core.ThreadSiblings, nodeMin) {
				host = append(host, core.ThreadSiblings...)
				break
			}
		}
	}
	return host, nil
}

// PmdCpus allocates whole cores to poll mode driver threads on each of the
// given numa nodes. Nodes with a dpdk nic get coresPerDpdkNode cores, the
// others one. The host core of a node is never used. A node without enough
// cores yields fewer cpus than asked for.
func PmdCpus(cores Cores, numaNodes []int, dpdkNics []DpdkNicNumaInfo, coresPerDpdkNode int) ([]int, error) {
	threads, err := cores.ThreadsByNumaNode()
	if err != nil {
		return nil, err
	}
	dpdkNodes := set.From(DpdkNumaNodes(dpdkNics))

	pmd := []int{}
	for _, node := range numaNodes {
		nodeThreads, ok := threads[node]
		if !ok {
			return nil, util.NewError(ErrMissingTopologyData, "no cpus found on numa node %d", node)
		}
		remaining := 1
		if dpdkNodes.Contains(node) {
			remaining = coresPerDpdkNode
		}
		nodeMin := slices.Min(nodeThreads)
		for _, core := range cores.OnNode(node) {
			if slices.Contains(core.ThreadSiblings, nodeMin) {
				continue
			}
			pmd = append(pmd, core.ThreadSiblings...)
			remaining--
			if remaining == 0 {
				break
			}
		}
	}
	return pmd, nil
}

// GuestCpus returns every thread, in core order, that is not excluded.
func GuestCpus(cores Cores, excluded ...[]int) []int {
	skip := set.New[int](0)
	for _, ids := range excluded {
		skip.InsertSlice(ids)
	}
	guests := []int{}
	for _, thread := range cores.Threads() {
		if !skip.Contains(thread) {
			guests = append(guests, thread)
		}
	}
	return guests
}

func newCpuPartition(cores Cores, host, pmd []int) *CpuPartition {
	guests := GuestCpus(cores, pmd, host)
	isolated := make([]int, 0, len(pmd)+len(guests))
	isolated = append(isolated, pmd...)
	isolated = append(isolated, guests...)
	return &CpuPartition{
		HostCpus:     host,
		PmdCpus:      pmd,
		GuestCpus:    guests,
		IsolatedCpus: isolated,
	}
}

// DpdkCpuPartition partitions the host cpus for an OVS-DPDK compute node.
func DpdkCpuPartition(cores Cores, numaNodes []int, dpdkNics []DpdkNicNumaInfo, params AllocationParams) (*CpuPartition, error) {
	pmd, err := PmdCpus(cores, numaNodes, dpdkNics, params.PmdCoresPerDpdkNumaNode)
	if err != nil {
		return nil, util.NewError(err, "cannot allocate pmd cpus")
	}
	host, err := HostCpus(cores)
	if err != nil {
		return nil, util.NewError(err, "cannot allocate host cpus")
	}
	return newCpuPartition(cores, host, pmd), nil
}

// SriovCpuPartition partitions the host cpus for an SR-IOV compute node,
// where no pmd threads exist.
func SriovCpuPartition(cores Cores) (*CpuPartition, error) {
	host, err := HostCpus(cores)
	if err != nil {
		return nil, util.NewError(err, "cannot allocate host cpus")
	}
	return newCpuPartition(cores, host, []int{}), nil
}

// Sorted returns a copy with every list in ascending order.
func (p *CpuPartition) Sorted() *CpuPartition {
	sorted := func(ids []int) []int {
		result := slices.Clone(ids)
		slices.Sort(result)
		return result
	}
	return &CpuPartition{
		HostCpus:     sorted(p.HostCpus),
		PmdCpus:      sorted(p.PmdCpus),
		GuestCpus:    sorted(p.GuestCpus),
		IsolatedCpus: sorted(p.IsolatedCpus),
	}
}
