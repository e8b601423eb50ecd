package validator

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"nfvpe/derive-params/compute"

	"github.com/hashicorp/go-set/v3"
)

// coreUsage holds, per numa node, the ids of the physical cores a cpu list
// touches.
type coreUsage map[int]*set.Set[int]

func (usage coreUsage) count(node int) int {
	cores, ok := usage[node]
	if !ok {
		return 0
	}
	return cores.Size()
}

// overlap is a list of cpus another cpu list must not share threads with.
type overlap struct {
	message string
	cpus    []int
}

func formatIds(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// checkCpuList verifies that cpus only holds complete cores and shares
// nothing with the overlaps. Problems are returned one per line.
func checkCpuList(cores compute.Cores, cpus []int, label string, overlaps ...overlap) (string, coreUsage) {
	msg := ""
	usage := coreUsage{}
	selected := set.From(cpus)
	duplicates := make([][]int, len(overlaps))
	others := make([]*set.Set[int], len(overlaps))
	for idx, other := range overlaps {
		others[idx] = set.From(other.cpus)
	}

	for _, cpu := range cpus {
		for idx, other := range others {
			if other.Contains(cpu) {
				duplicates[idx] = append(duplicates[idx], cpu)
			}
		}
		core, ok := cores.Owner(cpu)
		if !ok {
			msg += fmt.Sprintf("Thread %d does not exist on the node.\n", cpu)
			continue
		}
		if _, ok := usage[core.NumaNode]; !ok {
			usage[core.NumaNode] = set.New[int](0)
		}
		usage[core.NumaNode].Insert(core.CoreId)
		if !selected.ContainsSlice(core.ThreadSiblings) {
			msg += fmt.Sprintf("Missing thread siblings for thread: %d in %s,\n thread siblings: %s.\n",
				cpu, label, formatIds(core.ThreadSiblings))
		}
	}
	for idx, other := range overlaps {
		if len(duplicates[idx]) > 0 {
			msg += fmt.Sprintf("%s: %s.\n", other.message, formatIds(duplicates[idx]))
		}
	}
	return msg, usage
}

// missingNodes reports numa nodes left without any core of the list.
func missingNodes(numaNodes []int, usage coreUsage, label string) string {
	msg := ""
	if len(usage) == 0 {
		return msg
	}
	for _, node := range numaNodes {
		if usage.count(node) == 0 {
			msg += fmt.Sprintf("Missing physical cores for NUMA node: '%d' in %s.\n", node, label)
		}
	}
	return msg
}

// pmdCoreCounts compares the pmd cores of every numa node with the number
// asked for. Nodes without dpdk nics need at least one core.
func pmdCoreCounts(numaNodes, dpdkNodes []int, usage coreUsage, expected int) string {
	msg := ""
	if len(usage) == 0 {
		return msg
	}
	for _, node := range numaNodes {
		count := usage.count(node)
		switch {
		case slices.Contains(dpdkNodes, node) && count < expected:
			msg += fmt.Sprintf("Number of physical cores for DPDK NIC NUMA node(%d) is less than\n recommended cores '%d'.\n", node, expected)
		case slices.Contains(dpdkNodes, node) && count > expected:
			msg += fmt.Sprintf("Number of physical cores for DPDK NIC NUMA node(%d) is greater\n than recommended cores '%d'.\n", node, expected)
		case !slices.Contains(dpdkNodes, node) && count == 0:
			msg += fmt.Sprintf("Missing physical cores for NUMA node: '%d' in PMD cores.\n", node)
		}
	}
	return msg
}
