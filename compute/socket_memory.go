package compute

import (
	"math"
	"slices"
)

const (
	DefaultMinimumSocketMemory = 1500

	socketMemoryOverhead = 800
	socketMemoryBuffers  = 4096 * 64
	socketMemoryMargin   = 512
)

// RoundupMtu rounds an MTU up to the next multiple of 1024 bytes,
// e.g. 9000 -> 9216.
func RoundupMtu(mtu int) int {
	return int(math.Ceil(float64(mtu)/1024)) * 1024
}

// NodeSocketMemory sizes the hugepage socket memory (MB) of one numa node
// from the distinct MTUs of the dpdk nics attached to it. Nodes without
// dpdk nics get the minimum. The result is a whole number of GB.
func NodeSocketMemory(node int, dpdkNics []DpdkNicNumaInfo, minimum int) int {
	mtus := []int{}
	memory := 0
	for _, nic := range dpdkNics {
		if nic.NumaNode != node || slices.Contains(mtus, nic.Mtu) {
			continue
		}
		mtus = append(mtus, nic.Mtu)
		memory += (RoundupMtu(nic.Mtu) + socketMemoryOverhead) * socketMemoryBuffers / (1024 * 1024)
	}

	if memory == 0 {
		memory = minimum
	} else {
		memory += socketMemoryMargin
	}

	gb := memory / 1024
	if memory%1024 > 0 {
		gb++
	}
	return gb * 1024
}

// SocketMemory returns one socket memory value per numa node, in the order
// of numaNodes.
func SocketMemory(numaNodes []int, dpdkNics []DpdkNicNumaInfo, minimum int) []int {
	memory := make([]int, 0, len(numaNodes))
	for _, node := range numaNodes {
		memory = append(memory, NodeSocketMemory(node, dpdkNics, minimum))
	}
	return memory
}
