package compute

import (
	"slices"
	"strconv"
	"strings"

	"nfvpe/derive-params/util"
)

// DpdkNicSpec is a user supplied dpdk nic: a literal interface name or a
// positional alias (nic1, nic2, ...) and its MTU.
type DpdkNicSpec struct {
	Nic string `json:"nic"`
	Mtu int    `json:"mtu"`
}

func (spec DpdkNicSpec) IsAlias() bool {
	_, ok := spec.aliasNumber()
	return ok
}

func (spec DpdkNicSpec) aliasNumber() (int, bool) {
	if !strings.HasPrefix(spec.Nic, "nic") {
		return 0, false
	}
	number, err := strconv.Atoi(strings.TrimPrefix(spec.Nic, "nic"))
	if err != nil || number <= 0 {
		return 0, false
	}
	return number, true
}

type DpdkNicNumaInfo struct {
	NicId        string `json:"nic_id"`
	ResolvedName string `json:"name"`
	NumaNode     int    `json:"numa_node"`
	Mtu          int    `json:"mtu"`
}

// ResolveDpdkNics maps every spec onto a known host nic. Aliases are
// resolved against the ordered active interface list, which is only
// computed when an alias is present.
func (facts *HardwareFacts) ResolveDpdkNics(specs []DpdkNicSpec) ([]DpdkNicNumaInfo, error) {
	var ordered []string
	for _, spec := range specs {
		if spec.IsAlias() {
			names, err := facts.OrderedActiveInterfaces()
			if err != nil {
				return nil, err
			}
			ordered = names
			break
		}
	}

	result := []DpdkNicNumaInfo{}
	for _, spec := range specs {
		name := spec.Nic
		if number, ok := spec.aliasNumber(); ok {
			if number > len(ordered) {
				return nil, util.NewError(ErrInvalidDpdkNic, "'%s' exceeds %d active interfaces", spec.Nic, len(ordered))
			}
			name = ordered[number-1]
		}
		idx := slices.IndexFunc(facts.Nics, func(nic Nic) bool { return nic.Name == name })
		if idx < 0 {
			return nil, util.NewError(ErrInvalidDpdkNic, "'%s'", spec.Nic)
		}
		result = append(result, DpdkNicNumaInfo{
			NicId:        spec.Nic,
			ResolvedName: name,
			NumaNode:     facts.Nics[idx].NumaNode,
			Mtu:          spec.Mtu,
		})
	}
	return result, nil
}

// DpdkNumaNodes lists the numa nodes hosting at least one dpdk nic in the
// order they are first seen.
func DpdkNumaNodes(nics []DpdkNicNumaInfo) []int {
	nodes := []int{}
	for _, nic := range nics {
		if !slices.Contains(nodes, nic.NumaNode) {
			nodes = append(nodes, nic.NumaNode)
		}
	}
	return nodes
}
