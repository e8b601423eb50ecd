package compute

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/google/uuid"

	"nfvpe/derive-params/util"
)

type Mode int

const (
	ModeUnknown = Mode(0)
	ModeDpdk    = Mode(1)
	ModeSriov   = Mode(2)
)

func (mode Mode) String() string {
	switch mode {
	default:
		return "unknown"
	case ModeDpdk:
		return "dpdk"
	case ModeSriov:
		return "sriov"
	}
}

func NewMode(input string) Mode {
	switch input {
	default:
		return ModeUnknown
	case "dpdk":
		return ModeDpdk
	case "sriov":
		return ModeSriov
	}
}

const (
	DefaultPmdCoresPerDpdkNumaNode   = 1
	DefaultHugepageAllocationPercent = 50
)

type AllocationParams struct {
	PmdCoresPerDpdkNumaNode   int
	HugepageAllocationPercent float64
}

func DefaultAllocationParams() AllocationParams {
	return AllocationParams{
		PmdCoresPerDpdkNumaNode:   DefaultPmdCoresPerDpdkNumaNode,
		HugepageAllocationPercent: DefaultHugepageAllocationPercent,
	}
}

// Request is the validated user input of one derivation. Flavor and
// NodeUuid select the host when introspection data has to be fetched.
type Request struct {
	Mode       Mode
	Flavor     string
	NodeUuid   string
	DpdkNics   []DpdkNicSpec
	Allocation AllocationParams
}

var requestKeys = map[Mode][]string{
	ModeDpdk:  {"flavor", "dpdk_nics", "num_phy_cores_per_numa_node_for_pmd", "huge_page_allocation_percentage"},
	ModeSriov: {"flavor", "node_uuid", "huge_page_allocation_percentage"},
}

func invalidInput(msg string, args ...interface{}) error {
	return util.NewError(ErrInvalidUserInput, msg, args...)
}

// ParseRequest validates a JSON user request. Unknown keys are rejected
// before anything else is looked at.
func ParseRequest(mode Mode, content []byte) (*Request, error) {
	allowed, ok := requestKeys[mode]
	if !ok {
		return nil, invalidInput("unknown derivation mode '%s'", mode)
	}
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, util.NewError(ErrInvalidUserInput, "user input is not a JSON object: %s", err)
	}
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if !slices.Contains(allowed, key) {
			return nil, invalidInput("unknown key '%s'", key)
		}
	}

	request := &Request{Mode: mode, Allocation: DefaultAllocationParams()}
	if value, exists := raw["flavor"]; exists {
		if err := json.Unmarshal(value, &request.Flavor); err != nil {
			return nil, invalidInput("flavor must be a string")
		}
	}
	if value, exists := raw["node_uuid"]; exists {
		if err := json.Unmarshal(value, &request.NodeUuid); err != nil {
			return nil, invalidInput("node_uuid must be a string")
		}
		if _, err := uuid.Parse(request.NodeUuid); err != nil {
			return nil, invalidInput("node_uuid '%s' is not a UUID", request.NodeUuid)
		}
	}
	if value, exists := raw["huge_page_allocation_percentage"]; exists {
		if err := json.Unmarshal(value, &request.Allocation.HugepageAllocationPercent); err != nil {
			return nil, invalidInput("huge_page_allocation_percentage must be a number")
		}
		percent := request.Allocation.HugepageAllocationPercent
		if percent <= 0 || percent > 100 {
			return nil, invalidInput("huge_page_allocation_percentage %v is out of range (0, 100]", percent)
		}
	}
	if value, exists := raw["num_phy_cores_per_numa_node_for_pmd"]; exists {
		if err := json.Unmarshal(value, &request.Allocation.PmdCoresPerDpdkNumaNode); err != nil {
			return nil, invalidInput("num_phy_cores_per_numa_node_for_pmd must be an integer")
		}
		if request.Allocation.PmdCoresPerDpdkNumaNode < 1 {
			return nil, invalidInput("num_phy_cores_per_numa_node_for_pmd must be at least 1")
		}
	}

	if mode == ModeDpdk {
		nics, err := parseDpdkNics(raw["dpdk_nics"])
		if err != nil {
			return nil, err
		}
		request.DpdkNics = nics
	}
	return request, nil
}

func parseDpdkNics(value json.RawMessage) ([]DpdkNicSpec, error) {
	if value == nil {
		return nil, invalidInput("DPDK NIC's and MTU info are missing in user input")
	}
	entries := []map[string]json.RawMessage{}
	if err := json.Unmarshal(value, &entries); err != nil {
		return nil, invalidInput("DPDK NIC's and MTU info is invalid")
	}
	if len(entries) == 0 {
		return nil, invalidInput("DPDK NIC's and MTU info is empty")
	}
	nics := []DpdkNicSpec{}
	for idx, entry := range entries {
		spec := DpdkNicSpec{}
		if err := json.Unmarshal(entry["nic"], &spec.Nic); err != nil || spec.Nic == "" {
			return nil, invalidInput("dpdk_nics[%d] has no nic name", idx)
		}
		if err := json.Unmarshal(entry["mtu"], &spec.Mtu); err != nil || spec.Mtu <= 0 {
			return nil, invalidInput("dpdk_nics[%d] has no valid mtu", idx)
		}
		nics = append(nics, spec)
	}
	return nics, nil
}

// HostSelector names what identifies the host in the request, for logs.
func (request *Request) HostSelector() string {
	switch {
	case request.NodeUuid != "":
		return fmt.Sprintf("node %s", request.NodeUuid)
	case request.Flavor != "":
		return fmt.Sprintf("flavor %s", request.Flavor)
	}
	return "unknown host"
}
