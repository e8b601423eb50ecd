package compute

import (
	"regexp"
	"slices"
	"sort"
	"strings"

	"nfvpe/derive-params/util"
)

type Cores []Core

// Threads lists every logical cpu in core order.
func (cores Cores) Threads() []int {
	threads := []int{}
	for _, core := range cores {
		threads = append(threads, core.ThreadSiblings...)
	}
	return threads
}

// ThreadsByNumaNode maps each numa node to the threads of all its cores.
func (cores Cores) ThreadsByNumaNode() (map[int][]int, error) {
	if len(cores) == 0 {
		return nil, util.NewError(ErrMissingTopologyData, "introspection data does not have numa_topology.cpus")
	}
	threads := map[int][]int{}
	for _, core := range cores {
		threads[core.NumaNode] = append(threads[core.NumaNode], core.ThreadSiblings...)
	}
	return threads, nil
}

// NumaNodes lists the numa nodes that own at least one core, ascending.
func (cores Cores) NumaNodes() []int {
	nodes := []int{}
	for _, core := range cores {
		if !slices.Contains(nodes, core.NumaNode) {
			nodes = append(nodes, core.NumaNode)
		}
	}
	slices.Sort(nodes)
	return nodes
}

// OnNode returns the cores of one numa node, keeping their order.
func (cores Cores) OnNode(node int) Cores {
	result := Cores{}
	for _, core := range cores {
		if core.NumaNode == node {
			result = append(result, core)
		}
	}
	return result
}

// Owner finds the core carrying the given thread.
func (cores Cores) Owner(thread int) (Core, bool) {
	for _, core := range cores {
		if slices.Contains(core.ThreadSiblings, thread) {
			return core, true
		}
	}
	return Core{}, false
}

func (facts *HardwareFacts) ThreadsByNumaNode() (map[int][]int, error) {
	return facts.Cpus.ThreadsByNumaNode()
}

// NumaNodes lists the distinct numa nodes referenced by the host nics,
// ascending.
func (facts *HardwareFacts) NumaNodes() ([]int, error) {
	if len(facts.Nics) == 0 {
		return nil, util.NewError(ErrMissingTopologyData, "introspection data does not have numa_topology.nics")
	}
	nodes := []int{}
	for _, nic := range facts.Nics {
		if !slices.Contains(nodes, nic.NumaNode) {
			nodes = append(nodes, nic.NumaNode)
		}
	}
	slices.Sort(nodes)
	return nodes, nil
}

// OrderedActiveInterfaces returns the names of carrier-up interfaces in the
// order os-net-config numbers them: embedded nics first, then the rest,
// each group naturally sorted.
func (facts *HardwareFacts) OrderedActiveInterfaces() ([]string, error) {
	if len(facts.Interfaces) == 0 {
		return nil, util.NewError(ErrMissingTopologyData, "introspection data does not have inventory.interfaces")
	}
	active := []string{}
	for _, iface := range facts.Interfaces {
		if iface.HasCarrier {
			active = append(active, iface.Name)
		}
	}
	if len(active) == 0 {
		return nil, util.NewError(ErrNoActiveInterfaces, "unable to determine active interfaces (has_carrier)")
	}
	return OrderNics(active), nil
}

func IsEmbeddedNic(name string) bool {
	return strings.HasPrefix(name, "em") || strings.HasPrefix(name, "eth") || strings.HasPrefix(name, "eno")
}

// OrderNics sorts interface names embedded first, naturally within groups.
func OrderNics(names []string) []string {
	embedded := []string{}
	other := []string{}
	for _, name := range names {
		if IsEmbeddedNic(name) {
			embedded = append(embedded, name)
		} else {
			other = append(other, name)
		}
	}
	NaturalSort(embedded)
	NaturalSort(other)
	return append(embedded, other...)
}

var digitsRe = regexp.MustCompile(`[0-9]+`)

type naturalChunk struct {
	digits bool
	text   string
}

func naturalChunks(s string) []naturalChunk {
	chunks := []naturalChunk{}
	last := 0
	for _, loc := range digitsRe.FindAllStringIndex(s, -1) {
		chunks = append(chunks, naturalChunk{text: s[last:loc[0]]})
		chunks = append(chunks, naturalChunk{digits: true, text: s[loc[0]:loc[1]]})
		last = loc[1]
	}
	return append(chunks, naturalChunk{text: s[last:]})
}

func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		return len(a) - len(b)
	}
	return strings.Compare(a, b)
}

// NaturalLess compares strings chunk by chunk, digit runs by value.
func NaturalLess(a, b string) bool {
	left, right := naturalChunks(a), naturalChunks(b)
	for i := 0; i < len(left) && i < len(right); i++ {
		l, r := left[i], right[i]
		var cmp int
		switch {
		case l.digits && r.digits:
			cmp = compareDigits(l.text, r.text)
		case l.digits != r.digits:
			if l.digits {
				return true
			}
			return false
		default:
			cmp = strings.Compare(l.text, r.text)
		}
		if cmp != 0 {
			return cmp < 0
		}
	}
	return len(left) < len(right)
}

func NaturalSort(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return NaturalLess(names[i], names[j])
	})
}
