package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/cpulist"

	humanize "github.com/dustin/go-humanize"
	yaml "gopkg.in/yaml.v2"
)

type Format int

const (
	FormatUnknown = Format(0)
	FormatHeat    = Format(1)
	FormatYaml    = Format(2)
	FormatJson    = Format(3)
)

func (format Format) String() string {
	switch format {
	default:
		return "unknown"
	case FormatHeat:
		return "heat"
	case FormatYaml:
		return "yaml"
	case FormatJson:
		return "json"
	}
}

func NewFormat(input string) Format {
	switch input {
	default:
		return FormatUnknown
	case "heat":
		return FormatHeat
	case "yaml":
		return FormatYaml
	case "json":
		return FormatJson
	}
}

const memoryChannelsAdvisory = "# Memory channels recommended value (4) is hard coded here.\n" +
	"# Operator can use the memory channels value based on hardware manual.\n"

type entry struct {
	key   string
	value interface{}
}

// entries lists the parameters of params in heat template order. CPU lists
// are range encoded, numbers stay numbers.
func entries(params *compute.ParameterSet, names compute.ParameterNames) []entry {
	result := []entry{}
	if params.Mode == compute.ModeDpdk {
		result = append(result,
			entry{names.PmdCpus, cpulist.Format(params.PmdCpus)},
			entry{names.HostCpus, cpulist.Format(params.HostCpus)},
			entry{names.SocketMemory, params.SocketMemoryString()},
			entry{names.MemoryChannels, params.MemoryChannels},
		)
	}
	result = append(result,
		entry{names.GuestCpus, cpulist.Format(params.GuestCpus)},
		entry{names.ReservedHostMemory, params.ReservedHostMemoryMb},
		entry{names.IsolatedCpus, cpulist.Format(params.IsolatedCpus)},
		entry{names.KernelArgs, params.KernelArgs.String()},
	)
	return result
}

// Write renders params in the given format.
func Write(w io.Writer, format Format, params *compute.ParameterSet, names compute.ParameterNames) error {
	switch format {
	case FormatHeat:
		return writeHeat(w, params, names)
	case FormatYaml:
		return writeYaml(w, params, names)
	case FormatJson:
		return writeJson(w, params, names)
	}
	return fmt.Errorf("unknown output format '%s'", format)
}

// writeHeat prints the parameters the way they are pasted into a heat
// environment file. Core lists bound to OVS are single quoted inside the
// string. Only the dpdk vcpu pin set is emitted as a list of ranges.
func writeHeat(w io.Writer, params *compute.ParameterSet, names compute.ParameterNames) error {
	for _, item := range entries(params, names) {
		var line string
		switch item.key {
		case names.MemoryChannels:
			line = memoryChannelsAdvisory + fmt.Sprintf("%s: \"%v\"\n", item.key, item.value)
		case names.GuestCpus:
			if params.Mode == compute.ModeDpdk {
				line = fmt.Sprintf("%s: %s\n", item.key, cpulist.FormatArray(params.GuestCpus))
			} else {
				line = fmt.Sprintf("%s: \"%v\"\n", item.key, item.value)
			}
		case names.PmdCpus, names.HostCpus:
			line = fmt.Sprintf("%s: \"'%v'\"\n", item.key, item.value)
		default:
			line = fmt.Sprintf("%s: \"%v\"\n", item.key, item.value)
		}
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeYaml(w io.Writer, params *compute.ParameterSet, names compute.ParameterNames) error {
	document := yaml.MapSlice{}
	for _, item := range entries(params, names) {
		document = append(document, yaml.MapItem{Key: item.key, Value: item.value})
	}
	content, err := yaml.Marshal(document)
	if err != nil {
		return err
	}
	_, err = w.Write(content)
	return err
}

// Document maps parameter names to values, kernel arguments as a map.
func Document(params *compute.ParameterSet, names compute.ParameterNames) map[string]interface{} {
	document := map[string]interface{}{}
	for _, item := range entries(params, names) {
		document[item.key] = item.value
	}
	document[names.KernelArgs] = params.KernelArgs.Map()
	return document
}

func writeJson(w io.Writer, params *compute.ParameterSet, names compute.ParameterNames) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(Document(params, names))
}

// WriteNumaSummary prints the numa node of every dpdk nic with the cpus and
// socket memory of that node.
func WriteNumaSummary(w io.Writer, derivation *compute.Derivation) error {
	if len(derivation.DpdkNics) == 0 {
		return nil
	}
	memory := map[int]int{}
	for idx, node := range derivation.NumaNodes {
		if idx < len(derivation.Parameters.SocketMemory) {
			memory[node] = derivation.Parameters.SocketMemory[idx]
		}
	}
	if _, err := io.WriteString(w, "NIC's and NUMA node mapping:\n"); err != nil {
		return err
	}
	for _, nic := range derivation.DpdkNics {
		cores := []string{}
		for _, core := range derivation.Facts.Cpus.OnNode(nic.NumaNode) {
			cores = append(cores, strconv.Itoa(core.CoreId))
		}
		_, err := fmt.Fprintf(w, "NIC %s (%s) => NUMA node %d, pCPU's: %v, socket memory: %s\n",
			nic.NicId, nic.ResolvedName, nic.NumaNode, cores,
			humanize.IBytes(uint64(memory[nic.NumaNode])*1024*1024),
		)
		if err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}
