package validator

import (
	"fmt"
	"io"
	"strconv"

	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/cpulist"
	"nfvpe/derive-params/livehost"

	multierror "github.com/hashicorp/go-multierror"
)

const notConfigured = "<not configured>"

// Comparison is the outcome of comparing derived parameters with the ones a
// node was deployed with, one line per parameter.
type Comparison struct {
	Host          string
	Differences   []string
	NoDifferences []string
}

func (comparison *Comparison) add(key string, derived, deployed string, same bool) {
	line := fmt.Sprintf("%s - derived: %s, deployed: %s", key, derived, deployed)
	if same {
		comparison.NoDifferences = append(comparison.NoDifferences, line)
		return
	}
	comparison.Differences = append(comparison.Differences, line)
}

func (comparison *Comparison) addCpus(key string, derived []int, deployed string) {
	if deployed == "" {
		comparison.add(key, cpulist.Format(derived), notConfigured, false)
		return
	}
	cpus, err := cpulist.Parse(deployed)
	comparison.add(key, cpulist.Format(derived), deployed, err == nil && cpulist.Equal(derived, cpus))
}

// CompareSriov compares derived parameters of an SR-IOV node with the
// deployed ones. Settings missing from nova.conf fall back to hiera.
func CompareSriov(derived *compute.ParameterSet, snapshot *livehost.Snapshot, names compute.ParameterNames) *Comparison {
	deployed := snapshot.Deployed
	comparison := &Comparison{Host: snapshot.Host, Differences: []string{}, NoDifferences: []string{}}

	guestCpus := deployed.GuestCpus
	if guestCpus == "" {
		guestCpus = snapshot.Hiera.GuestCpus
	}
	comparison.addCpus(names.GuestCpus, derived.GuestCpus, guestCpus)

	reserved := deployed.ReservedHostMemory
	if reserved == "" {
		reserved = snapshot.Hiera.ReservedHostMemory
	}
	derivedReserved := strconv.Itoa(derived.ReservedHostMemoryMb)
	if reserved == "" {
		comparison.add(names.ReservedHostMemory, derivedReserved, notConfigured, false)
	} else {
		comparison.add(names.ReservedHostMemory, derivedReserved, reserved, reserved == derivedReserved)
	}

	comparison.addCpus(names.IsolatedCpus, derived.IsolatedCpus, deployed.IsolatedCpus)

	if deployed.HasKernelArgs {
		comparison.add(names.KernelArgs, derived.KernelArgs.String(), deployed.KernelArgs.String(), derived.KernelArgs.Matches(deployed.KernelArgs))
	} else {
		comparison.add(names.KernelArgs, derived.KernelArgs.String(), notConfigured, false)
	}
	return comparison
}

func (comparison *Comparison) Err() error {
	var result *multierror.Error
	for _, difference := range comparison.Differences {
		result = multierror.Append(result, fmt.Errorf("%s", difference))
	}
	return result.ErrorOrNil()
}

func (comparison *Comparison) Write(w io.Writer) error {
	out := fmt.Sprintf("Comparison result between derived and deployed SR-IOV parameters values of node %s.\n\nDifferences:\n", comparison.Host)
	for _, line := range comparison.Differences {
		out += line + "\n"
	}
	out += "\nNo differences:\n"
	for _, line := range comparison.NoDifferences {
		out += line + "\n"
	}
	_, err := io.WriteString(w, out)
	return err
}
