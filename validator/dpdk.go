package validator

import (
	"slices"
	"strconv"

	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/cpulist"
	"nfvpe/derive-params/livehost"
)

const (
	ValidMessage          = "valid.\n"
	TunedEnabledMessage   = "enabled.\n"
	NotRestartedMessage   = "node is not restarted.\n"
	MemoryChannelsMessage = "Recommended value is \"4\" but it should be configured based on hardware spec.\n"

	notAvailable = "NA"
)

// Row is one line of a validation report. Message holds one or more
// newline terminated verdicts.
type Row struct {
	Parameter string
	Deployed  string
	Hiera     string
	Message   string
	Ok        bool
}

func expected(value string) string {
	return "expected: " + value + ".\n"
}

func verdict(ok bool, want string) (string, bool) {
	if ok {
		return ValidMessage, true
	}
	return expected(want), false
}

// DpdkOptions are the allocation settings the node was deployed with.
type DpdkOptions struct {
	Allocation          compute.AllocationParams
	IncludeIommuPt      bool
	MinimumSocketMemory int
}

// ValidateDpdk checks the parameters an OVS-DPDK node runs with against
// what its hardware calls for. Mismatches end up in the report rows, only
// a node whose topology cannot be evaluated is an error.
func ValidateDpdk(snapshot *livehost.Snapshot, names compute.ParameterNames, options DpdkOptions) (*Report, error) {
	cores := snapshot.Cpus
	numaNodes := cores.NumaNodes()
	dpdkNics := snapshot.DpdkNics()
	dpdkNodes := compute.DpdkNumaNodes(dpdkNics)
	deployed := snapshot.Deployed

	hostCpus, err := compute.HostCpus(cores)
	if err != nil {
		return nil, err
	}
	slices.Sort(hostCpus)
	minimum := options.MinimumSocketMemory
	if minimum == 0 {
		minimum = compute.DefaultMinimumSocketMemory
	}
	facts := snapshot.Facts()
	kernelArgs, err := facts.KernelArgs(options.Allocation.HugepageAllocationPercent, options.IncludeIommuPt)
	if err != nil {
		return nil, err
	}
	params := &compute.ParameterSet{
		Mode:                 compute.ModeDpdk,
		HostCpus:             hostCpus,
		SocketMemory:         compute.SocketMemory(numaNodes, dpdkNics, minimum),
		MemoryChannels:       compute.DefaultMemoryChannels,
		ReservedHostMemoryMb: compute.DefaultReservedHostMemoryMb,
		KernelArgs:           kernelArgs,
	}

	report := &Report{
		Host: snapshot.Host,
		Derivation: &compute.Derivation{
			Facts:      facts,
			NumaNodes:  numaNodes,
			DpdkNics:   dpdkNics,
			Parameters: params,
		},
	}

	hostRow := Row{Parameter: names.HostCpus, Deployed: livehost.FormatCpus(deployed.HostCpus), Hiera: notAvailable}
	hostRow.Message, hostRow.Ok = verdict(cpulist.Equal(deployed.HostCpus, hostCpus), cpulist.Join(hostCpus))
	report.Rows = append(report.Rows, hostRow)

	report.Rows = append(report.Rows, pmdRow(snapshot, names, hostCpus, numaNodes, dpdkNodes, options.Allocation.PmdCoresPerDpdkNumaNode))

	socketRow := Row{Parameter: names.SocketMemory, Deployed: deployed.SocketMemory, Hiera: snapshot.Hiera.SocketMemory}
	socketRow.Message, socketRow.Ok = verdict(deployed.SocketMemory == params.SocketMemoryString(), params.SocketMemoryString())
	report.Rows = append(report.Rows, socketRow)

	reserved := strconv.Itoa(compute.DefaultReservedHostMemoryMb)
	memoryRow := Row{Parameter: names.ReservedHostMemory, Deployed: deployed.ReservedHostMemory, Hiera: snapshot.Hiera.ReservedHostMemory}
	memoryRow.Message, memoryRow.Ok = verdict(deployed.ReservedHostMemory == reserved, reserved)
	report.Rows = append(report.Rows, memoryRow)

	report.Rows = append(report.Rows,
		guestRow(snapshot, names, hostCpus, numaNodes),
		isolatedRow(snapshot, names, hostCpus, numaNodes),
		kernelArgsRow(deployed, names, kernelArgs),
		Row{
			Parameter: names.MemoryChannels,
			Deployed:  deployed.MemoryChannels,
			Hiera:     snapshot.Hiera.MemoryChannels,
			Message:   MemoryChannelsMessage,
			Ok:        true,
		},
		tunedRow(deployed),
	)
	return report, nil
}

func pmdRow(snapshot *livehost.Snapshot, names compute.ParameterNames, hostCpus, numaNodes, dpdkNodes []int, coresPerNode int) Row {
	deployed := snapshot.Deployed.PmdCpus
	row := Row{Parameter: names.PmdCpus, Deployed: livehost.FormatCpus(deployed), Hiera: snapshot.Hiera.PmdCpus}
	if len(deployed) == 0 {
		row.Message = "Missing PMD cores.\n"
		return row
	}
	msg, usage := checkCpuList(snapshot.Cpus, deployed, "PMD cores",
		overlap{message: "Duplicated in host CPU's", cpus: hostCpus},
	)
	msg += pmdCoreCounts(numaNodes, dpdkNodes, usage, coresPerNode)
	return finish(row, msg)
}

func guestRow(snapshot *livehost.Snapshot, names compute.ParameterNames, hostCpus, numaNodes []int) Row {
	deployed := snapshot.Deployed.GuestCpus
	row := Row{Parameter: names.GuestCpus, Deployed: deployed, Hiera: snapshot.Hiera.GuestCpus}
	if deployed == "" {
		row.Message = "Missing nova cpus.\n"
		return row
	}
	cpus, err := cpulist.Parse(deployed)
	if err != nil {
		row.Message = err.Error() + ".\n"
		return row
	}
	msg, usage := checkCpuList(snapshot.Cpus, cpus, "nova cpus",
		overlap{message: "Duplicated physical cores in host CPU's", cpus: hostCpus},
		overlap{message: "Duplicated physical cores in PMD cores", cpus: snapshot.Deployed.PmdCpus},
	)
	msg += missingNodes(numaNodes, usage, "nova cpus")
	return finish(row, msg)
}

func isolatedRow(snapshot *livehost.Snapshot, names compute.ParameterNames, hostCpus, numaNodes []int) Row {
	deployed := snapshot.Deployed.IsolatedCpus
	row := Row{Parameter: names.IsolatedCpus, Deployed: deployed, Hiera: notAvailable}
	if deployed == "" {
		row.Message = "Missing host isolated cpus.\n"
		return row
	}
	cpus, err := cpulist.Parse(deployed)
	if err != nil {
		row.Message = err.Error() + ".\n"
		return row
	}
	msg, usage := checkCpuList(snapshot.Cpus, cpus, "host isolated cpus",
		overlap{message: "Duplicated in host CPU's", cpus: hostCpus},
	)
	msg += missingNodes(numaNodes, usage, "host isolated cpus")
	return finish(row, msg)
}

func kernelArgsRow(deployed livehost.DeployedParameters, names compute.ParameterNames, derived compute.KernelArgs) Row {
	row := Row{Parameter: names.KernelArgs, Hiera: notAvailable}
	if deployed.HasKernelArgs {
		row.Deployed = deployed.KernelArgs.String()
	}
	row.Message, row.Ok = verdict(deployed.HasKernelArgs && derived.Matches(deployed.KernelArgs), derived.String())
	if !deployed.Rebooted {
		row.Message += NotRestartedMessage
		row.Ok = false
	}
	return row
}

func tunedRow(deployed livehost.DeployedParameters) Row {
	row := Row{Parameter: "tuned", Deployed: deployed.TunedProfile, Hiera: notAvailable}
	if deployed.TunedProfile == livehost.TunedPartitioningProfile {
		row.Message, row.Ok = TunedEnabledMessage, true
		return row
	}
	row.Message = expected(livehost.TunedPartitioningProfile)
	return row
}

func finish(row Row, msg string) Row {
	if msg == "" {
		row.Message, row.Ok = ValidMessage, true
		return row
	}
	row.Message = msg
	return row
}
