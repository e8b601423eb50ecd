package compute

import (
	"context"

	"nfvpe/derive-params/util"
)

// HardwareFactsRepository fetches the hardware facts of the host a request
// points at.
type HardwareFactsRepository interface {
	Get(ctx context.Context, request *Request) (*HardwareFacts, error)
}

type Options struct {
	SortOutput          bool
	IncludeIommuPt      bool
	MinimumSocketMemory int
}

func DefaultOptions() Options {
	return Options{MinimumSocketMemory: DefaultMinimumSocketMemory}
}

// Derivation keeps the intermediate results of a run next to the final
// parameters so callers can report on them.
type Derivation struct {
	Request    *Request
	Facts      *HardwareFacts
	NumaNodes  []int
	DpdkNics   []DpdkNicNumaInfo
	Partition  *CpuPartition
	Parameters *ParameterSet
}

type Service struct {
	facts   HardwareFactsRepository
	options Options
}

func New(facts HardwareFactsRepository, options Options) *Service {
	return &Service{facts: facts, options: options}
}

// Derive validates the raw user request, fetches the host facts and runs
// the derivation. Request errors are reported before the host is touched.
func (service *Service) Derive(ctx context.Context, mode Mode, rawRequest []byte) (*Derivation, error) {
	request, err := ParseRequest(mode, rawRequest)
	if err != nil {
		return nil, err
	}
	facts, err := service.facts.Get(ctx, request)
	if err != nil {
		return nil, util.NewError(err, "cannot get hardware facts for %s", request.HostSelector())
	}
	return Derive(facts, request, service.options)
}

// Derive computes the parameters of request from facts.
func Derive(facts *HardwareFacts, request *Request, options Options) (*Derivation, error) {
	switch request.Mode {
	case ModeDpdk:
		return deriveDpdk(facts, request, options)
	case ModeSriov:
		return deriveSriov(facts, request, options)
	}
	return nil, util.NewError(ErrInvalidUserInput, "unknown derivation mode '%s'", request.Mode)
}

func deriveDpdk(facts *HardwareFacts, request *Request, options Options) (*Derivation, error) {
	dpdkNics, err := facts.ResolveDpdkNics(request.DpdkNics)
	if err != nil {
		return nil, err
	}
	numaNodes, err := facts.NumaNodes()
	if err != nil {
		return nil, err
	}
	partition, err := DpdkCpuPartition(facts.Cpus, numaNodes, dpdkNics, request.Allocation)
	if err != nil {
		return nil, err
	}
	if options.SortOutput {
		partition = partition.Sorted()
	}
	kernelArgs, err := facts.KernelArgs(request.Allocation.HugepageAllocationPercent, options.IncludeIommuPt)
	if err != nil {
		return nil, err
	}
	minimum := options.MinimumSocketMemory
	if minimum == 0 {
		minimum = DefaultMinimumSocketMemory
	}
	params := &ParameterSet{
		Mode:                 ModeDpdk,
		PmdCpus:              partition.PmdCpus,
		HostCpus:             partition.HostCpus,
		SocketMemory:         SocketMemory(numaNodes, dpdkNics, minimum),
		MemoryChannels:       DefaultMemoryChannels,
		GuestCpus:            partition.GuestCpus,
		ReservedHostMemoryMb: DefaultReservedHostMemoryMb,
		IsolatedCpus:         partition.IsolatedCpus,
		KernelArgs:           kernelArgs,
	}
	return &Derivation{
		Request:    request,
		Facts:      facts,
		NumaNodes:  numaNodes,
		DpdkNics:   dpdkNics,
		Partition:  partition,
		Parameters: params,
	}, nil
}

func deriveSriov(facts *HardwareFacts, request *Request, options Options) (*Derivation, error) {
	partition, err := SriovCpuPartition(facts.Cpus)
	if err != nil {
		return nil, err
	}
	if options.SortOutput {
		partition = partition.Sorted()
	}
	kernelArgs, err := facts.KernelArgs(request.Allocation.HugepageAllocationPercent, options.IncludeIommuPt)
	if err != nil {
		return nil, err
	}
	params := &ParameterSet{
		Mode:                 ModeSriov,
		HostCpus:             partition.HostCpus,
		GuestCpus:            partition.GuestCpus,
		ReservedHostMemoryMb: DefaultReservedHostMemoryMb,
		IsolatedCpus:         partition.IsolatedCpus,
		KernelArgs:           kernelArgs,
	}
	return &Derivation{
		Request:    request,
		Facts:      facts,
		NumaNodes:  facts.Cpus.NumaNodes(),
		DpdkNics:   []DpdkNicNumaInfo{},
		Partition:  partition,
		Parameters: params,
	}, nil
}
