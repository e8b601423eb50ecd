package bootstrap

import (
	"context"
	"io"

	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/config"
	"nfvpe/derive-params/filesystem"
	"nfvpe/derive-params/livehost"
	"nfvpe/derive-params/openstack"
	"nfvpe/derive-params/output"
	"nfvpe/derive-params/util"
	"nfvpe/derive-params/validator"

	"github.com/rs/zerolog"
)

type ValidateDpdkArgs struct {
	Role            string
	Host            string
	PmdCores        int
	HugepagePercent float64
}

type ValidateSriovArgs struct {
	Input             string
	Host              string
	IntrospectionFile string
	Recorded          string
}

func sshRunner(cfg *config.Config, host string, logger zerolog.Logger) *livehost.SshRunner {
	return livehost.NewSshRunner(host, livehost.SshOptions{
		User:                  cfg.Ssh.User,
		Port:                  cfg.Ssh.Port,
		KeyFile:               cfg.Ssh.KeyFile,
		KnownHostsFile:        cfg.Ssh.KnownHostsFile,
		InsecureIgnoreHostKey: cfg.Ssh.InsecureIgnoreHostKey,
		Timeout:               cfg.SshTimeout,
	}, logger.With().Str("component", "ssh").Str("host", host).Logger())
}

// hostForRole walks role -> flavor -> baremetal node -> instance -> ctlplane
// address.
func hostForRole(ctx context.Context, client *openstack.Client, role string) (string, error) {
	flavor, err := client.FlavorForRole(ctx, role)
	if err != nil {
		return "", err
	}
	node, err := client.NodeForFlavor(ctx, flavor)
	if err != nil {
		return "", err
	}
	instance, err := client.InstanceForNode(ctx, node)
	if err != nil {
		return "", err
	}
	return client.HostAddress(ctx, instance)
}

// ValidateDpdk checks the parameters of a deployed OVS-DPDK node and prints
// the report. Mismatches are logged, not returned.
func ValidateDpdk(source ConfigSource, args ValidateDpdkArgs, stdout io.Writer) error {
	cfg, logger, err := source.load()
	if err != nil {
		return err
	}
	if args.Role == "" && args.Host == "" {
		return util.NewError(compute.ErrInvalidUserInput, "role name is missing in user input")
	}
	if args.PmdCores < 1 {
		return util.NewError(compute.ErrInvalidUserInput, "number of physical cores per numa node for pmd must be at least 1")
	}
	if args.HugepagePercent <= 0 || args.HugepagePercent > 100 {
		return util.NewError(compute.ErrInvalidUserInput, "hugepage allocation percentage %v is out of range (0, 100]", args.HugepagePercent)
	}

	ctx := context.Background()
	host := args.Host
	if host == "" {
		if host, err = hostForRole(ctx, openstackClient(cfg, logger), args.Role); err != nil {
			return err
		}
	}
	runner := sshRunner(cfg, host, logger)
	defer runner.Close()
	collector := livehost.NewCollector(runner, livehost.NewTopologySource(cfg.TopologySource), logger.With().Str("component", "collector").Logger())
	snapshot, err := collector.Snapshot(ctx, host, compute.ModeDpdk)
	if err != nil {
		return err
	}

	report, err := validator.ValidateDpdk(snapshot, snapshot.ParameterNames(), validator.DpdkOptions{
		Allocation: compute.AllocationParams{
			PmdCoresPerDpdkNumaNode:   args.PmdCores,
			HugepageAllocationPercent: args.HugepagePercent,
		},
		IncludeIommuPt:      cfg.IncludeIommuPt,
		MinimumSocketMemory: cfg.MinimumSocketMemory,
	})
	if err != nil {
		return err
	}
	if err := output.WriteNumaSummary(stdout, report.Derivation); err != nil {
		return err
	}
	if err := report.Write(stdout); err != nil {
		return err
	}
	if failures := report.Err(); failures != nil {
		logger.Warn().Str("host", host).Msg(failures.Error())
	} else {
		logger.Info().Str("host", host).Msg("all parameters are valid")
	}
	return nil
}

// ValidateSriov compares the parameters of a deployed SR-IOV node with a
// fresh derivation, or with a recorded one.
func ValidateSriov(source ConfigSource, args ValidateSriovArgs, stdout io.Writer) error {
	cfg, logger, err := source.load()
	if err != nil {
		return err
	}
	rawRequest, err := readInput(args.Input)
	if err != nil {
		return err
	}
	request, err := compute.ParseRequest(compute.ModeSriov, rawRequest)
	if err != nil {
		return err
	}

	ctx := context.Background()
	client := openstackClient(cfg, logger)
	var derived *compute.ParameterSet
	if args.Recorded != "" {
		storage, err := filesystem.NewParameterSetStorage(cfg.ParametersFile)
		if err != nil {
			return err
		}
		if derived, err = storage.Get(args.Recorded, compute.ModeSriov); err != nil {
			return util.NewError(err, "no sriov parameters recorded for %s", args.Recorded)
		}
	} else {
		var repo compute.HardwareFactsRepository = client
		if args.IntrospectionFile != "" {
			repo = filesystem.NewIntrospectionRepository(args.IntrospectionFile)
		}
		facts, err := repo.Get(ctx, request)
		if err != nil {
			return err
		}
		derivation, err := compute.Derive(facts, request, cfg.ComputeOptions())
		if err != nil {
			return err
		}
		derived = derivation.Parameters
	}

	host := args.Host
	if host == "" {
		if host, err = client.HostAddressForRequest(ctx, request); err != nil {
			return err
		}
	}
	runner := sshRunner(cfg, host, logger)
	defer runner.Close()
	collector := livehost.NewCollector(runner, livehost.NewTopologySource(cfg.TopologySource), logger.With().Str("component", "collector").Logger())
	snapshot, err := collector.Snapshot(ctx, host, compute.ModeSriov)
	if err != nil {
		return err
	}

	comparison := validator.CompareSriov(derived, snapshot, snapshot.ParameterNames())
	if err := comparison.Write(stdout); err != nil {
		return err
	}
	if differences := comparison.Err(); differences != nil {
		logger.Warn().Str("host", host).Msg(differences.Error())
	}
	return nil
}
