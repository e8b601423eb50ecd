package main

import (
	"fmt"
	"os"
	"strconv"

	"nfvpe/derive-params/bootstrap"
	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/util"

	"github.com/akamensky/argparse"
)

const defaultConfigFilename = "/etc/derive-params.conf"

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	os.Exit(1)
}

func main() {
	parser := argparse.NewParser("derive-params", "Derives and validates DPDK and SR-IOV parameters of compute nodes")
	configFilename := parser.String("c", "config", &argparse.Options{
		Default: util.GetenvDefault("DERIVE_PARAMS_CONFIG", defaultConfigFilename),
		Help:    "Configuration file path",
	})

	dpdkCmd := parser.NewCommand("dpdk", "Derive OVS-DPDK parameters")
	dpdkInput := dpdkCmd.String("i", "input", &argparse.Options{Required: true, Help: "User input as JSON or JSON file path"})
	dpdkIntrospection := dpdkCmd.String("s", "introspection-file", &argparse.Options{Help: "Use saved introspection data instead of the openstack cli"})
	dpdkFormat := dpdkCmd.String("f", "format", &argparse.Options{Help: "Output format: heat, yaml or json"})
	dpdkRecord := dpdkCmd.String("r", "record", &argparse.Options{Help: "Record the derived parameters under this host name"})

	sriovCmd := parser.NewCommand("sriov", "Derive SR-IOV parameters")
	sriovInput := sriovCmd.String("i", "input", &argparse.Options{Required: true, Help: "User input as JSON or JSON file path"})
	sriovIntrospection := sriovCmd.String("s", "introspection-file", &argparse.Options{Help: "Use saved introspection data instead of the openstack cli"})
	sriovFormat := sriovCmd.String("f", "format", &argparse.Options{Help: "Output format: heat, yaml or json"})
	sriovRecord := sriovCmd.String("r", "record", &argparse.Options{Help: "Record the derived parameters under this host name"})

	validateDpdkCmd := parser.NewCommand("validate-dpdk", "Validate the parameters of a deployed OVS-DPDK node")
	validateRole := validateDpdkCmd.String("r", "role_name", &argparse.Options{Help: "Role name"})
	validateDpdkHost := validateDpdkCmd.String("H", "host", &argparse.Options{Help: "Node address, skips the role lookup"})
	validatePmdCores := validateDpdkCmd.Int("n", "num_phy_cores_per_numa_node_for_pmd", &argparse.Options{
		Default: compute.DefaultPmdCoresPerDpdkNumaNode,
		Help:    "Number of physical cores per numa node for pmd",
	})
	validateHugepages := validateDpdkCmd.String("m", "huge_page_allocation_percentage", &argparse.Options{
		Default: strconv.Itoa(compute.DefaultHugepageAllocationPercent),
		Help:    "Hugepage allocation percentage",
	})

	validateSriovCmd := parser.NewCommand("validate-sriov", "Compare the parameters of a deployed SR-IOV node with derived ones")
	validateSriovInput := validateSriovCmd.String("i", "input", &argparse.Options{Help: "User input as JSON or JSON file path"})
	validateSriovHost := validateSriovCmd.String("H", "host", &argparse.Options{Help: "Node address, skips the node lookup"})
	validateSriovIntrospection := validateSriovCmd.String("s", "introspection-file", &argparse.Options{Help: "Use saved introspection data instead of the openstack cli"})
	validateSriovRecorded := validateSriovCmd.String("R", "recorded", &argparse.Options{Help: "Compare with parameters recorded under this host name"})

	serveCmd := parser.NewCommand("serve", "Serve the derivation http api")

	if err := parser.Parse(os.Args); err != nil {
		fmt.Fprint(os.Stderr, parser.Usage(err))
		os.Exit(1)
	}
	source := bootstrap.ConfigSource{
		Filename:  *configFilename,
		MustExist: *configFilename != defaultConfigFilename,
	}

	var err error
	switch {
	case dpdkCmd.Happened():
		err = bootstrap.Derive(source, bootstrap.DeriveArgs{
			Mode:              compute.ModeDpdk,
			Input:             *dpdkInput,
			IntrospectionFile: *dpdkIntrospection,
			Format:            *dpdkFormat,
			RecordHost:        *dpdkRecord,
		}, os.Stdout)
	case sriovCmd.Happened():
		err = bootstrap.Derive(source, bootstrap.DeriveArgs{
			Mode:              compute.ModeSriov,
			Input:             *sriovInput,
			IntrospectionFile: *sriovIntrospection,
			Format:            *sriovFormat,
			RecordHost:        *sriovRecord,
		}, os.Stdout)
	case validateDpdkCmd.Happened():
		percent, parseErr := strconv.ParseFloat(*validateHugepages, 64)
		if parseErr != nil {
			fail(util.NewError(compute.ErrInvalidUserInput, "invalid hugepage allocation percentage '%s'", *validateHugepages))
		}
		err = bootstrap.ValidateDpdk(source, bootstrap.ValidateDpdkArgs{
			Role:            *validateRole,
			Host:            *validateDpdkHost,
			PmdCores:        *validatePmdCores,
			HugepagePercent: percent,
		}, os.Stdout)
	case validateSriovCmd.Happened():
		err = bootstrap.ValidateSriov(source, bootstrap.ValidateSriovArgs{
			Input:             *validateSriovInput,
			Host:              *validateSriovHost,
			IntrospectionFile: *validateSriovIntrospection,
			Recorded:          *validateSriovRecorded,
		}, os.Stdout)
	case serveCmd.Happened():
		err = bootstrap.Web(source)
	}
	if err != nil {
		fail(err)
	}
}
