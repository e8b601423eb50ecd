package compute

import "errors"

var (
	ErrMissingTopologyData     = errors.New("missing topology data")
	ErrNoActiveInterfaces      = errors.New("no active interfaces")
	ErrInvalidDpdkNic          = errors.New("invalid dpdk nic")
	ErrUnsupportedHugepageSize = errors.New("default huge page size 1GB is not supported")
	ErrInvalidUserInput        = errors.New("invalid user input")
)
