package livehost

import (
	"context"
	"errors"
)

// ErrCommandFailed marks a command that ran but exited with a non-zero
// status, as opposed to a broken connection.
var ErrCommandFailed = errors.New("command failed")

// Runner executes shell commands on a deployed node.
type Runner interface {
	Run(ctx context.Context, command string) (stdout string, stderr string, err error)
}
