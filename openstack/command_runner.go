package openstack

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"nfvpe/derive-params/util"

	"github.com/rs/zerolog"
)

// CommandRunner runs a local program and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecCommandRunner runs programs with os/exec, each limited by timeout.
type ExecCommandRunner struct {
	timeout time.Duration
	logger  zerolog.Logger
}

func NewExecCommandRunner(timeout time.Duration, logger zerolog.Logger) *ExecCommandRunner {
	return &ExecCommandRunner{timeout: timeout, logger: logger}
}

func (runner *ExecCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if runner.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runner.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, name, args...)
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runner.logger.Debug().
		Str("command", name).
		Strs("args", args).
		Msg("running command")
	if err := cmd.Run(); err != nil {
		runner.logger.Warn().Err(err).
			Str("command", name).
			Str("stderr", stderr.String()).
			Msg("command failed")
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, util.NewError(err, "cannot run '%s %s': %s", name, strings.Join(args, " "), strings.TrimSpace(stderr.String()))
	}
	runner.logger.Debug().Str("command", name).TimeDiff("took", time.Now(), start).Msg("command done")
	return stdout.Bytes(), nil
}
