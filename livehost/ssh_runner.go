package livehost

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"net"
	"strconv"
	"sync"
	"time"

	"nfvpe/derive-params/util"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type SshOptions struct {
	User                  string
	Port                  int
	KeyFile               string
	KnownHostsFile        string
	InsecureIgnoreHostKey bool
	Timeout               time.Duration
}

// SshRunner runs commands over one lazily opened ssh connection.
type SshRunner struct {
	host    string
	options SshOptions
	logger  zerolog.Logger

	mu     sync.Mutex
	client *ssh.Client
}

func NewSshRunner(host string, options SshOptions, logger zerolog.Logger) *SshRunner {
	return &SshRunner{host: host, options: options, logger: logger}
}

func loadSigner(filename string) (ssh.Signer, error) {
	content, err := ioutil.ReadFile(util.ExpandHomeDir(filename))
	if err != nil {
		return nil, util.NewError(err, "cannot read ssh key")
	}
	signer, err := ssh.ParsePrivateKey(content)
	if err != nil {
		return nil, util.NewError(err, "cannot parse ssh key %s", filename)
	}
	return signer, nil
}

func (runner *SshRunner) clientConfig() (*ssh.ClientConfig, error) {
	signer, err := loadSigner(runner.options.KeyFile)
	if err != nil {
		return nil, err
	}
	config := &ssh.ClientConfig{
		User:    runner.options.User,
		Auth:    []ssh.AuthMethod{ssh.PublicKeys(signer)},
		Timeout: runner.options.Timeout,
	}
	if runner.options.InsecureIgnoreHostKey {
		config.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	} else {
		callback, err := knownhosts.New(util.ExpandHomeDir(runner.options.KnownHostsFile))
		if err != nil {
			return nil, util.NewError(err, "cannot load known hosts")
		}
		config.HostKeyCallback = callback
	}
	return config, nil
}

func (runner *SshRunner) connect() (*ssh.Client, error) {
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.client != nil {
		return runner.client, nil
	}
	config, err := runner.clientConfig()
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(runner.host, strconv.Itoa(runner.options.Port))
	runner.logger.Debug().Str("addr", addr).Str("user", config.User).Msg("establishing ssh connection")
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, util.NewError(err, "cannot connect to %s", addr)
	}
	runner.client = client
	return client, nil
}

func (runner *SshRunner) Run(ctx context.Context, command string) (string, string, error) {
	client, err := runner.connect()
	if err != nil {
		return "", "", err
	}
	if runner.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runner.options.Timeout)
		defer cancel()
	}
	session, err := client.NewSession()
	if err != nil {
		return "", "", util.NewError(err, "cannot open ssh session")
	}
	defer session.Close()

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	session.Stdout = stdout
	session.Stderr = stderr

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()
	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		session.Close()
		return "", "", util.NewError(ctx.Err(), "command '%s' interrupted", command)
	case err := <-done:
		runner.logger.Debug().Str("command", command).TimeDiff("took", time.Now(), start).Msg("remote command done")
		if err != nil {
			exitErr := &ssh.ExitError{}
			if errors.As(err, &exitErr) {
				return stdout.String(), stderr.String(), util.NewError(ErrCommandFailed, "'%s' exited with status %d", command, exitErr.ExitStatus())
			}
			return stdout.String(), stderr.String(), util.NewError(err, "cannot run '%s'", command)
		}
		return stdout.String(), stderr.String(), nil
	}
}

func (runner *SshRunner) Close() error {
	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.client == nil {
		return nil
	}
	err := runner.client.Close()
	runner.client = nil
	return err
}
