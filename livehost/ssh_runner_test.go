package livehost

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type execResult struct {
	stdout string
	stderr string
	status uint32
	delay  time.Duration
}

type testSshServer struct {
	host    string
	port    int
	hostKey ssh.PublicKey
	keyFile string
}

func writeClientKey(t *testing.T, dir string) ssh.PublicKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	content := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "id_ecdsa"), content, 0600))
	public, err := ssh.NewPublicKey(&key.PublicKey)
	require.NoError(t, err)
	return public
}

func startSshServer(t *testing.T, handler func(command string) execResult) *testSshServer {
	t.Helper()
	dir := t.TempDir()
	authorized := writeClientKey(t, dir)

	hostKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	hostSigner, err := ssh.NewSignerFromKey(hostKey)
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if conn.User() == "heat-admin" && bytes.Equal(key.Marshal(), authorized.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unauthorized")
		},
	}
	config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go serveSshConn(conn, config, handler)
		}
	}()

	return &testSshServer{
		host:    "127.0.0.1",
		port:    listener.Addr().(*net.TCPAddr).Port,
		hostKey: hostSigner.PublicKey(),
		keyFile: filepath.Join(dir, "id_ecdsa"),
	}
}

func serveSshConn(conn net.Conn, config *ssh.ServerConfig, handler func(command string) execResult) {
	_, channels, requests, err := ssh.NewServerConn(conn, config)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(requests)
	for newChannel := range channels {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, channelRequests, err := newChannel.Accept()
		if err != nil {
			return
		}
		go func() {
			defer channel.Close()
			for request := range channelRequests {
				if request.Type != "exec" {
					request.Reply(false, nil)
					continue
				}
				payload := struct{ Command string }{}
				if err := ssh.Unmarshal(request.Payload, &payload); err != nil {
					request.Reply(false, nil)
					return
				}
				request.Reply(true, nil)
				result := handler(payload.Command)
				time.Sleep(result.delay)
				io.WriteString(channel, result.stdout)
				io.WriteString(channel.Stderr(), result.stderr)
				channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{result.status}))
				return
			}
		}()
	}
}

func commandTable(command string) execResult {
	switch command {
	case "sudo tuned-adm active":
		return execResult{stdout: "Current active profile: cpu-partitioning\n"}
	case "sudo cat /etc/missing":
		return execResult{stderr: "cat: /etc/missing: No such file or directory\n", status: 1}
	case "sleep":
		return execResult{delay: time.Second}
	}
	return execResult{stderr: "unknown command\n", status: 127}
}

func TestSshRunnerInsecure(t *testing.T) {
	server := startSshServer(t, commandTable)
	runner := NewSshRunner(server.host, SshOptions{
		User:                  "heat-admin",
		Port:                  server.port,
		KeyFile:               server.keyFile,
		InsecureIgnoreHostKey: true,
		Timeout:               5 * time.Second,
	}, zerolog.Nop())
	defer runner.Close()

	stdout, stderr, err := runner.Run(context.Background(), "sudo tuned-adm active")
	require.NoError(t, err)
	require.Equal(t, "Current active profile: cpu-partitioning\n", stdout)
	require.Empty(t, stderr)

	_, stderr, err = runner.Run(context.Background(), "sudo cat /etc/missing")
	require.ErrorIs(t, err, ErrCommandFailed)
	require.Contains(t, stderr, "No such file or directory")

	profile, err := NewCollector(runner, TopologySourceLscpu, zerolog.Nop()).TunedProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, TunedPartitioningProfile, profile)
}

func TestSshRunnerKnownHosts(t *testing.T) {
	server := startSshServer(t, commandTable)
	addr := net.JoinHostPort(server.host, strconv.Itoa(server.port))
	knownHostsFile := filepath.Join(t.TempDir(), "known_hosts")
	require.NoError(t, os.WriteFile(knownHostsFile, []byte(knownhosts.Line([]string{addr}, server.hostKey)+"\n"), 0600))

	runner := NewSshRunner(server.host, SshOptions{
		User:           "heat-admin",
		Port:           server.port,
		KeyFile:        server.keyFile,
		KnownHostsFile: knownHostsFile,
		Timeout:        5 * time.Second,
	}, zerolog.Nop())
	defer runner.Close()
	stdout, _, err := runner.Run(context.Background(), "sudo tuned-adm active")
	require.NoError(t, err)
	require.Contains(t, stdout, "cpu-partitioning")
}

func TestSshRunnerUnknownHostKey(t *testing.T) {
	server := startSshServer(t, commandTable)
	other := startSshServer(t, commandTable)
	addr := net.JoinHostPort(server.host, strconv.Itoa(server.port))
	knownHostsFile := filepath.Join(t.TempDir(), "known_hosts")
	require.NoError(t, os.WriteFile(knownHostsFile, []byte(knownhosts.Line([]string{addr}, other.hostKey)+"\n"), 0600))

	runner := NewSshRunner(server.host, SshOptions{
		User:           "heat-admin",
		Port:           server.port,
		KeyFile:        server.keyFile,
		KnownHostsFile: knownHostsFile,
		Timeout:        5 * time.Second,
	}, zerolog.Nop())
	_, _, err := runner.Run(context.Background(), "sudo tuned-adm active")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCommandFailed)
}

func TestSshRunnerWrongUser(t *testing.T) {
	server := startSshServer(t, commandTable)
	runner := NewSshRunner(server.host, SshOptions{
		User:                  "root",
		Port:                  server.port,
		KeyFile:               server.keyFile,
		InsecureIgnoreHostKey: true,
		Timeout:               5 * time.Second,
	}, zerolog.Nop())
	_, _, err := runner.Run(context.Background(), "sudo tuned-adm active")
	require.Error(t, err)
}

func TestSshRunnerTimeout(t *testing.T) {
	server := startSshServer(t, commandTable)
	runner := NewSshRunner(server.host, SshOptions{
		User:                  "heat-admin",
		Port:                  server.port,
		KeyFile:               server.keyFile,
		InsecureIgnoreHostKey: true,
		Timeout:               5 * time.Second,
	}, zerolog.Nop())
	defer runner.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, _, err := runner.Run(ctx, "sleep")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSshRunnerMissingKey(t *testing.T) {
	runner := NewSshRunner("127.0.0.1", SshOptions{
		User:    "heat-admin",
		Port:    22,
		KeyFile: filepath.Join(t.TempDir(), "missing"),
	}, zerolog.Nop())
	_, _, err := runner.Run(context.Background(), "true")
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot read ssh key")
}
