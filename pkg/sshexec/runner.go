// Package sshexec runs a single command on a remote host over SSH.
package sshexec

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// ErrRemoteFailed is the single error category surfaced to callers for
// any remote failure. Whether authentication or the command itself failed
// is logged but deliberately not distinguishable from the outside.
var ErrRemoteFailed = errors.New("remote execution failed")

// Command describes one remote execution. Credentials arrive raw from
// the caller and are never logged or persisted.
type Command struct {
	Host     string
	User     string
	Password string
	Command  string
}

// Runner executes remote commands with a fixed deadline per call.
type Runner struct {
	timeout time.Duration
	logger  *zap.Logger
}

// New returns a Runner. timeout bounds the dial, the handshake, and the
// command itself.
func New(timeout time.Duration, logger *zap.Logger) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{timeout: timeout, logger: logger}
}

// Run opens one authenticated session, runs exactly one command, and
// returns its combined stdout and stderr in arrival order. The session
// and connection are closed whether or not the command succeeds. When
// the deadline expires the connection is torn down, unblocking the call.
func (r *Runner) Run(ctx context.Context, cmd Command) (string, error) {
	if cmd.Host == "" || cmd.User == "" || cmd.Command == "" {
		return "", fmt.Errorf("host, user and command are required")
	}

	addr := cmd.Host
	if !strings.Contains(addr, ":") {
		addr = net.JoinHostPort(addr, "22")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cfg := &ssh.ClientConfig{
		User:            cmd.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cmd.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	// ssh.Dial's Timeout field only bounds the TCP connect, not the
	// protocol handshake. Dial the raw connection ourselves and keep a
	// read/write deadline on it until the handshake completes, so a host
	// that accepts TCP but never speaks SSH cannot block us.
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		r.logger.Warn("ssh connect failed", zap.String("host", addr), zap.Error(err))
		return "", ErrRemoteFailed
	}

	deadline, ok := ctx.Deadline()
	if ok {
		_ = conn.SetDeadline(deadline)
	}
	sconn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		r.logger.Warn("ssh handshake failed", zap.String("host", addr), zap.Error(err))
		return "", ErrRemoteFailed
	}
	// The command phase is bounded by the ctx watchdog below instead.
	_ = conn.SetDeadline(time.Time{})

	client := ssh.NewClient(sconn, chans, reqs)
	defer client.Close()

	// Closing the client unblocks a hung remote command once the
	// deadline passes.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = client.Close()
		case <-done:
		}
	}()

	session, err := client.NewSession()
	if err != nil {
		r.logger.Warn("ssh session failed", zap.String("host", addr), zap.Error(err))
		return "", ErrRemoteFailed
	}
	defer session.Close()

	out, err := session.CombinedOutput(cmd.Command)
	if err != nil {
		r.logger.Warn("ssh command failed", zap.String("host", addr), zap.Error(err))
		return "", ErrRemoteFailed
	}

	return string(out), nil
}
