// Package ssh runs one-shot commands on network devices over SSH.
package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	DefaultPort    = "22"
	DefaultTimeout = 15 * time.Second
)

// Runner dials a device, runs a single command and returns its combined output.
type Runner struct {
	timeout         time.Duration
	hostKeyCallback ssh.HostKeyCallback
	dialer          net.Dialer
}

// NewRunner creates a Runner. knownHostsFile enables host key verification;
// when empty any host key is accepted.
func NewRunner(timeout time.Duration, knownHostsFile string) (*Runner, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	callback := ssh.InsecureIgnoreHostKey() //nolint:gosec // network gear rarely has managed host keys
	if knownHostsFile != "" {
		cb, err := knownhosts.New(knownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts %q: %w", knownHostsFile, err)
		}
		callback = cb
	} else {
		log.Warn("SSH host key verification is disabled; set SSH_KNOWN_HOSTS to enable it")
	}

	return &Runner{
		timeout:         timeout,
		hostKeyCallback: callback,
		dialer:          net.Dialer{Timeout: timeout},
	}, nil
}

// Run executes command on host ("addr" or "addr:port") as username.
// Cancelling ctx closes the connection and aborts the command.
func (r *Runner) Run(ctx context.Context, host, username, password, command string) (string, error) {
	addr := withDefaultPort(host)

	config := &ssh.ClientConfig{
		User: username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			// Many devices only offer keyboard-interactive; answer every prompt with the password.
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: r.hostKeyCallback,
		Timeout:         r.timeout,
	}

	conn, err := r.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	// Bound the handshake; ssh.NewClientConn has no context of its own.
	_ = conn.SetDeadline(time.Now().Add(r.timeout))

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return "", fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	client := ssh.NewClient(c, chans, reqs)
	defer client.Close()

	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open ssh session on %s: %w", addr, err)
	}
	defer session.Close()

	log.Debug("Running device command", "host", addr, "user", username, "command", command)
	output, err := session.CombinedOutput(command)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return string(output), ctxErr
	}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return string(output), fmt.Errorf("command exited with status %d", exitErr.ExitStatus())
		}
		var missing *ssh.ExitMissingError
		if errors.As(err, &missing) && len(output) > 0 {
			// Some devices close the channel without an exit status.
			return string(output), nil
		}
		return string(output), fmt.Errorf("command failed on %s: %w", addr, err)
	}
	return string(output), nil
}

func withDefaultPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), DefaultPort)
}
