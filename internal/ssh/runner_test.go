package ssh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// testDevice is a minimal SSH server answering "exec" requests.
type testDevice struct {
	addr    string
	hostKey ssh.PublicKey
	// reply maps a command to its output; unknown commands exit 1.
	reply map[string]string
	hang  bool
}

func startDevice(t *testing.T, user, password string, reply map[string]string, hang bool) *testDevice {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, pw []byte) (*ssh.Permissions, error) {
			if meta.User() == user && string(pw) == password {
				return nil, nil
			}
			return nil, fmt.Errorf("denied")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	dev := &testDevice{addr: ln.Addr().String(), hostKey: signer.PublicKey(), reply: reply, hang: hang}
	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go dev.serve(nc, cfg)
		}
	}()
	return dev
}

func (d *testDevice) serve(nc net.Conn, cfg *ssh.ServerConfig) {
	defer nc.Close()
	_, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)
	for nch := range chans {
		if nch.ChannelType() != "session" {
			_ = nch.Reject(ssh.UnknownChannelType, "session only")
			continue
		}
		ch, requests, err := nch.Accept()
		if err != nil {
			return
		}
		go func() {
			defer ch.Close()
			for req := range requests {
				if req.Type != "exec" {
					_ = req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				_ = ssh.Unmarshal(req.Payload, &payload)
				_ = req.Reply(true, nil)
				if d.hang {
					time.Sleep(5 * time.Second)
				}
				out, ok := d.reply[payload.Command]
				status := uint32(0)
				if !ok {
					out, status = "% Invalid input\n", 1
				}
				_, _ = ch.Write([]byte(out))
				_, _ = ch.SendRequest("exit-status", false, binary.BigEndian.AppendUint32(nil, status))
				return
			}
		}()
	}
}

const ifDesc = "Interface  Status  Protocol Description\nGi0/1      up      up       uplink\n"

func TestRunnerRunsCommand(t *testing.T) {
	dev := startDevice(t, "alice", "pw", map[string]string{"show interface description": ifDesc}, false)
	r, err := NewRunner(5*time.Second, "")
	require.NoError(t, err)

	out, err := r.Run(context.Background(), dev.addr, "alice", "pw", "show interface description")
	require.NoError(t, err)
	assert.Equal(t, ifDesc, out)
}

func TestRunnerCommandFailure(t *testing.T) {
	dev := startDevice(t, "alice", "pw", nil, false)
	r, err := NewRunner(5*time.Second, "")
	require.NoError(t, err)

	out, err := r.Run(context.Background(), dev.addr, "alice", "pw", "show bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 1")
	assert.Contains(t, out, "Invalid input")
}

func TestRunnerWrongPassword(t *testing.T) {
	dev := startDevice(t, "alice", "pw", nil, false)
	r, err := NewRunner(5*time.Second, "")
	require.NoError(t, err)

	_, err = r.Run(context.Background(), dev.addr, "alice", "nope", "show version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake")
}

func TestRunnerUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	r, err := NewRunner(time.Second, "")
	require.NoError(t, err)
	_, err = r.Run(context.Background(), addr, "alice", "pw", "show version")
	assert.Error(t, err)
}

func TestRunnerContextCancel(t *testing.T) {
	dev := startDevice(t, "alice", "pw", map[string]string{"show tech": "x"}, true)
	r, err := NewRunner(5*time.Second, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = r.Run(ctx, dev.addr, "alice", "pw", "show tech")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRunnerKnownHosts(t *testing.T) {
	dev := startDevice(t, "alice", "pw", map[string]string{"show clock": "12:00\n"}, false)
	other := startDevice(t, "alice", "pw", map[string]string{"show clock": "12:00\n"}, false)

	path := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(dev.addr)}, dev.hostKey)
	require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o600))

	r, err := NewRunner(5*time.Second, path)
	require.NoError(t, err)

	out, err := r.Run(context.Background(), dev.addr, "alice", "pw", "show clock")
	require.NoError(t, err)
	assert.Equal(t, "12:00\n", out)

	_, err = r.Run(context.Background(), other.addr, "alice", "pw", "show clock")
	assert.Error(t, err, "unknown host key must be rejected")

	_, err = NewRunner(time.Second, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestWithDefaultPort(t *testing.T) {
	assert.Equal(t, "192.0.2.1:22", withDefaultPort("192.0.2.1"))
	assert.Equal(t, "192.0.2.1:2222", withDefaultPort("192.0.2.1:2222"))
	assert.Equal(t, "[2001:db8::1]:22", withDefaultPort("2001:db8::1"))
	assert.Equal(t, "core-sw1:22", withDefaultPort("core-sw1"))
}
