/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package tunnel pkg/tunnel/tunnel.go forwards a local TCP port to the store
// through an SSH jump host.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/mfreeman451/nodeverify/pkg/config"
	"github.com/mfreeman451/nodeverify/pkg/logger"
)

const dialTimeout = 15 * time.Second

// DialFunc connects to the jump host.
type DialFunc func(ctx context.Context) (Dialer, error)

// Stats provides statistics about the tunnel.
type Stats struct {
	Connections    uint64 `json:"connections"`
	BytesForwarded uint64 `json:"bytes_forwarded"`
	Errors         uint64 `json:"errors"`
}

// SSHTunnel implements Tunnel over an SSH client connection.
type SSHTunnel struct {
	localAddr  string
	remoteAddr string
	keepAlive  time.Duration
	dial       DialFunc
	log        *logger.Logger

	mu       sync.Mutex
	client   Dialer
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	done     chan struct{}

	connections atomic.Uint64
	bytes       atomic.Uint64
	errs        atomic.Uint64
}

// NewSSHTunnel builds a tunnel from cfg. Host keys are checked against
// cfg.KnownHostsFile when one is given.
func NewSSHTunnel(cfg *config.TunnelConfig, log *logger.Logger) (*SSHTunnel, error) {
	clientConfig, err := clientConfig(cfg, log)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	dial := func(ctx context.Context) (Dialer, error) {
		var d net.Dialer

		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}

		c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
		if err != nil {
			_ = conn.Close()

			return nil, err
		}

		return ssh.NewClient(c, chans, reqs), nil
	}

	return NewTunnel(cfg.LocalAddr, cfg.RemoteAddr, time.Duration(cfg.KeepAlive), dial, log), nil
}

// NewTunnel builds a tunnel over an arbitrary jump-host dialer.
func NewTunnel(localAddr, remoteAddr string, keepAlive time.Duration, dial DialFunc, log *logger.Logger) *SSHTunnel {
	return &SSHTunnel{
		localAddr:  localAddr,
		remoteAddr: remoteAddr,
		keepAlive:  keepAlive,
		dial:       dial,
		log:        log.With("component", "tunnel", "remote", remoteAddr),
		conns:      make(map[net.Conn]struct{}),
	}
}

func clientConfig(cfg *config.TunnelConfig, log *logger.Logger) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if cfg.KeyFile != "" {
		pem, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errReadKey, err)
		}

		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errParseKey, err)
		}

		auth = append(auth, ssh.PublicKeys(signer))
	}

	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}

	if len(auth) == 0 {
		return nil, errNoAuth
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in by omitting known_hosts_file

	if cfg.KnownHostsFile != "" {
		cb, err := knownhosts.New(cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errKnownHosts, err)
		}

		hostKeyCallback = cb
	} else {
		log.Warn("SSH host key verification disabled; set known_hosts_file", "host", cfg.Host)
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         dialTimeout,
	}, nil
}

// Start connects to the jump host and begins accepting local connections.
func (t *SSHTunnel) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listener != nil {
		return errAlreadyActive
	}

	client, err := t.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", errDial, err)
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", t.localAddr)
	if err != nil {
		_ = client.Close()

		return fmt.Errorf("%w: %w", errListen, err)
	}

	t.client = client
	t.listener = listener
	t.done = make(chan struct{})

	t.wg.Add(1)

	go t.acceptLoop(listener, client)

	if t.keepAlive > 0 {
		if ka, ok := client.(keepAliver); ok {
			t.wg.Add(1)

			go t.keepAliveLoop(ka, t.done)
		}
	}

	t.log.Info("SSH tunnel listening", "local", listener.Addr().String())

	return nil
}

// LocalAddr returns the bound listener address, or "" when not started.
func (t *SSHTunnel) LocalAddr() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listener == nil {
		return ""
	}

	return t.listener.Addr().String()
}

// Stats returns forwarding counters.
func (t *SSHTunnel) Stats() Stats {
	return Stats{
		Connections:    t.connections.Load(),
		BytesForwarded: t.bytes.Load(),
		Errors:         t.errs.Load(),
	}
}

// Stop closes the listener, every forwarded connection and the SSH client,
// then waits for the forwarding goroutines to exit or ctx to expire.
func (t *SSHTunnel) Stop(ctx context.Context) error {
	t.mu.Lock()

	if t.listener == nil {
		t.mu.Unlock()

		return errNotStarted
	}

	close(t.done)

	err := t.listener.Close()

	for c := range t.conns {
		_ = c.Close()
	}

	if cerr := t.client.Close(); cerr != nil && err == nil {
		err = cerr
	}

	t.listener = nil
	t.client = nil
	t.mu.Unlock()

	waited := make(chan struct{})

	go func() {
		t.wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.log.Info("SSH tunnel closed", "connections", t.connections.Load(), "bytes", t.bytes.Load())

	return err
}

func (t *SSHTunnel) acceptLoop(listener net.Listener, client Dialer) {
	defer t.wg.Done()

	for {
		local, err := listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				t.errs.Add(1)
				t.log.Error("Tunnel accept failed", "error", err)
			}

			return
		}

		t.wg.Add(1)

		go t.forward(local, client)
	}
}

func (t *SSHTunnel) forward(local net.Conn, client Dialer) {
	defer t.wg.Done()

	remote, err := client.Dial("tcp", t.remoteAddr)
	if err != nil {
		t.errs.Add(1)
		t.log.Error("Tunnel dial failed", "error", err)

		_ = local.Close()

		return
	}

	if !t.track(local, remote) {
		_ = local.Close()
		_ = remote.Close()

		return
	}

	defer t.untrack(local, remote)

	t.connections.Add(1)

	var copies sync.WaitGroup

	copies.Add(2)

	pipe := func(dst, src net.Conn) {
		defer copies.Done()

		n, _ := io.Copy(dst, src)
		t.bytes.Add(uint64(n))

		// Unblock the opposite direction.
		_ = dst.Close()
		_ = src.Close()
	}

	go pipe(remote, local)
	go pipe(local, remote)

	copies.Wait()
}

// track registers a forwarded pair unless the tunnel is already stopping.
func (t *SSHTunnel) track(conns ...net.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.listener == nil {
		return false
	}

	for _, c := range conns {
		t.conns[c] = struct{}{}
	}

	return true
}

func (t *SSHTunnel) untrack(conns ...net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range conns {
		delete(t.conns, c)
	}
}

type keepAliver interface {
	SendRequest(name string, wantReply bool, payload []byte) (bool, []byte, error)
}

func (t *SSHTunnel) keepAliveLoop(client keepAliver, done <-chan struct{}) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				t.errs.Add(1)
				t.log.Warn("SSH keepalive failed", "error", err)

				return
			}
		}
	}
}

var _ Tunnel = (*SSHTunnel)(nil)
