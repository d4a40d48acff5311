package tunnel

import (
	"context"
	"net"
)

// Tunnel forwards a local listener to an address reachable from a jump host.
type Tunnel interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// LocalAddr is the listener address once started, or "" before.
	LocalAddr() string
}

// Dialer opens connections from the far side of the tunnel. *ssh.Client
// satisfies it.
type Dialer interface {
	Dial(network, addr string) (net.Conn, error)
	Close() error
}
