package network

import (
	"context"
	"net"
	"time"

	"github.com/livemap/client/config"
)

type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ConnectionContext carries everything one session needs to reach a server.
// It is owned by the caller, several independent sessions may share or use
// distinct contexts.
type ConnectionContext struct {
	Resolver       Resolver
	Dialer         Dialer
	NoDelay        bool
	Linger         time.Duration
	ConnectTimeout time.Duration
	MaxFrameSize   uint32
}

func NewConnectionContext(custom *config.Custom) *ConnectionContext {
	cc := &ConnectionContext{
		Resolver:       net.DefaultResolver,
		Dialer:         &net.Dialer{},
		NoDelay:        !custom.Network.DelayedWrite,
		Linger:         custom.LingerDuration(),
		ConnectTimeout: custom.ConnectTimeoutDuration(),
		MaxFrameSize:   custom.Network.MaxFrameSize,
	}
	if custom.Network.Transport == config.TransportQuic {
		cc.Dialer = NewQuicDialer()
	}
	return cc
}
