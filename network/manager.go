package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"syscall"

	"github.com/livemap/client/logger"
)

var loopbackAliases = []string{"localhost", "127.0.0.1", "0.0.0.0"}

var retryableErrnos = []syscall.Errno{
	syscall.ECONNREFUSED,
	syscall.EADDRINUSE,
	syscall.ETIMEDOUT,
	syscall.ENETUNREACH,
	syscall.EHOSTUNREACH,
	syscall.EADDRNOTAVAIL,
}

// Manager resolves a server address into endpoints and connects to the
// first one that accepts.
type Manager struct {
	cc *ConnectionContext
}

func NewManager(cc *ConnectionContext) *Manager {
	return &Manager{cc: cc}
}

// CandidateHosts expands a loopback alias into the alias followed by its
// equivalents, any other host is returned alone.
func CandidateHosts(host string) []string {
	h := strings.ToLower(strings.TrimSpace(host))
	for _, a := range loopbackAliases {
		if h != a {
			continue
		}
		hosts := []string{a}
		for _, o := range loopbackAliases {
			if o != a {
				hosts = append(hosts, o)
			}
		}
		return hosts
	}
	return []string{host}
}

// ErrNoEndpoint is wrapped when every candidate host resolved to nothing.
var ErrNoEndpoint = errors.New("no endpoint")

func (m *Manager) Resolve(ctx context.Context, host string, port int) ([]string, error) {
	var endpoints []string
	var lastErr error
	seen := make(map[string]bool)
	for _, h := range CandidateHosts(host) {
		addrs, err := m.cc.Resolver.LookupHost(ctx, h)
		if err != nil {
			logger.Verbosef("network.Manager.Resolve %s %v\n", h, err)
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		for _, a := range addrs {
			ep := net.JoinHostPort(a, strconv.Itoa(port))
			if seen[ep] {
				continue
			}
			seen[ep] = true
			endpoints = append(endpoints, ep)
		}
	}
	if len(endpoints) == 0 {
		if lastErr == nil {
			lastErr = ErrNoEndpoint
		}
		return nil, fmt.Errorf("resolve %s: no endpoint: %w", host, lastErr)
	}
	return endpoints, nil
}

// Connect tries the endpoints in order. Retryable failures move on to the
// next endpoint, any other failure aborts.
func (m *Manager) Connect(ctx context.Context, endpoints []string) (net.Conn, error) {
	var lastErr error
	for _, ep := range endpoints {
		conn, err := m.dial(ctx, ep)
		if err == nil {
			m.configure(conn)
			logger.Verbosef("network.Manager.Connect %s\n", ep)
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil || !IsRetryable(err) {
			return nil, fmt.Errorf("connect %s: %w", ep, err)
		}
		logger.Verbosef("network.Manager.Connect %s retryable %v\n", ep, err)
	}
	return nil, fmt.Errorf("connect: all %d endpoints failed: %w", len(endpoints), lastErr)
}

func (m *Manager) dial(ctx context.Context, ep string) (net.Conn, error) {
	if m.cc.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cc.ConnectTimeout)
		defer cancel()
	}
	return m.cc.Dialer.DialContext(ctx, "tcp", ep)
}

func (m *Manager) configure(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	err := tc.SetNoDelay(m.cc.NoDelay)
	if err != nil {
		logger.Printf("network.Manager SetNoDelay %v\n", err)
	}
	if m.cc.Linger > 0 {
		err = tc.SetLinger(int(m.cc.Linger.Seconds()))
		if err != nil {
			logger.Printf("network.Manager SetLinger %v\n", err)
		}
	}
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	for _, errno := range retryableErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return isTemporary(err)
}

func IsPeerClosed(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	case errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed):
		return true
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return true
	}
	return false
}

func isTemporary(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
