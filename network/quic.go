package network

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

const (
	QuicProtocol         = "livemap-quic"
	QuicHandshakeTimeout = 10 * time.Second
	QuicIdleTimeout      = 60 * time.Second
)

// QuicDialer opens one bidirectional stream per connection and exposes it
// as a net.Conn, so the frame codec runs unchanged on top of it.
type QuicDialer struct {
	tls    *tls.Config
	config *quic.Config
}

type quicConn struct {
	session quic.Connection
	stream  quic.Stream
}

func NewQuicDialer() *QuicDialer {
	return &QuicDialer{
		tls: &tls.Config{
			InsecureSkipVerify: true,
			NextProtos:         []string{QuicProtocol},
		},
		config: &quic.Config{
			HandshakeIdleTimeout: QuicHandshakeTimeout,
			MaxIdleTimeout:       QuicIdleTimeout,
			KeepAlivePeriod:      QuicIdleTimeout / 2,
		},
	}
}

func (d *QuicDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	sess, err := quic.DialAddr(ctx, address, d.tls, d.config)
	if err != nil {
		return nil, err
	}
	stm, err := sess.OpenStreamSync(ctx)
	if err != nil {
		sess.CloseWithError(0, err.Error())
		return nil, err
	}
	return &quicConn{session: sess, stream: stm}, nil
}

func (c *quicConn) Read(b []byte) (int, error) {
	return c.stream.Read(b)
}

func (c *quicConn) Write(b []byte) (int, error) {
	return c.stream.Write(b)
}

func (c *quicConn) Close() error {
	c.stream.Close()
	return c.session.CloseWithError(0, "")
}

func (c *quicConn) LocalAddr() net.Addr {
	return c.session.LocalAddr()
}

func (c *quicConn) RemoteAddr() net.Addr {
	return c.session.RemoteAddr()
}

func (c *quicConn) SetDeadline(t time.Time) error {
	return c.stream.SetDeadline(t)
}

func (c *quicConn) SetReadDeadline(t time.Time) error {
	return c.stream.SetReadDeadline(t)
}

func (c *quicConn) SetWriteDeadline(t time.Time) error {
	return c.stream.SetWriteDeadline(t)
}
