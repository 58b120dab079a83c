// Package transport is the out-of-scope collaborator spec.md §1 describes
// only by the interface the core consumes: a reliable bidirectional byte
// stream (net.Conn). It owns TCP accept/connect and, optionally, the TLS
// handshake; the packet core never touches a net.Listener or tls.Config
// directly. Grounded on Pablu23-Uftp/internal/server/server.go's
// startManagement TCP listener, the teacher's own side-channel TCP
// listener, generalized here into the primary transport.
package transport

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/sirupsen/logrus"
)

// Listener accepts inbound connections, optionally upgrading each one to
// TLS before handing it back to the caller.
type Listener struct {
	net.Listener
	tlsConfig *tls.Config
	log       *logrus.Entry
}

// Listen opens a TCP listener on addr. If tlsConfig is non-nil, every
// accepted connection is TLS-wrapped before Accept returns it.
func Listen(addr string, tlsConfig *tls.Config) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{Listener: ln, tlsConfig: tlsConfig, log: logrus.WithField("component", "transport")}, nil
}

// Accept returns the next inbound connection, TLS-handshaked if this
// listener was configured with a tls.Config. A handshake failure is
// terminal for that connection: spec §9 explicitly rules out any
// byte-stream resync attempt after a failed TLS handshake, so the
// connection is closed and Accept moves on to the next one instead of
// returning the error to the caller.
func (l *Listener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}
		if l.tlsConfig == nil {
			return conn, nil
		}
		tlsConn := tls.Server(conn, l.tlsConfig)
		if err := tlsConn.HandshakeContext(context.Background()); err != nil {
			l.log.WithError(err).Warn("TLS handshake failed, dropping connection")
			conn.Close()
			continue
		}
		return tlsConn, nil
	}
}

// Dial connects to addr over TCP, optionally performing a TLS handshake
// as the client side.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tlsConfig == nil {
		return conn, nil
	}
	tlsConn := tls.Client(conn, tlsConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}
