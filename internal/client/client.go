// Package client is the convenience wrapper around Dial + Session,
// grounded on Pablu23-Uftp/internal/client/client.go's SendPacket/
// ReceivePacket/GetFile shape, with the teacher's UDP dial and per-call
// secure-packet wrapping replaced by TCP+TLS transport
// (internal/transport) and the session driver (internal/session).
package client

import (
	"context"
	"crypto/tls"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/pxsock/pxsock/internal/archive"
	"github.com/pxsock/pxsock/internal/common"
	"github.com/pxsock/pxsock/internal/session"
	"github.com/pxsock/pxsock/internal/transport"
)

// Options configures a Client, the client-side counterpart of
// server.Options.
type Options struct {
	ClientID           string
	ServerName         string
	UseTLS             bool
	InsecureSkipVerify bool

	Wire *common.Config
}

// NewDefaultOptions mirrors server.NewDefaultOptions.
func NewDefaultOptions() *Options {
	return &Options{
		Wire: common.NewDefaultConfig(),
	}
}

// Client dials a server and drives one Session at a time. Grounded on the
// teacher's client.GetFile, which owned exactly one *net.UDPConn per
// invocation; pxsock generalizes that to a reusable Session a caller can
// send many packets over.
type Client struct {
	options *Options
	log     *logrus.Entry
}

// New constructs a Client with the given options.
func New(opts ...func(*Options)) *Client {
	options := NewDefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return &Client{options: options, log: logrus.WithField("component", "client")}
}

// Connect dials addr, completes the Auth handshake, and returns a
// Ready session. onMessage is the callback that receives inbound
// packets, e.g. Response packets to a prior Request.
func (c *Client) Connect(ctx context.Context, addr string, onMessage session.MessageFunc) (*session.Session, error) {
	var tlsConfig *tls.Config
	if c.options.UseTLS {
		tlsConfig = transport.ClientTLSConfig(c.options.ServerName, c.options.InsecureSkipVerify)
	}

	conn, err := transport.Dial(ctx, addr, tlsConfig)
	if err != nil {
		return nil, err
	}

	sess := session.New(conn, c.options.Wire, onMessage)
	go func() {
		if err := sess.Serve(ctx); err != nil {
			c.log.WithError(err).Debug("Session ended")
		}
	}()

	if err := sess.ClientHandshake(c.options.ClientID); err != nil {
		return nil, err
	}
	return sess, nil
}

// SendText is a convenience wrapper sending a Message packet.
func SendText(ctx context.Context, sess *session.Session, text string) error {
	return sess.Send(ctx, common.NewMessage(text))
}

// SendFile reads path and sends it as a File packet.
func SendFile(ctx context.Context, sess *session.Session, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	pkt, err := common.NewFile(filepath.Base(path), data)
	if err != nil {
		return err
	}
	return sess.Send(ctx, pkt)
}

// SendDirectory archives dir with internal/archive and sends it as a
// Directory packet.
func SendDirectory(ctx context.Context, sess *session.Session, dir, archiveName string) error {
	archiveFile, err := archive.CompressTree(dir)
	if err != nil {
		return err
	}
	defer os.Remove(archiveFile.Name())
	defer archiveFile.Close()

	data, err := os.ReadFile(archiveFile.Name())
	if err != nil {
		return err
	}
	pkt, err := common.NewDirectory(archiveName, data)
	if err != nil {
		return err
	}
	return sess.Send(ctx, pkt)
}

