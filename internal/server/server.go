// Package server is the convenience wrapper around a Listener and the
// session driver, grounded on Pablu23-Uftp/internal/server/server.go's
// Server type and Serve entry point, with the teacher's UDP-datagram-
// plus-side-TCP-channel plumbing replaced by TCP+TLS transport
// (internal/transport) and the framed session driver (internal/session).
package server

import (
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/pxsock/pxsock/internal/archive"
	"github.com/pxsock/pxsock/internal/common"
	"github.com/pxsock/pxsock/internal/session"
	"github.com/pxsock/pxsock/internal/transport"
)

// Handler is invoked once per Ready-state Packet other than Directory
// (which the server handles itself by extracting the archive), the same
// role the teacher's server.handlePacket switch plays.
type Handler func(sess *session.Session, pkt *common.Packet)

// Server accepts connections, drives one Session per connection, and
// dispatches parsed Packets to a Handler.
type Server struct {
	options *Options
	log     *logrus.Entry

	dataRoot string

	mu       sync.Mutex
	sessions map[*session.Session]struct{}

	handler Handler
}

// New mirrors the teacher's New(opts ...func(*Options)) constructor.
func New(handler Handler, opts ...func(*Options)) (*Server, error) {
	options := NewDefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	root, err := filepath.Abs(options.Datapath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true})

	return &Server{
		options:  options,
		log:      logrus.WithField("component", "server"),
		dataRoot: root,
		sessions: make(map[*session.Session]struct{}),
		handler:  handler,
	}, nil
}

// Serve blocks, accepting connections until ctx is cancelled or a signal
// is received, matching the teacher's Serve()+handleShutdown pairing.
func (srv *Server) Serve(ctx context.Context) error {
	tlsConfig, err := srv.tlsConfig()
	if err != nil {
		return err
	}

	ln, err := transport.Listen(srv.options.Address, tlsConfig)
	if err != nil {
		return err
	}
	defer ln.Close()

	srv.log.WithField("address", srv.options.Address).Info("Starting server")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	var stopped atomic.Bool
	go func() {
		select {
		case <-sigCh:
			srv.log.Info("Server is shutting down")
		case <-ctx.Done():
		}
		stopped.Store(true)
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if stopped.Load() {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			srv.log.WithError(err).Warn("Could not accept connection")
			continue
		}
		go srv.handleConnection(ctx, conn)
	}
}

func (srv *Server) handleConnection(ctx context.Context, conn net.Conn) {
	var sess *session.Session
	sess = session.New(conn, srv.options.Wire, func(pkt *common.Packet) {
		srv.dispatch(sess, pkt)
	})

	srv.trackSession(sess)
	defer srv.forgetSession(sess)

	if err := sess.Serve(ctx); err != nil {
		srv.log.WithError(err).WithField("client", sess.ClientID()).Debug("Session ended")
	}
}

func (srv *Server) dispatch(sess *session.Session, pkt *common.Packet) {
	switch pkt.Kind {
	case common.KindDirectory:
		srv.handleDirectory(pkt)
	default:
		if srv.handler != nil {
			srv.handler(sess, pkt)
		}
	}
}

// handleDirectory extracts an inbound archive under the server's data
// root, folding internal/archive into the server's own packet dispatch.
func (srv *Server) handleDirectory(pkt *common.Packet) {
	name := pkt.Headers[common.HeaderFilename]
	target, err := srv.containedPath(name)
	if err != nil {
		srv.log.WithError(err).WithField("filename", name).Warn("Rejected directory archive with unsafe filename")
		return
	}
	if err := archive.Extract(bytes.NewReader(pkt.Payload), target); err != nil {
		srv.log.WithError(err).WithField("filename", name).Warn("Failed to extract inbound directory archive")
	}
}

// containedPath resolves name under the server's data root and rejects
// any resolution that escapes it, the same containment check the teacher
// performs in server.sendPTE via filepath.Match against parentFilePath.
func (srv *Server) containedPath(name string) (string, error) {
	target := filepath.Join(srv.dataRoot, filepath.Clean(name))
	rel, err := filepath.Rel(srv.dataRoot, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", os.ErrPermission
	}
	return target, nil
}

func (srv *Server) trackSession(sess *session.Session) {
	srv.mu.Lock()
	srv.sessions[sess] = struct{}{}
	srv.mu.Unlock()
}

func (srv *Server) forgetSession(sess *session.Session) {
	srv.mu.Lock()
	delete(srv.sessions, sess)
	srv.mu.Unlock()
}

func (srv *Server) tlsConfig() (*tls.Config, error) {
	if !srv.options.RequireTLS {
		return nil, nil
	}
	return transport.LoadServerTLSConfig(srv.options.TLSCertFile, srv.options.TLSKeyFile)
}
