package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pxsock/pxsock/internal/common"
)

// MessageFunc is the single subscriber a Session delivers parsed Packets
// to. Spec §9 re-expresses the source's multicast event handlers as a
// callback set registered on the session; pxsock keeps it to one callback
// per session, matching how the teacher's own consumers (client.GetFile,
// server.handlePacket) are already plain functions rather than an event
// bus.
type MessageFunc func(pkt *common.Packet)

// EventKind discriminates the lifecycle notifications delivered on
// Session.Events().
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventDesynced
	EventMessageFailed
)

// Event is a lifecycle notification, not a message. Message delivery goes
// through MessageFunc; Events() carries state transitions and non-fatal
// warnings the caller may want to log or count (statistics/logging being
// out of the core's own concern per spec §1, but the channel that carries
// them to that collaborator is not).
type Event struct {
	Kind  EventKind
	State State
	Err   error
}

// Session is the state and tasks associated with one live connection
// (spec §4.6). Grounded on Pablu23-Uftp/internal/server/server.go's
// per-connection handling and its server.mu sync.Mutex guard, generalized
// from "guard a shared session map" to "serialise writes on one
// connection."
type Session struct {
	conn     net.Conn
	cfg      *common.Config
	decoder  *common.Decoder
	pipeline *Pipeline

	writeMu sync.Mutex

	stateMu sync.RWMutex
	state   State

	onMessage MessageFunc
	events    chan Event

	ctx    context.Context
	cancel context.CancelFunc

	log *logrus.Entry

	clientID string

	closeOnce sync.Once
	closeErr  error
}

// New wires a Session around an already-connected transport. TLS, if
// any, must already have completed on conn (spec §1: TLS handshake is an
// external collaborator's job).
func New(conn net.Conn, cfg *common.Config, onMessage MessageFunc) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		conn:      conn,
		cfg:       cfg,
		decoder:   common.NewDecoder(cfg),
		pipeline:  NewPipeline(cfg),
		state:     StateConnecting,
		onMessage: onMessage,
		events:    make(chan Event, 16),
		ctx:       ctx,
		cancel:    cancel,
		log:       logrus.WithField("remote", safeRemoteAddr(conn)),
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	return s
}

func safeRemoteAddr(conn net.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return "unknown"
	}
	return conn.RemoteAddr().String()
}

// Events exposes lifecycle notifications. The channel is buffered and
// best-effort: a caller that never drains it does not block the session.
func (s *Session) Events() <-chan Event { return s.events }

// State reports the session's current lifecycle position.
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(next State) {
	s.stateMu.Lock()
	prev := s.state
	if prev == next {
		s.stateMu.Unlock()
		return
	}
	if !canTransition(prev, next) {
		s.stateMu.Unlock()
		s.log.WithFields(logrus.Fields{"from": prev, "to": next}).Warn("Ignored illegal session state transition")
		return
	}
	s.state = next
	s.stateMu.Unlock()

	s.log.WithField("state", next).Info("Session state changed")
	s.emit(Event{Kind: EventStateChanged, State: next})
	if next == StateClosed {
		s.cancel()
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("Dropped session event, subscriber not keeping up")
	}
}

// ClientHandshake sends the initial Auth packet a client owes the server
// immediately after transport is ready (spec §6). Acceptance is implicit:
// the server never acknowledges Auth, it simply keeps the connection
// open, so this method only reports send-side failures.
func (s *Session) ClientHandshake(clientID string) error {
	s.setState(StateAuthenticating)
	digest := ""
	if len(s.cfg.PresharedKey) > 0 {
		digest = common.PresharedDigestHex(s.cfg.PresharedKey)
	}
	authPkt := common.NewAuth(digest, clientID)
	if err := s.writeFrame(authPkt); err != nil {
		s.Close(err)
		return err
	}
	s.clientID = clientID
	s.setState(StateReady)
	return nil
}

// Serve runs the receive loop until the connection closes or ctx is
// cancelled. It is meant to run in its own goroutine per session; a
// server Accept loop spawns one Serve call per accepted connection, the
// same shape as the teacher's `go server.handlePacket(...)` dispatch.
func (s *Session) Serve(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.Close(ctx.Err())
		case <-s.ctx.Done():
		}
	}()

	if s.State() == StateConnecting {
		s.setState(StateHandshaking)
		s.setState(StateAuthenticating)
	}

	scratch := make([]byte, s.cfg.ReadBufferBytes)
	for {
		if s.ctx.Err() != nil {
			return s.closeErrOrDefault(common.ErrCancelled)
		}

		if s.cfg.IdleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}

		n, err := s.conn.Read(scratch)
		if n > 0 {
			s.dispatch(scratch[:n])
		}
		if err != nil {
			if s.ctx.Err() != nil {
				return s.closeErrOrDefault(common.ErrCancelled)
			}
			wrapped := common.ErrTransportClosed
			s.Close(wrapped)
			return wrapped
		}
	}
}

// dispatch feeds one chunk of bytes to the decoder and routes whatever
// events it produces. Reads are effectively paused while a callback runs,
// since dispatch and the next Read both happen on the Serve goroutine
// (spec §4.6's "backpressure: reads are paused while the callback is
// executing").
func (s *Session) dispatch(chunk []byte) {
	for _, ev := range s.decoder.Feed(chunk) {
		switch ev.Kind {
		case common.EventDesync:
			s.log.Warn("Decoder desynchronised, resyncing on delimiter")
			s.emit(Event{Kind: EventDesynced})
		case common.EventPacketReady:
			s.handleInbound(ev.Packet)
		}
	}
}

func (s *Session) handleInbound(raw *common.Packet) {
	if st := s.State(); st != StateReady && st != StateDraining {
		s.handleHandshakePacket(raw)
		return
	}

	pkt, err := s.pipeline.Parse(raw)
	if err != nil {
		s.log.WithError(err).WithField("kind", raw.Kind).Warn("Dropping packet that failed the inbound pipeline")
		return
	}
	if s.onMessage != nil {
		s.onMessage(pkt)
	}
}

func (s *Session) handleHandshakePacket(raw *common.Packet) {
	if raw.Kind != common.KindAuth {
		s.log.WithField("kind", raw.Kind).Warn("Dropping packet received before Auth handshake")
		return
	}
	if len(s.cfg.PresharedKey) > 0 {
		want := common.PresharedDigestHex(s.cfg.PresharedKey)
		got := raw.Headers[common.HeaderPresharedTag]
		if got != want {
			s.log.Warn("Rejecting Auth packet with wrong preshared-key digest")
			s.Close(&common.WireError{Kind: common.ErrIntegrityFailure, Msg: "Auth preshared-key digest mismatch"})
			return
		}
	}
	s.clientID = raw.Headers[common.HeaderClientID]
	s.setState(StateReady)
}

// Send encodes and writes pkt under the session's exclusive-write lock
// (spec §4.6 send path, §5 ordering guarantee: sends reach the transport
// in write-lock acquisition order). ctx and the session's own cancellation
// are checked once, before the frame is encoded; after that the write
// blocks until the frame is fully written, the write deadline passes, or
// the session closes the transport.
func (s *Session) Send(ctx context.Context, pkt *common.Packet) error {
	if s.State() == StateClosed {
		return common.ErrFatal
	}
	select {
	case <-ctx.Done():
		return common.ErrCancelled
	case <-s.ctx.Done():
		return common.ErrCancelled
	default:
	}
	if err := s.writeFrame(pkt); err != nil {
		s.emit(Event{Kind: EventMessageFailed, Err: err})
		s.Close(err)
		return err
	}
	return nil
}

func (s *Session) writeFrame(pkt *common.Packet) error {
	frame, err := s.pipeline.Build(pkt)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.cfg.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	_, err = s.conn.Write(frame)
	if err != nil {
		return &common.WireError{Kind: common.ErrTransportClosed, Msg: err.Error()}
	}
	return nil
}

// Drain moves a Ready session to Draining: no new sends should be issued
// by the caller, but the receive loop keeps running until the peer
// closes or Close is called explicitly.
func (s *Session) Drain() {
	s.setState(StateDraining)
}

// Close tears the session down, cancelling the receive loop and closing
// the transport. Safe to call multiple times and from any goroutine.
func (s *Session) Close(reason error) error {
	s.closeOnce.Do(func() {
		s.closeErr = reason
		s.setState(StateClosed)
		_ = s.conn.Close()
	})
	return s.closeErr
}

func (s *Session) closeErrOrDefault(fallback error) error {
	if s.closeErr != nil {
		return s.closeErr
	}
	return fallback
}

// ClientID reports the identity offered during Auth, if any.
func (s *Session) ClientID() string { return s.clientID }

// IsCancelled reports whether the session's context has been cancelled.
// Close cancels that context on every path, so a session closed by a
// transport failure reports true as well; the two causes are not told
// apart here.
func (s *Session) IsCancelled() bool {
	return errors.Is(s.ctx.Err(), context.Canceled)
}
