package common

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
)

// ReceiverState is the decoder's position in the frame state machine
// (spec §4.4).
type ReceiverState int

const (
	AwaitingKind ReceiverState = iota
	AwaitingHeaderLen
	AwaitingHeader
	AwaitingFlags
	AwaitingPayloadLen
	AwaitingPayload
	AwaitingDelimiter
	Complete
)

// EventKind discriminates the results a Decoder.Feed call can produce.
type EventKind int

const (
	EventNeedMore EventKind = iota
	EventPacketReady
	EventDesync
)

// ReceiveEvent is one outcome of feeding bytes to a Decoder.
type ReceiveEvent struct {
	Kind   EventKind
	Packet *Packet
}

// Decoder consumes an arbitrarily-chunked byte stream and reconstructs
// Packets. Unlike the teacher's per-datagram parse (UDP delivers whole
// messages), this buffers chunks and scans with a bounded-lookback state
// machine per spec §9's design note, rather than appending one byte at a
// time.
type Decoder struct {
	cfg *Config

	buf []byte // received: growable buffer of unconsumed bytes
	pos int     // read cursor into buf

	state ReceiverState

	kind      Kind
	headerLen int
	headers   map[string]string
	flags     Flags
	pldLen    int
	payload   []byte

	scanning bool // true while resynchronising after a Desync
}

// NewDecoder creates reassembly state for one inbound connection.
func NewDecoder(cfg *Config) *Decoder {
	return &Decoder{cfg: cfg, state: AwaitingKind}
}

// Clear resets per-packet state without discarding buffered bytes,
// matching spec §3's "cleared (not destroyed) after each completed
// Packet" lifetime note.
func (d *Decoder) Clear() {
	d.state = AwaitingKind
	d.kind = 0
	d.headerLen = 0
	d.headers = nil
	d.flags = 0
	d.pldLen = 0
	d.payload = nil
}

// State reports the current position in the frame state machine.
func (d *Decoder) State() ReceiverState { return d.state }

// Feed appends chunk (which may be empty, one byte, or many packets'
// worth of bytes) and runs the state machine as far as possible, returning
// every event produced. A zero-length chunk is a no-op (spec §4.4).
func (d *Decoder) Feed(chunk []byte) []ReceiveEvent {
	if len(chunk) == 0 {
		return nil
	}
	d.buf = append(d.buf, chunk...)

	var events []ReceiveEvent
	for {
		ev, progressed := d.step()
		if ev != nil {
			events = append(events, *ev)
		}
		if !progressed {
			break
		}
	}
	d.compact()
	return events
}

// step attempts one state transition. progressed is true if it consumed
// bytes or produced an event; callers loop until progressed is false
// (buffer exhausted, waiting for more input).
func (d *Decoder) step() (*ReceiveEvent, bool) {
	if d.scanning {
		return nil, d.tryAdvanceScan()
	}

	avail := d.buf[d.pos:]

	switch d.state {
	case AwaitingKind:
		if len(avail) < 1 {
			return nil, false
		}
		d.kind = Kind(avail[0])
		d.pos++
		d.state = AwaitingHeaderLen
		return nil, true

	case AwaitingHeaderLen:
		if len(avail) < 2 {
			return nil, false
		}
		hlen := int(binary.BigEndian.Uint16(avail[:2]))
		d.pos += 2
		if hlen > d.cfg.MaxHeaderBytes {
			return d.enterDesync()
		}
		d.headerLen = hlen
		if hlen == 0 {
			d.headers = map[string]string{}
			d.state = AwaitingFlags
		} else {
			d.state = AwaitingHeader
		}
		return nil, true

	case AwaitingHeader:
		avail = d.buf[d.pos:]
		if len(avail) < d.headerLen {
			return nil, false
		}
		headers, err := decodeHeaders(avail[:d.headerLen])
		if err != nil {
			d.pos += d.headerLen
			return d.enterDesync()
		}
		d.headers = headers
		d.pos += d.headerLen
		d.state = AwaitingFlags
		return nil, true

	case AwaitingFlags:
		avail = d.buf[d.pos:]
		if len(avail) < 1 {
			return nil, false
		}
		d.flags = Flags(avail[0])
		d.pos++
		d.state = AwaitingPayloadLen
		return nil, true

	case AwaitingPayloadLen:
		avail = d.buf[d.pos:]
		if len(avail) < 4 {
			return nil, false
		}
		plen := int(binary.BigEndian.Uint32(avail[:4]))
		d.pos += 4
		if plen > d.cfg.MaxPayloadBytes {
			return d.enterDesync()
		}
		d.pldLen = plen
		if plen == 0 {
			d.payload = []byte{}
			d.state = AwaitingDelimiter
		} else {
			d.state = AwaitingPayload
		}
		return nil, true

	case AwaitingPayload:
		avail = d.buf[d.pos:]
		if len(avail) < d.pldLen {
			return nil, false
		}
		d.payload = append([]byte(nil), avail[:d.pldLen]...)
		d.pos += d.pldLen
		d.state = AwaitingDelimiter
		return nil, true

	case AwaitingDelimiter:
		avail = d.buf[d.pos:]
		dl := len(d.cfg.Delimiter)
		if len(avail) < dl {
			return nil, false
		}
		if !bytes.Equal(avail[:dl], d.cfg.Delimiter[:]) {
			return d.enterDesync()
		}
		d.pos += dl
		pkt := &Packet{
			Kind:    d.kind,
			Flags:   d.flags,
			Headers: d.headers,
			Payload: d.payload,
		}
		if tag, ok := d.headers[HeaderPresharedTag]; ok {
			if raw, err := hex.DecodeString(tag); err == nil {
				pkt.PresharedHash = raw
			}
		}
		d.Clear()
		return &ReceiveEvent{Kind: EventPacketReady, Packet: pkt}, true

	default:
		return nil, false
	}
}

// enterDesync is entered whenever a length field exceeds its cap or a
// delimiter check fails. It emits exactly one Desync event and then
// scans forward for the next delimiter sentinel, discarding everything
// before it, before resuming the state machine at AwaitingKind
// (spec §4.4, §8 property 3). If the delimiter has not arrived yet, the
// scan resumes on the next Feed without emitting another Desync event.
func (d *Decoder) enterDesync() (*ReceiveEvent, bool) {
	d.Clear()
	d.scanning = true
	d.tryAdvanceScan()
	return &ReceiveEvent{Kind: EventDesync}, true
}

// tryAdvanceScan looks for the delimiter in the buffered bytes at the
// current position. If found, it consumes through the delimiter and
// resumes normal framing at AwaitingKind, returning true. Otherwise it
// leaves the position untouched (a delimiter may straddle this chunk's
// boundary) and returns false, so the caller waits for more input.
func (d *Decoder) tryAdvanceScan() bool {
	idx := bytes.Index(d.buf[d.pos:], d.cfg.Delimiter[:])
	if idx < 0 {
		return false
	}
	d.pos += idx + len(d.cfg.Delimiter)
	d.scanning = false
	d.state = AwaitingKind
	return true
}

// compact drops the already-consumed prefix so the buffer does not grow
// without bound across a long-lived connection.
func (d *Decoder) compact() {
	if d.pos == 0 {
		return
	}
	remaining := len(d.buf) - d.pos
	copy(d.buf, d.buf[d.pos:])
	d.buf = d.buf[:remaining]
	d.pos = 0
}

