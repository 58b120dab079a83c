package common

import "fmt"

// Kind discriminates the semantic handling of a Packet's payload at the
// application edge. The core only ever switches on the numeric tag.
type Kind uint8

const (
	KindAuth Kind = iota
	KindMessage
	KindBytes
	KindObject
	KindFile
	KindDirectory
	KindRequest
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "Auth"
	case KindMessage:
		return "Message"
	case KindBytes:
		return "Bytes"
	case KindObject:
		return "Object"
	case KindFile:
		return "File"
	case KindDirectory:
		return "Directory"
	case KindRequest:
		return "Request"
	case KindResponse:
		return "Response"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Flags is a bitset over the transform/metadata state of a Packet.
type Flags uint8

const (
	FlagCompressed Flags = 1 << iota
	FlagEncrypted
	FlagPartial
	FlagHasMetadata
	FlagHasPresharedKey
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Reserved header keys.
const (
	HeaderObjectType   = "object-type"
	HeaderContentLen   = "content-length"
	HeaderPartIndex    = "part-index"
	HeaderPartTotal    = "part-total"
	HeaderPartID       = "part-id"
	HeaderFilename     = "filename"
	HeaderPresharedTag = "preshared-hash"
	HeaderClientID     = "client-id"
	HeaderStatus       = "status"
)

var reservedHeaderKeys = map[string]bool{
	HeaderObjectType:   true,
	HeaderContentLen:   true,
	HeaderPartIndex:    true,
	HeaderPartTotal:    true,
	HeaderPartID:       true,
	HeaderFilename:     true,
	HeaderPresharedTag: true,
	HeaderClientID:     true,
	HeaderStatus:       true,
}

// HasCustomMetadata reports whether headers carries any key beyond the
// reserved set the pipeline itself manages, i.e. metadata a caller attached
// by writing directly into Packet.Headers.
func HasCustomMetadata(headers map[string]string) bool {
	for k := range headers {
		if !reservedHeaderKeys[k] {
			return true
		}
	}
	return false
}

// Packet is a logical message: the plaintext, uncompressed payload plus
// enough metadata for the pipeline to reconstruct the wire transforms.
type Packet struct {
	Kind          Kind
	Flags         Flags
	Headers       map[string]string
	Payload       []byte
	PresharedHash []byte
}

func newPacket(kind Kind, payload []byte, headers map[string]string) *Packet {
	if headers == nil {
		headers = make(map[string]string)
	}
	return &Packet{Kind: kind, Payload: payload, Headers: headers}
}

// NewAuth builds the handshake packet: preshared-key digest (hex) plus
// optional client identity headers (spec §6). The digest travels as a
// plain header, not through the encrypt-flag pipeline used for message
// payloads: it identifies which key the peer expects, it does not need
// confidentiality itself.
func NewAuth(presharedDigestHex string, clientID string) *Packet {
	pkt := newPacket(KindAuth, nil, nil)
	if presharedDigestHex != "" {
		pkt.Headers[HeaderPresharedTag] = presharedDigestHex
	}
	if clientID != "" {
		pkt.Headers[HeaderClientID] = clientID
	}
	return pkt
}

// NewMessage builds a text packet; payload is UTF-8.
func NewMessage(text string) *Packet {
	payload := []byte(text)
	pkt := newPacket(KindMessage, payload, nil)
	pkt.Headers[HeaderContentLen] = fmt.Sprintf("%d", len(payload))
	return pkt
}

// NewBytes builds an opaque byte payload packet.
func NewBytes(data []byte) *Packet {
	pkt := newPacket(KindBytes, data, nil)
	pkt.Headers[HeaderContentLen] = fmt.Sprintf("%d", len(data))
	return pkt
}

// NewObject builds a caller-schema-defined payload packet.
func NewObject(objectType string, data []byte) (*Packet, error) {
	if objectType == "" {
		return nil, wireErr(ErrInvalidPacket, "object packet requires object-type")
	}
	pkt := newPacket(KindObject, data, nil)
	pkt.Headers[HeaderObjectType] = objectType
	pkt.Headers[HeaderContentLen] = fmt.Sprintf("%d", len(data))
	return pkt, nil
}

// NewFile builds a file-transfer packet.
func NewFile(filename string, data []byte) (*Packet, error) {
	if filename == "" {
		return nil, wireErr(ErrInvalidPacket, "file packet requires filename")
	}
	pkt := newPacket(KindFile, data, nil)
	pkt.Headers[HeaderFilename] = filename
	pkt.Headers[HeaderContentLen] = fmt.Sprintf("%d", len(data))
	return pkt, nil
}

// NewDirectory builds a directory-transfer packet. The payload is expected
// to already be an archive produced by internal/archive; FlagCompressed is
// always set per spec §6.
func NewDirectory(archiveName string, archiveBytes []byte) (*Packet, error) {
	if archiveName == "" {
		return nil, wireErr(ErrInvalidPacket, "directory packet requires filename")
	}
	pkt := newPacket(KindDirectory, archiveBytes, nil)
	pkt.Headers[HeaderFilename] = archiveName
	pkt.Headers[HeaderContentLen] = fmt.Sprintf("%d", len(archiveBytes))
	pkt.Flags |= FlagCompressed
	return pkt, nil
}

// NewRequest builds a caller-schema request packet (SPEC_FULL §8).
func NewRequest(objectType string, data []byte) (*Packet, error) {
	if objectType == "" {
		return nil, wireErr(ErrInvalidPacket, "request packet requires object-type")
	}
	pkt := newPacket(KindRequest, data, nil)
	pkt.Headers[HeaderObjectType] = objectType
	pkt.Headers[HeaderContentLen] = fmt.Sprintf("%d", len(data))
	return pkt, nil
}

// NewResponse builds a response to a Request, carrying an application-level
// status distinct from transport/session failure (SPEC_FULL §8).
func NewResponse(status string, data []byte) (*Packet, error) {
	if status != "ok" && status != "error" {
		return nil, wireErr(ErrInvalidPacket, "response status must be ok or error, got %q", status)
	}
	pkt := newPacket(KindResponse, data, nil)
	pkt.Headers[HeaderStatus] = status
	pkt.Headers[HeaderContentLen] = fmt.Sprintf("%d", len(data))
	return pkt, nil
}

// MarkPartial tags a packet as one of a multi-part sequence (spec §4.5).
func (p *Packet) MarkPartial(partID string, index, total int) error {
	if index < 0 || total <= 0 || index >= total {
		return wireErr(ErrInvalidPacket, "part-index %d must be < part-total %d", index, total)
	}
	p.Flags |= FlagPartial
	p.Headers[HeaderPartID] = partID
	p.Headers[HeaderPartIndex] = fmt.Sprintf("%d", index)
	p.Headers[HeaderPartTotal] = fmt.Sprintf("%d", total)
	return nil
}

// Validate enforces the invariants of spec §3 against an already-built
// Packet (used by the decode path after headers/payload are known).
func (p *Packet) Validate() error {
	// Encryption (EncryptionPassphrase) and the preshared key are
	// independently optional (spec §6): a session can encrypt with only
	// a passphrase and never set FlagHasPresharedKey at all. Gate the
	// preshared-hash requirement on that flag, not on FlagEncrypted, or
	// every passphrase-only encrypted packet fails this check.
	if p.Flags.Has(FlagHasPresharedKey) && len(p.PresharedHash) == 0 {
		return wireErr(ErrInvalidPacket, "packet flagged has-preshared-key but missing preshared-hash")
	}
	if p.Flags.Has(FlagHasMetadata) != HasCustomMetadata(p.Headers) {
		return wireErr(ErrInvalidPacket, "has-metadata flag does not match header contents")
	}
	if cl, ok := p.Headers[HeaderContentLen]; ok {
		want := fmt.Sprintf("%d", len(p.Payload))
		if cl != want {
			return wireErr(ErrInvalidPacket, "content-length header %q does not match payload length %d", cl, len(p.Payload))
		}
	}
	if p.Flags.Has(FlagPartial) {
		idx, total, err := p.PartBounds()
		if err != nil {
			return err
		}
		if idx >= total {
			return wireErr(ErrInvalidPacket, "part-index %d must be < part-total %d", idx, total)
		}
	}
	return nil
}

// PartBounds parses the part-index/part-total headers.
func (p *Packet) PartBounds() (index, total int, err error) {
	index, err = parseHeaderInt(p.Headers, HeaderPartIndex)
	if err != nil {
		return 0, 0, err
	}
	total, err = parseHeaderInt(p.Headers, HeaderPartTotal)
	if err != nil {
		return 0, 0, err
	}
	return index, total, nil
}

func parseHeaderInt(h map[string]string, key string) (int, error) {
	v, ok := h[key]
	if !ok {
		return 0, wireErr(ErrInvalidPacket, "missing required header %q", key)
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return 0, wireErr(ErrInvalidPacket, "header %q is not an integer: %q", key, v)
	}
	return n, nil
}
