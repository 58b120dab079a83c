package common

import (
	"crypto/rand"
	"encoding/binary"
	"sort"
	"strings"
)

// Encode serialises pkt into a framed byte sequence per spec §4.3:
//
//	kind(1) | header-len(2, BE) | headers | flags(1) | payload-len(4, BE) | payload | delimiter(4)
//
// Transform order: compress, then encrypt (compressing ciphertext is
// futile; encrypting compressed data hides size patterns better than the
// reverse).
func Encode(pkt *Packet, cfg *Config) ([]byte, error) {
	payload := pkt.Payload
	flags := pkt.Flags
	headers := cloneHeaders(pkt.Headers)

	// FlagHasMetadata reflects the headers actually on the wire, not
	// whatever the caller happened to set on pkt.Flags, so a peer can
	// check it without decoding every header key looking for one it
	// doesn't recognise.
	if HasCustomMetadata(headers) {
		flags |= FlagHasMetadata
	} else {
		flags &^= FlagHasMetadata
	}

	// Directory payloads are pre-compressed by the archive service
	// (internal/archive) and already carry FlagCompressed from
	// NewDirectory; they must not be run back through the generic codec.
	// Every other kind is compressed whenever the caller has turned
	// compression on for the session, per spec §4.5 step 2: the codec,
	// not the packet constructor, decides whether compression applies.
	if cfg.CompressionEnabled && pkt.Kind != KindDirectory {
		compressed, err := Compress(cfg.CompressionAlgorithm, payload)
		if err != nil {
			return nil, err
		}
		payload = compressed
		flags |= FlagCompressed
	}

	if cfg.EncryptionEnabled() {
		nonceSource := cfg.NonceSource
		if nonceSource == nil {
			nonceSource = rand.Reader
		}
		ciphertext, err := Encrypt(payload, cfg.EncryptionPassphrase, nonceSource)
		if err != nil {
			return nil, err
		}
		payload = ciphertext
		flags |= FlagEncrypted
		if len(cfg.PresharedKey) > 0 {
			headers[HeaderPresharedTag] = PresharedDigestHex(cfg.PresharedKey)
			flags |= FlagHasPresharedKey
		}
	}

	headerBytes, err := encodeHeaders(headers)
	if err != nil {
		return nil, err
	}
	if len(headerBytes) > cfg.MaxHeaderBytes {
		return nil, wireErr(ErrTooLarge, "header length %d exceeds cap %d", len(headerBytes), cfg.MaxHeaderBytes)
	}
	if len(payload) > cfg.MaxPayloadBytes {
		return nil, wireErr(ErrTooLarge, "payload length %d exceeds cap %d", len(payload), cfg.MaxPayloadBytes)
	}

	out := make([]byte, 0, 8+len(headerBytes)+len(payload)+len(cfg.Delimiter))
	out = append(out, byte(pkt.Kind))

	var headerLen [2]byte
	binary.BigEndian.PutUint16(headerLen[:], uint16(len(headerBytes)))
	out = append(out, headerLen[:]...)
	out = append(out, headerBytes...)

	out = append(out, byte(flags))

	var payloadLen [4]byte
	binary.BigEndian.PutUint32(payloadLen[:], uint32(len(payload)))
	out = append(out, payloadLen[:]...)
	out = append(out, payload...)

	out = append(out, cfg.Delimiter[:]...)
	return out, nil
}

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// encodeHeaders serialises headers as UTF-8 "key=value\n" pairs (spec §6),
// keys sorted lexically so that two Packets with identical headers always
// produce byte-identical header bytes; Go map iteration order is randomised
// per-run and would otherwise make Encode's output nondeterministic.
func encodeHeaders(headers map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := headers[k]
		if strings.ContainsAny(k, "=\n") || strings.ContainsAny(v, "=\n") {
			return nil, wireErr(ErrFraming, "header %q=%q contains a forbidden character", k, v)
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

func decodeHeaders(data []byte) (map[string]string, error) {
	headers := make(map[string]string)
	if len(data) == 0 {
		return headers, nil
	}
	for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, wireErr(ErrFraming, "malformed header entry %q", line)
		}
		key, val := line[:idx], line[idx+1:]
		if key == "" {
			return nil, wireErr(ErrFraming, "empty header key in %q", line)
		}
		if _, dup := headers[key]; dup {
			return nil, wireErr(ErrFraming, "duplicate header key %q", key)
		}
		headers[key] = val
	}
	return headers, nil
}
