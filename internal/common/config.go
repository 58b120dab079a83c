package common

import (
	"crypto/rand"
	"io"
	"time"
)

// CompressionAlgorithm selects which codec Compress/Decompress use.
type CompressionAlgorithm uint8

const (
	CompressionFlate CompressionAlgorithm = iota
	CompressionSnappy
)

// Delimiter is the fixed 4-byte frame resync sentinel, shared between
// peers and fixed at build time (spec §6).
var Delimiter = [4]byte{0xC0, 0xDE, 0xFA, 0xCE}

// Config carries every knob the core recognises (spec §6).
type Config struct {
	MaxHeaderBytes  int
	MaxPayloadBytes int
	ReadBufferBytes int
	IdleTimeout     time.Duration
	WriteTimeout    time.Duration

	EncryptionPassphrase []byte
	PresharedKey         []byte

	// NonceSource supplies the AEAD nonce for every Encrypt call Encode
	// makes. Defaults to crypto/rand.Reader; tests substitute a fixed
	// source to get deterministic, byte-identical frames for identical
	// inputs.
	NonceSource io.Reader

	CompressionEnabled   bool
	CompressionAlgorithm CompressionAlgorithm

	Delimiter [4]byte
}

// NewDefaultConfig mirrors the teacher's NewDefaultOptions shape
// (internal/server/options.go): a constructor returning sane defaults,
// mutated by functional options.
func NewDefaultConfig(opts ...func(*Config)) *Config {
	cfg := &Config{
		MaxHeaderBytes:       64 << 10,
		MaxPayloadBytes:      256 << 20,
		ReadBufferBytes:      16 << 10,
		IdleTimeout:          60 * time.Second,
		WriteTimeout:         30 * time.Second,
		CompressionEnabled:   false,
		CompressionAlgorithm: CompressionFlate,
		NonceSource:          rand.Reader,
		Delimiter:            Delimiter,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *Config) EncryptionEnabled() bool {
	return len(c.EncryptionPassphrase) > 0
}
