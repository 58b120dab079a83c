package server

import (
	"time"

	"github.com/pxsock/pxsock/internal/common"
)

// Options configures a Server. Grounded on
// Pablu23-Uftp/internal/server/options.go's Options/NewDefaultOptions
// functional-options shape, extended to the full configuration surface
// spec §6 names.
type Options struct {
	Address string

	// Datapath roots the filenames carried on Directory packets, which
	// the server extracts beneath it, the same containment role as the
	// teacher's server.parentFilePath. File packets go to the Handler
	// and are not written here.
	Datapath string

	TLSCertFile string
	TLSKeyFile  string
	RequireTLS  bool

	Wire *common.Config
}

// NewDefaultOptions mirrors the teacher's constructor: sane defaults,
// mutated by functional options passed to New.
func NewDefaultOptions() *Options {
	return &Options{
		Address:  "0.0.0.0:9443",
		Datapath: "./data/",
		Wire:     common.NewDefaultConfig(),
	}
}

// WithAddress sets the listen address.
func WithAddress(addr string) func(*Options) {
	return func(o *Options) { o.Address = addr }
}

// WithTLS enables TLS with the given certificate/key pair.
func WithTLS(certFile, keyFile string) func(*Options) {
	return func(o *Options) {
		o.TLSCertFile = certFile
		o.TLSKeyFile = keyFile
		o.RequireTLS = true
	}
}

// WithPresharedKey sets the secret Auth packets are checked against.
func WithPresharedKey(key []byte) func(*Options) {
	return func(o *Options) { o.Wire.PresharedKey = key }
}

// WithEncryptionPassphrase enables per-message encryption.
func WithEncryptionPassphrase(passphrase []byte) func(*Options) {
	return func(o *Options) { o.Wire.EncryptionPassphrase = passphrase }
}

// WithCompression toggles the codec-level compression pipeline stage.
func WithCompression(enabled bool, algo common.CompressionAlgorithm) func(*Options) {
	return func(o *Options) {
		o.Wire.CompressionEnabled = enabled
		o.Wire.CompressionAlgorithm = algo
	}
}

// WithIdleTimeout overrides the default idle timeout.
func WithIdleTimeout(d time.Duration) func(*Options) {
	return func(o *Options) { o.Wire.IdleTimeout = d }
}
