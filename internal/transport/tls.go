package transport

import "crypto/tls"

// LoadServerTLSConfig loads a certificate/key pair for server-side TLS.
// Certificate provisioning policy (rotation, ACME, CA pinning, ...) is
// explicitly out of the core's scope per spec §1; this is the thinnest
// wrapper that turns files on disk into a *tls.Config.
func LoadServerTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}

// ClientTLSConfig returns a minimal client-side tls.Config. serverName
// drives certificate hostname verification; insecureSkipVerify exists for
// local development against a self-signed server and must never default
// to true.
func ClientTLSConfig(serverName string, insecureSkipVerify bool) *tls.Config {
	return &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: insecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
}
