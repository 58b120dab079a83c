package common

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// PresharedDigest returns a fixed-width tag identifying secret. It binds a
// packet to the key the peer is expected to hold; it is not an integrity
// check (that rides on the cipher's AEAD tag).
func PresharedDigest(secret []byte) []byte {
	sum := sha256.Sum256(secret)
	return sum[:]
}

// PresharedDigestHex is the header-carried form (spec §6: "preshared-hash
// (hex)").
func PresharedDigestHex(secret []byte) string {
	return hex.EncodeToString(PresharedDigest(secret))
}

// VerifyPresharedDigest compares a received digest against the configured
// secret in constant time.
func VerifyPresharedDigest(secret, received []byte) bool {
	want := PresharedDigest(secret)
	return subtle.ConstantTimeCompare(want, received) == 1
}
