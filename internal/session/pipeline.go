// Package session implements the per-connection driver of spec §4.6: the
// message pipeline (build/parse, spec §4.5) and the state machine that
// drives a Decoder over inbound bytes and serialises outbound sends.
package session

import (
	"github.com/pxsock/pxsock/internal/common"
)

// Pipeline implements the outbound build and inbound parse steps of
// spec §4.5, on top of the codec primitives and wire encoder/decoder of
// internal/common. Grounded on the teacher's SendPacket/ReceivePacket
// (internal/client/client.go) and sendPacket/handlePacket
// (internal/server/server.go), which each fuse "build value, crypto
// layer, write/read bytes" into one call; split here into the five
// explicit steps the spec names.
type Pipeline struct {
	cfg *common.Config
}

// NewPipeline builds a Pipeline bound to cfg's compression/encryption
// policy.
func NewPipeline(cfg *common.Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Build serialises pkt to the wire frame that should be written to the
// transport. Compression and encryption (steps 2-3 of spec §4.5) are
// applied by common.Encode according to Pipeline's Config.
func (p *Pipeline) Build(pkt *common.Packet) ([]byte, error) {
	return common.Encode(pkt, p.cfg)
}

// Parse reverses a frame the Decoder has already reassembled into a raw
// Packet (still carrying its wire-level compressed/encrypted payload).
// It verifies the preshared-key digest, decrypts, and decompresses, per
// spec §4.5's five parse steps.
func (p *Pipeline) Parse(raw *common.Packet) (*common.Packet, error) {
	pkt := &common.Packet{
		Kind:          raw.Kind,
		Flags:         raw.Flags,
		Headers:       raw.Headers,
		Payload:       raw.Payload,
		PresharedHash: raw.PresharedHash,
	}

	if pkt.Flags.Has(common.FlagEncrypted) {
		if len(p.cfg.PresharedKey) > 0 {
			if len(pkt.PresharedHash) == 0 || !common.VerifyPresharedDigest(p.cfg.PresharedKey, pkt.PresharedHash) {
				return nil, &common.WireError{Kind: common.ErrIntegrityFailure, Msg: "preshared-key digest mismatch"}
			}
		}
		plaintext, err := common.Decrypt(pkt.Payload, p.cfg.EncryptionPassphrase)
		if err != nil {
			return nil, err
		}
		pkt.Payload = plaintext
	}

	if pkt.Flags.Has(common.FlagCompressed) && pkt.Kind != common.KindDirectory {
		plain, err := common.Decompress(p.cfg.CompressionAlgorithm, pkt.Payload)
		if err != nil {
			return nil, err
		}
		pkt.Payload = plain
	}

	if err := pkt.Validate(); err != nil {
		return nil, err
	}
	return pkt, nil
}
