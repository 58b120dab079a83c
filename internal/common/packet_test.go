package common

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewMessageSetsContentLength(t *testing.T) {
	pkt := NewMessage("hello")

	want := Packet{
		Kind:    KindMessage,
		Headers: map[string]string{HeaderContentLen: "5"},
		Payload: []byte("hello"),
	}

	if !cmp.Equal(*pkt, want) {
		t.Errorf("NewMessage(%q) = %+v, want %+v", "hello", *pkt, want)
	}
}

func TestNewFileRequiresFilename(t *testing.T) {
	if _, err := NewFile("", []byte("data")); err == nil {
		t.Fatal("expected error for empty filename")
	}
}

func TestNewDirectorySetsCompressedFlag(t *testing.T) {
	pkt, err := NewDirectory("archive.tar.gz", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pkt.Flags.Has(FlagCompressed) {
		t.Errorf("directory packet should always set FlagCompressed")
	}
}

func TestMarkPartialRejectsIndexOutOfRange(t *testing.T) {
	pkt := NewBytes([]byte("x"))
	if err := pkt.MarkPartial("msg-1", 3, 3); err == nil {
		t.Fatal("expected error when index == total")
	}
	if err := pkt.MarkPartial("msg-1", 1, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkt.Headers[HeaderPartIndex] != "1" || pkt.Headers[HeaderPartTotal] != "3" {
		t.Errorf("part headers not set: %+v", pkt.Headers)
	}
}

func TestValidateAllowsEncryptedPacketWithoutPresharedKey(t *testing.T) {
	pkt := NewBytes([]byte("x"))
	pkt.Flags |= FlagEncrypted
	if err := pkt.Validate(); err != nil {
		t.Fatalf("passphrase-only encryption without a preshared key must validate: %v", err)
	}
}

func TestValidateRejectsHasPresharedKeyFlagWithoutHash(t *testing.T) {
	pkt := NewBytes([]byte("x"))
	pkt.Flags |= FlagEncrypted | FlagHasPresharedKey
	if err := pkt.Validate(); err == nil {
		t.Fatal("expected error when FlagHasPresharedKey is set but PresharedHash is empty")
	}
	pkt.PresharedHash = []byte{0x01, 0x02}
	if err := pkt.Validate(); err != nil {
		t.Fatalf("unexpected error once PresharedHash is present: %v", err)
	}
}

func TestValidateRejectsContentLengthMismatch(t *testing.T) {
	pkt := NewBytes([]byte("hello"))
	pkt.Headers[HeaderContentLen] = "999"
	if err := pkt.Validate(); err == nil {
		t.Fatal("expected error for content-length mismatch")
	}
}

func TestHasCustomMetadataIgnoresReservedHeaders(t *testing.T) {
	pkt := NewBytes([]byte("x"))
	if HasCustomMetadata(pkt.Headers) {
		t.Fatalf("reserved headers alone should not count as custom metadata: %+v", pkt.Headers)
	}
	pkt.Headers["x-trace-id"] = "abc123"
	if !HasCustomMetadata(pkt.Headers) {
		t.Fatalf("expected custom header to be detected: %+v", pkt.Headers)
	}
}

func TestValidateRejectsHasMetadataFlagMismatch(t *testing.T) {
	pkt := NewBytes([]byte("x"))
	pkt.Headers["x-trace-id"] = "abc123"
	if err := pkt.Validate(); err == nil {
		t.Fatal("expected error when FlagHasMetadata is unset but custom headers are present")
	}
	pkt.Flags |= FlagHasMetadata
	if err := pkt.Validate(); err != nil {
		t.Fatalf("unexpected error once flag matches headers: %v", err)
	}
}

func TestNewResponseRejectsUnknownStatus(t *testing.T) {
	if _, err := NewResponse("maybe", nil); err == nil {
		t.Fatal("expected error for invalid status")
	}
	if _, err := NewResponse("ok", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
