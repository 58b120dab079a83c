package common

import (
	"bytes"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/flate"
)

// Compress runs payload through the configured algorithm. No in-place
// mutation: a fresh slice is always returned.
func Compress(algo CompressionAlgorithm, payload []byte) ([]byte, error) {
	switch algo {
	case CompressionSnappy:
		return snappy.Encode(nil, payload), nil
	case CompressionFlate:
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, wireErr(ErrCompressionFailed, "%v", err)
		}
		if _, err := w.Write(payload); err != nil {
			return nil, wireErr(ErrCompressionFailed, "%v", err)
		}
		if err := w.Close(); err != nil {
			return nil, wireErr(ErrCompressionFailed, "%v", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, wireErr(ErrCompressionFailed, "unknown algorithm %d", algo)
	}
}

// Decompress reverses Compress. Corrupt input surfaces as
// ErrDecompressionFailed.
func Decompress(algo CompressionAlgorithm, payload []byte) ([]byte, error) {
	switch algo {
	case CompressionSnappy:
		out, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, wireErr(ErrDecompressionFailed, "%v", err)
		}
		return out, nil
	case CompressionFlate:
		r := flate.NewReader(bytes.NewReader(payload))
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, wireErr(ErrDecompressionFailed, "%v", err)
		}
		return out, nil
	default:
		return nil, wireErr(ErrDecompressionFailed, "unknown algorithm %d", algo)
	}
}
