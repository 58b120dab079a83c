// Package reassemble offers an opt-in helper for callers that would
// rather not track part-id/part-index/part-total headers themselves. The
// core decoder never buffers across packets (spec §4.5); this package is
// the caller-side reassembly contract the spec explicitly delegates.
package reassemble

import (
	"fmt"
	"sync"

	"github.com/kelindar/bitmap"

	"github.com/pxsock/pxsock/internal/common"
)

// pending tracks the parts seen so far for one part-id.
type pending struct {
	total  int
	seen   bitmap.Bitmap
	parts  [][]byte
	kind   common.Kind
}

// Assembler reassembles multi-part Packets keyed by their part-id header.
// Grounded on Pablu23-Uftp/internal/client/client.go, which tracks
// received UDP datagram indices in a kelindar/bitmap.Bitmap to know which
// pieces of a transfer are still missing; here the same bitmap tracks
// which part-index values of a single logical message have arrived.
type Assembler struct {
	mu      sync.Mutex
	pending map[string]*pending
}

// New creates an empty Assembler.
func New() *Assembler {
	return &Assembler{pending: make(map[string]*pending)}
}

// Feed offers one partial Packet to the assembler. It returns the
// complete, concatenated payload once every part-index below part-total
// has arrived; otherwise it returns ok=false while more parts are
// awaited.
func (a *Assembler) Feed(pkt *common.Packet) (payload []byte, ok bool, err error) {
	if !pkt.Flags.Has(common.FlagPartial) {
		return nil, false, fmt.Errorf("reassemble: packet is not marked partial")
	}
	partID, present := pkt.Headers[common.HeaderPartID]
	if !present {
		return nil, false, fmt.Errorf("reassemble: partial packet missing part-id header")
	}
	index, total, err := pkt.PartBounds()
	if err != nil {
		return nil, false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	p, exists := a.pending[partID]
	if !exists {
		p = &pending{total: total, parts: make([][]byte, total), kind: pkt.Kind}
		p.seen.Grow(uint32(total))
		a.pending[partID] = p
	}
	if total != p.total {
		return nil, false, fmt.Errorf("reassemble: part-total changed mid-stream for %q", partID)
	}

	p.parts[index] = pkt.Payload
	p.seen.Set(uint32(index))

	if int(p.seen.Count()) < p.total {
		return nil, false, nil
	}

	delete(a.pending, partID)
	total = p.total
	size := 0
	for _, part := range p.parts {
		size += len(part)
	}
	out := make([]byte, 0, size)
	for _, part := range p.parts {
		out = append(out, part...)
	}
	return out, true, nil
}

// Abandon discards in-progress state for partID, e.g. when a session
// closes before every part arrives.
func (a *Assembler) Abandon(partID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, partID)
}
