package reassemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pxsock/pxsock/internal/common"
)

func partPacket(t *testing.T, partID string, index, total int, data []byte) *common.Packet {
	t.Helper()
	pkt := common.NewBytes(data)
	require.NoError(t, pkt.MarkPartial(partID, index, total))
	return pkt
}

func TestAssemblerReassemblesInOrder(t *testing.T) {
	a := New()

	_, ok, err := a.Feed(partPacket(t, "msg-1", 0, 3, []byte("foo")))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = a.Feed(partPacket(t, "msg-1", 1, 3, []byte("bar")))
	require.NoError(t, err)
	assert.False(t, ok)

	payload, ok, err := a.Feed(partPacket(t, "msg-1", 2, 3, []byte("baz")))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("foobarbaz"), payload)
}

func TestAssemblerReassemblesOutOfOrder(t *testing.T) {
	a := New()

	_, ok, err := a.Feed(partPacket(t, "msg-2", 2, 3, []byte("baz")))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = a.Feed(partPacket(t, "msg-2", 0, 3, []byte("foo")))
	require.NoError(t, err)
	assert.False(t, ok)

	payload, ok, err := a.Feed(partPacket(t, "msg-2", 1, 3, []byte("bar")))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("foobarbaz"), payload)
}

func TestAssemblerRejectsNonPartialPacket(t *testing.T) {
	a := New()
	_, _, err := a.Feed(common.NewBytes([]byte("whole")))
	assert.Error(t, err)
}

func TestAssemblerRejectsChangingPartTotal(t *testing.T) {
	a := New()
	_, _, err := a.Feed(partPacket(t, "msg-3", 0, 3, []byte("a")))
	require.NoError(t, err)

	_, _, err = a.Feed(partPacket(t, "msg-3", 1, 5, []byte("b")))
	assert.Error(t, err)
}

func TestAssemblerAbandonDropsPendingState(t *testing.T) {
	a := New()
	_, _, err := a.Feed(partPacket(t, "msg-4", 0, 2, []byte("x")))
	require.NoError(t, err)

	a.Abandon("msg-4")

	// Restarting msg-4 from index 0 should succeed as if fresh, proving the
	// prior partial state was actually discarded rather than merged.
	payload, ok, err := a.Feed(partPacket(t, "msg-4", 0, 2, []byte("y")))
	require.NoError(t, err)
	assert.False(t, ok)

	payload, ok, err = a.Feed(partPacket(t, "msg-4", 1, 2, []byte("z")))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("yz"), payload)
}

func TestAssemblerHandlesMultiplePartIDs(t *testing.T) {
	a := New()

	_, ok, err := a.Feed(partPacket(t, "a", 0, 1, []byte("A")))
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = a.Feed(partPacket(t, "b", 0, 2, []byte("B0")))
	require.NoError(t, err)
	require.False(t, ok)

	payload, ok, err := a.Feed(partPacket(t, "b", 1, 2, []byte("B1")))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("B0B1"), payload)
}
