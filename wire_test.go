package sp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildVerifyHandshake(t *testing.T) {
	out := buildHandshake(Req)
	require.Len(t, out, handshakeSize)
	require.NoError(t, verifyHandshake(out, Req))
	require.Error(t, verifyHandshake(out, Rep))
}

func TestVerifyHandshakeRejectsGarbage(t *testing.T) {
	require.ErrorIs(t, verifyHandshake([]byte{1, 2, 3}, Req), ErrInvalidData)
	bad := buildHandshake(Push)
	bad[1] = 'X'
	require.ErrorIs(t, verifyHandshake(bad, Push), ErrInvalidData)
}

func TestEncodeDecodeLength(t *testing.T) {
	b := encodeLength(1234)
	n, err := decodeLength(b, 1<<20)
	require.NoError(t, err)
	require.Equal(t, 1234, n)

	big := encodeLength(1 << 20)
	_, err = decodeLength(big, 1<<10)
	require.ErrorIs(t, err, ErrInvalidData)
}

func TestEncodeDecodeID(t *testing.T) {
	id := uint32(0x80000042)
	header := encodeID(id)
	got, ok := decodeID(header)
	require.True(t, ok)
	require.Equal(t, id, got)

	_, ok = decodeID([]byte{1, 2})
	require.False(t, ok)
}

func TestSplitID(t *testing.T) {
	header := encodeID(7)
	body := append(append([]byte{}, header...), []byte("payload")...)
	id, rest, ok := splitID(body)
	require.True(t, ok)
	require.Equal(t, uint32(7), id)
	require.Equal(t, []byte("payload"), rest)
}

func TestPeerCompatibility(t *testing.T) {
	require.True(t, compatible(Req, Rep))
	require.True(t, compatible(Push, Pull))
	require.True(t, compatible(Surveyor, Respondent))
	require.True(t, compatible(Bus, Bus))
	require.False(t, compatible(Req, Req))
	require.False(t, compatible(Pub, Req))
}
