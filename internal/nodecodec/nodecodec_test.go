package nodecodec

import (
	"testing"

	"github.com/rme-go/canary-core/internal/bytestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A payload containing every special byte (0xFE, 0xFF, 0xFD) must come
// back out byte-stuffed so the framing bytes stay unambiguous.
func TestEncodeNode_ByteStuffsSpecialBytes(t *testing.T) {
	got := EncodeNode(0x10, []byte{0xFE, 0x00, 0xFF, 0xFD})
	want := []byte{0xFE, 0x10, 0xFD, 0xFE, 0x00, 0xFD, 0xFF, 0xFD, 0xFD, 0xFF}
	assert.Equal(t, want, got)
}

func TestEncodeNode_SpecialBytesRoundTrip(t *testing.T) {
	encoded := EncodeNode(0x10, []byte{0xFE, 0x00, 0xFF, 0xFD})
	r := bytestream.NewReader(encoded)

	typ, pr, err := BeginNode(r)
	require.NoError(t, err)
	assert.Equal(t, byte(0x10), typ)

	b1, ok, err := pr.ReadEscapedU8()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(0xFE), b1)

	b2, ok, err := pr.ReadEscapedU8()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(0x00), b2)

	b3, ok, err := pr.ReadEscapedU8()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(0xFF), b3)

	b4, ok, err := pr.ReadEscapedU8()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(0xFD), b4)

	delim, err := pr.DrainToDelimiter()
	require.NoError(t, err)
	assert.Equal(t, NodeEnd, delim)
	require.NoError(t, ReadChildren(r, delim, nil))
	assert.Equal(t, 0, r.Len())
}

// Property 2 (escape law): unescape(escape(p)) == p for all payload bytes.
func TestEscapeLaw(t *testing.T) {
	for b := 0; b < 256; b++ {
		payload := []byte{byte(b), byte(b), 0x41}
		escaped := EscapePayload(payload)

		encoded := EncodeNode(0x01, payload)
		r := bytestream.NewReader(encoded)
		_, pr, err := BeginNode(r)
		require.NoError(t, err)
		got, err := pr.ReadEscapedBytes(len(payload))
		require.NoError(t, err)
		assert.Equal(t, payload, got, "byte value %d", b)

		if byte(b) == EscapeByte || byte(b) == NodeStart || byte(b) == NodeEnd {
			assert.Equal(t, len(payload)+2, len(escaped))
		}
	}
}

// Property 1: node grammar round trip, with nested children.
func TestNodeRoundTrip_Nested(t *testing.T) {
	grandchild := EncodeNode(0x03, []byte{0x09, 0x08})
	child := EncodeNode(0x02, []byte{0xFF, 0xFE}, grandchild)
	root := EncodeNode(0x01, []byte{0x01, 0x02, 0x03}, child)

	r := bytestream.NewReader(root)
	typ, pr, err := BeginNode(r)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), typ)

	payload, err := pr.ReadEscapedBytes(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, payload)

	delim, err := pr.DrainToDelimiter()
	require.NoError(t, err)
	assert.Equal(t, NodeStart, delim)

	var sawChild, sawGrandchild bool
	err = ReadChildren(r, delim, func(childType byte, childPR *PayloadReader) error {
		sawChild = true
		assert.Equal(t, byte(0x02), childType)
		cp, err := childPR.ReadEscapedBytes(2)
		require.NoError(t, err)
		assert.Equal(t, []byte{0xFF, 0xFE}, cp)

		cdelim, err := childPR.DrainToDelimiter()
		require.NoError(t, err)
		assert.Equal(t, NodeStart, cdelim)

		return ReadChildren(r, cdelim, func(gcType byte, gcPR *PayloadReader) error {
			sawGrandchild = true
			assert.Equal(t, byte(0x03), gcType)
			gp, err := gcPR.ReadEscapedBytes(2)
			require.NoError(t, err)
			assert.Equal(t, []byte{0x09, 0x08}, gp)
			gdelim, err := gcPR.DrainToDelimiter()
			require.NoError(t, err)
			return ReadChildren(r, gdelim, nil)
		})
	})
	require.NoError(t, err)
	assert.True(t, sawChild)
	assert.True(t, sawGrandchild)
	assert.Equal(t, 0, r.Len())
}

func TestSkipRemainder_UnknownNode(t *testing.T) {
	inner := EncodeNode(0x99, []byte{0x01})
	unknown := EncodeNode(0xAA, []byte{0x02, 0x03}, inner)
	known := EncodeNode(0x05, nil)
	root := EncodeNode(0x01, nil, unknown, known)

	r := bytestream.NewReader(root)
	_, pr, err := BeginNode(r)
	require.NoError(t, err)
	delim, err := pr.DrainToDelimiter()
	require.NoError(t, err)

	var sawKnown bool
	err = ReadChildren(r, delim, func(childType byte, childPR *PayloadReader) error {
		if childType == 0xAA {
			return SkipRemainder(r, childPR)
		}
		sawKnown = true
		assert.Equal(t, byte(0x05), childType)
		cd, err := childPR.DrainToDelimiter()
		require.NoError(t, err)
		return ReadChildren(r, cd, nil)
	})
	require.NoError(t, err)
	assert.True(t, sawKnown)
	assert.Equal(t, 0, r.Len())
}

func TestOpenRoot_BadMagic(t *testing.T) {
	r := bytestream.NewReader([]byte{0x00, 0x00, 0x00, 0x00})
	_, err := OpenRoot(r, [4]byte{'O', 'T', 'B', 'M'})
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindBadMagic, ce.Kind)
}

func TestOpenRoot_SiblingDelegation(t *testing.T) {
	r := bytestream.NewReader([]byte("OTMM"))
	matched, err := OpenRoot(r, [4]byte{'O', 'T', 'B', 'M'}, [4]byte{'O', 'T', 'M', 'M'})
	require.NoError(t, err)
	assert.Equal(t, [4]byte{'O', 'T', 'M', 'M'}, matched)
}

func TestUnexpectedEOF(t *testing.T) {
	r := bytestream.NewReader([]byte{NodeStart, 0x01, 0x02})
	_, pr, err := BeginNode(r)
	require.NoError(t, err)
	_, err = pr.ReadEscapedBytes(5)
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindUnexpectedEOF, ce.Kind)
}
