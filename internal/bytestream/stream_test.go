package bytestream

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_ReadExact_UnexpectedEOF(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	b, err := r.ReadExact(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)

	_, err = r.ReadExact(1)
	assert.ErrorIs(t, err, ErrUnexpectedEOF)
}

func TestReader_ScalarReads(t *testing.T) {
	r := NewReader([]byte{0x07, 0x34, 0x12, 0x78, 0x56, 0x34, 0x12})
	u8, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x07), u8)

	u16, err := r.ReadU16LE()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16)

	u32, err := r.ReadU32LE()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), u32)
}

func TestReader_ReadString_ReadsOnlyPrefixedLength(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.WriteString("hello"))
	w.WriteBytes([]byte{0xFF, 0xFE})

	r := NewReader(w.Bytes())
	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
	assert.Equal(t, 2, r.Len())
}

func TestReader_ReadString_InvalidUTF8Replaced(t *testing.T) {
	raw := []byte{0x03, 0x00, 'a', 0xFF, 'b'}
	r := NewReader(raw)
	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Contains(t, s, "a")
	assert.Contains(t, s, "b")
	assert.NotContains(t, s, string(rune(0xFF)))
}

func TestWriter_StringTooLong(t *testing.T) {
	w := NewWriter()
	err := w.WriteString(string(make([]byte, MaxStringLen+1)))
	assert.Error(t, err)
}

func TestWriter_RoundTripViaFilesystem(t *testing.T) {
	fs := memfs.New()
	w := NewWriter()
	w.WriteU32LE(0xDEADBEEF)
	require.NoError(t, w.WriteString("map.otbm"))

	require.NoError(t, w.WriteTo(fs, "out.bin"))

	r, err := OpenReader(fs, "out.bin")
	require.NoError(t, err)

	v, err := r.ReadU32LE()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), v)

	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "map.otbm", s)
}

func TestReader_PeekByte(t *testing.T) {
	r := NewReader([]byte{0x42})
	b, ok := r.PeekByte()
	require.True(t, ok)
	assert.Equal(t, byte(0x42), b)
	assert.Equal(t, 1, r.Len())

	_, _ = r.ReadU8()
	_, ok = r.PeekByte()
	assert.False(t, ok)
}
