package liveengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoder_ExtractsMultipleFramesFromOneFeed(t *testing.T) {
	a := NewFrame(PacketChat, []byte("a")).Encode()
	b := NewFrame(PacketChat, []byte("bb")).Encode()

	d := NewDecoder()
	frames, err := d.Feed(append(a, b...))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, []byte("a"), frames[0].Payload)
	assert.Equal(t, []byte("bb"), frames[1].Payload)
}

// Scenario E5/property 12: a peer that sends one byte at a time and
// never completes a frame header never yields a frame, which is what
// makes the read loop built around Decoder slowloris-resistant.
func TestDecoder_SlowlorisSingleByteNeverProducesAFrame(t *testing.T) {
	f := NewFrame(PacketLogin, []byte("name\x00pw"))
	encoded := f.Encode()

	d := NewDecoder()
	for i := 0; i < len(encoded)-1; i++ {
		frames, err := d.Feed(encoded[i : i+1])
		require.NoError(t, err)
		assert.Empty(t, frames)
	}
	frames, err := d.Feed(encoded[len(encoded)-1:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
}
