package liveengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCursor_Is14Bytes(t *testing.T) {
	b := EncodeCursor(7, -100, 250, 3)
	assert.Len(t, b, 14)

	id, x, y, z, err := DecodeCursor(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), id)
	assert.Equal(t, int32(-100), x)
	assert.Equal(t, int32(250), y)
	assert.Equal(t, uint16(3), z)
}

func TestEncodeChat_RoundTrip(t *testing.T) {
	b := EncodeChat(3, "Alice", "hello there")
	id, name, msg := DecodeChat(b)
	assert.Equal(t, uint32(3), id)
	assert.Equal(t, "Alice", name)
	assert.Equal(t, "hello there", msg)
}

func TestDecodeChat_ShortPayloadIsDefensive(t *testing.T) {
	id, name, msg := DecodeChat([]byte{1, 2})
	assert.Equal(t, uint32(0), id)
	assert.Equal(t, "", name)
	assert.Equal(t, "", msg)
}

func TestDecodeMapRequest_AreaCap(t *testing.T) {
	// Exactly 65536 tiles: 256 x 256.
	payload := EncodeMapRequest(0, 0, 255, 255, 7)
	_, _, _, _, _, tooLarge, err := DecodeMapRequest(payload)
	require.NoError(t, err)
	assert.False(t, tooLarge)

	// One tile over the cap.
	payload = EncodeMapRequest(0, 0, 256, 255, 7)
	_, _, _, _, _, tooLarge, err = DecodeMapRequest(payload)
	require.NoError(t, err)
	assert.True(t, tooLarge)
}

func TestFrameDecoder_RejectsOversizedFrameBeforeFullPayloadArrives(t *testing.T) {
	d := NewDecoder()
	header := make([]byte, FrameHeaderSize)
	header[0] = 1 // version
	header[2] = byte(PacketTileUpdate)
	oversized := uint32(MaxPayloadSize + 1)
	header[4] = byte(oversized)
	header[5] = byte(oversized >> 8)
	header[6] = byte(oversized >> 16)
	header[7] = byte(oversized >> 24)

	// Feed only the header plus one byte of payload: the decoder must
	// reject immediately, never waiting for the rest of the declared
	// payload to arrive.
	_, err := d.Feed(append(header, 0x00))
	require.Error(t, err)
	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrFrameTooLarge, le.Kind)
}

func TestFrameDecoder_RetainsPartialFrameAcrossFeeds(t *testing.T) {
	d := NewDecoder()
	full := NewFrame(PacketChat, EncodeChat(1, "a", "b")).Encode()

	frames, err := d.Feed(full[:5])
	require.NoError(t, err)
	assert.Empty(t, frames)

	frames, err = d.Feed(full[5:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, PacketChat, frames[0].Type)
}

func TestRateLimiter_DisconnectsOverBudgetAndResetsAfterWindow(t *testing.T) {
	rl := NewRateLimiter(3, time.Second)
	start := time.Unix(0, 0)

	assert.True(t, rl.Allow(start))
	assert.True(t, rl.Allow(start))
	assert.True(t, rl.Allow(start))
	assert.False(t, rl.Allow(start), "fourth packet within the same instant exceeds budget")

	// After the window has fully elapsed, the earlier packets no
	// longer count.
	later := start.Add(time.Second + time.Millisecond)
	assert.True(t, rl.Allow(later))
}

func TestCursorThrottler_FlushForcesExactlyOnePendingSend(t *testing.T) {
	th := NewCursorThrottler(50 * time.Millisecond)
	start := time.Unix(0, 0)

	_, ok := th.Update(1, 1, 7, start)
	assert.True(t, ok, "first update always sends immediately")

	// Rapid follow-up within the interval is buffered, not sent.
	_, ok = th.Update(2, 2, 7, start.Add(time.Millisecond))
	assert.False(t, ok)
	_, ok = th.Update(3, 3, 7, start.Add(2*time.Millisecond))
	assert.False(t, ok)

	state, ok := th.Flush(start.Add(3 * time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, int32(3), state.X, "flush carries the latest coalesced position")

	// A second flush with nothing new pending is a no-op.
	_, ok = th.Flush(start.Add(4 * time.Millisecond))
	assert.False(t, ok)
}

func TestReconnectConfig_BackoffIsNonDecreasingAndBounded(t *testing.T) {
	cfg := DefaultReconnectConfig()
	var prev time.Duration
	for attempt := 1; attempt <= 12; attempt++ {
		d := cfg.NextDelay(attempt, 0) // rnd=0 isolates the exponential curve from jitter
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, cfg.Max+time.Duration(float64(cfg.Max)*cfg.Jitter))
		prev = d
	}
}

func TestReconnectConfig_JitterIsBounded(t *testing.T) {
	cfg := DefaultReconnectConfig()
	base := cfg.NextDelay(5, 0)
	jittered := cfg.NextDelay(5, 1)
	assert.GreaterOrEqual(t, jittered, base)
	assert.LessOrEqual(t, jittered-base, time.Duration(float64(base)*cfg.Jitter)+time.Millisecond)
}

func TestSession_ChatBeforeLoginDisconnectsWithoutBroadcast(t *testing.T) {
	s := NewSession()
	action := s.Handle(NewFrame(PacketChat, EncodeChat(0, "x", "hi")), time.Now())
	assert.Equal(t, ActionDisconnect, action)
	assert.Equal(t, StateDisconnected, s.State)
}

func TestSession_LoginThenActivityFlowsThroughStates(t *testing.T) {
	s := NewSession()
	now := time.Now()

	action := s.Handle(NewFrame(PacketLogin, EncodeLogin("a", "b")), now)
	assert.Equal(t, ActionNone, action)

	action = s.Authenticate(42, "a")
	assert.Equal(t, ActionSendLoginSuccess, action)
	assert.Equal(t, StateAuthenticated, s.State)

	s.Activate()
	assert.Equal(t, StateActive, s.State)

	action = s.Handle(NewFrame(PacketCursorUpdate, EncodeCursor(42, 1, 1, 7)), now)
	assert.Equal(t, ActionBroadcastCursor, action)
}

func TestDecodeMapChunk_RoundTrip(t *testing.T) {
	chunk := MapChunk{
		ChunkID:     0,
		TotalChunks: 2,
		RegionBaseX: 100,
		RegionBaseY: 100,
		RegionZ:     7,
		Tiles: []TileDiff{
			{X: 100, Y: 100, Z: 7, GroundID: 5, Items: []TileUpdateItem{{ItemID: 10, Subtype: 1}}},
		},
	}
	got, err := DecodeMapChunk(EncodeMapChunk(chunk))
	require.NoError(t, err)
	assert.Equal(t, chunk, got)
}
