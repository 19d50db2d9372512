package liveengine

import (
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rme-go/canary-core/internal/mapmodel"
)

// panicProvider fails the test if either method is invoked; it stands
// in for a MapProvider that a too-large MAP_REQUEST must never reach.
type panicProvider struct{ t *testing.T }

func (p panicProvider) Tiles(xMin, yMin, xMax, yMax int32, z uint8) []*mapmodel.Tile {
	p.t.Fatal("Tiles must not be called for an oversized MAP_REQUEST")
	return nil
}

func (p panicProvider) ApplyTileUpdate(d TileDiff) TileDiff {
	p.t.Fatal("ApplyTileUpdate must not be called for an oversized MAP_REQUEST")
	return TileDiff{}
}

// Scenario E6/property 11: an oversized MAP_REQUEST is rejected with a
// no-op, not a disconnect, and never reaches the MapProvider.
func TestHandleFrame_OversizedMapRequestIsNoOpNotDisconnect(t *testing.T) {
	nc, peer := net.Pipe()
	defer nc.Close()
	defer peer.Close()

	s := NewServer(panicProvider{t: t}, ServerConfig{})
	c := &conn{id: uuid.New(), nc: nc, decoder: NewDecoder(), session: NewSession()}
	c.session.State = StateActive
	c.session.ClientID = 1

	payload := EncodeMapRequest(0, 0, 10000, 10000, 7)
	_, _, _, _, _, tooLarge, err := DecodeMapRequest(payload)
	require.NoError(t, err)
	require.True(t, tooLarge, "fixture must actually exceed MapRequestAreaCap")

	keep := s.handleFrame(c, NewFrame(PacketMapRequest, payload), time.Now())
	assert.True(t, keep, "an oversized MAP_REQUEST must not close the connection")
}
