package liveengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_AuthenticateTransitionsToAuthenticated(t *testing.T) {
	s := NewSession()
	action := s.Authenticate(7, "alice")
	assert.Equal(t, ActionSendLoginSuccess, action)
	assert.Equal(t, StateAuthenticated, s.State)
	assert.Equal(t, uint32(7), s.ClientID)
}

func TestSession_AuthenticateFromWrongStateDisconnects(t *testing.T) {
	s := NewSession()
	s.Authenticate(1, "a")
	action := s.Authenticate(2, "b")
	assert.Equal(t, ActionDisconnect, action)
	assert.Equal(t, StateDisconnected, s.State)
}

// Property / scenario E5: a peer that sends CHAT before LOGIN is
// disconnected without broadcast.
func TestSession_PreAuthChatDisconnectsWithoutBroadcast(t *testing.T) {
	s := NewSession()
	action := s.Handle(Frame{Type: PacketChat}, time.Now())
	assert.Equal(t, ActionDisconnect, action)
	assert.Equal(t, StateDisconnected, s.State)
}

func TestSession_PreAuthCursorAndTileUpdateAlsoDisconnect(t *testing.T) {
	for _, pt := range []PacketType{PacketCursorUpdate, PacketTileUpdate, PacketMapRequest} {
		s := NewSession()
		action := s.Handle(Frame{Type: pt}, time.Now())
		assert.Equal(t, ActionDisconnect, action, "packet type %v", pt)
	}
}

func TestSession_PostAuthDispatchesExpectedActions(t *testing.T) {
	now := time.Now()
	s := NewSession()
	s.Authenticate(1, "a")
	s.Activate()

	assert.Equal(t, ActionBroadcastCursor, s.Handle(Frame{Type: PacketCursorUpdate}, now))
	assert.Equal(t, ActionBroadcastChat, s.Handle(Frame{Type: PacketChat}, now))
	assert.Equal(t, ActionServeMapRequest, s.Handle(Frame{Type: PacketMapRequest}, now))
	assert.Equal(t, ActionApplyTileUpdate, s.Handle(Frame{Type: PacketTileUpdate}, now))
}

func TestSession_KickDisconnects(t *testing.T) {
	s := NewSession()
	s.Authenticate(1, "a")
	action := s.Handle(Frame{Type: PacketKick}, time.Now())
	assert.Equal(t, ActionDisconnect, action)
	assert.Equal(t, StateDisconnected, s.State)
}

// Property 9/10 combined at the session layer: once disconnected, or
// once the rate limiter trips, every subsequent frame disconnects.
func TestSession_RateLimitTripDisconnects(t *testing.T) {
	s := NewSession()
	s.limiter = NewRateLimiter(1, time.Second)
	s.Authenticate(1, "a")

	now := time.Now()
	assert.Equal(t, ActionBroadcastCursor, s.Handle(Frame{Type: PacketCursorUpdate}, now))
	assert.Equal(t, ActionDisconnect, s.Handle(Frame{Type: PacketCursorUpdate}, now))
}

func TestSession_HandleAfterDisconnectedIsANoOp(t *testing.T) {
	s := NewSession()
	s.Disconnect()
	assert.Equal(t, ActionDisconnect, s.Handle(Frame{Type: PacketChat}, time.Now()))
}

func TestSession_StateStringer(t *testing.T) {
	assert.Equal(t, "accepted", StateAccepted.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "syncing", StateSyncing.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "disconnected", StateDisconnected.String())
}
