package liveengine

import "time"

// SessionState is a position in the connection lifecycle: accepted,
// authenticated, syncing, active, or disconnected.
type SessionState int

const (
	// StateAccepted is the state immediately after a TCP accept,
	// before any frame has been read.
	StateAccepted SessionState = iota
	// StateAuthenticated follows a successful LOGIN.
	StateAuthenticated
	// StateSyncing covers an in-flight MAP_REQUEST/MAP_CHUNK transfer.
	StateSyncing
	// StateActive is full two-way traffic: cursor, chat, tile updates.
	StateActive
	// StateDisconnected is terminal; no further frames are processed.
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateAuthenticated:
		return "authenticated"
	case StateSyncing:
		return "syncing"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Action is what the caller must do in response to Handle having
// processed one frame.
type Action int

const (
	// ActionNone means continue; nothing further is required.
	ActionNone Action = iota
	// ActionSendLoginSuccess means send LOGIN_SUCCESS with the id on
	// the returned Session, then begin syncing.
	ActionSendLoginSuccess
	// ActionSendLoginError means send LOGIN_ERROR and disconnect.
	ActionSendLoginError
	// ActionBroadcastCursor means relay the decoded cursor update to
	// every other active session.
	ActionBroadcastCursor
	// ActionBroadcastChat means relay the decoded chat line to every
	// other active session.
	ActionBroadcastChat
	// ActionServeMapRequest means decode and, area permitting, serve a
	// MAP_REQUEST; the caller checks the area cap itself via
	// DecodeMapRequest's tooLarge result.
	ActionServeMapRequest
	// ActionApplyTileUpdate means merge the decoded tile diffs into the
	// shared model and broadcast them onward.
	ActionApplyTileUpdate
	// ActionDisconnect means the session violated the protocol (e.g.
	// sent traffic before authenticating) and must be dropped without
	// any broadcast.
	ActionDisconnect
)

// Session is the pure, socket-free state machine for one connection.
// It is deliberately free of I/O so its ordering properties (e.g. CHAT
// before LOGIN disconnects without broadcasting) can be unit tested
// without a real listener.
type Session struct {
	State       SessionState
	ClientID    uint32
	Name        string
	limiter     *RateLimiter
	lastActive  time.Time
}

// NewSession builds a freshly accepted session with a rate limiter at
// the package default budget.
func NewSession() *Session {
	return &Session{State: StateAccepted, limiter: NewRateLimiter(DefaultRateLimit, time.Second)}
}

// Authenticate transitions Accepted -> Authenticated on a successful
// LOGIN, assigning clientID. Calling it from any other state is a
// protocol violation.
func (s *Session) Authenticate(clientID uint32, name string) Action {
	if s.State != StateAccepted {
		s.State = StateDisconnected
		return ActionDisconnect
	}
	s.ClientID = clientID
	s.Name = name
	s.State = StateAuthenticated
	return ActionSendLoginSuccess
}

// BeginSync transitions Authenticated -> Syncing, e.g. once the server
// starts streaming MAP_CHUNK frames for an initial MAP_REQUEST.
func (s *Session) BeginSync() {
	if s.State == StateAuthenticated {
		s.State = StateSyncing
	}
}

// Activate transitions Syncing or Authenticated -> Active; the server
// calls it right after a successful login.
func (s *Session) Activate() {
	if s.State == StateSyncing || s.State == StateAuthenticated {
		s.State = StateActive
	}
}

// Handle applies one received frame to the session's state and reports
// what the caller should do next. now drives both the rate limiter and
// the session's idle bookkeeping.
func (s *Session) Handle(f Frame, now time.Time) Action {
	if s.State == StateDisconnected {
		return ActionDisconnect
	}
	if !s.limiter.Allow(now) {
		s.State = StateDisconnected
		return ActionDisconnect
	}
	s.lastActive = now

	if f.Type == PacketLogin {
		if s.State != StateAccepted {
			s.State = StateDisconnected
			return ActionDisconnect
		}
		return ActionNone // caller decodes credentials and calls Authenticate
	}

	// Every other packet type requires a session already past the
	// handshake: unauthenticated traffic disconnects silently rather
	// than erroring back to a peer that never proved who it is.
	if s.State == StateAccepted {
		s.State = StateDisconnected
		return ActionDisconnect
	}

	switch f.Type {
	case PacketCursorUpdate:
		return ActionBroadcastCursor
	case PacketChat:
		return ActionBroadcastChat
	case PacketMapRequest:
		return ActionServeMapRequest
	case PacketTileUpdate:
		return ActionApplyTileUpdate
	case PacketKick:
		s.State = StateDisconnected
		return ActionDisconnect
	default:
		s.State = StateDisconnected
		return ActionDisconnect
	}
}

// Disconnect marks the session terminal.
func (s *Session) Disconnect() { s.State = StateDisconnected }
