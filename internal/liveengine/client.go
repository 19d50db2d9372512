package liveengine

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"time"
)

// ReconnectConfig controls the client's exponential backoff schedule.
type ReconnectConfig struct {
	Base        time.Duration
	Factor      float64
	Max         time.Duration
	Jitter      float64
	MaxAttempts int // 0 = unlimited
}

// DefaultReconnectConfig returns the package's default backoff schedule.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{Base: time.Second, Factor: 2, Max: 30 * time.Second, Jitter: 0.1, MaxAttempts: 10}
}

// NextDelay returns the delay before reconnect attempt n (1-indexed),
// bounded by Max and perturbed by up to Jitter*delay, using rnd in
// [0,1) supplied by the caller so the computation stays deterministic
// under test.
func (c ReconnectConfig) NextDelay(attempt int, rnd float64) time.Duration {
	base := float64(c.Base)
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= c.Factor
		if delay > float64(c.Max) {
			delay = float64(c.Max)
			break
		}
	}
	if delay > float64(c.Max) {
		delay = float64(c.Max)
	}
	jitter := delay * c.Jitter * rnd
	return time.Duration(delay + jitter)
}

// Client is a reconnecting session: Run drives a single loop that
// connects, receives frames, and reconnects with backoff after an
// unexpected close; sends are written synchronously by the caller.
type Client struct {
	addr     string
	name     string
	password string
	reconnect ReconnectConfig
	throttle  *CursorThrottler

	mu        sync.Mutex
	nc        net.Conn
	decoder   *Decoder
	intentional bool
	attempt     int

	OnCursor func(clientID uint32, x, y int32, z uint16)
	OnChat   func(clientID uint32, name, message string)
	OnTileUpdate func(diffs []TileDiff)
	OnClientList func(clients []ClientInfo)
	OnMapChunk   func(chunk MapChunk)
}

// NewClient builds a Client targeting addr with the given credentials.
func NewClient(addr, name, password string) *Client {
	return &Client{
		addr:      addr,
		name:      name,
		password:  password,
		reconnect: DefaultReconnectConfig(),
		throttle:  NewCursorThrottler(DefaultCursorThrottleInterval),
	}
}

// Run connects and serves until ctx is cancelled, reconnecting with
// backoff on any unexpected close. A cancelled ctx or a call to Close
// is an "intentional" disconnect that inhibits a further reconnect
// attempt.
func (cl *Client) Run(ctx context.Context) error {
	for {
		cl.mu.Lock()
		cl.intentional = false
		cl.mu.Unlock()

		err := cl.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cl.mu.Lock()
		intentional := cl.intentional
		cl.mu.Unlock()
		if intentional {
			return err
		}

		cl.attempt++
		if cl.reconnect.MaxAttempts > 0 && cl.attempt > cl.reconnect.MaxAttempts {
			return err
		}
		delay := cl.reconnect.NextDelay(cl.attempt, rand.Float64())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (cl *Client) runOnce(ctx context.Context) error {
	nc, err := (&net.Dialer{}).DialContext(ctx, "tcp", cl.addr)
	if err != nil {
		return err
	}
	cl.mu.Lock()
	cl.nc = nc
	cl.decoder = NewDecoder()
	cl.mu.Unlock()
	defer nc.Close()

	if _, err := nc.Write(NewFrame(PacketLogin, EncodeLogin(cl.name, cl.password)).Encode()); err != nil {
		return err
	}

	cl.attempt = 0 // a successful dial resets the backoff counter
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-ctx.Done():
			cl.Close()
			return ctx.Err()
		default:
		}
		n, err := nc.Read(buf)
		if err != nil {
			return err
		}
		frames, err := cl.decoder.Feed(buf[:n])
		if err != nil {
			return err
		}
		for _, f := range frames {
			cl.dispatch(f)
		}
	}
}

func (cl *Client) dispatch(f Frame) {
	switch f.Type {
	case PacketCursorUpdate:
		if cl.OnCursor == nil {
			return
		}
		id, x, y, z, err := DecodeCursor(f.Payload)
		if err == nil {
			cl.OnCursor(id, x, y, z)
		}
	case PacketChat:
		if cl.OnChat == nil {
			return
		}
		id, name, msg := DecodeChat(f.Payload)
		cl.OnChat(id, name, msg)
	case PacketTileUpdate:
		if cl.OnTileUpdate == nil {
			return
		}
		diffs, err := DecodeTileUpdate(f.Payload)
		if err == nil {
			cl.OnTileUpdate(diffs)
		}
	case PacketClientList:
		if cl.OnClientList == nil {
			return
		}
		clients, err := DecodeClientList(f.Payload)
		if err == nil {
			cl.OnClientList(clients)
		}
	case PacketMapChunk:
		if cl.OnMapChunk == nil {
			return
		}
		chunk, err := DecodeMapChunk(f.Payload)
		if err == nil {
			cl.OnMapChunk(chunk)
		}
	}
}

// SendCursor throttles and, when due, transmits a local cursor update.
func (cl *Client) SendCursor(x, y int32, z uint16) error {
	state, ok := cl.throttle.Update(x, y, z, time.Now())
	if !ok {
		return nil
	}
	return cl.write(NewFrame(PacketCursorUpdate, EncodeCursor(0, state.X, state.Y, state.Z)))
}

// FlushCursor forces out any throttled cursor update still pending.
func (cl *Client) FlushCursor() error {
	state, ok := cl.throttle.Flush(time.Now())
	if !ok {
		return nil
	}
	return cl.write(NewFrame(PacketCursorUpdate, EncodeCursor(0, state.X, state.Y, state.Z)))
}

// SendChat transmits a chat line immediately; chat is not throttled.
func (cl *Client) SendChat(name, message string) error {
	return cl.write(NewFrame(PacketChat, EncodeChat(0, name, message)))
}

// SendTileUpdate transmits locally-made tile edits for the server to
// merge and rebroadcast.
func (cl *Client) SendTileUpdate(diffs []TileDiff) error {
	return cl.write(NewFrame(PacketTileUpdate, EncodeTileUpdate(diffs)))
}

// RequestMap asks the server for every tile in the given rectangle.
func (cl *Client) RequestMap(xMin, yMin, xMax, yMax int32, z uint8) error {
	return cl.write(NewFrame(PacketMapRequest, EncodeMapRequest(xMin, yMin, xMax, yMax, z)))
}

func (cl *Client) write(f Frame) error {
	cl.mu.Lock()
	nc := cl.nc
	cl.mu.Unlock()
	if nc == nil {
		return protoErr("client not connected")
	}
	_, err := nc.Write(f.Encode())
	return err
}

// Close disconnects intentionally, inhibiting any further reconnect
// attempt.
func (cl *Client) Close() error {
	cl.mu.Lock()
	cl.intentional = true
	nc := cl.nc
	cl.mu.Unlock()
	if nc == nil {
		return nil
	}
	return nc.Close()
}
