package liveengine

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"

	"github.com/rme-go/canary-core/internal/mapmodel"
)

// tuneAccepted disables Nagle's algorithm on an accepted TCP
// connection via a direct syscall. Cursor and tile-update traffic is
// latency-sensitive and small; batching it behind Nagle's 40ms-ish
// delay would defeat the point of throttling cursor sends client-side.
// Any failure here is non-fatal — the connection still works, just
// with whatever the OS default is.
func tuneAccepted(nc net.Conn) {
	tc, ok := nc.(*net.TCPConn)
	if !ok {
		return
	}
	raw, err := tc.SyscallConn()
	if err != nil {
		return
	}
	_ = raw.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	})
}

// MapProvider answers the questions a Server needs of the shared map
// without owning any editing policy itself.
type MapProvider interface {
	// Tiles returns every tile within the inclusive rectangle at z, in
	// the order the caller should stream them.
	Tiles(xMin, yMin, xMax, yMax int32, z uint8) []*mapmodel.Tile
	// ApplyTileUpdate merges one accepted tile diff into the shared
	// model, returning the authoritative re-broadcast diff.
	ApplyTileUpdate(d TileDiff) TileDiff
}

// ServerConfig configures a Server; zero values fall back to the
// package defaults.
type ServerConfig struct {
	Password       string
	BannedHosts    map[string]bool
	RateLimit      int
	ChunkTileBudget int
	WriteTimeout   time.Duration
}

func (c ServerConfig) rateLimit() int {
	if c.RateLimit <= 0 {
		return DefaultRateLimit
	}
	return c.RateLimit
}

func (c ServerConfig) chunkBudget() int {
	if c.ChunkTileBudget <= 0 {
		return DefaultChunkTileBudget
	}
	return c.ChunkTileBudget
}

func (c ServerConfig) writeTimeout() time.Duration {
	if c.WriteTimeout <= 0 {
		return 5 * time.Second
	}
	return c.WriteTimeout
}

// conn is one accepted session: its transport, decoder, session state
// machine and cursor tracking.
type conn struct {
	id       uuid.UUID
	nc       net.Conn
	decoder  *Decoder
	session  *Session
	mu       sync.Mutex // guards writes to nc
}

func (c *conn) send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.nc.Write(f.Encode())
	return err
}

// Server accepts connections implementing the collaborative editing
// protocol: login, initial map sync, then cursor/chat/tile fan-out.
// Every accepted connection is served from its own goroutine with
// ordinary blocking reads; Go's netpoller is the readiness multiplexer,
// so a blocking Read in one connection's goroutine never stalls the
// accept loop or any other connection, which keeps a single slow or
// stalled peer from starving the rest.
type Server struct {
	cfg     ServerConfig
	provider MapProvider
	cursors  *CursorTracker

	mu      sync.Mutex
	conns   map[uint32]*conn
	nextID  uint32
}

// NewServer builds a Server backed by provider.
func NewServer(provider MapProvider, cfg ServerConfig) *Server {
	return &Server{
		cfg:      cfg,
		provider: provider,
		cursors:  NewCursorTracker(),
		conns:    make(map[uint32]*conn),
	}
}

// Serve accepts connections on ln until ctx is cancelled or Accept
// fails. Each connection runs in its own goroutine.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		host, _, _ := net.SplitHostPort(nc.RemoteAddr().String())
		if s.cfg.BannedHosts[host] {
			nc.Close()
			continue
		}
		tuneAccepted(nc)
		go s.serveConn(ctx, nc)
	}
}

func (s *Server) serveConn(ctx context.Context, nc net.Conn) {
	c := &conn{id: uuid.New(), nc: nc, decoder: NewDecoder(), session: NewSession()}
	defer func() {
		s.removeConn(c)
		nc.Close()
	}()

	buf := make([]byte, 64*1024)
	for {
		n, err := nc.Read(buf)
		if err != nil {
			return
		}
		frames, err := s.decoder(c).Feed(buf[:n])
		if err != nil {
			return
		}
		for _, f := range frames {
			if !s.handleFrame(c, f, time.Now()) {
				return
			}
		}
	}
}

func (s *Server) decoder(c *conn) *Decoder { return c.decoder }

// handleFrame processes one frame and reports whether the connection
// should continue being served.
func (s *Server) handleFrame(c *conn, f Frame, now time.Time) bool {
	if f.Type == PacketLogin {
		name, password, err := DecodeLogin(f.Payload)
		if err != nil {
			return false
		}
		if subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.Password)) != 1 {
			c.send(NewFrame(PacketLoginError, EncodeLoginError("invalid credentials")))
			return false
		}
		id := s.addConn(c)
		action := c.session.Authenticate(id, name)
		if action != ActionSendLoginSuccess {
			return false
		}
		c.send(NewFrame(PacketLoginSuccess, EncodeLoginSuccess(id)))
		c.session.Activate()
		s.broadcastClientList()
		return true
	}

	action := c.session.Handle(f, now)
	switch action {
	case ActionDisconnect:
		return false
	case ActionBroadcastCursor:
		clientID, x, y, z, err := DecodeCursor(f.Payload)
		if err != nil {
			return false
		}
		s.cursors.Update(clientID, x, y, z, now)
		s.broadcastExcept(c.session.ClientID, NewFrame(PacketCursorUpdate, f.Payload))
	case ActionBroadcastChat:
		s.broadcastExcept(c.session.ClientID, NewFrame(PacketChat, f.Payload))
	case ActionServeMapRequest:
		xMin, yMin, xMax, yMax, z, tooLarge, err := DecodeMapRequest(f.Payload)
		if err != nil {
			return false
		}
		if tooLarge {
			// No-op per the wire contract: the client may retry with a
			// smaller region, so the connection stays open.
			return true
		}
		s.sendMapChunks(c, xMin, yMin, xMax, yMax, z)
	case ActionApplyTileUpdate:
		diffs, err := DecodeTileUpdate(f.Payload)
		if err != nil {
			return false
		}
		var applied []TileDiff
		for _, d := range diffs {
			applied = append(applied, s.provider.ApplyTileUpdate(d))
		}
		s.broadcastAll(NewFrame(PacketTileUpdate, EncodeTileUpdate(applied)))
	}
	return true
}

// sendMapChunks partitions the requested rectangle into
// ServerConfig.ChunkTileBudget-sized MAP_CHUNK frames, bounded by a
// semaphore so a single slow peer cannot pile up unbounded in-flight
// chunk sends.
func (s *Server) sendMapChunks(c *conn, xMin, yMin, xMax, yMax int32, z uint8) {
	c.session.BeginSync()
	tiles := s.provider.Tiles(xMin, yMin, xMax, yMax, z)
	budget := s.cfg.chunkBudget()

	var diffs []TileDiff
	for _, t := range tiles {
		diffs = append(diffs, tileDiffFromModel(t))
	}

	total := (len(diffs) + budget - 1) / budget
	if total == 0 {
		total = 1
	}

	sem := semaphore.NewWeighted(4)
	ctx := context.Background()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < total; i++ {
		i := i
		start := i * budget
		end := start + budget
		if end > len(diffs) {
			end = len(diffs)
		}
		chunk := MapChunk{
			ChunkID:     uint32(i),
			TotalChunks: uint32(total),
			RegionBaseX: xMin,
			RegionBaseY: yMin,
			RegionZ:     z,
			Tiles:       diffs[start:end],
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			return c.send(NewFrame(PacketMapChunk, EncodeMapChunk(chunk)))
		})
	}
	if err := g.Wait(); err != nil {
		return
	}
	c.session.Activate()
}

func tileDiffFromModel(t *mapmodel.Tile) TileDiff {
	d := TileDiff{X: int32(t.Position.X), Y: int32(t.Position.Y), Z: t.Position.Z}
	if t.Ground != nil {
		d.GroundID = t.Ground.ServerID
	}
	for _, it := range t.Items {
		subtype := uint8(0)
		if it.Subtype != nil {
			subtype = uint8(*it.Subtype)
		}
		d.Items = append(d.Items, TileUpdateItem{ItemID: it.ServerID, Subtype: subtype})
	}
	if t.HasHouse {
		d.Flags |= TileUpdateFlagHasHouse
		d.HouseID = t.HouseID
	}
	return d
}

func (s *Server) addConn(c *conn) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.conns[id] = c
	return id
}

func (s *Server) removeConn(c *conn) {
	s.mu.Lock()
	id := c.session.ClientID
	delete(s.conns, id)
	s.mu.Unlock()
	s.cursors.Remove(id)
	s.broadcastClientList()
}

func (s *Server) broadcastExcept(excludeID uint32, f Frame) {
	s.mu.Lock()
	targets := make([]*conn, 0, len(s.conns))
	for id, c := range s.conns {
		if id == excludeID {
			continue
		}
		targets = append(targets, c)
	}
	s.mu.Unlock()
	s.fanOut(targets, f)
}

func (s *Server) broadcastAll(f Frame) {
	s.mu.Lock()
	targets := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		targets = append(targets, c)
	}
	s.mu.Unlock()
	s.fanOut(targets, f)
}

// fanOut writes f to every target concurrently, disconnecting (rather
// than queueing indefinitely) any peer whose write does not complete
// within ServerConfig.WriteTimeout.
func (s *Server) fanOut(targets []*conn, f Frame) {
	var g errgroup.Group
	for _, c := range targets {
		c := c
		g.Go(func() error {
			c.nc.SetWriteDeadline(time.Now().Add(s.cfg.writeTimeout()))
			if err := c.send(f); err != nil {
				c.nc.Close()
				return fmt.Errorf("conn %s: %w", c.id, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Server) broadcastClientList() {
	s.mu.Lock()
	clients := make([]ClientInfo, 0, len(s.conns))
	targets := make([]*conn, 0, len(s.conns))
	for id, c := range s.conns {
		clients = append(clients, ClientInfo{ID: id, Name: c.session.Name})
		targets = append(targets, c)
	}
	s.mu.Unlock()
	s.fanOut(targets, NewFrame(PacketClientList, EncodeClientList(clients)))
}
