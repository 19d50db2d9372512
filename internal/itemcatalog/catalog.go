// Package itemcatalog provides reference implementations of the
// api.ItemCatalog capability: a static in-memory catalog for tests and
// small embedders, and an LRU-caching decorator for catalogs backed by
// a slower lookup (a real items.otb parse, a remote asset service).
package itemcatalog

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rme-go/canary-core/api"
)

// StaticCatalog is a plain in-memory api.ItemCatalog, useful for tests
// and for embedders that already have their item table in memory.
type StaticCatalog struct {
	ground        map[uint16]bool
	serverToClient map[uint16]uint16
	clientToServer map[uint16]uint16
}

// NewStaticCatalog returns an empty catalog; use the With* methods to
// populate it.
func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{
		ground:         make(map[uint16]bool),
		serverToClient: make(map[uint16]uint16),
		clientToServer: make(map[uint16]uint16),
	}
}

// MarkGround records serverID as a ground kind.
func (c *StaticCatalog) MarkGround(serverID uint16) *StaticCatalog {
	c.ground[serverID] = true
	return c
}

// MapIDs records a server↔client id pair.
func (c *StaticCatalog) MapIDs(serverID, clientID uint16) *StaticCatalog {
	c.serverToClient[serverID] = clientID
	c.clientToServer[clientID] = serverID
	return c
}

func (c *StaticCatalog) IsGround(serverID uint16) bool { return c.ground[serverID] }

func (c *StaticCatalog) ServerToClient(serverID uint16) (uint16, bool) {
	v, ok := c.serverToClient[serverID]
	return v, ok
}

func (c *StaticCatalog) ClientToServer(clientID uint16) (uint16, bool) {
	v, ok := c.clientToServer[clientID]
	return v, ok
}

var _ api.ItemCatalog = (*StaticCatalog)(nil)

// CachingItemCatalog wraps a slower api.ItemCatalog with bounded LRU
// caches for each of the three lookups, so a catalog backed by a
// database or remote lookup doesn't pay that cost per item on a hot
// load/save path.
type CachingItemCatalog struct {
	inner api.ItemCatalog

	ground   *lru.Cache[uint16, bool]
	s2c      *lru.Cache[uint16, idLookup]
	c2s      *lru.Cache[uint16, idLookup]
}

type idLookup struct {
	id uint16
	ok bool
}

// NewCachingItemCatalog wraps inner with LRU caches of the given
// per-lookup capacity.
func NewCachingItemCatalog(inner api.ItemCatalog, capacity int) (*CachingItemCatalog, error) {
	ground, err := lru.New[uint16, bool](capacity)
	if err != nil {
		return nil, err
	}
	s2c, err := lru.New[uint16, idLookup](capacity)
	if err != nil {
		return nil, err
	}
	c2s, err := lru.New[uint16, idLookup](capacity)
	if err != nil {
		return nil, err
	}
	return &CachingItemCatalog{inner: inner, ground: ground, s2c: s2c, c2s: c2s}, nil
}

func (c *CachingItemCatalog) IsGround(serverID uint16) bool {
	if v, ok := c.ground.Get(serverID); ok {
		return v
	}
	v := c.inner.IsGround(serverID)
	c.ground.Add(serverID, v)
	return v
}

func (c *CachingItemCatalog) ServerToClient(serverID uint16) (uint16, bool) {
	if v, ok := c.s2c.Get(serverID); ok {
		return v.id, v.ok
	}
	id, ok := c.inner.ServerToClient(serverID)
	c.s2c.Add(serverID, idLookup{id: id, ok: ok})
	return id, ok
}

func (c *CachingItemCatalog) ClientToServer(clientID uint16) (uint16, bool) {
	if v, ok := c.c2s.Get(clientID); ok {
		return v.id, v.ok
	}
	id, ok := c.inner.ClientToServer(clientID)
	c.c2s.Add(clientID, idLookup{id: id, ok: ok})
	return id, ok
}

var _ api.ItemCatalog = (*CachingItemCatalog)(nil)
