package mapmodel

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/roaring64"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// MapModel is the root aggregate: a mapping Position→Tile plus
// towns/houses/zones/waypoints and the ordered spawn-area lists.
// MapCodec.Load constructs it empty and mutates it in place while
// parsing; after a successful load it is immutable by convention
// unless an editor session holds it. There is no locking here —
// concurrent mutation is the caller's responsibility.
type MapModel struct {
	Header MapHeader

	tiles map[Position]*Tile

	// Towns/Houses/Zones use an insertion-ordered map so "keep the
	// first, warn, drop the rest" duplicate-id handling and
	// deterministic re-iteration both fall out of insertion order,
	// without a second sort pass.
	towns  *orderedmap.OrderedMap[uint32, *Town]
	houses *orderedmap.OrderedMap[uint32, *House]
	zones  *orderedmap.OrderedMap[uint32, *Zone]

	waypoints map[string]Position

	MonsterSpawns []*MonsterSpawnArea
	NPCSpawns     []*NpcSpawnArea

	// dirty tracks tile keys mutated since the last call to
	// DrainDirty, as a packed (x,y,z) bitmap. No other package in this
	// module drains it.
	dirtyMu sync.Mutex
	dirty   *roaring64.Bitmap
}

// New returns an empty MapModel.
func New() *MapModel {
	return &MapModel{
		tiles:     make(map[Position]*Tile),
		towns:     orderedmap.New[uint32, *Town](),
		houses:    orderedmap.New[uint32, *House](),
		zones:     orderedmap.New[uint32, *Zone](),
		waypoints: make(map[string]Position),
		dirty:     roaring64.New(),
	}
}

func packKey(p Position) uint64 {
	return uint64(p.X) | uint64(p.Y)<<16 | uint64(p.Z)<<32
}

func unpackKey(k uint64) Position {
	return Position{
		X: uint16(k & 0xFFFF),
		Y: uint16((k >> 16) & 0xFFFF),
		Z: uint8((k >> 32) & 0xFF),
	}
}

// SetHeader replaces the map header.
func (m *MapModel) SetHeader(h MapHeader) { m.Header = h }

// PutTile replaces any tile at tile.Position and marks it dirty when
// markDirty is true (editor-driven mutations should pass true; a bulk
// MapCodec.Load should pass false since there is nothing to
// broadcast yet).
func (m *MapModel) PutTile(tile *Tile, markDirty bool) {
	if tile == nil {
		return
	}
	m.tiles[tile.Position] = tile
	if markDirty {
		m.dirtyMu.Lock()
		m.dirty.Add(packKey(tile.Position))
		m.dirtyMu.Unlock()
	}
}

// GetTile returns the tile at (x,y,z), or nil if none exists.
func (m *MapModel) GetTile(x, y uint16, z uint8) *Tile {
	t, ok := m.tiles[Position{X: x, Y: y, Z: z}]
	if !ok {
		return nil
	}
	return t
}

// DeleteTile removes any tile at pos and marks it dirty when markDirty
// is true.
func (m *MapModel) DeleteTile(pos Position, markDirty bool) {
	delete(m.tiles, pos)
	if markDirty {
		m.dirtyMu.Lock()
		m.dirty.Add(packKey(pos))
		m.dirtyMu.Unlock()
	}
}

// TileCount returns the number of tiles currently stored.
func (m *MapModel) TileCount() int { return len(m.tiles) }

// IterTiles calls fn for every tile, in unspecified order.
func (m *MapModel) IterTiles(fn func(*Tile)) {
	for _, t := range m.tiles {
		fn(t)
	}
}

// SortedTiles returns every tile ordered (z,y,x) ascending, the order
// MapCodec's writer must emit them in for deterministic output.
func (m *MapModel) SortedTiles() []*Tile {
	out := make([]*Tile, 0, len(m.tiles))
	for _, t := range m.tiles {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return Less(out[i].Position, out[j].Position)
	})
	return out
}

// DrainDirty returns every tile key marked dirty since the last call
// and clears the set. LiveEngine does not call it; TILE_UPDATE
// broadcasts relay the diffs a client sent.
func (m *MapModel) DrainDirty() []Position {
	m.dirtyMu.Lock()
	defer m.dirtyMu.Unlock()
	if m.dirty.IsEmpty() {
		return nil
	}
	out := make([]Position, 0, m.dirty.GetCardinality())
	it := m.dirty.Iterator()
	for it.HasNext() {
		out = append(out, unpackKey(it.Next()))
	}
	m.dirty.Clear()
	return out
}

// PutTown inserts town, keeping an existing entry at the same ID:
// keep the first, warn, drop the rest. Returns false if a prior entry
// was kept instead.
func (m *MapModel) PutTown(t *Town) bool {
	if _, exists := m.towns.Get(t.ID); exists {
		return false
	}
	m.towns.Set(t.ID, t)
	return true
}

// Town looks up a town by id.
func (m *MapModel) Town(id uint32) (*Town, bool) { return m.towns.Get(id) }

// Towns returns every town in insertion order.
func (m *MapModel) Towns() []*Town { return collectOrdered(m.towns) }

// PutHouse inserts house, keeping an existing entry at the same ID.
func (m *MapModel) PutHouse(h *House) bool {
	if _, exists := m.houses.Get(h.ID); exists {
		return false
	}
	m.houses.Set(h.ID, h)
	return true
}

// House looks up a house by id.
func (m *MapModel) House(id uint32) (*House, bool) { return m.houses.Get(id) }

// Houses returns every house in insertion order.
func (m *MapModel) Houses() []*House { return collectOrdered(m.houses) }

// PutZone inserts zone, keeping an existing entry at the same ID.
func (m *MapModel) PutZone(z *Zone) bool {
	if _, exists := m.zones.Get(z.ID); exists {
		return false
	}
	m.zones.Set(z.ID, z)
	return true
}

// Zone looks up a zone by id.
func (m *MapModel) Zone(id uint32) (*Zone, bool) { return m.zones.Get(id) }

// Zones returns every zone in insertion order.
func (m *MapModel) Zones() []*Zone { return collectOrdered(m.zones) }

func collectOrdered[V any](om *orderedmap.OrderedMap[uint32, V]) []V {
	out := make([]V, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// AppendMonsterSpawn appends a monster spawn area.
func (m *MapModel) AppendMonsterSpawn(a *MonsterSpawnArea) {
	m.MonsterSpawns = append(m.MonsterSpawns, a)
}

// AppendNPCSpawn appends an NPC spawn area.
func (m *MapModel) AppendNPCSpawn(a *NpcSpawnArea) {
	m.NPCSpawns = append(m.NPCSpawns, a)
}

// SetWaypoint records a named waypoint position (FormatA only).
func (m *MapModel) SetWaypoint(name string, pos Position) {
	m.waypoints[name] = pos
}

// Waypoint looks up a waypoint by name.
func (m *MapModel) Waypoint(name string) (Position, bool) {
	p, ok := m.waypoints[name]
	return p, ok
}

// Waypoints returns every waypoint name, unordered.
func (m *MapModel) Waypoints() map[string]Position {
	out := make(map[string]Position, len(m.waypoints))
	for k, v := range m.waypoints {
		out[k] = v
	}
	return out
}

// HouseIDsReferenced returns the set of house ids referenced by any
// tile. MapCodec does not call it: Load does not check tile house ids
// against the loaded houses.
func (m *MapModel) HouseIDsReferenced() map[uint32]struct{} {
	out := make(map[uint32]struct{})
	for _, t := range m.tiles {
		if t.HasHouse {
			out[t.HouseID] = struct{}{}
		}
	}
	return out
}
