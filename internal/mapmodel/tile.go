package mapmodel

import "github.com/RoaringBitmap/roaring"

// Tile flag bits packed into map_flags:u32.
const (
	TileFlagPZ       uint32 = 1 << 0
	TileFlagNoPVP    uint32 = 1 << 2
	TileFlagNoLogout uint32 = 1 << 3
	TileFlagPVP      uint32 = 1 << 4
)

// Tile is owned by MapModel.tiles, created on first write and dropped
// when cleared. Position is its key.
type Tile struct {
	Position Position

	Ground *Item
	// Items holds the stack above Ground, bottom of stack first (index
	// 0), top-of-stack last. Order is significant and must be
	// preserved across round trips.
	Items []*Item

	HouseID  uint32
	HasHouse bool

	MapFlags uint32

	// Zones is the set of zone ids this tile belongs to, backed by a
	// roaring bitmap for compact storage and fast membership/union ops
	// across large tile counts.
	Zones *roaring.Bitmap

	Monsters []*Creature
	NPC      *Creature

	MonsterSpawn *SpawnMarker
	NPCSpawn     *SpawnMarker

	Modified bool
}

// SpawnMarker is the per-tile spawn_monster/spawn_npc marker; it is
// distinct from the global MonsterSpawnArea/NpcSpawnArea aggregates
// used by the renderer and live sync.
type SpawnMarker struct {
	Radius uint32
}

// IsEmpty reports whether the tile has no ground, no stacked items, no
// creature, and no spawn marker — such tiles are never persisted.
func (t *Tile) IsEmpty() bool {
	if t == nil {
		return true
	}
	return t.Ground == nil &&
		len(t.Items) == 0 &&
		len(t.Monsters) == 0 &&
		t.NPC == nil &&
		t.MonsterSpawn == nil &&
		t.NPCSpawn == nil
}

// HasZone reports whether the tile is a member of zone id.
func (t *Tile) HasZone(id uint32) bool {
	if t.Zones == nil {
		return false
	}
	return t.Zones.Contains(id)
}

// AddZone adds the tile to zone id.
func (t *Tile) AddZone(id uint32) {
	if t.Zones == nil {
		t.Zones = roaring.New()
	}
	t.Zones.Add(id)
}

// ZoneIDs returns the tile's zone membership in ascending order.
func (t *Tile) ZoneIDs() []uint32 {
	if t.Zones == nil {
		return nil
	}
	return t.Zones.ToArray()
}

// Clone returns a deep copy of the tile suitable for the
// copy-on-write edit protocol: a brush reads the current tile,
// produces a new Tile value, and the caller's HistoryRecorder records
// (before, after) while MapModel stores after verbatim.
func (t *Tile) Clone() *Tile {
	if t == nil {
		return nil
	}
	out := *t
	out.Ground = t.Ground.Clone()
	if t.Items != nil {
		out.Items = make([]*Item, len(t.Items))
		for i, it := range t.Items {
			out.Items[i] = it.Clone()
		}
	}
	if t.Zones != nil {
		out.Zones = t.Zones.Clone()
	}
	if t.Monsters != nil {
		out.Monsters = make([]*Creature, len(t.Monsters))
		for i, c := range t.Monsters {
			cc := *c
			out.Monsters[i] = &cc
		}
	}
	if t.NPC != nil {
		npc := *t.NPC
		out.NPC = &npc
	}
	if t.MonsterSpawn != nil {
		ms := *t.MonsterSpawn
		out.MonsterSpawn = &ms
	}
	if t.NPCSpawn != nil {
		ns := *t.NPCSpawn
		out.NPCSpawn = &ns
	}
	return &out
}
