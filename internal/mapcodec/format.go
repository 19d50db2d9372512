// Package mapcodec parses and emits the two sibling on-disk map
// formats ("FormatA"/OTBM and "FormatB"/OTMM) on top of internal/
// nodecodec, populating and walking an internal/mapmodel.MapModel.
// Both formats share the same node grammar and the same root header
// (a u32 version); they differ in file magic, a handful of node-type
// identifiers, and the SUBTYPE attribute's width.
package mapcodec

// Format identifies which of the two sibling on-disk formats a stream
// is (or should be) encoded as.
type Format int

const (
	// FormatA is the classic OTBM-style format: zero-magic root
	// header, a dedicated WAYPOINT_DATA section, and a 16-bit SUBTYPE
	// attribute.
	FormatA Format = iota
	// FormatB is the newer OTMM-style format used by Canary-derived
	// servers: "OTMM" file magic, embedded NPC spawn data, and a
	// SUBTYPE attribute masked to its low 4 bits.
	FormatB
)

func (f Format) String() string {
	if f == FormatB {
		return "FormatB"
	}
	return "FormatA"
}

// File magics. FormatA's magic is four zero bytes — the historical
// "wildcard" OTBM identifier. The sniff step in Load always reads a
// zero magic as FormatA.
var (
	MagicZero = [4]byte{0x00, 0x00, 0x00, 0x00}
	MagicOTMM = [4]byte{'O', 'T', 'M', 'M'}
)

// Root header versions understood by this package. Anything else is
// an Error{Kind: ErrUnsupportedVersion}, unless LoaderConfig.AllowUnsupportedVersion
// is set, in which case a warning is emitted and parsing continues
// best-effort.
const (
	RootVersion1 uint32 = 1
	RootVersion2 uint32 = 2
)

// NodeKind is a format-independent semantic node identity; the actual
// on-the-wire byte for a given kind is looked up per Format via
// nodeCodeTables. The concrete numeric assignments are fixed by
// existing on-disk files, so this indirection keeps the read/write
// dispatch logic format-agnostic without renumbering anything.
type NodeKind int

const (
	KindRoot NodeKind = iota
	KindMapData
	KindEditor
	KindDescription
	KindTileData
	KindTile
	KindHouseTile
	KindItem
	KindTownData
	KindTown
	KindHouseData
	KindHouse
	KindSpawnMonsterData
	KindSpawnMonsterArea
	KindMonster
	KindSpawnNpcData
	KindSpawnNpcArea
	KindNpc
	KindWaypointData
	KindWaypoint
	KindZoneData
	KindZone
)

// nodeCodeTable maps semantic kinds to wire bytes for one format.
type nodeCodeTable struct {
	codeOf map[NodeKind]byte
	kindOf map[byte]NodeKind
}

func newNodeCodeTable(pairs map[NodeKind]byte) *nodeCodeTable {
	t := &nodeCodeTable{codeOf: pairs, kindOf: make(map[byte]NodeKind, len(pairs))}
	for k, c := range pairs {
		t.kindOf[c] = k
	}
	return t
}

// Code returns the wire byte for kind in this table, and ok=false if
// this format has no node of that kind (e.g. FormatA has no NPC
// spawns, FormatB has no waypoints).
func (t *nodeCodeTable) Code(kind NodeKind) (byte, bool) {
	c, ok := t.codeOf[kind]
	return c, ok
}

// Kind returns the semantic kind for a wire byte, and ok=false if the
// byte is not in this format's table at all — the caller must then
// treat it as an unknown node type and skip it so that files written
// by a newer version stay loadable.
func (t *nodeCodeTable) Kind(code byte) (NodeKind, bool) {
	k, ok := t.kindOf[code]
	return k, ok
}

// Node type byte values. These mirror the legacy on-disk OTBM/OTMM
// numbering (OTBM_ROOTV1=1, OTBM_MAP_DATA=2, OTBM_TILE_AREA=4,
// OTBM_TILE=5, OTBM_ITEM=6, OTBM_TOWNS=12, OTBM_TOWN=13,
// OTBM_HOUSETILE=14, OTBM_WAYPOINTS=15, OTBM_WAYPOINT=16); the
// remaining values (30-41, and 54 for FormatB's house tile) extend the
// numbering for entities the legacy sidecar files used to carry
// (house/spawn data), which both formats now embed directly.
var formatATable = newNodeCodeTable(map[NodeKind]byte{
	KindRoot:             1,
	KindMapData:          2,
	KindEditor:           38,
	KindDescription:      39,
	KindTileData:         4,
	KindTile:             5,
	KindHouseTile:        14,
	KindItem:             6,
	KindTownData:         12,
	KindTown:             13,
	KindHouseData:        36,
	KindHouse:            37,
	KindSpawnMonsterData: 30,
	KindSpawnMonsterArea: 31,
	KindMonster:          32,
	KindWaypointData:     15,
	KindWaypoint:         16,
	KindZoneData:         40,
	KindZone:             41,
})

var formatBTable = newNodeCodeTable(map[NodeKind]byte{
	KindRoot:             1,
	KindMapData:          2,
	KindEditor:           38,
	KindDescription:      39,
	KindTileData:         4,
	KindTile:             5,
	KindHouseTile:        54, // renumbered from FormatA's 14 in the OTMM fork
	KindItem:             6,
	KindTownData:         12,
	KindTown:             13,
	KindHouseData:        36,
	KindHouse:            37,
	KindSpawnMonsterData: 30,
	KindSpawnMonsterArea: 31,
	KindMonster:          32,
	KindSpawnNpcData:     33,
	KindSpawnNpcArea:     34,
	KindNpc:              35,
	KindZoneData:         40,
	KindZone:             41,
})

func tableFor(f Format) *nodeCodeTable {
	if f == FormatB {
		return formatBTable
	}
	return formatATable
}

// AttrCode identifies a tile/item attribute TLV. Attribute codes are
// shared between both formats; only SUBTYPE's payload width differs.
type AttrCode byte

const (
	AttrTileFlags AttrCode = 3
	AttrActionID  AttrCode = 4
	AttrUniqueID  AttrCode = 5
	AttrText      AttrCode = 6
	AttrDesc      AttrCode = 7
	AttrTeleDest  AttrCode = 8
	AttrDepotID   AttrCode = 10
	AttrDoorID    AttrCode = 14
	AttrSubtype   AttrCode = 15
	// AttrZoneIDs carries a tile's zone membership as a packed sequence
	// of little-endian u32 zone ids; it is an extension beyond the
	// legacy attribute set, added so Tile.Zones (a roaring.Bitmap) has
	// an on-disk representation.
	AttrZoneIDs AttrCode = 20
)
