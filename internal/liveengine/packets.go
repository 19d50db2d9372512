package liveengine

import (
	"bytes"
	"encoding/binary"
)

// PacketType is the wire type code carried in a Frame's header.
// LOGIN and CURSOR_UPDATE have fixed concrete values; the rest are
// assigned in the same style (handshake codes low, session traffic
// from 21 up).
type PacketType uint16

const (
	PacketLogin        PacketType = 1
	PacketLoginSuccess PacketType = 2
	PacketLoginError   PacketType = 3
	PacketCursorUpdate PacketType = 21
	PacketChat         PacketType = 22
	PacketClientList   PacketType = 23
	PacketTileUpdate   PacketType = 24
	PacketMapRequest   PacketType = 25
	PacketMapChunk     PacketType = 26
	PacketKick         PacketType = 27
)

func splitNUL(b []byte) (before, after []byte, ok bool) {
	idx := bytes.IndexByte(b, 0)
	if idx < 0 {
		return b, nil, false
	}
	return b[:idx], b[idx+1:], true
}

// EncodeLogin renders the LOGIN payload: "name\0password".
func EncodeLogin(name, password string) []byte {
	out := make([]byte, 0, len(name)+1+len(password))
	out = append(out, name...)
	out = append(out, 0)
	out = append(out, password...)
	return out
}

// DecodeLogin parses a LOGIN payload.
func DecodeLogin(payload []byte) (name, password string, err error) {
	n, p, ok := splitNUL(payload)
	if !ok {
		return "", "", protoErr("login payload missing NUL separator")
	}
	return string(n), string(p), nil
}

// EncodeLoginSuccess renders the assigned client id.
func EncodeLoginSuccess(clientID uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, clientID)
	return b
}

// DecodeLoginSuccess parses a LOGIN_SUCCESS payload.
func DecodeLoginSuccess(payload []byte) (uint32, error) {
	if len(payload) != 4 {
		return 0, protoErr("login_success payload must be 4 bytes")
	}
	return binary.LittleEndian.Uint32(payload), nil
}

// EncodeLoginError renders a rejection reason.
func EncodeLoginError(reason string) []byte { return []byte(reason) }

// DecodeLoginError parses a LOGIN_ERROR payload.
func DecodeLoginError(payload []byte) string { return string(payload) }

// EncodeCursor renders a CURSOR_UPDATE payload at a fixed 14 bytes
// (u32 client_id, i32 x, i32 y, u16 z).
func EncodeCursor(clientID uint32, x, y int32, z uint16) []byte {
	b := make([]byte, 14)
	binary.LittleEndian.PutUint32(b[0:4], clientID)
	binary.LittleEndian.PutUint32(b[4:8], uint32(x))
	binary.LittleEndian.PutUint32(b[8:12], uint32(y))
	binary.LittleEndian.PutUint16(b[12:14], z)
	return b
}

// DecodeCursor parses a CURSOR_UPDATE payload.
func DecodeCursor(payload []byte) (clientID uint32, x, y int32, z uint16, err error) {
	if len(payload) != 14 {
		return 0, 0, 0, 0, protoErr("cursor_update payload must be 14 bytes")
	}
	clientID = binary.LittleEndian.Uint32(payload[0:4])
	x = int32(binary.LittleEndian.Uint32(payload[4:8]))
	y = int32(binary.LittleEndian.Uint32(payload[8:12]))
	z = binary.LittleEndian.Uint16(payload[12:14])
	return clientID, x, y, z, nil
}

// EncodeChat renders a CHAT payload: u32 client_id, "name\0message".
func EncodeChat(clientID uint32, name, message string) []byte {
	out := make([]byte, 4, 4+len(name)+1+len(message))
	binary.LittleEndian.PutUint32(out, clientID)
	out = append(out, name...)
	out = append(out, 0)
	out = append(out, message...)
	return out
}

// DecodeChat parses a CHAT payload. A payload shorter than 4 bytes is
// not an error: it decodes to the zero values.
func DecodeChat(payload []byte) (clientID uint32, name, message string) {
	if len(payload) < 4 {
		return 0, "", ""
	}
	clientID = binary.LittleEndian.Uint32(payload[0:4])
	rest := payload[4:]
	n, m, ok := splitNUL(rest)
	if !ok {
		return clientID, string(rest), ""
	}
	return clientID, string(n), string(m)
}

// ClientInfo is one entry of a CLIENT_LIST broadcast.
type ClientInfo struct {
	ID   uint32
	RGB  [3]byte
	Name string
}

// EncodeClientList renders the CLIENT_LIST payload.
func EncodeClientList(clients []ClientInfo) []byte {
	var buf bytes.Buffer
	var countBuf [2]byte
	binary.LittleEndian.PutUint16(countBuf[:], uint16(len(clients)))
	buf.Write(countBuf[:])
	for _, c := range clients {
		var idBuf [4]byte
		binary.LittleEndian.PutUint32(idBuf[:], c.ID)
		buf.Write(idBuf[:])
		buf.Write(c.RGB[:])
		buf.WriteByte(byte(len(c.Name)))
		buf.WriteString(c.Name)
	}
	return buf.Bytes()
}

// DecodeClientList parses a CLIENT_LIST payload.
func DecodeClientList(payload []byte) ([]ClientInfo, error) {
	if len(payload) < 2 {
		return nil, protoErr("client_list payload truncated before count")
	}
	count := binary.LittleEndian.Uint16(payload[0:2])
	pos := 2
	out := make([]ClientInfo, 0, count)
	for i := uint16(0); i < count; i++ {
		if pos+4+3+1 > len(payload) {
			return nil, protoErr("client_list payload truncated in entry header")
		}
		id := binary.LittleEndian.Uint32(payload[pos : pos+4])
		pos += 4
		var rgb [3]byte
		copy(rgb[:], payload[pos:pos+3])
		pos += 3
		nameLen := int(payload[pos])
		pos++
		if pos+nameLen > len(payload) {
			return nil, protoErr("client_list payload truncated in name")
		}
		name := string(payload[pos : pos+nameLen])
		pos += nameLen
		out = append(out, ClientInfo{ID: id, RGB: rgb, Name: name})
	}
	return out, nil
}

// EncodeMapRequest renders a MAP_REQUEST payload.
func EncodeMapRequest(xMin, yMin, xMax, yMax int32, z uint8) []byte {
	b := make([]byte, 17)
	binary.LittleEndian.PutUint32(b[0:4], uint32(xMin))
	binary.LittleEndian.PutUint32(b[4:8], uint32(yMin))
	binary.LittleEndian.PutUint32(b[8:12], uint32(xMax))
	binary.LittleEndian.PutUint32(b[12:16], uint32(yMax))
	b[16] = z
	return b
}

// MapRequestAreaCap bounds the rectangle a single MAP_REQUEST may
// cover.
const MapRequestAreaCap = 65536

// DecodeMapRequest parses a MAP_REQUEST payload and reports whether
// its area exceeds MapRequestAreaCap; the caller must reject without
// touching the map provider when tooLarge is true.
func DecodeMapRequest(payload []byte) (xMin, yMin, xMax, yMax int32, z uint8, tooLarge bool, err error) {
	if len(payload) != 17 {
		return 0, 0, 0, 0, 0, false, protoErr("map_request payload must be 17 bytes")
	}
	xMin = int32(binary.LittleEndian.Uint32(payload[0:4]))
	yMin = int32(binary.LittleEndian.Uint32(payload[4:8]))
	xMax = int32(binary.LittleEndian.Uint32(payload[8:12]))
	yMax = int32(binary.LittleEndian.Uint32(payload[12:16]))
	z = payload[16]
	width := int64(xMax) - int64(xMin) + 1
	height := int64(yMax) - int64(yMin) + 1
	if width <= 0 || height <= 0 || width*height > MapRequestAreaCap {
		tooLarge = true
	}
	return xMin, yMin, xMax, yMax, z, tooLarge, nil
}

// EncodeKick renders a KICK reason string.
func EncodeKick(reason string) []byte { return []byte(reason) }

// DecodeKick parses a KICK payload.
func DecodeKick(payload []byte) string { return string(payload) }

// TileUpdateFlagHasHouse marks the optional trailing house_id field.
const TileUpdateFlagHasHouse uint8 = 1 << 1

// TileUpdateFlagCleared marks a tile record that represents a
// deletion: an empty tile broadcast as its own diff, mirroring
// mapmodel.MapModel.DeleteTile's "replicates as a TILE_UPDATE with an
// empty tile record" comment.
const TileUpdateFlagCleared uint8 = 1 << 0

// TileUpdateItem is one stacked item in a TileDiff record.
type TileUpdateItem struct {
	ItemID  uint16
	Subtype uint8
}

// TileDiff is one tile record inside a TILE_UPDATE payload.
type TileDiff struct {
	X, Y     int32
	Z        uint8
	Flags    uint8
	Items    []TileUpdateItem
	GroundID uint16
	HouseID  uint32
}

var tileUpdateMagic = [4]byte{'T', 'U', 'P', '1'}

func writeTileRecord(buf *bytes.Buffer, d TileDiff) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(d.X))
	buf.Write(b[:])
	binary.LittleEndian.PutUint32(b[:], uint32(d.Y))
	buf.Write(b[:])
	buf.WriteByte(d.Z)
	buf.WriteByte(d.Flags)
	var cnt [2]byte
	binary.LittleEndian.PutUint16(cnt[:], uint16(len(d.Items)))
	buf.Write(cnt[:])
	for _, it := range d.Items {
		var idBuf [2]byte
		binary.LittleEndian.PutUint16(idBuf[:], it.ItemID)
		buf.Write(idBuf[:])
		buf.WriteByte(it.Subtype)
	}
	var groundBuf [2]byte
	binary.LittleEndian.PutUint16(groundBuf[:], d.GroundID)
	buf.Write(groundBuf[:])
	if d.Flags&TileUpdateFlagHasHouse != 0 {
		var houseBuf [4]byte
		binary.LittleEndian.PutUint32(houseBuf[:], d.HouseID)
		buf.Write(houseBuf[:])
	}
}

func readTileRecord(payload []byte, pos int) (TileDiff, int, error) {
	if pos+4+4+1+1+2 > len(payload) {
		return TileDiff{}, 0, protoErr("tile record truncated before item count")
	}
	var d TileDiff
	d.X = int32(binary.LittleEndian.Uint32(payload[pos : pos+4]))
	pos += 4
	d.Y = int32(binary.LittleEndian.Uint32(payload[pos : pos+4]))
	pos += 4
	d.Z = payload[pos]
	pos++
	d.Flags = payload[pos]
	pos++
	itemCount := binary.LittleEndian.Uint16(payload[pos : pos+2])
	pos += 2
	for i := uint16(0); i < itemCount; i++ {
		if pos+3 > len(payload) {
			return TileDiff{}, 0, protoErr("tile record truncated in item list")
		}
		id := binary.LittleEndian.Uint16(payload[pos : pos+2])
		subtype := payload[pos+2]
		pos += 3
		d.Items = append(d.Items, TileUpdateItem{ItemID: id, Subtype: subtype})
	}
	if pos+2 > len(payload) {
		return TileDiff{}, 0, protoErr("tile record truncated before ground id")
	}
	d.GroundID = binary.LittleEndian.Uint16(payload[pos : pos+2])
	pos += 2
	if d.Flags&TileUpdateFlagHasHouse != 0 {
		if pos+4 > len(payload) {
			return TileDiff{}, 0, protoErr("tile record truncated before house id")
		}
		d.HouseID = binary.LittleEndian.Uint32(payload[pos : pos+4])
		pos += 4
	}
	return d, pos, nil
}

// EncodeTileUpdate renders a TILE_UPDATE payload: magic "TUP1", a
// u16_le count, then that many tile records.
func EncodeTileUpdate(diffs []TileDiff) []byte {
	var buf bytes.Buffer
	buf.Write(tileUpdateMagic[:])
	var cnt [2]byte
	binary.LittleEndian.PutUint16(cnt[:], uint16(len(diffs)))
	buf.Write(cnt[:])
	for _, d := range diffs {
		writeTileRecord(&buf, d)
	}
	return buf.Bytes()
}

// DecodeTileUpdate parses a TILE_UPDATE payload.
func DecodeTileUpdate(payload []byte) ([]TileDiff, error) {
	if len(payload) < 6 || !bytes.Equal(payload[0:4], tileUpdateMagic[:]) {
		return nil, protoErr("tile_update payload missing TUP1 magic")
	}
	count := binary.LittleEndian.Uint16(payload[4:6])
	pos := 6
	out := make([]TileDiff, 0, count)
	for i := uint16(0); i < count; i++ {
		d, next, err := readTileRecord(payload, pos)
		if err != nil {
			return nil, err
		}
		pos = next
		out = append(out, d)
	}
	return out, nil
}

// MapChunk is one MAP_CHUNK response: the server
// partitions a requested rectangle into chunks bounded by the area cap
// and a per-chunk tile budget; the server packs at most
// ServerConfig.ChunkTileBudget tile records (DefaultChunkTileBudget by
// default) per chunk. The budget counts tiles, not bytes, so a chunk of
// heavily stacked tiles is not bounded below MaxPayloadSize by it.
type MapChunk struct {
	ChunkID      uint32
	TotalChunks  uint32
	RegionBaseX  int32
	RegionBaseY  int32
	RegionZ      uint8
	Tiles        []TileDiff
}

// DefaultChunkTileBudget is the per-MAP_CHUNK tile count this package
// uses when partitioning a MAP_REQUEST response.
const DefaultChunkTileBudget = 512

// EncodeMapChunk renders a MAP_CHUNK payload.
func EncodeMapChunk(c MapChunk) []byte {
	var buf bytes.Buffer
	var b4 [4]byte
	binary.LittleEndian.PutUint32(b4[:], c.ChunkID)
	buf.Write(b4[:])
	binary.LittleEndian.PutUint32(b4[:], c.TotalChunks)
	buf.Write(b4[:])
	binary.LittleEndian.PutUint32(b4[:], uint32(c.RegionBaseX))
	buf.Write(b4[:])
	binary.LittleEndian.PutUint32(b4[:], uint32(c.RegionBaseY))
	buf.Write(b4[:])
	buf.WriteByte(c.RegionZ)
	var cnt [2]byte
	binary.LittleEndian.PutUint16(cnt[:], uint16(len(c.Tiles)))
	buf.Write(cnt[:])
	for _, d := range c.Tiles {
		writeTileRecord(&buf, d)
	}
	return buf.Bytes()
}

// DecodeMapChunk parses a MAP_CHUNK payload.
func DecodeMapChunk(payload []byte) (MapChunk, error) {
	const headerLen = 4 + 4 + 4 + 4 + 1 + 2
	if len(payload) < headerLen {
		return MapChunk{}, protoErr("map_chunk payload truncated before header")
	}
	var c MapChunk
	c.ChunkID = binary.LittleEndian.Uint32(payload[0:4])
	c.TotalChunks = binary.LittleEndian.Uint32(payload[4:8])
	c.RegionBaseX = int32(binary.LittleEndian.Uint32(payload[8:12]))
	c.RegionBaseY = int32(binary.LittleEndian.Uint32(payload[12:16]))
	c.RegionZ = payload[16]
	tileCount := binary.LittleEndian.Uint16(payload[17:19])
	pos := headerLen
	for i := uint16(0); i < tileCount; i++ {
		d, next, err := readTileRecord(payload, pos)
		if err != nil {
			return MapChunk{}, err
		}
		pos = next
		c.Tiles = append(c.Tiles, d)
	}
	return c, nil
}
