package mapcodec

import (
	"github.com/rme-go/canary-core/api"
	"github.com/rme-go/canary-core/internal/bytestream"
	"github.com/rme-go/canary-core/internal/mapmodel"
	"github.com/rme-go/canary-core/internal/nodecodec"
)

// readTileArea parses a TILE_DATA node: a base (x,y,z) header followed
// by TILE/HOUSETILE children, each carrying only its offset within the
// area. Areas exist purely to keep per-tile coordinates small on the
// wire, not as a model concept; every tile they contain is inserted
// into model directly.
func readTileArea(r *bytestream.Reader, pr *nodecodec.PayloadReader, format Format, cfg LoaderConfig, model *mapmodel.MapModel) error {
	baseX, err := pr.ReadU16LE()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "tile area base x", err)
	}
	baseY, err := pr.ReadU16LE()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "tile area base y", err)
	}
	baseZ, err := pr.ReadU8()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "tile area base z", err)
	}
	base := mapmodel.Position{X: baseX, Y: baseY, Z: baseZ}

	delim, err := pr.DrainToDelimiter()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "tile area payload", err)
	}
	return nodecodec.ReadChildren(r, delim, func(childType byte, childPR *nodecodec.PayloadReader) error {
		table := tableFor(format)
		kind, known := table.Kind(childType)
		if !known || (kind != KindTile && kind != KindHouseTile) {
			cfg.warn(api.Warning{Code: api.WarnUnknownNodeType, Message: "skipped unexpected child of tile area"})
			return nodecodec.SkipRemainder(r, childPR)
		}
		tile, err := readTile(r, childPR, format, cfg, base, kind == KindHouseTile)
		if err != nil {
			return err
		}
		if tile == nil {
			return nil
		}
		if model.GetTile(tile.Position.X, tile.Position.Y, tile.Position.Z) != nil {
			cfg.warn(api.Warning{Code: api.WarnDuplicateTile, Message: "duplicate tile, keeping first", Coords: &tile.Position})
			return nil
		}
		model.PutTile(tile, false)
		return nil
	})
}

func readTile(r *bytestream.Reader, pr *nodecodec.PayloadReader, format Format, cfg LoaderConfig, base mapmodel.Position, isHouseTile bool) (*mapmodel.Tile, error) {
	offX, err := pr.ReadU8()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "tile offset x", err)
	}
	offY, err := pr.ReadU8()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "tile offset y", err)
	}
	tile := &mapmodel.Tile{Position: mapmodel.Position{X: base.X + uint16(offX), Y: base.Y + uint16(offY), Z: base.Z}}

	if isHouseTile {
		houseID, err := pr.ReadU32LE()
		if err != nil {
			return nil, wrapFatal(ErrUnexpectedEOF, "house tile house id", err)
		}
		tile.HouseID = houseID
		tile.HasHouse = true
	}

	for {
		code, ok, err := pr.ReadEscapedU8()
		if err != nil {
			return nil, wrapFatal(ErrUnexpectedEOF, "tile attribute code", err)
		}
		if !ok {
			break
		}
		length, err := pr.ReadU16LE()
		if err != nil {
			return nil, wrapFatal(ErrUnexpectedEOF, "tile attribute length", err)
		}
		value, err := pr.ReadEscapedBytes(int(length))
		if err != nil {
			return nil, wrapFatal(ErrUnexpectedEOF, "tile attribute value", err)
		}
		switch AttrCode(code) {
		case AttrTileFlags:
			v, err := decodeU32(value)
			if err != nil {
				return nil, wrapFatal(ErrInvalidAttribute, "tile_flags", err)
			}
			tile.MapFlags = v
		case AttrZoneIDs:
			ids, err := decodeZoneIDs(value)
			if err != nil {
				return nil, wrapFatal(ErrInvalidAttribute, "zone_ids", err)
			}
			for _, id := range ids {
				tile.AddZone(id)
			}
		default:
			cfg.warn(api.Warning{Code: api.WarnUnknownAttribute, Message: "skipped unknown tile attribute", Coords: &tile.Position})
		}
	}

	delim, err := pr.DrainToDelimiter()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "tile payload", err)
	}
	err = nodecodec.ReadChildren(r, delim, func(childType byte, childPR *nodecodec.PayloadReader) error {
		table := tableFor(format)
		kind, known := table.Kind(childType)
		if !known || kind != KindItem {
			cfg.warn(api.Warning{Code: api.WarnUnknownNodeType, Message: "skipped unexpected child of tile", Coords: &tile.Position})
			return nodecodec.SkipRemainder(r, childPR)
		}
		item, err := readItem(r, childPR, format, cfg, 0, tile.Position)
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}
		if tile.Ground == nil && cfg.Catalog != nil && cfg.Catalog.IsGround(item.ServerID) {
			tile.Ground = item
		} else {
			tile.Items = append(tile.Items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if tile.IsEmpty() {
		return nil, nil
	}
	return tile, nil
}

// writeTileAreas groups model's sorted tiles into 256x256xZ areas and
// renders each as a TILE_DATA node in deterministic (z,y,x) emission
// order.
func writeTileAreas(format Format, model *mapmodel.MapModel) [][]byte {
	const areaSize = 256
	table := tableFor(format)
	tileCode, _ := table.Code(KindTile)
	houseTileCode, _ := table.Code(KindHouseTile)
	areaCode, _ := table.Code(KindTileData)

	type areaKey struct {
		baseX, baseY uint16
		z            uint8
	}
	areas := make(map[areaKey][]*mapmodel.Tile)
	var order []areaKey

	for _, tile := range model.SortedTiles() {
		k := areaKey{baseX: (tile.Position.X / areaSize) * areaSize, baseY: (tile.Position.Y / areaSize) * areaSize, z: tile.Position.Z}
		if _, ok := areas[k]; !ok {
			order = append(order, k)
		}
		areas[k] = append(areas[k], tile)
	}

	out := make([][]byte, 0, len(order))
	for _, k := range order {
		aw := bytestream.NewWriter()
		aw.WriteU16LE(k.baseX)
		aw.WriteU16LE(k.baseY)
		aw.WriteU8(k.z)

		children := make([][]byte, 0, len(areas[k]))
		for _, tile := range areas[k] {
			children = append(children, writeTile(format, tile, k, tileCode, houseTileCode))
		}
		out = append(out, nodecodec.EncodeNode(areaCode, aw.Bytes(), children...))
	}
	return out
}

func writeTile(format Format, tile *mapmodel.Tile, base struct {
	baseX, baseY uint16
	z            uint8
}, tileCode, houseTileCode byte) []byte {
	w := bytestream.NewWriter()
	w.WriteU8(byte(tile.Position.X - base.baseX))
	w.WriteU8(byte(tile.Position.Y - base.baseY))

	code := tileCode
	if tile.HasHouse {
		code = houseTileCode
		w.WriteU32LE(tile.HouseID)
	}
	if tile.MapFlags != 0 {
		writeAttrTLV(w, AttrTileFlags, encodeU32(tile.MapFlags))
	}
	if zoneIDs := tile.ZoneIDs(); len(zoneIDs) > 0 {
		writeAttrTLV(w, AttrZoneIDs, encodeZoneIDs(zoneIDs))
	}

	var children [][]byte
	if tile.Ground != nil {
		children = append(children, writeItem(format, tile.Ground))
	}
	for _, it := range tile.Items {
		children = append(children, writeItem(format, it))
	}
	return nodecodec.EncodeNode(code, w.Bytes(), children...)
}
