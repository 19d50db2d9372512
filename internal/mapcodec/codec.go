// Package mapcodec reads and writes the two sibling on-disk map
// formats by driving internal/nodecodec's node framing and
// populating/walking an internal/mapmodel.MapModel. Load and Save are
// the only entry points hosts need; everything else in this package is
// node-kind dispatch.
package mapcodec

import (
	"github.com/rme-go/canary-core/api"
	"github.com/rme-go/canary-core/internal/bytestream"
	"github.com/rme-go/canary-core/internal/mapmodel"
	"github.com/rme-go/canary-core/internal/nodecodec"
)

// Load parses a complete map stream. want is the format the caller
// expects; if the stream's actual magic belongs to the sibling format,
// Load delegates to it transparently and records that in the report
// rather than failing.
func Load(r *bytestream.Reader, want Format, cfg LoaderConfig) (*mapmodel.MapModel, *LoadReport, error) {
	sink := &api.CollectingSink{}
	if cfg.Warnings == nil {
		cfg.Warnings = sink
	} else {
		sink = nil
	}
	var replaced []ReplacedItem
	cfg.replaced = &replaced

	magic, err := nodecodec.OpenRoot(r, MagicZero, MagicOTMM)
	if err != nil {
		return nil, nil, wrapFatal(ErrBadMagic, "root magic", err)
	}

	actual := want
	switch magic {
	case MagicOTMM:
		actual = FormatB
	case MagicZero:
		actual = FormatA
	}
	delegated := actual != want
	if delegated {
		cfg.warn(api.Warning{Code: api.WarnFormatDelegation, Message: "stream magic belongs to the sibling format; delegating"})
	}

	model := mapmodel.New()
	report, err := loadBody(r, actual, cfg, model)
	if err != nil {
		return nil, nil, err
	}
	report.Format = actual
	report.Delegated = delegated
	if sink != nil {
		report.Warnings = sink.Warnings
	}
	report.ReplacedItems = replaced
	report.TileCount = model.TileCount()
	report.HouseCount = len(model.Houses())
	report.TownCount = len(model.Towns())
	report.ZoneCount = len(model.Zones())
	return model, report, nil
}

func loadBody(r *bytestream.Reader, format Format, cfg LoaderConfig, model *mapmodel.MapModel) (*LoadReport, error) {
	table := tableFor(format)

	rootType, rootPR, err := nodecodec.BeginNode(r)
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "root node", err)
	}
	if wantCode, _ := table.Code(KindRoot); rootType != wantCode {
		return nil, wrapFatal(ErrBadMagic, "root node type does not match file magic's format", nil)
	}

	version, err := rootPR.ReadU32LE()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "root version", err)
	}
	if version != RootVersion1 && version != RootVersion2 {
		if !cfg.AllowUnsupportedVersion {
			return nil, wrapFatal(ErrUnsupportedVersion, "root version", nil)
		}
		cfg.warn(api.Warning{Code: api.WarnUnsupportedVersion, Message: "unrecognized root version, parsing best-effort"})
	}

	header := mapmodel.MapHeader{FormatVersion: version}

	delim, err := rootPR.DrainToDelimiter()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "root payload", err)
	}
	err = nodecodec.ReadChildren(r, delim, func(childType byte, childPR *nodecodec.PayloadReader) error {
		kind, known := table.Kind(childType)
		if !known || kind != KindMapData {
			cfg.warn(api.Warning{Code: api.WarnUnknownNodeType, Message: "skipped unexpected child of root"})
			return nodecodec.SkipRemainder(r, childPR)
		}
		return readMapData(r, childPR, format, cfg, model, &header)
	})
	if err != nil {
		return nil, err
	}

	model.SetHeader(header)
	return &LoadReport{}, nil
}

func readMapData(r *bytestream.Reader, pr *nodecodec.PayloadReader, format Format, cfg LoaderConfig, model *mapmodel.MapModel, header *mapmodel.MapHeader) error {
	width, err := pr.ReadU16LE()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "map width", err)
	}
	height, err := pr.ReadU16LE()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "map height", err)
	}
	description, err := pr.ReadString()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "map description", err)
	}
	spawnFile, err := pr.ReadString()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "map spawn file", err)
	}
	houseFile, err := pr.ReadString()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "map house file", err)
	}
	zoneFile, err := pr.ReadString()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "map zone file", err)
	}
	header.Width = width
	header.Height = height
	header.Description = description
	header.SpawnFile = spawnFile
	header.HouseFile = houseFile
	header.ZoneFile = zoneFile

	tileCount := 0
	table := tableFor(format)
	delim, err := pr.DrainToDelimiter()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "map data payload", err)
	}
	return nodecodec.ReadChildren(r, delim, func(childType byte, childPR *nodecodec.PayloadReader) error {
		kind, known := table.Kind(childType)
		if !known {
			cfg.warn(api.Warning{Code: api.WarnUnknownNodeType, Message: "skipped unknown node type under map data"})
			return nodecodec.SkipRemainder(r, childPR)
		}
		switch kind {
		case KindTileData:
			before := model.TileCount()
			if err := readTileArea(r, childPR, format, cfg, model); err != nil {
				return err
			}
			tileCount += model.TileCount() - before
			if tileCount > cfg.maxTiles() {
				return wrapFatal(ErrMemoryGuard, "tile count exceeds configured limit", nil)
			}
			return nil
		case KindTownData:
			return readTownData(r, childPR, format, cfg, model)
		case KindHouseData:
			return readHouseData(r, childPR, format, cfg, model)
		case KindZoneData:
			return readZoneData(r, childPR, format, cfg, model)
		case KindWaypointData:
			return readWaypointData(r, childPR, format, cfg, model)
		case KindSpawnMonsterData:
			return readSpawnMonsterData(r, childPR, format, cfg, model)
		case KindSpawnNpcData:
			return readSpawnNpcData(r, childPR, format, cfg, model)
		default:
			cfg.warn(api.Warning{Code: api.WarnUnknownNodeType, Message: "skipped node type not valid at this nesting level"})
			return nodecodec.SkipRemainder(r, childPR)
		}
	})
}

// Save renders model as a complete stream in format.
func Save(model *mapmodel.MapModel, format Format, cfg SaverConfig) []byte {
	w := bytestream.NewWriter()

	magic := MagicZero
	if format == FormatB {
		magic = MagicOTMM
	}
	nodecodec.WriteMagic(w, magic)

	table := tableFor(format)
	rootCode, _ := table.Code(KindRoot)
	mapDataCode, _ := table.Code(KindMapData)

	version := model.Header.FormatVersion
	if version == 0 {
		version = RootVersion1
	}
	rw := bytestream.NewWriter()
	rw.WriteU32LE(version)

	mw := bytestream.NewWriter()
	mw.WriteU16LE(model.Header.Width)
	mw.WriteU16LE(model.Header.Height)
	_ = mw.WriteString(model.Header.Description)
	_ = mw.WriteString(model.Header.SpawnFile)
	_ = mw.WriteString(model.Header.HouseFile)
	_ = mw.WriteString(model.Header.ZoneFile)

	// Fixed emission order per the write-up: TILE_DATA, SPAWN_MONSTER_DATA,
	// SPAWN_NPC_DATA, TOWN_DATA, HOUSE_DATA, then WAYPOINT_DATA for
	// FormatA. ZONE_DATA has no legacy slot; it is appended last.
	var mapChildren [][]byte
	mapChildren = append(mapChildren, writeTileAreas(format, model)...)
	mapChildren = append(mapChildren, writeSpawnMonsterData(format, model))
	if sn := writeSpawnNpcData(format, model); sn != nil {
		mapChildren = append(mapChildren, sn)
	}
	mapChildren = append(mapChildren, writeTownData(format, model))
	mapChildren = append(mapChildren, writeHouseData(format, model))
	if wp := writeWaypointData(format, model); wp != nil {
		mapChildren = append(mapChildren, wp)
	}
	mapChildren = append(mapChildren, writeZoneData(format, model))

	mapDataNode := nodecodec.EncodeNode(mapDataCode, mw.Bytes(), mapChildren...)
	w.WriteBytes(nodecodec.EncodeNode(rootCode, rw.Bytes(), mapDataNode))

	return w.Bytes()
}
