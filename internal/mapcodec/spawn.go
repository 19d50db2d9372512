package mapcodec

import (
	"encoding/binary"

	"github.com/rme-go/canary-core/api"
	"github.com/rme-go/canary-core/internal/bytestream"
	"github.com/rme-go/canary-core/internal/mapmodel"
	"github.com/rme-go/canary-core/internal/nodecodec"
)

const (
	monsterEntryHasDirection uint8 = 1 << 0
	monsterEntryHasWeight    uint8 = 1 << 1
)

func readI16(b []byte) int16 { return int16(binary.LittleEndian.Uint16(b)) }

func encodeI16(v int16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}

// readSpawnMonsterData parses SPAWN_MONSTER_DATA: a list of
// SPAWN_MONSTER_AREA nodes, each enumerating MONSTER children as
// offsets from the area's center, so a spawn area stays intact when
// the whole map is translated.
func readSpawnMonsterData(r *bytestream.Reader, pr *nodecodec.PayloadReader, format Format, cfg LoaderConfig, model *mapmodel.MapModel) error {
	delim, err := pr.DrainToDelimiter()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "spawn monster data payload", err)
	}
	table := tableFor(format)
	return nodecodec.ReadChildren(r, delim, func(childType byte, childPR *nodecodec.PayloadReader) error {
		kind, known := table.Kind(childType)
		if !known || kind != KindSpawnMonsterArea {
			cfg.warn(api.Warning{Code: api.WarnUnknownNodeType, Message: "skipped unexpected child of spawn monster data"})
			return nodecodec.SkipRemainder(r, childPR)
		}
		area, err := readMonsterSpawnArea(r, childPR, format, cfg)
		if err != nil {
			return err
		}
		model.AppendMonsterSpawn(area)
		return nil
	})
}

func readMonsterSpawnArea(r *bytestream.Reader, pr *nodecodec.PayloadReader, format Format, cfg LoaderConfig) (*mapmodel.MonsterSpawnArea, error) {
	centerBytes, err := pr.ReadEscapedBytes(5)
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "spawn area center", err)
	}
	center, err := decodePosition(centerBytes)
	if err != nil {
		return nil, wrapFatal(ErrInvalidAttribute, "spawn area center", err)
	}
	radius, err := pr.ReadU32LE()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "spawn area radius", err)
	}

	area := &mapmodel.MonsterSpawnArea{Center: center, Radius: radius}

	delim, err := pr.DrainToDelimiter()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "spawn area payload", err)
	}
	table := tableFor(format)
	err = nodecodec.ReadChildren(r, delim, func(childType byte, childPR *nodecodec.PayloadReader) error {
		kind, known := table.Kind(childType)
		if !known || kind != KindMonster {
			cfg.warn(api.Warning{Code: api.WarnUnknownNodeType, Message: "skipped unexpected child of spawn area"})
			return nodecodec.SkipRemainder(r, childPR)
		}
		entry, err := readMonsterSpawnEntry(childPR)
		if err != nil {
			return err
		}
		if _, err := childPR.DrainToDelimiter(); err != nil {
			return wrapFatal(ErrUnexpectedEOF, "monster entry payload", err)
		}
		d, _ := childPR.Delimiter()
		if err := nodecodec.ConsumeSiblingsUntilEnd(r, d); err != nil {
			return err
		}
		area.Entries = append(area.Entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return area, nil
}

func readMonsterSpawnEntry(pr *nodecodec.PayloadReader) (mapmodel.MonsterSpawnEntry, error) {
	name, err := pr.ReadString()
	if err != nil {
		return mapmodel.MonsterSpawnEntry{}, wrapFatal(ErrUnexpectedEOF, "monster name", err)
	}
	dxBytes, err := pr.ReadEscapedBytes(2)
	if err != nil {
		return mapmodel.MonsterSpawnEntry{}, wrapFatal(ErrUnexpectedEOF, "monster dx", err)
	}
	dyBytes, err := pr.ReadEscapedBytes(2)
	if err != nil {
		return mapmodel.MonsterSpawnEntry{}, wrapFatal(ErrUnexpectedEOF, "monster dy", err)
	}
	spawnTime, err := pr.ReadU32LE()
	if err != nil {
		return mapmodel.MonsterSpawnEntry{}, wrapFatal(ErrUnexpectedEOF, "monster spawn time", err)
	}
	flags, err := pr.ReadU8()
	if err != nil {
		return mapmodel.MonsterSpawnEntry{}, wrapFatal(ErrUnexpectedEOF, "monster flags", err)
	}
	entry := mapmodel.MonsterSpawnEntry{Name: name, DX: readI16(dxBytes), DY: readI16(dyBytes), SpawnTime: spawnTime}
	if flags&monsterEntryHasDirection != 0 {
		d, err := pr.ReadU8()
		if err != nil {
			return mapmodel.MonsterSpawnEntry{}, wrapFatal(ErrUnexpectedEOF, "monster direction", err)
		}
		entry.Direction = &d
	}
	if flags&monsterEntryHasWeight != 0 {
		w, err := pr.ReadU16LE()
		if err != nil {
			return mapmodel.MonsterSpawnEntry{}, wrapFatal(ErrUnexpectedEOF, "monster weight", err)
		}
		entry.Weight = &w
	}
	return entry, nil
}

func writeSpawnMonsterData(format Format, model *mapmodel.MapModel) []byte {
	table := tableFor(format)
	dataCode, _ := table.Code(KindSpawnMonsterData)
	areaCode, _ := table.Code(KindSpawnMonsterArea)
	monsterCode, _ := table.Code(KindMonster)

	children := make([][]byte, 0, len(model.MonsterSpawns))
	for _, area := range model.MonsterSpawns {
		aw := bytestream.NewWriter()
		aw.WriteBytes(encodePosition(area.Center))
		aw.WriteU32LE(area.Radius)

		entryNodes := make([][]byte, 0, len(area.Entries))
		for _, e := range area.Entries {
			ew := bytestream.NewWriter()
			_ = ew.WriteString(e.Name)
			ew.WriteBytes(encodeI16(e.DX))
			ew.WriteBytes(encodeI16(e.DY))
			ew.WriteU32LE(e.SpawnTime)
			var flags uint8
			if e.Direction != nil {
				flags |= monsterEntryHasDirection
			}
			if e.Weight != nil {
				flags |= monsterEntryHasWeight
			}
			ew.WriteU8(flags)
			if e.Direction != nil {
				ew.WriteU8(*e.Direction)
			}
			if e.Weight != nil {
				ew.WriteU16LE(*e.Weight)
			}
			entryNodes = append(entryNodes, nodecodec.EncodeNode(monsterCode, ew.Bytes()))
		}
		children = append(children, nodecodec.EncodeNode(areaCode, aw.Bytes(), entryNodes...))
	}
	return nodecodec.EncodeNode(dataCode, nil, children...)
}

// readSpawnNpcData mirrors readSpawnMonsterData for NPC spawns, a
// FormatB-only section.
func readSpawnNpcData(r *bytestream.Reader, pr *nodecodec.PayloadReader, format Format, cfg LoaderConfig, model *mapmodel.MapModel) error {
	delim, err := pr.DrainToDelimiter()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "spawn npc data payload", err)
	}
	table := tableFor(format)
	return nodecodec.ReadChildren(r, delim, func(childType byte, childPR *nodecodec.PayloadReader) error {
		kind, known := table.Kind(childType)
		if !known || kind != KindSpawnNpcArea {
			cfg.warn(api.Warning{Code: api.WarnUnknownNodeType, Message: "skipped unexpected child of spawn npc data"})
			return nodecodec.SkipRemainder(r, childPR)
		}
		area, err := readNpcSpawnArea(r, childPR, format, cfg)
		if err != nil {
			return err
		}
		model.AppendNPCSpawn(area)
		return nil
	})
}

func readNpcSpawnArea(r *bytestream.Reader, pr *nodecodec.PayloadReader, format Format, cfg LoaderConfig) (*mapmodel.NpcSpawnArea, error) {
	centerBytes, err := pr.ReadEscapedBytes(5)
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "npc spawn area center", err)
	}
	center, err := decodePosition(centerBytes)
	if err != nil {
		return nil, wrapFatal(ErrInvalidAttribute, "npc spawn area center", err)
	}
	radius, err := pr.ReadU32LE()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "npc spawn area radius", err)
	}

	area := &mapmodel.NpcSpawnArea{Center: center, Radius: radius}

	delim, err := pr.DrainToDelimiter()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "npc spawn area payload", err)
	}
	table := tableFor(format)
	err = nodecodec.ReadChildren(r, delim, func(childType byte, childPR *nodecodec.PayloadReader) error {
		kind, known := table.Kind(childType)
		if !known || kind != KindNpc {
			cfg.warn(api.Warning{Code: api.WarnUnknownNodeType, Message: "skipped unexpected child of npc spawn area"})
			return nodecodec.SkipRemainder(r, childPR)
		}
		name, err := childPR.ReadString()
		if err != nil {
			return wrapFatal(ErrUnexpectedEOF, "npc name", err)
		}
		dxBytes, err := childPR.ReadEscapedBytes(2)
		if err != nil {
			return wrapFatal(ErrUnexpectedEOF, "npc dx", err)
		}
		dyBytes, err := childPR.ReadEscapedBytes(2)
		if err != nil {
			return wrapFatal(ErrUnexpectedEOF, "npc dy", err)
		}
		flags, err := childPR.ReadU8()
		if err != nil {
			return wrapFatal(ErrUnexpectedEOF, "npc flags", err)
		}
		entry := mapmodel.NpcSpawnEntry{Name: name, DX: readI16(dxBytes), DY: readI16(dyBytes)}
		if flags&monsterEntryHasDirection != 0 {
			d, err := childPR.ReadU8()
			if err != nil {
				return wrapFatal(ErrUnexpectedEOF, "npc direction", err)
			}
			entry.Direction = &d
		}
		if _, err := childPR.DrainToDelimiter(); err != nil {
			return wrapFatal(ErrUnexpectedEOF, "npc entry payload", err)
		}
		d, _ := childPR.Delimiter()
		if err := nodecodec.ConsumeSiblingsUntilEnd(r, d); err != nil {
			return err
		}
		area.Entries = append(area.Entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return area, nil
}

func writeSpawnNpcData(format Format, model *mapmodel.MapModel) []byte {
	table := tableFor(format)
	dataCode, ok := table.Code(KindSpawnNpcData)
	if !ok {
		return nil
	}
	areaCode, _ := table.Code(KindSpawnNpcArea)
	npcCode, _ := table.Code(KindNpc)

	children := make([][]byte, 0, len(model.NPCSpawns))
	for _, area := range model.NPCSpawns {
		aw := bytestream.NewWriter()
		aw.WriteBytes(encodePosition(area.Center))
		aw.WriteU32LE(area.Radius)

		entryNodes := make([][]byte, 0, len(area.Entries))
		for _, e := range area.Entries {
			ew := bytestream.NewWriter()
			_ = ew.WriteString(e.Name)
			ew.WriteBytes(encodeI16(e.DX))
			ew.WriteBytes(encodeI16(e.DY))
			var flags uint8
			if e.Direction != nil {
				flags |= monsterEntryHasDirection
			}
			ew.WriteU8(flags)
			if e.Direction != nil {
				ew.WriteU8(*e.Direction)
			}
			entryNodes = append(entryNodes, nodecodec.EncodeNode(npcCode, ew.Bytes()))
		}
		children = append(children, nodecodec.EncodeNode(areaCode, aw.Bytes(), entryNodes...))
	}
	return nodecodec.EncodeNode(dataCode, nil, children...)
}
