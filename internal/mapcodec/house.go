package mapcodec

import (
	"github.com/rme-go/canary-core/api"
	"github.com/rme-go/canary-core/internal/bytestream"
	"github.com/rme-go/canary-core/internal/mapmodel"
	"github.com/rme-go/canary-core/internal/nodecodec"
)

// houseFlagGuildhall is the sole bit of House's flags byte.
const houseFlagGuildhall uint8 = 1 << 0

// readHouseData parses the HOUSE_DATA container and every HOUSE child,
// inserting each into model with keep-first-on-duplicate semantics.
// The canonical per-house tail is 11 bytes (flags, size, beds, client
// id); an older 17-byte layout with extra reserved fields is not
// produced or accepted here.
func readHouseData(r *bytestream.Reader, pr *nodecodec.PayloadReader, format Format, cfg LoaderConfig, model *mapmodel.MapModel) error {
	delim, err := pr.DrainToDelimiter()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "house data payload", err)
	}
	table := tableFor(format)
	return nodecodec.ReadChildren(r, delim, func(childType byte, childPR *nodecodec.PayloadReader) error {
		kind, known := table.Kind(childType)
		if !known || kind != KindHouse {
			cfg.warn(api.Warning{Code: api.WarnUnknownNodeType, Message: "skipped unexpected child of house data"})
			return nodecodec.SkipRemainder(r, childPR)
		}
		house, err := readHouse(r, childPR)
		if err != nil {
			return err
		}
		if !model.PutHouse(house) {
			cfg.warn(api.Warning{Code: api.WarnDuplicateHouse, Message: "duplicate house id, keeping first"})
		}
		return nil
	})
}

func readHouse(r *bytestream.Reader, pr *nodecodec.PayloadReader) (*mapmodel.House, error) {
	id, err := pr.ReadU32LE()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "house id", err)
	}
	name, err := pr.ReadString()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "house name", err)
	}
	entryBytes, err := pr.ReadEscapedBytes(5)
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "house entry position", err)
	}
	entry, err := decodePosition(entryBytes)
	if err != nil {
		return nil, wrapFatal(ErrInvalidAttribute, "house entry position", err)
	}
	rent, err := pr.ReadU32LE()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "house rent", err)
	}
	townID, err := pr.ReadU32LE()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "house town id", err)
	}
	flags, err := pr.ReadU8()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "house flags", err)
	}
	size, err := pr.ReadU32LE()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "house size", err)
	}
	beds, err := pr.ReadU32LE()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "house beds", err)
	}
	clientID, err := pr.ReadU16LE()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "house client id", err)
	}

	if _, err := pr.DrainToDelimiter(); err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "house payload", err)
	}
	delim, _ := pr.Delimiter()
	if err := nodecodec.ConsumeSiblingsUntilEnd(r, delim); err != nil {
		return nil, err
	}

	return &mapmodel.House{
		ID:        id,
		Name:      name,
		Entry:     &entry,
		Rent:      rent,
		TownID:    townID,
		Guildhall: flags&houseFlagGuildhall != 0,
		Size:      size,
		Beds:      beds,
		ClientID:  clientID,
	}, nil
}

func writeHouseData(format Format, model *mapmodel.MapModel) []byte {
	table := tableFor(format)
	dataCode, _ := table.Code(KindHouseData)
	houseCode, _ := table.Code(KindHouse)

	children := make([][]byte, 0, len(model.Houses()))
	for _, h := range model.Houses() {
		w := bytestream.NewWriter()
		w.WriteU32LE(h.ID)
		_ = w.WriteString(h.Name)
		var entry mapmodel.Position
		if h.Entry != nil {
			entry = *h.Entry
		}
		w.WriteBytes(encodePosition(entry))
		w.WriteU32LE(h.Rent)
		w.WriteU32LE(h.TownID)
		var flags uint8
		if h.Guildhall {
			flags |= houseFlagGuildhall
		}
		w.WriteU8(flags)
		w.WriteU32LE(h.Size)
		w.WriteU32LE(h.Beds)
		w.WriteU16LE(h.ClientID)
		children = append(children, nodecodec.EncodeNode(houseCode, w.Bytes()))
	}
	return nodecodec.EncodeNode(dataCode, nil, children...)
}
