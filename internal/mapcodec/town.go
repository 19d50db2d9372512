package mapcodec

import (
	"github.com/rme-go/canary-core/api"
	"github.com/rme-go/canary-core/internal/bytestream"
	"github.com/rme-go/canary-core/internal/mapmodel"
	"github.com/rme-go/canary-core/internal/nodecodec"
)

func readTownData(r *bytestream.Reader, pr *nodecodec.PayloadReader, format Format, cfg LoaderConfig, model *mapmodel.MapModel) error {
	delim, err := pr.DrainToDelimiter()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "town data payload", err)
	}
	table := tableFor(format)
	return nodecodec.ReadChildren(r, delim, func(childType byte, childPR *nodecodec.PayloadReader) error {
		kind, known := table.Kind(childType)
		if !known || kind != KindTown {
			cfg.warn(api.Warning{Code: api.WarnUnknownNodeType, Message: "skipped unexpected child of town data"})
			return nodecodec.SkipRemainder(r, childPR)
		}
		town, err := readTown(r, childPR)
		if err != nil {
			return err
		}
		if !model.PutTown(town) {
			cfg.warn(api.Warning{Code: api.WarnDuplicateTown, Message: "duplicate town id, keeping first"})
		}
		return nil
	})
}

func readTown(r *bytestream.Reader, pr *nodecodec.PayloadReader) (*mapmodel.Town, error) {
	id, err := pr.ReadU32LE()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "town id", err)
	}
	name, err := pr.ReadString()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "town name", err)
	}
	templeBytes, err := pr.ReadEscapedBytes(5)
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "town temple position", err)
	}
	temple, err := decodePosition(templeBytes)
	if err != nil {
		return nil, wrapFatal(ErrInvalidAttribute, "town temple position", err)
	}

	if _, err := pr.DrainToDelimiter(); err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "town payload", err)
	}
	delim, _ := pr.Delimiter()
	if err := nodecodec.ConsumeSiblingsUntilEnd(r, delim); err != nil {
		return nil, err
	}

	return &mapmodel.Town{ID: id, Name: name, TemplePosition: temple}, nil
}

func writeTownData(format Format, model *mapmodel.MapModel) []byte {
	table := tableFor(format)
	dataCode, _ := table.Code(KindTownData)
	townCode, _ := table.Code(KindTown)

	children := make([][]byte, 0, len(model.Towns()))
	for _, t := range model.Towns() {
		w := bytestream.NewWriter()
		w.WriteU32LE(t.ID)
		_ = w.WriteString(t.Name)
		w.WriteBytes(encodePosition(t.TemplePosition))
		children = append(children, nodecodec.EncodeNode(townCode, w.Bytes()))
	}
	return nodecodec.EncodeNode(dataCode, nil, children...)
}
