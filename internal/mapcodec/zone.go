package mapcodec

import (
	"github.com/rme-go/canary-core/api"
	"github.com/rme-go/canary-core/internal/bytestream"
	"github.com/rme-go/canary-core/internal/mapmodel"
	"github.com/rme-go/canary-core/internal/nodecodec"
)

func readZoneData(r *bytestream.Reader, pr *nodecodec.PayloadReader, format Format, cfg LoaderConfig, model *mapmodel.MapModel) error {
	delim, err := pr.DrainToDelimiter()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "zone data payload", err)
	}
	table := tableFor(format)
	return nodecodec.ReadChildren(r, delim, func(childType byte, childPR *nodecodec.PayloadReader) error {
		kind, known := table.Kind(childType)
		if !known || kind != KindZone {
			cfg.warn(api.Warning{Code: api.WarnUnknownNodeType, Message: "skipped unexpected child of zone data"})
			return nodecodec.SkipRemainder(r, childPR)
		}
		id, err := childPR.ReadU32LE()
		if err != nil {
			return wrapFatal(ErrUnexpectedEOF, "zone id", err)
		}
		name, err := childPR.ReadString()
		if err != nil {
			return wrapFatal(ErrUnexpectedEOF, "zone name", err)
		}
		if _, err := childPR.DrainToDelimiter(); err != nil {
			return wrapFatal(ErrUnexpectedEOF, "zone payload", err)
		}
		delim, _ := childPR.Delimiter()
		if err := nodecodec.ConsumeSiblingsUntilEnd(r, delim); err != nil {
			return err
		}
		if !model.PutZone(&mapmodel.Zone{ID: id, Name: name}) {
			cfg.warn(api.Warning{Code: api.WarnDuplicateZone, Message: "duplicate zone id, keeping first"})
		}
		return nil
	})
}

func writeZoneData(format Format, model *mapmodel.MapModel) []byte {
	table := tableFor(format)
	dataCode, _ := table.Code(KindZoneData)
	zoneCode, _ := table.Code(KindZone)

	children := make([][]byte, 0, len(model.Zones()))
	for _, z := range model.Zones() {
		w := bytestream.NewWriter()
		w.WriteU32LE(z.ID)
		_ = w.WriteString(z.Name)
		children = append(children, nodecodec.EncodeNode(zoneCode, w.Bytes()))
	}
	return nodecodec.EncodeNode(dataCode, nil, children...)
}
