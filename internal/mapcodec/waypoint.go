package mapcodec

import (
	"sort"

	"github.com/rme-go/canary-core/api"
	"github.com/rme-go/canary-core/internal/bytestream"
	"github.com/rme-go/canary-core/internal/mapmodel"
	"github.com/rme-go/canary-core/internal/nodecodec"
)

// readWaypointData parses WAYPOINT_DATA, present in FormatA only.
func readWaypointData(r *bytestream.Reader, pr *nodecodec.PayloadReader, format Format, cfg LoaderConfig, model *mapmodel.MapModel) error {
	delim, err := pr.DrainToDelimiter()
	if err != nil {
		return wrapFatal(ErrUnexpectedEOF, "waypoint data payload", err)
	}
	table := tableFor(format)
	return nodecodec.ReadChildren(r, delim, func(childType byte, childPR *nodecodec.PayloadReader) error {
		kind, known := table.Kind(childType)
		if !known || kind != KindWaypoint {
			cfg.warn(api.Warning{Code: api.WarnUnknownNodeType, Message: "skipped unexpected child of waypoint data"})
			return nodecodec.SkipRemainder(r, childPR)
		}
		name, err := childPR.ReadString()
		if err != nil {
			return wrapFatal(ErrUnexpectedEOF, "waypoint name", err)
		}
		posBytes, err := childPR.ReadEscapedBytes(5)
		if err != nil {
			return wrapFatal(ErrUnexpectedEOF, "waypoint position", err)
		}
		pos, err := decodePosition(posBytes)
		if err != nil {
			return wrapFatal(ErrInvalidAttribute, "waypoint position", err)
		}
		if _, err := childPR.DrainToDelimiter(); err != nil {
			return wrapFatal(ErrUnexpectedEOF, "waypoint payload", err)
		}
		delim, _ := childPR.Delimiter()
		if err := nodecodec.ConsumeSiblingsUntilEnd(r, delim); err != nil {
			return err
		}
		model.SetWaypoint(name, pos)
		return nil
	})
}

func writeWaypointData(format Format, model *mapmodel.MapModel) []byte {
	table := tableFor(format)
	dataCode, ok := table.Code(KindWaypointData)
	if !ok {
		return nil
	}
	waypointCode, _ := table.Code(KindWaypoint)

	waypoints := model.Waypoints()
	names := make([]string, 0, len(waypoints))
	for name := range waypoints {
		names = append(names, name)
	}
	sort.Strings(names)

	children := make([][]byte, 0, len(names))
	for _, name := range names {
		w := bytestream.NewWriter()
		_ = w.WriteString(name)
		w.WriteBytes(encodePosition(waypoints[name]))
		children = append(children, nodecodec.EncodeNode(waypointCode, w.Bytes()))
	}
	return nodecodec.EncodeNode(dataCode, nil, children...)
}
