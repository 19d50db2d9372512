// Package api declares the narrow collaborator contracts the core
// consults but never implements: item-kind lookups, diff recording,
// and warning delivery. Callers supply concrete implementations; the
// core only ever holds an interface value.
package api

import "github.com/rme-go/canary-core/internal/mapmodel"

// ItemCatalog answers read-only questions about numeric item ids that
// the core has no business knowing the semantics of: whether an id is
// a "ground" kind, and how server ids map to/from client ids for
// renderer use. It is never implemented by the core — asset loading
// (sprite sheets, items.xml/items.otb) lives entirely in the host
// application.
type ItemCatalog interface {
	// IsGround reports whether serverID denotes a ground item — the
	// thing that makes an ITEM node become a Tile's Ground rather than
	// a stacked item, when no inline ground_id was present.
	IsGround(serverID uint16) bool
	// ServerToClient maps a server id to the client-side id used only
	// for rendering. ok is false when the catalog has no mapping.
	ServerToClient(serverID uint16) (clientID uint16, ok bool)
	// ClientToServer is the inverse of ServerToClient.
	ClientToServer(clientID uint16) (serverID uint16, ok bool)
}

// WarningCode enumerates the non-fatal anomalies MapCodec can emit
// while loading or saving.
type WarningCode int

const (
	WarnUnknownItemID WarningCode = iota
	WarnUnknownNodeType
	WarnUnknownAttribute
	WarnDuplicateTile
	WarnDuplicateTown
	WarnDuplicateHouse
	WarnDuplicateZone
	WarnUnboundHouseTile
	WarnFormatDelegation
	WarnUnsupportedVersion
)

func (c WarningCode) String() string {
	switch c {
	case WarnUnknownItemID:
		return "unknown_item_id"
	case WarnUnknownNodeType:
		return "unknown_node_type"
	case WarnUnknownAttribute:
		return "unknown_attribute"
	case WarnDuplicateTile:
		return "duplicate_tile"
	case WarnDuplicateTown:
		return "duplicate_town"
	case WarnDuplicateHouse:
		return "duplicate_house"
	case WarnDuplicateZone:
		return "duplicate_zone"
	case WarnUnboundHouseTile:
		return "unbound_house_tile"
	case WarnFormatDelegation:
		return "format_delegation"
	case WarnUnsupportedVersion:
		return "unsupported_version"
	default:
		return "unknown"
	}
}

// Warning is one non-fatal anomaly encountered while loading or
// saving, aggregated into a LoadReport.
type Warning struct {
	Code    WarningCode
	Message string
	Coords  *mapmodel.Position
}

// WarningSink receives non-fatal anomalies as the codec encounters
// them. The default implementation aggregates into a LoadReport; hosts
// may also wire it to their own logging.
type WarningSink interface {
	Emit(w Warning)
}

// HistoryRecorder is invoked by the editor host after each tile
// mutation; it is opaque to the core, which only produces
// (before, after) tile pairs during copy-on-write edits.
type HistoryRecorder interface {
	Record(key mapmodel.Position, before, after *mapmodel.Tile)
}

// NopHistoryRecorder discards every record; useful for load-only
// callers that have no editor session.
type NopHistoryRecorder struct{}

func (NopHistoryRecorder) Record(mapmodel.Position, *mapmodel.Tile, *mapmodel.Tile) {}

// CollectingSink is a WarningSink that appends every warning to a
// slice, which is exactly what LoadReport needs.
type CollectingSink struct {
	Warnings []Warning
}

func (s *CollectingSink) Emit(w Warning) {
	s.Warnings = append(s.Warnings, w)
}
