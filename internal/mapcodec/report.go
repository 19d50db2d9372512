package mapcodec

import (
	"github.com/rme-go/canary-core/api"
	"github.com/rme-go/canary-core/internal/mapmodel"
)

// ReplacedItem records one item whose server id had no entry in the
// configured api.ItemCatalog and was kept as a placeholder (server
// id zeroed out) rather than skipped or rejected outright.
type ReplacedItem struct {
	OriginalID uint16
	Coords     mapmodel.Position
}

// LoadReport summarizes a completed Load: which format was actually
// read (which may differ from the format the caller requested, when
// magic sniffing delegated to the sibling format), every non-fatal
// warning collected along the way, and every placeholder substitution
// UnknownItemPlaceholder made.
type LoadReport struct {
	Format        Format
	Delegated     bool
	TileCount     int
	HouseCount    int
	TownCount     int
	ZoneCount     int
	Warnings      []api.Warning
	ReplacedItems []ReplacedItem
}
