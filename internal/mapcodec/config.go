package mapcodec

import "github.com/rme-go/canary-core/api"

// UnknownItemPolicy controls what happens when an ITEM node's
// server id has no entry in the supplied api.ItemCatalog.
type UnknownItemPolicy int

const (
	// UnknownItemPlaceholder keeps the item in place with its server id
	// replaced by 0, resolves no ClientID, records the original id in
	// LoadReport.ReplacedItems, and emits a WarnUnknownItemID warning.
	// This is the default.
	UnknownItemPlaceholder UnknownItemPolicy = iota
	// UnknownItemSkip drops the item (and, if it was Ground, leaves the
	// tile without ground) and emits a warning.
	UnknownItemSkip
	// UnknownItemError aborts the load with a fatal Error.
	UnknownItemError
)

// LoaderConfig controls Load's behavior. The zero value is usable and
// matches the defaults documented per field.
type LoaderConfig struct {
	// Catalog resolves item kind/client-id lookups. A nil Catalog
	// disables ground detection and client-id resolution entirely —
	// every item is treated as non-ground and UnknownItemPolicy never
	// fires, since there is nothing to check ids against.
	Catalog api.ItemCatalog

	// Warnings receives every non-fatal anomaly. With a nil Warnings,
	// Load collects them into LoadReport.Warnings instead.
	Warnings api.WarningSink

	UnknownItem UnknownItemPolicy

	// AllowUnsupportedVersion downgrades an unrecognized root header
	// version from a fatal Error to a WarnUnsupportedVersion warning
	// plus best-effort parsing under the closest known version's
	// layout.
	AllowUnsupportedVersion bool

	// MaxNodeDepth guards against pathological or adversarial input
	// recursing the parser into a stack overflow; 0 means use
	// DefaultMaxNodeDepth.
	MaxNodeDepth int

	// MaxTiles guards total memory use while streaming a TILE_DATA
	// section; 0 means use DefaultMaxTiles. Exceeding it is a fatal
	// ErrMemoryGuard, since continuing would risk exhausting the
	// host's memory on a corrupt or hostile file.
	MaxTiles int

	// replaced accumulates ReplacedItem entries as readItem applies
	// UnknownItemPlaceholder substitutions. Load points it at a slice
	// it owns before parsing begins; callers never set this directly.
	replaced *[]ReplacedItem
}

func (c LoaderConfig) recordReplacedItem(r ReplacedItem) {
	if c.replaced != nil {
		*c.replaced = append(*c.replaced, r)
	}
}

const (
	DefaultMaxNodeDepth = 64
	DefaultMaxTiles     = 4_000_000
)

func (c LoaderConfig) maxNodeDepth() int {
	if c.MaxNodeDepth > 0 {
		return c.MaxNodeDepth
	}
	return DefaultMaxNodeDepth
}

func (c LoaderConfig) maxTiles() int {
	if c.MaxTiles > 0 {
		return c.MaxTiles
	}
	return DefaultMaxTiles
}

func (c LoaderConfig) warn(w api.Warning) {
	if c.Warnings != nil {
		c.Warnings.Emit(w)
	}
}

// SaverConfig controls Save's behavior.
type SaverConfig struct {
	Catalog  api.ItemCatalog
	Warnings api.WarningSink
}

func (c SaverConfig) warn(w api.Warning) {
	if c.Warnings != nil {
		c.Warnings.Emit(w)
	}
}
