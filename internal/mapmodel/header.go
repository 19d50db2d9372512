package mapmodel

// MapHeader carries the root metadata common to both on-disk formats.
// FormatVersion is format-specific; MapCodec interprets it.
type MapHeader struct {
	FormatVersion uint32
	Width         uint16
	Height        uint16
	Description   string
	SpawnFile     string
	HouseFile     string
	ZoneFile      string
}
