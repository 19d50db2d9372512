package mapmodel

// Town is owned by MapModel.Towns, keyed by ID.
type Town struct {
	ID             uint32
	Name           string
	TemplePosition Position
}

// House is owned by MapModel.Houses, keyed by ID.
type House struct {
	ID         uint32
	Name       string
	Entry      *Position
	Rent       uint32
	Guildhall  bool
	TownID     uint32
	Size       uint32
	ClientID   uint16
	Beds       uint32
}

// Zone is owned by MapModel.Zones, keyed by ID.
type Zone struct {
	ID   uint32
	Name string
}
