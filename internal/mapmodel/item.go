package mapmodel

// Item is owned by its Tile (when stacked or as ground) or by a parent
// Item (as a container child). Items form an acyclic tree by
// construction: Children is the only place child items are stored, so
// there is no way to introduce a cycle through this API.
type Item struct {
	ServerID uint16
	// ClientID is resolved through ItemCatalog for renderer use only;
	// it is never authoritative and is re-derived on every load.
	ClientID *uint16

	// Subtype carries the raw SUBTYPE wire attribute: a stack count, a
	// fluid/splash kind, or a door-toggle state depending on the item's
	// kind. FormatB masks it to its low 4 bits; FormatA keeps the full
	// 16-bit value. Nil means the attribute was absent.
	Subtype *uint16
	// Count mirrors the data model's separate "stack count" concept for
	// callers that want it named distinctly from Subtype; the codec
	// only ever populates Subtype from the wire and leaves Count for
	// higher-level callers (brushes, history) to set explicitly.
	Count *uint8

	ActionID    *uint16
	UniqueID    *uint16
	Text        *string
	Description *string
	Destination *Position
	DepotID     *uint16
	HouseDoorID *uint8

	// Children holds container contents in on-disk order; index 0 is
	// the first item read/written.
	Children []*Item
}

// Clone returns a deep copy of the item, including its entire
// container subtree. Used by copy-on-write tile replacement.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	out := *i
	out.ClientID = clonePtr(i.ClientID)
	out.Subtype = clonePtr(i.Subtype)
	out.Count = clonePtr(i.Count)
	out.ActionID = clonePtr(i.ActionID)
	out.UniqueID = clonePtr(i.UniqueID)
	out.Text = clonePtr(i.Text)
	out.Description = clonePtr(i.Description)
	out.HouseDoorID = clonePtr(i.HouseDoorID)
	if i.Destination != nil {
		d := *i.Destination
		out.Destination = &d
	}
	if i.Children != nil {
		out.Children = make([]*Item, len(i.Children))
		for idx, c := range i.Children {
			out.Children[idx] = c.Clone()
		}
	}
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// AppendChild appends a container child, preserving read/write order.
func (i *Item) AppendChild(child *Item) {
	i.Children = append(i.Children, child)
}
