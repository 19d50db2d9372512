package mapcodec

import (
	"github.com/rme-go/canary-core/api"
	"github.com/rme-go/canary-core/internal/bytestream"
	"github.com/rme-go/canary-core/internal/mapmodel"
	"github.com/rme-go/canary-core/internal/nodecodec"
)

// readItem parses an ITEM node whose NODE_START/type byte have already
// been consumed by the caller; pr is positioned at the start of its
// payload. Any child nodes are container contents and are themselves
// ITEM nodes, recursed into in on-disk order; items form an acyclic
// tree by construction. coords is the enclosing tile's position, used
// only to annotate warnings and ReplacedItem entries; depth counts
// container nesting against cfg.maxNodeDepth() to guard the recursion
// against a pathologically deep (or adversarial) container chain.
func readItem(r *bytestream.Reader, pr *nodecodec.PayloadReader, format Format, cfg LoaderConfig, depth int, coords mapmodel.Position) (*mapmodel.Item, error) {
	if depth > cfg.maxNodeDepth() {
		return nil, wrapFatalAt(ErrMemoryGuard, "item container nesting exceeds configured limit", coords, nil)
	}

	serverID, err := pr.ReadU16LE()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "item server id", err)
	}

	item := &mapmodel.Item{ServerID: serverID}

	for {
		code, ok, err := pr.ReadEscapedU8()
		if err != nil {
			return nil, wrapFatal(ErrUnexpectedEOF, "item attribute code", err)
		}
		if !ok {
			break
		}
		length, err := pr.ReadU16LE()
		if err != nil {
			return nil, wrapFatal(ErrUnexpectedEOF, "item attribute length", err)
		}
		value, err := pr.ReadEscapedBytes(int(length))
		if err != nil {
			return nil, wrapFatal(ErrUnexpectedEOF, "item attribute value", err)
		}
		if err := applyItemAttr(item, format, AttrCode(code), value, cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Catalog != nil {
		if clientID, ok := cfg.Catalog.ServerToClient(serverID); ok {
			item.ClientID = &clientID
		} else {
			switch cfg.UnknownItem {
			case UnknownItemError:
				return nil, wrapFatal(ErrInvalidAttribute, "unknown item server id", nil)
			case UnknownItemSkip:
				cfg.warn(api.Warning{Code: api.WarnUnknownItemID, Message: "skipped unknown item id", Coords: &coords})
				item = nil
			default:
				cfg.warn(api.Warning{Code: api.WarnUnknownItemID, Message: "kept unknown item id as placeholder", Coords: &coords})
				cfg.recordReplacedItem(ReplacedItem{OriginalID: serverID, Coords: coords})
				item.ServerID = 0
			}
		}
	}

	delim, err := pr.DrainToDelimiter()
	if err != nil {
		return nil, wrapFatal(ErrUnexpectedEOF, "item payload", err)
	}
	err = nodecodec.ReadChildren(r, delim, func(childType byte, childPR *nodecodec.PayloadReader) error {
		table := tableFor(format)
		kind, known := table.Kind(childType)
		if !known || kind != KindItem {
			cfg.warn(api.Warning{Code: api.WarnUnknownNodeType, Message: "skipped unexpected child of item node"})
			return nodecodec.SkipRemainder(r, childPR)
		}
		child, err := readItem(r, childPR, format, cfg, depth+1, coords)
		if err != nil {
			return err
		}
		if item != nil && child != nil {
			item.AppendChild(child)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func applyItemAttr(item *mapmodel.Item, format Format, code AttrCode, value []byte, cfg LoaderConfig) error {
	switch code {
	case AttrSubtype:
		v, err := decodeSubtype(format, value)
		if err != nil {
			return wrapFatal(ErrInvalidAttribute, "subtype", err)
		}
		item.Subtype = &v
	case AttrActionID:
		v, err := decodeU16(value)
		if err != nil {
			return wrapFatal(ErrInvalidAttribute, "action_id", err)
		}
		item.ActionID = &v
	case AttrUniqueID:
		v, err := decodeU16(value)
		if err != nil {
			return wrapFatal(ErrInvalidAttribute, "unique_id", err)
		}
		item.UniqueID = &v
	case AttrText:
		s := decodeString(value)
		item.Text = &s
	case AttrDesc:
		s := decodeString(value)
		item.Description = &s
	case AttrTeleDest:
		p, err := decodePosition(value)
		if err != nil {
			return wrapFatal(ErrInvalidAttribute, "tele_dest", err)
		}
		item.Destination = &p
	case AttrDepotID:
		v, err := decodeU16(value)
		if err != nil {
			return wrapFatal(ErrInvalidAttribute, "depot_id", err)
		}
		item.DepotID = &v
	case AttrDoorID:
		if len(value) != 1 {
			return wrapFatal(ErrInvalidAttribute, "door_id", nil)
		}
		v := value[0]
		item.HouseDoorID = &v
	default:
		cfg.warn(api.Warning{Code: api.WarnUnknownAttribute, Message: "skipped unknown item attribute"})
	}
	return nil
}

// writeItem renders item (and its container subtree) as a framed ITEM
// node. cfg.Catalog is consulted only to resolve ground-kind detection
// elsewhere; writeItem itself never needs the catalog since every
// field it emits already lives on mapmodel.Item.
func writeItem(format Format, item *mapmodel.Item) []byte {
	table := tableFor(format)
	code, _ := table.Code(KindItem)

	w := bytestream.NewWriter()
	w.WriteU16LE(item.ServerID)
	if item.Subtype != nil {
		writeAttrTLV(w, AttrSubtype, encodeSubtype(format, *item.Subtype))
	}
	if item.ActionID != nil {
		writeAttrTLV(w, AttrActionID, encodeU16(*item.ActionID))
	}
	if item.UniqueID != nil {
		writeAttrTLV(w, AttrUniqueID, encodeU16(*item.UniqueID))
	}
	if item.Text != nil {
		writeAttrTLV(w, AttrText, []byte(*item.Text))
	}
	if item.Description != nil {
		writeAttrTLV(w, AttrDesc, []byte(*item.Description))
	}
	if item.Destination != nil {
		writeAttrTLV(w, AttrTeleDest, encodePosition(*item.Destination))
	}
	if item.DepotID != nil {
		writeAttrTLV(w, AttrDepotID, encodeU16(*item.DepotID))
	}
	if item.HouseDoorID != nil {
		writeAttrTLV(w, AttrDoorID, []byte{*item.HouseDoorID})
	}

	children := make([][]byte, 0, len(item.Children))
	for _, c := range item.Children {
		children = append(children, writeItem(format, c))
	}
	return nodecodec.EncodeNode(code, w.Bytes(), children...)
}
