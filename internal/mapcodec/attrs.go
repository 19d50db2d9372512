package mapcodec

import (
	"encoding/binary"
	"fmt"

	"github.com/rme-go/canary-core/internal/bytestream"
	"github.com/rme-go/canary-core/internal/mapmodel"
)

// Each attribute is a (code byte, u16_le length, length bytes) TLV.
// The explicit length — a deliberate departure from the legacy
// length-implied-by-code OTBM encoding — is what lets an unrecognized
// code be skipped wholesale instead of aborting the load: unknown
// attributes are a warning, never fatal.

func decodeSubtype(format Format, payload []byte) (uint16, error) {
	if format == FormatB {
		if len(payload) != 1 {
			return 0, fmt.Errorf("subtype: want 1 byte for FormatB, got %d", len(payload))
		}
		return uint16(payload[0] & 0x0F), nil
	}
	if len(payload) != 2 {
		return 0, fmt.Errorf("subtype: want 2 bytes for FormatA, got %d", len(payload))
	}
	return binary.LittleEndian.Uint16(payload), nil
}

func encodeSubtype(format Format, v uint16) []byte {
	if format == FormatB {
		return []byte{byte(v & 0x0F)}
	}
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func decodeU16(payload []byte) (uint16, error) {
	if len(payload) != 2 {
		return 0, fmt.Errorf("want 2 bytes, got %d", len(payload))
	}
	return binary.LittleEndian.Uint16(payload), nil
}

func encodeU16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func decodeU32(payload []byte) (uint32, error) {
	if len(payload) != 4 {
		return 0, fmt.Errorf("want 4 bytes, got %d", len(payload))
	}
	return binary.LittleEndian.Uint32(payload), nil
}

func encodeU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func decodeString(payload []byte) string {
	return bytestream.DecodeLossyUTF8(payload)
}

func decodePosition(payload []byte) (mapmodel.Position, error) {
	if len(payload) != 5 {
		return mapmodel.Position{}, fmt.Errorf("position: want 5 bytes, got %d", len(payload))
	}
	return mapmodel.Position{
		X: binary.LittleEndian.Uint16(payload[0:2]),
		Y: binary.LittleEndian.Uint16(payload[2:4]),
		Z: payload[4],
	}, nil
}

func encodePosition(p mapmodel.Position) []byte {
	b := make([]byte, 5)
	binary.LittleEndian.PutUint16(b[0:2], p.X)
	binary.LittleEndian.PutUint16(b[2:4], p.Y)
	b[4] = p.Z
	return b
}

func decodeZoneIDs(payload []byte) ([]uint32, error) {
	if len(payload)%4 != 0 {
		return nil, fmt.Errorf("zone_ids: length %d not a multiple of 4", len(payload))
	}
	out := make([]uint32, 0, len(payload)/4)
	for i := 0; i < len(payload); i += 4 {
		out = append(out, binary.LittleEndian.Uint32(payload[i:i+4]))
	}
	return out, nil
}

func encodeZoneIDs(ids []uint32) []byte {
	b := make([]byte, 4*len(ids))
	for i, id := range ids {
		binary.LittleEndian.PutUint32(b[4*i:4*i+4], id)
	}
	return b
}

// writeAttrTLV appends one attribute TLV to w.
func writeAttrTLV(w *bytestream.Writer, code AttrCode, value []byte) {
	w.WriteU8(byte(code))
	w.WriteU16LE(uint16(len(value)))
	w.WriteBytes(value)
}
