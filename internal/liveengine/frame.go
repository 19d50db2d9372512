package liveengine

import (
	"encoding/binary"
	"fmt"

	"github.com/dustin/go-humanize"
)

// FrameHeaderSize is the fixed 8-byte header: version(u16) type(u16)
// size(u32).
const FrameHeaderSize = 8

// MaxPayloadSize bounds a single frame's payload. Oversized frames
// disconnect the sender without the decoder ever reading the payload
// bytes.
const MaxPayloadSize = 16 * 1024 * 1024

// ProtocolVersion is the only version this package currently emits or
// accepts.
const ProtocolVersion uint16 = 1

// Frame is one decoded wire frame.
type Frame struct {
	Version uint16
	Type    PacketType
	Payload []byte
}

// Encode renders f as wire bytes.
func (f Frame) Encode() []byte {
	out := make([]byte, FrameHeaderSize+len(f.Payload))
	binary.LittleEndian.PutUint16(out[0:2], f.Version)
	binary.LittleEndian.PutUint16(out[2:4], uint16(f.Type))
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(f.Payload)))
	copy(out[8:], f.Payload)
	return out
}

// NewFrame builds a frame at ProtocolVersion.
func NewFrame(t PacketType, payload []byte) Frame {
	return Frame{Version: ProtocolVersion, Type: t, Payload: payload}
}

// Decoder accumulates bytes fed from a connection's read loop and
// extracts as many complete frames as are available, retaining any
// partial frame across calls. It never blocks and never itself reads
// from a socket, which is what makes the read loop built around it
// slowloris-resistant: a peer that sends one
// byte and stops simply never completes a header, and Feed returns no
// frames without waiting.
type Decoder struct {
	buf []byte
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// Feed appends b to the internal buffer and returns every frame that
// is now fully available. A declared payload size over MaxPayloadSize
// is rejected immediately, before the decoder would ever wait for that
// much payload to arrive.
func (d *Decoder) Feed(b []byte) ([]Frame, error) {
	d.buf = append(d.buf, b...)

	var frames []Frame
	for {
		if len(d.buf) < FrameHeaderSize {
			break
		}
		size := binary.LittleEndian.Uint32(d.buf[4:8])
		if size > MaxPayloadSize {
			return frames, &Error{Kind: ErrFrameTooLarge, Msg: fmt.Sprintf("declared frame size %s exceeds cap %s",
				humanize.Bytes(uint64(size)), humanize.Bytes(uint64(MaxPayloadSize)))}
		}
		total := FrameHeaderSize + int(size)
		if len(d.buf) < total {
			break
		}
		version := binary.LittleEndian.Uint16(d.buf[0:2])
		ptype := binary.LittleEndian.Uint16(d.buf[2:4])
		payload := make([]byte, size)
		copy(payload, d.buf[FrameHeaderSize:total])
		frames = append(frames, Frame{Version: version, Type: PacketType(ptype), Payload: payload})
		d.buf = d.buf[total:]
	}
	// Compact so a long-lived connection's buffer doesn't retain
	// capacity from every frame it ever carried.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames, nil
}
