// Package nodecodec frames a tree of self-describing nodes over a
// bytestream.Reader/Writer, with byte-stuffed payloads so the three
// structural bytes (NODE_START, NODE_END, ESCAPE) can appear verbatim
// inside a payload without being mistaken for framing.
//
// Wire grammar:
//
//	stream := FILE_MAGIC(4) NODE
//	NODE    := 0xFE TYPE(u8) PAYLOAD CHILD* 0xFF
//	PAYLOAD := bytes, with 0xFE/0xFF/0xFD escaped by a leading 0xFD
//	CHILD   := NODE
package nodecodec

import (
	"bytes"

	"github.com/rme-go/canary-core/internal/bytestream"
)

const (
	NodeStart  byte = 0xFE
	NodeEnd    byte = 0xFF
	EscapeByte byte = 0xFD
)

// EscapePayload replaces every occurrence of NodeStart, NodeEnd, and
// EscapeByte in payload with a two-byte escape sequence, leaving all
// other bytes untouched.
func EscapePayload(payload []byte) []byte {
	out := make([]byte, 0, len(payload))
	for _, b := range payload {
		if b == EscapeByte || b == NodeStart || b == NodeEnd {
			out = append(out, EscapeByte)
		}
		out = append(out, b)
	}
	return out
}

// EncodeNode renders a complete framed node: NODE_START, type byte,
// escaped payload, each child's already-framed bytes in order, and a
// closing NODE_END. Children must themselves be the output of
// EncodeNode (or WriteNode).
func EncodeNode(nodeType byte, payload []byte, children ...[]byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(NodeStart)
	buf.WriteByte(nodeType)
	buf.Write(EscapePayload(payload))
	for _, c := range children {
		buf.Write(c)
	}
	buf.WriteByte(NodeEnd)
	return buf.Bytes()
}

// WriteNode appends EncodeNode's output to w.
func WriteNode(w *bytestream.Writer, nodeType byte, payload []byte, children ...[]byte) {
	w.WriteBytes(EncodeNode(nodeType, payload, children...))
}

// WriteMagic writes the 4-byte file magic that must precede the root
// node of a stream.
func WriteMagic(w *bytestream.Writer, magic [4]byte) {
	w.WriteBytes(magic[:])
}

// OpenRoot validates the 4-byte file magic at the front of r. It
// accepts any of the given candidate magics (a format and its
// sibling's magic, for the sniff-and-delegate case in §4.4.5) and
// returns which one matched.
func OpenRoot(r *bytestream.Reader, candidates ...[4]byte) ([4]byte, error) {
	got, err := r.ReadExact(4)
	if err != nil {
		return [4]byte{}, eofErr("file magic", err)
	}
	for _, c := range candidates {
		if bytes.Equal(got, c[:]) {
			return c, nil
		}
	}
	return [4]byte{}, &CodecError{Kind: KindBadMagic, Msg: "unrecognized file magic"}
}

// BeginNode consumes a NODE_START and the following type byte, and
// returns a PayloadReader positioned at the start of the node's
// payload. Use this for the root node; nested children are produced by
// ReadChildren's callback instead.
func BeginNode(r *bytestream.Reader) (nodeType byte, pr *PayloadReader, err error) {
	b, err := r.ReadU8()
	if err != nil {
		return 0, nil, eofErr("node start", err)
	}
	if b != NodeStart {
		return 0, nil, unbalancedErr("expected NODE_START")
	}
	t, err := r.ReadU8()
	if err != nil {
		return 0, nil, eofErr("node type", err)
	}
	return t, &PayloadReader{r: r}, nil
}

// PayloadReader transparently unescapes payload bytes until the first
// unescaped NODE_START or NODE_END, exposed to the caller as the
// node's delimiter. It never silently swallows a truncated stream: a
// read past the last byte surfaces as a fatal CodecError.
type PayloadReader struct {
	r     *bytestream.Reader
	ended bool
	delim byte
}

// nextByte returns the next logical (unescaped) payload byte, or
// ok=false once an unescaped terminator is reached. The terminator
// itself is left unconsumed in the stream so the structural reader
// (ReadChildren) can act on it.
func (p *PayloadReader) nextByte() (b byte, ok bool, err error) {
	if p.ended {
		return 0, false, nil
	}
	pk, has := p.r.PeekByte()
	if !has {
		return 0, false, eofErr("payload truncated before NODE_END", nil)
	}
	if pk == NodeStart || pk == NodeEnd {
		p.ended = true
		p.delim = pk
		return 0, false, nil
	}
	_, _ = p.r.ReadExact(1) // consume the byte we just peeked
	if pk == EscapeByte {
		b2, err := p.r.ReadU8()
		if err != nil {
			return 0, false, eofErr("dangling escape byte", err)
		}
		return b2, true, nil
	}
	return pk, true, nil
}

// ReadEscapedU8 reads one unescaped payload byte. ok is false if a
// delimiter was hit instead.
func (p *PayloadReader) ReadEscapedU8() (b byte, ok bool, err error) {
	return p.nextByte()
}

// ReadEscapedBytes reads exactly n unescaped payload bytes. It is an
// error for a delimiter to appear before n bytes are collected.
func (p *PayloadReader) ReadEscapedBytes(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		b, ok, err := p.nextByte()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, eofErr("payload ended before requested bytes were read", nil)
		}
		out = append(out, b)
	}
	return out, nil
}

// ReadU8 reads a single attribute byte, failing if a delimiter is hit.
func (p *PayloadReader) ReadU8() (uint8, error) {
	b, ok, err := p.nextByte()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, eofErr("expected byte, found node delimiter", nil)
	}
	return b, nil
}

// ReadU16LE reads a little-endian uint16 attribute.
func (p *PayloadReader) ReadU16LE() (uint16, error) {
	b, err := p.ReadEscapedBytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

// ReadU32LE reads a little-endian uint32 attribute.
func (p *PayloadReader) ReadU32LE() (uint32, error) {
	b, err := p.ReadEscapedBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// ReadString reads a u16_le length prefix followed by that many
// unescaped bytes, lossily decoded as UTF-8.
func (p *PayloadReader) ReadString() (string, error) {
	n, err := p.ReadU16LE()
	if err != nil {
		return "", err
	}
	b, err := p.ReadEscapedBytes(int(n))
	if err != nil {
		return "", err
	}
	return bytestream.DecodeLossyUTF8(b), nil
}

// DrainToDelimiter discards any remaining payload bytes and returns
// the terminator that ended it (NodeStart or NodeEnd). It is
// idempotent: calling it again after the delimiter was already found
// just returns the cached value.
func (p *PayloadReader) DrainToDelimiter() (byte, error) {
	for {
		_, ok, err := p.nextByte()
		if err != nil {
			return 0, err
		}
		if !ok {
			return p.delim, nil
		}
	}
}

// Delimiter returns the cached terminator and whether draining has
// happened yet. Call DrainToDelimiter first if ended is false.
func (p *PayloadReader) Delimiter() (b byte, ended bool) {
	return p.delim, p.ended
}

// ChildHandler processes one child node. Implementations MUST either
// drain childPR to its delimiter and call ReadChildren on it (to
// consume any grandchildren and the child's own NODE_END), or call
// SkipRemainder(r, childPR) to skip it wholesale. Failing to fully
// consume a child desynchronizes the stream for every sibling after it.
type ChildHandler func(childType byte, childPR *PayloadReader) error

// ReadChildren consumes the children of the node that produced delim
// (the value returned by DrainToDelimiter on that node's
// PayloadReader), invoking onChild for each one, and consumes the
// enclosing node's own NODE_END. If delim is NodeEnd there are no
// children and ReadChildren just consumes that terminator.
func ReadChildren(r *bytestream.Reader, delim byte, onChild ChildHandler) error {
	if delim == NodeEnd {
		if _, err := r.ReadExact(1); err != nil {
			return eofErr("node end", err)
		}
		return nil
	}
	if delim != NodeStart {
		return unbalancedErr("expected NODE_START or NODE_END delimiter")
	}
	for {
		b, err := r.ReadU8()
		if err != nil {
			return eofErr("sibling start or node end", err)
		}
		if b == NodeEnd {
			return nil
		}
		if b != NodeStart {
			return unbalancedErr("expected NODE_START or NODE_END")
		}
		childType, err := r.ReadU8()
		if err != nil {
			return eofErr("child node type", err)
		}
		childPR := &PayloadReader{r: r}
		if onChild != nil {
			if err := onChild(childType, childPR); err != nil {
				return err
			}
		} else if err := SkipRemainder(r, childPR); err != nil {
			return err
		}
	}
}

// SkipRemainder drains pr and recursively skips any children,
// consuming the node's own NODE_END. Used to honor the
// forward-compatibility rule: unknown node types and attributes must
// be skippable without aborting the load.
func SkipRemainder(r *bytestream.Reader, pr *PayloadReader) error {
	delim, err := pr.DrainToDelimiter()
	if err != nil {
		return err
	}
	return ReadChildren(r, delim, func(childType byte, childPR *PayloadReader) error {
		return SkipRemainder(r, childPR)
	})
}

// ConsumeSiblingsUntilEnd skips an unknown subtree whose NODE_START has
// already been consumed (delim == NodeStart): it is a thin alias over
// ReadChildren/SkipRemainder for callers that only have the delimiter.
func ConsumeSiblingsUntilEnd(r *bytestream.Reader, delim byte) error {
	return ReadChildren(r, delim, func(childType byte, childPR *PayloadReader) error {
		return SkipRemainder(r, childPR)
	})
}
