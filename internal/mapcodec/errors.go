package mapcodec

import (
	"fmt"

	"github.com/rme-go/canary-core/internal/mapmodel"
)

// ErrorKind classifies a fatal mapcodec error. Fatal errors abort
// Load/Save and discard any partially built model; anything
// recoverable becomes an api.Warning on LoadReport instead.
type ErrorKind int

const (
	ErrBadMagic ErrorKind = iota
	ErrUnsupportedVersion
	ErrUnbalancedNode
	ErrUnexpectedEOF
	ErrMemoryGuard
	ErrInvalidAttribute
)

func (k ErrorKind) String() string {
	switch k {
	case ErrBadMagic:
		return "bad_magic"
	case ErrUnsupportedVersion:
		return "unsupported_version"
	case ErrUnbalancedNode:
		return "unbalanced_node"
	case ErrUnexpectedEOF:
		return "unexpected_eof"
	case ErrMemoryGuard:
		return "memory_guard"
	case ErrInvalidAttribute:
		return "invalid_attribute"
	default:
		return "unknown"
	}
}

// Error is a fatal mapcodec error, optionally located at a tile
// position for easier diagnosis.
type Error struct {
	Kind   ErrorKind
	Msg    string
	Coords *mapmodel.Position
	Err    error
}

func (e *Error) Error() string {
	loc := ""
	if e.Coords != nil {
		loc = " at " + e.Coords.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("mapcodec: %s%s: %s: %v", e.Kind, loc, e.Msg, e.Err)
	}
	return fmt.Sprintf("mapcodec: %s%s: %s", e.Kind, loc, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapFatal(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func wrapFatalAt(kind ErrorKind, msg string, pos mapmodel.Position, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Coords: &pos, Err: err}
}
