package types

import (
	"errors"
	"fmt"
)

// ErrKind classifies an error raised anywhere in the engine, mirroring
// the error taxonomy a caller needs to branch on (errors.Is against the
// sentinels below, or a type switch on *WCError.Kind).
type ErrKind int

const (
	KindUnspecified ErrKind = iota
	KindPathNotFound
	KindPathUnexpectedStatus
	KindNotWorkingCopy
	KindUnsupportedFormat
	KindUpgradeRequired
	KindCleanupRequired
	KindLocked
	KindNotLocked
	KindAuthzUnreadable
	KindInvalidOperationDepth
	KindCorrupt
	KindNoSuchString
	KindNoSuchRepresentation
	KindNoSuchPristine
	KindIO
	KindKVStore
	KindConflict
	KindNotImplemented
)

func (k ErrKind) String() string {
	switch k {
	case KindPathNotFound:
		return "PathNotFound"
	case KindPathUnexpectedStatus:
		return "PathUnexpectedStatus"
	case KindNotWorkingCopy:
		return "NotWorkingCopy"
	case KindUnsupportedFormat:
		return "UnsupportedFormat"
	case KindUpgradeRequired:
		return "UpgradeRequired"
	case KindCleanupRequired:
		return "CleanupRequired"
	case KindLocked:
		return "Locked"
	case KindNotLocked:
		return "NotLocked"
	case KindAuthzUnreadable:
		return "AuthzUnreadable"
	case KindInvalidOperationDepth:
		return "InvalidOperationDepth"
	case KindCorrupt:
		return "Corrupt"
	case KindNoSuchString:
		return "NoSuchString"
	case KindNoSuchRepresentation:
		return "NoSuchRepresentation"
	case KindNoSuchPristine:
		return "NoSuchPristine"
	case KindIO:
		return "Io"
	case KindKVStore:
		return "KvStore"
	case KindConflict:
		return "Conflict"
	case KindNotImplemented:
		return "NotImplemented"
	default:
		return "Unspecified"
	}
}

// WCError wraps a cause with a taxonomy kind and the relpath (if any) the
// error concerns, so callers can errors.Is/As against it while still
// getting a readable message.
type WCError struct {
	Kind    ErrKind
	Relpath string
	Cause   error
}

func (e *WCError) Error() string {
	if e.Relpath != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.Relpath, e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Kind, e.Relpath)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

func (e *WCError) Unwrap() error { return e.Cause }

// NewError builds a *WCError of the given kind for relpath, wrapping cause
// (which may be nil).
func NewError(kind ErrKind, relpath string, cause error) *WCError {
	return &WCError{Kind: kind, Relpath: relpath, Cause: cause}
}

// KindOf reports the ErrKind carried by err, or KindUnspecified if err is
// not (or does not wrap) a *WCError.
func KindOf(err error) ErrKind {
	var wc *WCError
	if errors.As(err, &wc) {
		return wc.Kind
	}
	return KindUnspecified
}

// Sentinel errors for simple errors.Is checks where no relpath context is
// needed (used internally by kvtxn/strtab/reptab for miss/conflict
// signaling before the caller wraps them with relpath via NewError).
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict, retry")
	ErrNotImplemented = errors.New("not implemented")
)
