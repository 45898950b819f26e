// Package types holds the value types shared across the storage and
// working-copy packages: content hashes, revision numbers, and the
// node/status/kind enumerations used by the NODES and ACTUAL_NODE tables.
package types

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// HashSize is the width of a SHA-1 digest in bytes.
const HashSize = sha1.Size

// Hash is a SHA-1 content digest, used to address pristine texts and
// representations.
type Hash [HashSize]byte

// ZeroHash is the unset/absent hash value.
var ZeroHash Hash

// HashFromBytes computes the SHA-1 digest of data.
func HashFromBytes(data []byte) Hash {
	return Hash(sha1.Sum(data))
}

// HashFromHex parses a lowercase hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("types: invalid hash hex %q: %w", s, err)
	}
	if len(b) != HashSize {
		return h, fmt.Errorf("types: invalid hash length %d, want %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// String renders the hash as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the unset hash.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// RevNum is a repository revision number. -1 denotes "no revision".
type RevNum int64

// NoRevision marks an absent revision.
const NoRevision RevNum = -1

// Depth describes how deep an operation or a directory's checkout extends.
type Depth int

const (
	DepthUnknown Depth = iota
	DepthExclude
	DepthEmpty
	DepthFiles
	DepthImmediates
	DepthInfinity
)

func (d Depth) String() string {
	switch d {
	case DepthExclude:
		return "exclude"
	case DepthEmpty:
		return "empty"
	case DepthFiles:
		return "files"
	case DepthImmediates:
		return "immediates"
	case DepthInfinity:
		return "infinity"
	default:
		return "unknown"
	}
}

// Kind is the node kind stored per NODES row.
type Kind int

const (
	KindUnknown Kind = iota
	KindFile
	KindDir
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Presence is the on-disk presence value carried by a NODES row. This is
// the stored BASE-layer vocabulary; Status below is the richer derived
// vocabulary read_info computes from it.
type Presence int

const (
	PresenceNormal Presence = iota
	PresenceNotPresent
	PresenceAbsent
	PresenceExcluded
	PresenceIncomplete
	PresenceBaseDeleted
)

func (p Presence) String() string {
	switch p {
	case PresenceNormal:
		return "normal"
	case PresenceNotPresent:
		return "not-present"
	case PresenceAbsent:
		return "absent"
	case PresenceExcluded:
		return "excluded"
	case PresenceIncomplete:
		return "incomplete"
	case PresenceBaseDeleted:
		return "base-deleted"
	default:
		return "unknown"
	}
}

// Status is the derived working-status vocabulary returned by read_info
// and scan_addition/scan_deletion. It is richer than Presence because a
// WORKING row's presence alone cannot distinguish "added" from "copied"
// from "moved_here" -- that distinction depends on the op-root's
// copyfrom data, not the presence column itself (see wcdb.ScanAddition).
type Status int

const (
	StatusNormal Status = iota
	StatusAdded
	StatusDeleted
	StatusIncomplete
	StatusExcluded
	StatusCopied
	StatusMovedHere
	StatusMovedAway
	StatusObstructed
	StatusNotPresent
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusAdded:
		return "added"
	case StatusDeleted:
		return "deleted"
	case StatusIncomplete:
		return "incomplete"
	case StatusExcluded:
		return "excluded"
	case StatusCopied:
		return "copied"
	case StatusMovedHere:
		return "moved_here"
	case StatusMovedAway:
		return "moved_away"
	case StatusObstructed:
		return "obstructed"
	case StatusNotPresent:
		return "not_present"
	default:
		return "unknown"
	}
}

// PresenceToStatus maps a WORKING-layer presence to its derived status,
// per the resolution rule in read_info: normal -> added, not-present /
// base-deleted -> deleted, incomplete -> incomplete, excluded -> excluded.
func PresenceToStatus(p Presence) Status {
	switch p {
	case PresenceNormal:
		return StatusAdded
	case PresenceNotPresent, PresenceBaseDeleted:
		return StatusDeleted
	case PresenceIncomplete:
		return StatusIncomplete
	case PresenceExcluded:
		return StatusExcluded
	default:
		return StatusNormal
	}
}

// Lock mirrors a LOCK table row.
type Lock struct {
	Token   string
	Owner   string
	Comment string
	Date    int64 // unix nanoseconds; 0 means unset
}
