// Package skel implements the skel codec: a simple nested byte-list
// format used as the on-disk value format for representations (and,
// in this rewrite, for NODES/ACTUAL_NODE blob columns that need a
// structured-but-schemaless encoding, such as properties).
//
// A skel value is either an atom (an opaque byte string) or a list of
// skels. The wire format is a length-prefixed binary framing, one byte
// of tag followed by either a varint-length byte run (atom) or a
// varint count of nested skels (list) -- the same "tag byte then
// explicit length prefix" idiom the prior tree-node serializer used,
// generalized from a fixed two-node-type grammar to arbitrary nesting.
package skel

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	tagAtom byte = 0x01
	tagList byte = 0x02
)

// Skel is either an Atom or a List. Exactly one of Atom/List is
// meaningful for a given value: IsAtom reports which.
type Skel struct {
	atom []byte
	list []Skel
}

// NewAtom builds an atomic skel wrapping data. data is copied.
func NewAtom(data []byte) Skel {
	cp := make([]byte, len(data))
	copy(cp, data)
	return Skel{atom: cp}
}

// NewAtomString builds an atomic skel from a string.
func NewAtomString(s string) Skel {
	return NewAtom([]byte(s))
}

// NewList builds a list skel from the given children. Called with no
// arguments it still must yield a list, not an atom -- children is nil
// in that case, and a nil list slice is IsAtom()'s only signal for "not
// a list", so it is coerced to a non-nil empty slice.
func NewList(children ...Skel) Skel {
	if children == nil {
		children = []Skel{}
	}
	return Skel{list: children}
}

// IsAtom reports whether s is an atom (as opposed to a list).
func (s Skel) IsAtom() bool { return s.list == nil }

// Atom returns the atom's bytes. Only meaningful if IsAtom() is true.
func (s Skel) Atom() []byte { return s.atom }

// Str returns the atom's bytes as a string.
func (s Skel) Str() string { return string(s.atom) }

// Len returns the number of children, for a list skel.
func (s Skel) Len() int { return len(s.list) }

// At returns the i'th child of a list skel.
func (s Skel) At(i int) Skel { return s.list[i] }

// Children returns the list's children slice directly (not copied).
func (s Skel) Children() []Skel { return s.list }

// Unparse encodes s into the skel wire format.
func Unparse(s Skel) []byte {
	var buf []byte
	buf = appendSkel(buf, s)
	return buf
}

func appendSkel(buf []byte, s Skel) []byte {
	if s.IsAtom() {
		buf = append(buf, tagAtom)
		buf = appendUvarint(buf, uint64(len(s.atom)))
		buf = append(buf, s.atom...)
		return buf
	}
	buf = append(buf, tagList)
	buf = appendUvarint(buf, uint64(len(s.list)))
	for _, child := range s.list {
		buf = appendSkel(buf, child)
	}
	return buf
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// Parse decodes a skel previously produced by Unparse. It returns an
// error wrapping ErrCorrupt (truncated input, a malformed tag or varint,
// or trailing bytes) if the bytes are not a well-formed skel.
func Parse(data []byte) (Skel, error) {
	s, rest, err := parseOne(data)
	if err != nil {
		return Skel{}, err
	}
	if len(rest) != 0 {
		return Skel{}, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(rest))
	}
	return s, nil
}

func parseOne(data []byte) (Skel, []byte, error) {
	if len(data) < 1 {
		return Skel{}, nil, fmt.Errorf("%w: %v", ErrCorrupt, io.ErrUnexpectedEOF)
	}
	tag := data[0]
	data = data[1:]
	switch tag {
	case tagAtom:
		n, rest, err := readUvarint(data)
		if err != nil {
			return Skel{}, nil, err
		}
		if uint64(len(rest)) < n {
			return Skel{}, nil, fmt.Errorf("%w: atom truncated", ErrCorrupt)
		}
		return NewAtom(rest[:n]), rest[n:], nil
	case tagList:
		n, rest, err := readUvarint(data)
		if err != nil {
			return Skel{}, nil, err
		}
		children := make([]Skel, 0, n)
		for i := uint64(0); i < n; i++ {
			var child Skel
			child, rest, err = parseOne(rest)
			if err != nil {
				return Skel{}, nil, err
			}
			children = append(children, child)
		}
		return Skel{list: children}, rest, nil
	default:
		return Skel{}, nil, fmt.Errorf("%w: unknown tag 0x%02x", ErrCorrupt, tag)
	}
}

func readUvarint(data []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, nil, fmt.Errorf("%w: bad varint", ErrCorrupt)
	}
	return v, data[n:], nil
}
