package skel

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAtomRoundTrip(t *testing.T) {
	s := NewAtomString("fulltext")
	got, err := Parse(Unparse(s))
	require.NoError(t, err)
	require.True(t, got.IsAtom())
	require.Equal(t, "fulltext", got.Str())
}

func TestListRoundTrip(t *testing.T) {
	s := NewList(
		NewAtomString("fulltext"),
		NewAtomString("0000000012"),
	)
	got, err := Parse(Unparse(s))
	require.NoError(t, err)
	require.False(t, got.IsAtom())
	require.Equal(t, 2, got.Len())
	require.Equal(t, "fulltext", got.At(0).Str())
	require.Equal(t, "0000000012", got.At(1).Str())
}

func TestNestedListRoundTrip(t *testing.T) {
	s := NewList(
		NewAtomString("delta"),
		NewList(
			NewAtomString("base"),
			NewAtomString("0000000003"),
		),
		NewAtomString("0000000099"),
	)
	got, err := Parse(Unparse(s))
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())
	require.False(t, got.At(1).IsAtom())
	require.Equal(t, "base", got.At(1).At(0).Str())
}

func TestParseRejectsCorruptData(t *testing.T) {
	_, err := Parse([]byte{0xff})
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = Parse(nil)
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = Parse([]byte{tagAtom, 0x05, 'h', 'i'})
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestParseRejectsTrailingBytes(t *testing.T) {
	encoded := Unparse(NewAtomString("x"))
	_, err := Parse(append(encoded, 0x00))
	require.ErrorIs(t, err, ErrCorrupt)
}

func genSkel(depth int) *rapid.Generator[Skel] {
	return rapid.Custom(func(t *rapid.T) Skel {
		if depth <= 0 || rapid.Bool().Draw(t, "isAtom") {
			data := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "atom")
			return NewAtom(data)
		}
		n := rapid.IntRange(0, 4).Draw(t, "n")
		children := make([]Skel, n)
		for i := range children {
			children[i] = genSkel(depth - 1).Draw(t, "child")
		}
		return NewList(children...)
	})
}

func TestSkelRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := genSkel(3).Draw(t, "skel")
		got, err := Parse(Unparse(s))
		require.NoError(t, err)
		requireSkelEqual(t, s, got)
	})
}

func requireSkelEqual(t *rapid.T, a, b Skel) {
	if a.IsAtom() != b.IsAtom() {
		t.Fatalf("atom/list mismatch: %v vs %v", a.IsAtom(), b.IsAtom())
	}
	if a.IsAtom() {
		if string(a.Atom()) != string(b.Atom()) {
			t.Fatalf("atom mismatch: %q vs %q", a.Atom(), b.Atom())
		}
		return
	}
	if a.Len() != b.Len() {
		t.Fatalf("list length mismatch: %d vs %d", a.Len(), b.Len())
	}
	for i := 0; i < a.Len(); i++ {
		requireSkelEqual(t, a.At(i), b.At(i))
	}
}
