package wcdb

import (
	"fmt"

	"go.etcd.io/bbolt"

	"wcengine/internal/kvtxn"
	"wcengine/pkg/skel"
)

// ActualRow is one ACTUAL_NODE row: local overrides layered on top of
// whatever NODES says, keyed by the same relpath identity.
type ActualRow struct {
	Properties       skel.Skel // overrides the highest NODES row's properties; IsAtom with empty atom means "not set"
	ConflictOld      []byte
	ConflictNew      []byte
	ConflictWorking  []byte
	PropReject       []byte
	Changelist       string
	TextMod          bool
	TreeConflictData []byte
}

func (a ActualRow) hasProperties() bool {
	return !a.Properties.IsAtom() || len(a.Properties.Atom()) != 0
}

// isEmpty reports whether every override column is unset, the
// condition under which an ACTUAL row is deleted rather than stored
// (spec.md §3.8).
func (a ActualRow) isEmpty() bool {
	return !a.hasProperties() &&
		len(a.ConflictOld) == 0 && len(a.ConflictNew) == 0 && len(a.ConflictWorking) == 0 &&
		len(a.PropReject) == 0 && a.Changelist == "" && !a.TextMod && len(a.TreeConflictData) == 0
}

func (a ActualRow) conflicted() bool {
	return len(a.ConflictOld) != 0 || len(a.ConflictNew) != 0 || len(a.ConflictWorking) != 0 ||
		len(a.PropReject) != 0 || len(a.TreeConflictData) != 0
}

func encodeActualRow(a ActualRow) []byte {
	s := skel.NewList(
		a.Properties,
		skel.NewAtom(a.ConflictOld),
		skel.NewAtom(a.ConflictNew),
		skel.NewAtom(a.ConflictWorking),
		skel.NewAtom(a.PropReject),
		skel.NewAtomString(a.Changelist),
		skel.NewAtomString(boolString(a.TextMod)),
		skel.NewAtom(a.TreeConflictData),
	)
	return skel.Unparse(s)
}

func decodeActualRow(data []byte) (ActualRow, error) {
	s, err := skel.Parse(data)
	if err != nil {
		return ActualRow{}, fmt.Errorf("wcdb: corrupt actual row: %w", err)
	}
	if s.IsAtom() || s.Len() != 8 {
		return ActualRow{}, fmt.Errorf("wcdb: corrupt actual row: want 8-element list")
	}
	cp := func(i int) []byte { return append([]byte(nil), s.At(i).Atom()...) }
	return ActualRow{
		Properties:       s.At(0),
		ConflictOld:      cp(1),
		ConflictNew:      cp(2),
		ConflictWorking:  cp(3),
		PropReject:       cp(4),
		Changelist:       s.At(5).Str(),
		TextMod:          s.At(6).Str() == "1",
		TreeConflictData: cp(7),
	}, nil
}

func getActual(tx *bbolt.Tx, relpath string) (ActualRow, bool, error) {
	b, err := bucket(tx, actualBucket)
	if err != nil {
		return ActualRow{}, false, err
	}
	v := b.Get([]byte(relpath))
	if v == nil {
		return ActualRow{}, false, nil
	}
	row, err := decodeActualRow(v)
	return row, true, err
}

// putActual stores row under relpath, or deletes the row entirely if
// row.isEmpty(), matching the lifecycle rule in spec.md §3.8.
func putActual(trail *kvtxn.Trail, relpath string, row ActualRow) error {
	b, err := bucket(trail.Tx, actualBucket)
	if err != nil {
		return err
	}
	if row.isEmpty() {
		return b.Delete([]byte(relpath))
	}
	return b.Put([]byte(relpath), encodeActualRow(row))
}

func deleteActual(trail *kvtxn.Trail, relpath string) error {
	b, err := bucket(trail.Tx, actualBucket)
	if err != nil {
		return err
	}
	return b.Delete([]byte(relpath))
}
