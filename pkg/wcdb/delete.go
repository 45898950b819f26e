package wcdb

import (
	"wcengine/internal/kvtxn"
	"wcengine/pkg/types"
)

// OpDelete implements spec.md §4.10.4's three-case dispatch:
//
//   - add-remove: path's highest row is a WORKING op-root with no
//     BASE row beneath it (a pending add/copy that was never
//     committed) -- deletion simply removes that WORKING layer.
//   - replace-delete: path's highest row is a WORKING op-root and a
//     BASE row also exists beneath it (the add replaced something) --
//     the WORKING layer is removed and a base-deleted shadow row
//     takes its place so the BASE node stays covered.
//   - delete-shadow: path has no WORKING row at all, only BASE --
//     the whole subtree is shadowed by base-deleted rows at op_depth
//     == relpath_depth(path).
func (s *Store) OpDelete(trail *kvtxn.Trail, path string) error {
	d := relpathDepth(path)
	rows, err := rowsAt(trail.Tx, path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return types.NewError(types.KindPathNotFound, path, nil)
	}
	top := rows[0]

	if top.OpDepth > 0 && top.OpDepth == d {
		return s.deleteOpRoot(trail, path, d)
	}
	return s.shadowSubtree(trail, path, d)
}

// deleteOpRoot handles add-remove and replace-delete: it removes the
// WORKING layer rooted at path (path itself and every descendant row
// sharing the same op_depth, since OpCopy stores a copy's children at
// their root's op_depth), then, if something remains exposed beneath
// (a BASE row or a shallower WORKING layer), shadows it the same way
// delete-shadow would.
func (s *Store) deleteOpRoot(trail *kvtxn.Trail, path string, d int) error {
	descendants, err := descendantRelpaths(trail.Tx, path, false)
	if err != nil {
		return err
	}

	if err := deleteNode(trail, path, d); err != nil {
		return err
	}
	for _, dpath := range descendants {
		dRows, err := rowsAt(trail.Tx, dpath)
		if err != nil {
			return err
		}
		for _, r := range dRows {
			if r.OpDepth == d {
				if err := deleteNode(trail, dpath, r.OpDepth); err != nil {
					return err
				}
			}
		}
	}

	_, ok, err := highestRow(trail.Tx, path)
	if err != nil {
		return err
	}
	if !ok {
		return nil // add-remove: nothing left underneath, truly gone
	}
	return s.shadowSubtree(trail, path, d) // replace-delete: shadow what's left
}

// shadowSubtree inserts a base-deleted row at op_depth d for path and
// every descendant whose
// current top row has op_depth < d -- i.e. not already covered by a
// delete or replace closer to the root.
func (s *Store) shadowSubtree(trail *kvtxn.Trail, path string, d int) error {
	descendants, err := descendantRelpaths(trail.Tx, path, false)
	if err != nil {
		return err
	}
	paths := append([]string{path}, descendants...)

	for _, p := range paths {
		top, ok, err := highestRow(trail.Tx, p)
		if err != nil {
			return err
		}
		if !ok || top.OpDepth >= d {
			continue
		}
		existing, err := rowsAt(trail.Tx, p)
		if err != nil {
			return err
		}
		alreadyShadowed := false
		for _, r := range existing {
			if r.OpDepth == d {
				alreadyShadowed = true
				break
			}
		}
		if alreadyShadowed {
			continue
		}
		row := NodeRow{
			OpDepth:          d,
			Presence:         types.PresenceBaseDeleted,
			Kind:             types.KindUnknown,
			Revision:         types.NoRevision,
			ChangedRev:       types.NoRevision,
			OriginalRevision: types.NoRevision,
		}
		if err := putNode(trail, p, row); err != nil {
			return err
		}
	}
	return nil
}
