package wcdb

import (
	"go.etcd.io/bbolt"

	"wcengine/internal/kvtxn"
	"wcengine/pkg/types"
)

// OpCopy implements spec.md §4.10.3 for a copy whose source and
// destination live in the same WCROOT (the common case: copying
// within one working copy). dst must not already have a row.
func (s *Store) OpCopy(trail *kvtxn.Trail, src, dst string) error {
	if err := s.checkNoAuthzDenied(trail.Tx, src); err != nil {
		return err
	}

	srcRows, err := rowsAt(trail.Tx, src)
	if err != nil {
		return err
	}
	if len(srcRows) == 0 {
		return types.NewError(types.KindPathNotFound, src, nil)
	}
	srcTop := srcRows[0]

	opDepth, err := s.copyOpDepth(trail.Tx, dst)
	if err != nil {
		return err
	}

	if err := s.extendParentDelete(trail, dst); err != nil {
		return err
	}

	root := NodeRow{
		OpDepth:              opDepth,
		Presence:             types.PresenceNormal,
		Kind:                 srcTop.Kind,
		ReposRelpath:         srcTop.ReposRelpath,
		Revision:             srcTop.Revision,
		ChangedRev:           srcTop.ChangedRev,
		ChangedDate:          srcTop.ChangedDate,
		ChangedAuthor:        srcTop.ChangedAuthor,
		Depth:                srcTop.Depth,
		Checksum:             srcTop.Checksum,
		TranslatedSize:       srcTop.TranslatedSize,
		LastModTime:          srcTop.LastModTime,
		SymlinkTarget:        srcTop.SymlinkTarget,
		Properties:           srcTop.Properties,
		DavCache:             srcTop.DavCache,
		MovedHere:            false,
		OriginalReposRelpath: srcTop.ReposRelpath,
		OriginalRevision:     srcTop.Revision,
	}
	if err := putNode(trail, dst, root); err != nil {
		return err
	}

	if err := s.insertNotPresentIfParentIncomplete(trail, dst, opDepth); err != nil {
		return err
	}

	descendants, err := descendantRelpaths(trail.Tx, src, false)
	if err != nil {
		return err
	}
	for _, d := range descendants {
		rel := d[len(src):] // leading "/..."
		childDst := dst + rel
		childSrcRows, err := rowsAt(trail.Tx, d)
		if err != nil {
			return err
		}
		if len(childSrcRows) == 0 {
			continue
		}
		childTop := childSrcRows[0]
		child := NodeRow{
			OpDepth:              opDepth,
			Presence:             childTop.Presence,
			Kind:                 childTop.Kind,
			ReposRelpath:         childTop.ReposRelpath,
			Revision:             childTop.Revision,
			ChangedRev:           childTop.ChangedRev,
			ChangedDate:          childTop.ChangedDate,
			ChangedAuthor:        childTop.ChangedAuthor,
			Depth:                childTop.Depth,
			Checksum:             childTop.Checksum,
			TranslatedSize:       childTop.TranslatedSize,
			LastModTime:          childTop.LastModTime,
			SymlinkTarget:        childTop.SymlinkTarget,
			Properties:           childTop.Properties,
			DavCache:             childTop.DavCache,
			OriginalReposRelpath: childTop.ReposRelpath,
			OriginalRevision:     childTop.Revision,
		}
		if err := putNode(trail, childDst, child); err != nil {
			return err
		}
	}
	return nil
}

// checkNoAuthzDenied implements the AuthzUnreadable rejection: a
// subtree containing any `absent` node cannot be copied, since the
// copy could not be faithfully committed without data the client was
// never allowed to read.
func (s *Store) checkNoAuthzDenied(tx *bbolt.Tx, src string) error {
	top, ok, err := highestRow(tx, src)
	if err != nil {
		return err
	}
	if ok && top.Presence == types.PresenceAbsent {
		return types.NewError(types.KindAuthzUnreadable, src, nil)
	}
	descendants, err := descendantRelpaths(tx, src, false)
	if err != nil {
		return err
	}
	for _, d := range descendants {
		row, ok, err := highestRow(tx, d)
		if err != nil {
			return err
		}
		if ok && row.Presence == types.PresenceAbsent {
			return types.NewError(types.KindAuthzUnreadable, d, nil)
		}
	}
	return nil
}

// copyOpDepth implements the op-depth selection rule: reuse the
// parent's op-depth when the parent's highest row is a normal WORKING
// row (op_depth > 0), so dst joins the parent's operation (no new
// operation root); otherwise dst becomes its own op-root at its own
// relpath_depth. The parent's copyfrom is not compared with the copy
// source.
func (s *Store) copyOpDepth(tx *bbolt.Tx, dst string) (int, error) {
	parent := parentRelpath(dst)
	parentTop, ok, err := highestRow(tx, parent)
	if err != nil {
		return 0, err
	}
	if ok && parentTop.OpDepth > 0 && parentTop.Presence == types.PresenceNormal {
		return parentTop.OpDepth, nil
	}
	return relpathDepth(dst), nil
}

// insertNotPresentIfParentIncomplete implements the additional
// not-present row spec.md describes: if dst's parent was incomplete
// and had already referenced dst's name as not-present, commit needs
// a not-present row at the parent's op_depth recording that the
// child was not carried forward by this copy.
func (s *Store) insertNotPresentIfParentIncomplete(trail *kvtxn.Trail, dst string, copyOpDepth int) error {
	parent := parentRelpath(dst)
	parentTop, ok, err := highestRow(trail.Tx, parent)
	if err != nil {
		return err
	}
	if !ok || parentTop.Presence != types.PresenceIncomplete {
		return nil
	}
	if parentTop.OpDepth == copyOpDepth {
		return nil
	}
	rows, err := rowsAt(trail.Tx, dst)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.OpDepth == parentTop.OpDepth {
			return nil
		}
	}
	row := NodeRow{
		OpDepth:          parentTop.OpDepth,
		Presence:         types.PresenceNotPresent,
		Kind:             types.KindUnknown,
		Revision:         types.NoRevision,
		ChangedRev:       types.NoRevision,
		OriginalRevision: types.NoRevision,
	}
	return putNode(trail, dst, row)
}

// OpCopyCrossRoot copies a subtree from a different WCROOT's
// database into this one: rows are read from srcTx (a live
// transaction against the other root's bbolt handle) and re-inserted
// here with paths rewritten from src to dst, since the two DBs cannot
// share a single bbolt transaction. src's own ACTUAL properties, when
// set, replace its NODES properties in the copied root row; descendants
// carry only their NODES properties, and no ACTUAL row (conflict
// markers included) is copied.
func (s *Store) OpCopyCrossRoot(trail *kvtxn.Trail, srcStore *Store, srcTx *bbolt.Tx, src, dst string) error {
	if err := srcStore.checkNoAuthzDenied(srcTx, src); err != nil {
		return err
	}

	srcRows, err := rowsAt(srcTx, src)
	if err != nil {
		return err
	}
	if len(srcRows) == 0 {
		return types.NewError(types.KindPathNotFound, src, nil)
	}
	srcTop := srcRows[0]
	srcActual, hasActual, err := getActual(srcTx, src)
	if err != nil {
		return err
	}

	opDepth, err := s.copyOpDepth(trail.Tx, dst)
	if err != nil {
		return err
	}
	if err := s.extendParentDelete(trail, dst); err != nil {
		return err
	}

	props := srcTop.Properties
	if hasActual && srcActual.hasProperties() {
		props = srcActual.Properties
	}
	root := NodeRow{
		OpDepth:              opDepth,
		Presence:             types.PresenceNormal,
		Kind:                 srcTop.Kind,
		ReposRelpath:         srcTop.ReposRelpath,
		Revision:             srcTop.Revision,
		ChangedRev:           srcTop.ChangedRev,
		ChangedDate:          srcTop.ChangedDate,
		ChangedAuthor:        srcTop.ChangedAuthor,
		Depth:                srcTop.Depth,
		Checksum:             srcTop.Checksum,
		SymlinkTarget:        srcTop.SymlinkTarget,
		Properties:           props,
		OriginalReposRelpath: srcTop.ReposRelpath,
		OriginalRevision:     srcTop.Revision,
	}
	if err := putNode(trail, dst, root); err != nil {
		return err
	}

	descendants, err := descendantRelpaths(srcTx, src, false)
	if err != nil {
		return err
	}
	for _, d := range descendants {
		rel := d[len(src):]
		childDst := dst + rel
		rows, err := rowsAt(srcTx, d)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			continue
		}
		top := rows[0]
		child := NodeRow{
			OpDepth:              opDepth,
			Presence:             top.Presence,
			Kind:                 top.Kind,
			ReposRelpath:         top.ReposRelpath,
			Revision:             top.Revision,
			ChangedRev:           top.ChangedRev,
			ChangedDate:          top.ChangedDate,
			ChangedAuthor:        top.ChangedAuthor,
			Depth:                top.Depth,
			Checksum:             top.Checksum,
			SymlinkTarget:        top.SymlinkTarget,
			Properties:           top.Properties,
			OriginalReposRelpath: top.ReposRelpath,
			OriginalRevision:     top.Revision,
		}
		if err := putNode(trail, childDst, child); err != nil {
			return err
		}
	}
	return nil
}
