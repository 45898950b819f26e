package wcdb

import (
	"wcengine/internal/kvtxn"
	"wcengine/pkg/types"
)

// OpRevert implements spec.md §4.10.5. recursive corresponds to depth
// infinity; false corresponds to depth empty.
//
// Reverting a pristine BASE node (no WORKING row at all) is a no-op,
// matching the source's tolerance for reverting unmodified paths.
func (s *Store) OpRevert(trail *kvtxn.Trail, path string, recursive bool) error {
	d := relpathDepth(path)
	rows, err := rowsAt(trail.Tx, path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return types.NewError(types.KindPathNotFound, path, nil)
	}
	top := rows[0]
	if top.OpDepth == 0 {
		return nil
	}
	if top.OpDepth != d {
		return types.NewError(types.KindInvalidOperationDepth, path,
			errRevertNonRoot)
	}

	descendants, err := descendantRelpaths(trail.Tx, path, false)
	if err != nil {
		return err
	}

	if !recursive {
		for _, dpath := range descendants {
			if dtop, ok, err := highestRow(trail.Tx, dpath); err != nil {
				return err
			} else if ok && dtop.OpDepth > 0 {
				return types.NewError(types.KindInvalidOperationDepth, path,
					errRevertModifiedChildren)
			}
		}
	}

	if err := deleteNode(trail, path, d); err != nil {
		return err
	}
	if err := clearActualPreserveChangelist(trail, path); err != nil {
		return err
	}

	if recursive {
		for _, dpath := range descendants {
			dRows, err := rowsAt(trail.Tx, dpath)
			if err != nil {
				return err
			}
			for _, r := range dRows {
				if r.OpDepth >= d {
					if err := deleteNode(trail, dpath, r.OpDepth); err != nil {
						return err
					}
				}
			}
			if err := clearActualPreserveChangelist(trail, dpath); err != nil {
				return err
			}
		}
	}
	return nil
}

func clearActualPreserveChangelist(trail *kvtxn.Trail, relpath string) error {
	actual, ok, err := getActual(trail.Tx, relpath)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	cleared := ActualRow{Changelist: actual.Changelist}
	return putActual(trail, relpath, cleared)
}

var (
	errRevertNonRoot          = revertErr("revert target is not an operation root; revert its parent first")
	errRevertModifiedChildren = revertErr("non-recursive revert on a directory with modified children")
)

type revertErr string

func (e revertErr) Error() string { return string(e) }
