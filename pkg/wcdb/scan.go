package wcdb

import (
	"go.etcd.io/bbolt"

	"wcengine/pkg/types"
)

// ScanAddition implements spec.md §4.10.7: walk up the chain of
// WORKING rows from path to find its op-root, classify the operation
// from the op-root's copyfrom data, then continue scanning across
// BASE rows to resolve the current repository location.
func (s *Store) ScanAddition(tx *bbolt.Tx, path string) (ScanAdditionResult, error) {
	rows, err := rowsAt(tx, path)
	if err != nil {
		return ScanAdditionResult{}, err
	}
	if len(rows) == 0 {
		return ScanAdditionResult{}, types.NewError(types.KindPathNotFound, path, nil)
	}
	top := rows[0]
	if top.OpDepth == 0 {
		return ScanAdditionResult{}, types.NewError(types.KindPathUnexpectedStatus, path, nil)
	}

	opRootRelpath, opRoot, err := s.findOpRoot(tx, path, top.OpDepth)
	if err != nil {
		return ScanAdditionResult{}, err
	}

	status := types.StatusAdded
	if opRoot.OriginalReposRelpath != "" {
		if opRoot.MovedHere {
			status = types.StatusMovedHere
		} else {
			status = types.StatusCopied
		}
	}

	reposRelpath, err := s.scanAdditionReposLocation(tx, opRootRelpath, path)
	if err != nil {
		return ScanAdditionResult{}, err
	}

	return ScanAdditionResult{
		Status:               status,
		OpRootRelpath:        opRootRelpath,
		ReposRelpath:         reposRelpath,
		OriginalReposRelpath: opRoot.OriginalReposRelpath,
		OriginalRevision:     opRoot.OriginalRevision,
	}, nil
}

// findOpRoot walks up from path (whose highest row is at opDepth)
// until it reaches the identity whose own row is the op-root for
// that op_depth (relpath_depth(identity) == opDepth).
func (s *Store) findOpRoot(tx *bbolt.Tx, path string, opDepth int) (string, NodeRow, error) {
	cur := path
	for {
		rows, err := rowsAt(tx, cur)
		if err != nil {
			return "", NodeRow{}, err
		}
		var row NodeRow
		found := false
		for _, r := range rows {
			if r.OpDepth == opDepth {
				row, found = r, true
				break
			}
		}
		if found && relpathDepth(cur) == opDepth {
			return cur, row, nil
		}
		if cur == "" {
			return "", NodeRow{}, types.NewError(types.KindCorrupt, path, nil)
		}
		cur = parentRelpath(cur)
	}
}

// scanAdditionReposLocation derives path's current repository
// location from the op-root's recorded copyfrom (or plain-add)
// location plus the relative path from the op-root down to path,
// falling back to the BASE row of the op-root's parent if the op-root
// itself carries no repos identity (a plain local add). No ancestor
// above that parent is consulted; with no BASE row there the result
// is "".
func (s *Store) scanAdditionReposLocation(tx *bbolt.Tx, opRootRelpath, path string) (string, error) {
	opRoot, ok, err := highestRow(tx, opRootRelpath)
	if err != nil {
		return "", err
	}
	if ok && opRoot.ReposRelpath != "" {
		if path == opRootRelpath {
			return opRoot.ReposRelpath, nil
		}
		return opRoot.ReposRelpath + path[len(opRootRelpath):], nil
	}
	// Plain add with no repository identity of its own: use the BASE
	// row of the op-root's parent.
	parent := parentRelpath(opRootRelpath)
	base, ok, err := baseRow(tx, parent)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return base.ReposRelpath + path[len(parent):], nil
}

// ScanDeletion implements spec.md §4.10.7: walk up from a deleted
// node classifying the nearest base-deletion, move-away, and
// working-deletion ancestors.
func (s *Store) ScanDeletion(tx *bbolt.Tx, path string) (ScanDeletionResult, error) {
	top, ok, err := highestRow(tx, path)
	if err != nil {
		return ScanDeletionResult{}, err
	}
	if !ok {
		return ScanDeletionResult{}, types.NewError(types.KindPathNotFound, path, nil)
	}
	if top.Presence != types.PresenceNotPresent && top.Presence != types.PresenceBaseDeleted {
		return ScanDeletionResult{}, types.NewError(types.KindPathUnexpectedStatus, path, nil)
	}

	var result ScanDeletionResult
	cur := path
	for {
		row, ok, err := highestRow(tx, cur)
		if err != nil {
			return ScanDeletionResult{}, err
		}
		if ok {
			switch row.Presence {
			case types.PresenceBaseDeleted:
				if result.BaseDelRelpath == "" {
					result.BaseDelRelpath = cur
				}
			case types.PresenceNotPresent:
				if result.WorkDelRelpath == "" && row.OpDepth > 0 {
					result.WorkDelRelpath = cur
				}
			}
			if row.MovedHere && result.MovedToRelpath == "" {
				result.MovedToRelpath = cur
			}
		}
		if cur == "" {
			break
		}
		parent := parentRelpath(cur)
		parentRow, parentOk, err := highestRow(tx, parent)
		if err != nil {
			return ScanDeletionResult{}, err
		}
		if !parentOk || (parentRow.Presence != types.PresenceBaseDeleted && parentRow.Presence != types.PresenceNotPresent) {
			break
		}
		cur = parent
	}
	return result, nil
}
