package wcdb

import (
	"wcengine/internal/kvtxn"
	"wcengine/pkg/skel"
	"wcengine/pkg/types"
)

// CommitArgs carries global_commit's parameters (spec.md §4.10.6).
type CommitArgs struct {
	NewRevision   types.RevNum
	ChangedRev    types.RevNum
	ChangedDate   int64
	ChangedAuthor string
	Checksum      types.Hash // files only
	DavCache      []byte

	KeepChangelist bool
	NoUnlock       bool

	WorkItems []skel.Skel
}

// GlobalCommit implements spec.md §4.10.6's seven numbered steps for
// one committed path. Descendants of a committed subtree each get
// their own GlobalCommit call from the caller (the commit driver in
// cmd/wcctl walks the commit targets bottom-up). Apart from step 3,
// which removes WORKING and ACTUAL rows beneath a shadowing path, this
// method only touches path's own identity.
func (s *Store) GlobalCommit(trail *kvtxn.Trail, path string, a CommitArgs) error {
	// Step 1: determine repository location.
	reposRelpath, err := s.commitReposLocation(trail, path)
	if err != nil {
		return err
	}

	rows, err := rowsAt(trail.Tx, path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return types.NewError(types.KindPathNotFound, path, nil)
	}
	shadowing := len(rows) > 1 // more than one layer removed => was a shadowing op-root

	// Step 2: delete all WORKING rows at path.
	for _, r := range rows {
		if r.OpDepth > 0 {
			if err := deleteNode(trail, path, r.OpDepth); err != nil {
				return err
			}
		}
	}

	// Step 3: if shadowing, remove shadowed descendant rows so lower
	// layers don't resurface beneath the newly committed BASE row.
	if shadowing {
		if err := s.deleteShadowedRecursive(trail, path); err != nil {
			return err
		}
	}

	// Step 4: insert/update the BASE row.
	props, err := s.ReadProps(trail.Tx, path)
	if err != nil && types.KindOf(err) != types.KindPathNotFound {
		return err
	}
	// rows[0] (the highest layer) can be a delete/base-deleted shadow
	// placeholder carrying KindUnknown; the real kind being committed
	// is the first layer underneath that actually recorded one.
	kind := types.KindUnknown
	for _, r := range rows {
		if r.Kind != types.KindUnknown {
			kind = r.Kind
			break
		}
	}
	base := NodeRow{
		OpDepth:          0,
		Presence:         types.PresenceNormal,
		Kind:             kind,
		ReposRelpath:     reposRelpath,
		Revision:         a.NewRevision,
		ChangedRev:       a.ChangedRev,
		ChangedDate:      a.ChangedDate,
		ChangedAuthor:    a.ChangedAuthor,
		Checksum:         a.Checksum,
		Properties:       props,
		DavCache:         a.DavCache,
		OriginalRevision: types.NoRevision,
	}
	if err := putNode(trail, path, base); err != nil {
		return err
	}

	// Step 5: ACTUAL preserved iff keep_changelist and a changelist
	// exists; otherwise cleared.
	actual, ok, err := getActual(trail.Tx, path)
	if err != nil {
		return err
	}
	if ok {
		if a.KeepChangelist && actual.Changelist != "" {
			if err := putActual(trail, path, ActualRow{Changelist: actual.Changelist}); err != nil {
				return err
			}
		} else {
			if err := deleteActual(trail, path); err != nil {
				return err
			}
		}
	}

	// Step 6: unless no_unlock, delete any LOCK row for the path.
	if !a.NoUnlock {
		if err := s.RemoveLock(trail, reposRelpath); err != nil {
			return err
		}
	}

	// Step 7: enqueue supplied work items.
	for _, item := range a.WorkItems {
		if err := s.WqAdd(trail, item); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) commitReposLocation(trail *kvtxn.Trail, path string) (string, error) {
	if base, ok, err := baseRow(trail.Tx, path); err != nil {
		return "", err
	} else if ok && base.ReposRelpath != "" {
		return base.ReposRelpath, nil
	}
	top, ok, err := highestRow(trail.Tx, path)
	if err != nil {
		return "", err
	}
	if ok && top.ReposRelpath != "" {
		return top.ReposRelpath, nil
	}
	if path == "" {
		return "", nil
	}
	parent := parentRelpath(path)
	parentLoc, err := s.commitReposLocation(trail, parent)
	if err != nil {
		return "", err
	}
	name := path
	if parent != "" {
		name = path[len(parent)+1:]
	}
	if parentLoc == "" {
		return name, nil
	}
	return parentLoc + "/" + name, nil
}

// deleteShadowedRecursive removes every WORKING row strictly beneath
// path's own identity -- the stale shadow/copy layers that belonged
// to the operation this commit just collapsed, along with each
// descendant's ACTUAL row. BASE (op_depth 0) rows are left untouched;
// each descendant that is itself part of the commit gets its own
// GlobalCommit call, which the commit driver in cmd/wcctl makes before
// this one (it commits deepest-first) and which re-establishes that
// descendant's BASE row from the driver's own per-descendant arguments.
func (s *Store) deleteShadowedRecursive(trail *kvtxn.Trail, path string) error {
	descendants, err := descendantRelpaths(trail.Tx, path, false)
	if err != nil {
		return err
	}
	for _, d := range descendants {
		rows, err := rowsAt(trail.Tx, d)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if r.OpDepth == 0 {
				continue
			}
			if err := deleteNode(trail, d, r.OpDepth); err != nil {
				return err
			}
		}
		if err := deleteActual(trail, d); err != nil {
			return err
		}
	}
	return nil
}
