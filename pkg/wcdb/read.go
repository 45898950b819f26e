package wcdb

import (
	"go.etcd.io/bbolt"

	"wcengine/pkg/skel"
	"wcengine/pkg/types"
)

// ReadInfo implements spec.md §4.10.1: resolve the highest-op_depth
// NODES row for relpath, map its presence to a derived status, and
// overlay ACTUAL's changelist/props-mod/conflict columns.
func (s *Store) ReadInfo(tx *bbolt.Tx, relpath string) (Info, error) {
	rows, err := rowsAt(tx, relpath)
	if err != nil {
		return Info{}, err
	}
	if len(rows) == 0 {
		return Info{}, types.NewError(types.KindPathNotFound, relpath, nil)
	}

	top := rows[0] // rowsAt orders highest op_depth first
	haveBase, haveWork, haveMoreWork := false, false, false
	workCount := 0
	for _, r := range rows {
		if r.OpDepth == 0 {
			haveBase = true
		} else {
			haveWork = true
			workCount++
		}
	}
	haveMoreWork = workCount >= 2

	var status types.Status
	if top.OpDepth > 0 {
		status = types.PresenceToStatus(top.Presence)
	} else {
		switch top.Presence {
		case types.PresenceNormal:
			status = types.StatusNormal
		case types.PresenceNotPresent:
			status = types.StatusNotPresent
		case types.PresenceAbsent:
			status = types.StatusObstructed
		case types.PresenceExcluded:
			status = types.StatusExcluded
		case types.PresenceIncomplete:
			status = types.StatusIncomplete
		case types.PresenceBaseDeleted:
			status = types.StatusDeleted
		}
	}

	info := Info{
		Status:               status,
		Kind:                 top.Kind,
		Revision:             top.Revision,
		ReposRelpath:         top.ReposRelpath,
		ChangedRev:           top.ChangedRev,
		ChangedDate:          top.ChangedDate,
		ChangedAuthor:        top.ChangedAuthor,
		Depth:                top.Depth,
		Checksum:             top.Checksum,
		OriginalReposRelpath: top.OriginalReposRelpath,
		OriginalRevision:     top.OriginalRevision,
		RecordedSize:         top.TranslatedSize,
		RecordedMTime:        top.LastModTime,
		OpRoot:               top.OpDepth == relpathDepth(relpath),
		HadProps:             top.hasProperties(),
		HaveBase:             haveBase,
		HaveWork:             haveWork,
		HaveMoreWork:         haveMoreWork,
	}

	lockRow, ok, err := getLock(tx, top.ReposRelpath)
	if err != nil {
		return Info{}, err
	}
	if ok {
		info.Lock = &lockRow
	}

	actual, ok, err := getActual(tx, relpath)
	if err != nil {
		return Info{}, err
	}
	if ok {
		info.Changelist = actual.Changelist
		info.Conflicted = actual.conflicted()
		if actual.hasProperties() {
			info.PropsMod = !propsEqual(actual.Properties, top.Properties)
		}
	}

	return info, nil
}

// ReadChildren returns the relpaths of relpath's direct children that
// have at least one NODES row, sorted. Used by directory listing
// callers (status/info over a subtree) that need to recurse without
// walking the whole bucket themselves.
func (s *Store) ReadChildren(tx *bbolt.Tx, relpath string) ([]string, error) {
	return directChildren(tx, relpath)
}

// HaveBase and HaveWork are exposed standalone for callers that only
// need the boolean, not a full ReadInfo.
func (s *Store) HaveBase(tx *bbolt.Tx, relpath string) (bool, error) {
	_, ok, err := baseRow(tx, relpath)
	return ok, err
}

func (s *Store) HaveWork(tx *bbolt.Tx, relpath string) (bool, error) {
	rows, err := rowsAt(tx, relpath)
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r.OpDepth > 0 {
			return true, nil
		}
	}
	return false, nil
}

// ReadProps implements spec.md §4.10.9: ACTUAL overrides, else the
// highest NODES row's properties, else BASE's.
func (s *Store) ReadProps(tx *bbolt.Tx, relpath string) (skel.Skel, error) {
	actual, ok, err := getActual(tx, relpath)
	if err != nil {
		return skel.Skel{}, err
	}
	if ok && actual.hasProperties() {
		return actual.Properties, nil
	}
	return s.ReadPristineProps(tx, relpath)
}

// ReadPristineProps returns the highest-op_depth NODES row's
// properties (WORKING if present, else BASE), ignoring ACTUAL.
func (s *Store) ReadPristineProps(tx *bbolt.Tx, relpath string) (skel.Skel, error) {
	row, ok, err := highestRow(tx, relpath)
	if err != nil {
		return skel.Skel{}, err
	}
	if !ok {
		return skel.Skel{}, types.NewError(types.KindPathNotFound, relpath, nil)
	}
	return row.Properties, nil
}

// propsEqual compares two property-list skels for equality regardless
// of entry order, used by OpSetProps and ReadInfo's props_mod flag to
// decide whether an ACTUAL override is meaningfully different from
// pristine.
func propsEqual(a, b skel.Skel) bool {
	am, bm := propsToMap(a), propsToMap(b)
	if len(am) != len(bm) {
		return false
	}
	for k, v := range am {
		if bv, ok := bm[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func propsToMap(s skel.Skel) map[string]string {
	out := map[string]string{}
	if s.IsAtom() {
		return out
	}
	for _, child := range s.Children() {
		if child.IsAtom() || child.Len() != 2 {
			continue
		}
		out[child.At(0).Str()] = child.At(1).Str()
	}
	return out
}
