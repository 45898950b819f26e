package wcdb

import (
	"wcengine/internal/kvtxn"
	"wcengine/pkg/skel"
	"wcengine/pkg/types"
)

// BaseAddArgs carries the common fields every base_add_* operation
// writes into its op_depth==0 row.
type BaseAddArgs struct {
	ReposRelpath  string
	Revision      types.RevNum
	ChangedRev    types.RevNum
	ChangedDate   int64
	ChangedAuthor string
	Properties    skel.Skel
	DavCache      []byte

	Depth types.Depth // directories only

	Checksum       types.Hash // files only
	TranslatedSize int64
	LastModTime    int64

	SymlinkTarget string // symlinks only

	// Children, if non-nil, causes each named entry to also be
	// inserted as an incomplete/unknown placeholder row (directories
	// only), per spec.md §4.10.2.
	Children []string
}

func (s *Store) baseAdd(trail *kvtxn.Trail, relpath string, kind types.Kind, presence types.Presence, a BaseAddArgs) error {
	if err := s.extendParentDelete(trail, relpath); err != nil {
		return err
	}
	row := NodeRow{
		OpDepth:              0,
		Presence:             presence,
		Kind:                 kind,
		ReposRelpath:         a.ReposRelpath,
		Revision:             a.Revision,
		ChangedRev:           a.ChangedRev,
		ChangedDate:          a.ChangedDate,
		ChangedAuthor:        a.ChangedAuthor,
		Depth:                a.Depth,
		Checksum:             a.Checksum,
		TranslatedSize:       a.TranslatedSize,
		LastModTime:          a.LastModTime,
		SymlinkTarget:        a.SymlinkTarget,
		Properties:           a.Properties,
		DavCache:             a.DavCache,
		OriginalRevision:     types.NoRevision,
	}
	if err := putNode(trail, relpath, row); err != nil {
		return err
	}

	for _, child := range a.Children {
		childPath := child
		if relpath != "" {
			childPath = relpath + "/" + child
		}
		if err := s.extendParentDelete(trail, childPath); err != nil {
			return err
		}
		placeholder := NodeRow{
			OpDepth:          0,
			Presence:         types.PresenceIncomplete,
			Kind:             types.KindUnknown,
			ReposRelpath:     a.ReposRelpath,
			Revision:         a.Revision,
			OriginalRevision: types.NoRevision,
		}
		if a.ReposRelpath != "" {
			placeholder.ReposRelpath = a.ReposRelpath + "/" + child
		}
		if err := putNode(trail, childPath, placeholder); err != nil {
			return err
		}
	}
	return nil
}

// BaseAddDirectory inserts a BASE row of kind directory.
func (s *Store) BaseAddDirectory(trail *kvtxn.Trail, relpath string, a BaseAddArgs) error {
	return s.baseAdd(trail, relpath, types.KindDir, types.PresenceNormal, a)
}

// BaseAddFile inserts a BASE row of kind file.
func (s *Store) BaseAddFile(trail *kvtxn.Trail, relpath string, a BaseAddArgs) error {
	return s.baseAdd(trail, relpath, types.KindFile, types.PresenceNormal, a)
}

// BaseAddSymlink inserts a BASE row of kind symlink.
func (s *Store) BaseAddSymlink(trail *kvtxn.Trail, relpath string, a BaseAddArgs) error {
	return s.baseAdd(trail, relpath, types.KindSymlink, types.PresenceNormal, a)
}

// BaseAddAbsent inserts a BASE row marking relpath authz-denied.
func (s *Store) BaseAddAbsent(trail *kvtxn.Trail, relpath string, a BaseAddArgs) error {
	return s.baseAdd(trail, relpath, types.KindUnknown, types.PresenceAbsent, a)
}

// BaseAddNotPresent inserts a BASE row recording that relpath is
// known not to exist in the repository at this revision (a deleted
// child the WC still needs to remember for future updates).
func (s *Store) BaseAddNotPresent(trail *kvtxn.Trail, relpath string, a BaseAddArgs) error {
	return s.baseAdd(trail, relpath, types.KindUnknown, types.PresenceNotPresent, a)
}

// extendParentDelete implements spec.md §4.10.2's implicit
// descendant-delete propagation: if relpath's parent has a WORKING
// row (an in-progress delete/replace), a freshly inserted BASE row
// for relpath must not resurface as "present" underneath that
// pending operation -- it needs its own base-deleted shadow row at
// the parent's op_depth so the parent's delete continues to cover it.
func (s *Store) extendParentDelete(trail *kvtxn.Trail, relpath string) error {
	if relpath == "" {
		return nil
	}
	parent := parentRelpath(relpath)
	parentTop, ok, err := highestRow(trail.Tx, parent)
	if err != nil {
		return err
	}
	if !ok || parentTop.OpDepth == 0 {
		return nil
	}
	existing, err := rowsAt(trail.Tx, relpath)
	if err != nil {
		return err
	}
	for _, r := range existing {
		if r.OpDepth == parentTop.OpDepth {
			return nil // already shadowed
		}
	}
	shadow := NodeRow{
		OpDepth:          parentTop.OpDepth,
		Presence:         types.PresenceBaseDeleted,
		Kind:             types.KindUnknown,
		Revision:         types.NoRevision,
		ChangedRev:       types.NoRevision,
		OriginalRevision: types.NoRevision,
	}
	return putNode(trail, relpath, shadow)
}

// OpSetProps implements spec.md §4.10.9: write props as an ACTUAL
// override, dropping the override entirely (so no spurious props_mod
// flag fires) if it matches the pristine value.
func (s *Store) OpSetProps(trail *kvtxn.Trail, relpath string, props skel.Skel) error {
	pristine, err := s.ReadPristineProps(trail.Tx, relpath)
	if err != nil {
		return err
	}
	actual, ok, err := getActual(trail.Tx, relpath)
	if err != nil {
		return err
	}
	if propsEqual(props, pristine) {
		if !ok {
			return nil
		}
		actual.Properties = skel.Skel{}
		return putActual(trail, relpath, actual)
	}
	actual.Properties = props
	return putActual(trail, relpath, actual)
}
