package wcdb

import (
	"strings"

	"go.etcd.io/bbolt"

	"wcengine/pkg/types"
)

// HasSwitchedSubtrees implements spec.md §4.10.8: a row is switched
// if its repos_relpath is not wcrootReposRelpath+local_relpath
// concatenated; the WC as a whole is also switched if its own URL
// does not end with trailURL (trailURL being the URL the caller
// expects the WC root to be checked out at, e.g. the branch path it
// started walking down from).
func (s *Store) HasSwitchedSubtrees(tx *bbolt.Tx, wcrootReposRelpath, trailURL string) (bool, error) {
	if trailURL != "" {
		repo, ok, err := s.soleRepository(tx)
		if err != nil {
			return false, err
		}
		if ok {
			wcrootURL := repo.RootURL
			if wcrootReposRelpath != "" {
				wcrootURL = strings.TrimSuffix(wcrootURL, "/") + "/" + wcrootReposRelpath
			}
			if !strings.HasSuffix(wcrootURL, trailURL) {
				return true, nil
			}
		}
	}

	relpaths, err := descendantRelpaths(tx, "", true)
	if err != nil {
		return false, err
	}
	for _, rel := range relpaths {
		row, ok, err := baseRow(tx, rel)
		if err != nil {
			return false, err
		}
		if !ok || row.ReposRelpath == "" {
			continue
		}
		want := wcrootReposRelpath
		if rel != "" {
			if want != "" {
				want += "/"
			}
			want += rel
		}
		if row.ReposRelpath != want {
			return true, nil
		}
	}
	return false, nil
}

// MinMaxRevisions implements spec.md §4.10.8: aggregate min/max over
// BASE-node revisions. If committedOnly, each BASE row's changed_rev is
// aggregated instead of its revision. Rows whose aggregated value is
// NoRevision are skipped.
func (s *Store) MinMaxRevisions(tx *bbolt.Tx, committedOnly bool) (types.RevNum, types.RevNum, error) {
	relpaths, err := descendantRelpaths(tx, "", true)
	if err != nil {
		return types.NoRevision, types.NoRevision, err
	}
	min, max := types.NoRevision, types.NoRevision
	for _, rel := range relpaths {
		row, ok, err := baseRow(tx, rel)
		if err != nil {
			return types.NoRevision, types.NoRevision, err
		}
		if !ok {
			continue
		}
		rev := row.Revision
		if committedOnly {
			rev = row.ChangedRev
		}
		if rev == types.NoRevision {
			continue
		}
		if min == types.NoRevision || rev < min {
			min = rev
		}
		if max == types.NoRevision || rev > max {
			max = rev
		}
	}
	return min, max, nil
}

// IsSparseCheckout implements spec.md §4.10.8: true if any directory
// node's highest row carries a depth other than infinity. An unset
// depth (DepthUnknown) does not count, and file nodes are not examined.
func (s *Store) IsSparseCheckout(tx *bbolt.Tx) (bool, error) {
	relpaths, err := descendantRelpaths(tx, "", true)
	if err != nil {
		return false, err
	}
	for _, rel := range relpaths {
		row, ok, err := highestRow(tx, rel)
		if err != nil {
			return false, err
		}
		if ok && row.Kind == types.KindDir && row.Depth != types.DepthInfinity && row.Depth != types.DepthUnknown {
			return true, nil
		}
	}
	return false, nil
}

// HasLocalMods implements spec.md §4.10.8: true if any subtree has a
// tree modification (a WORKING row), a property modification, or
// (reported by fileModified, supplied by the caller since this
// package has no filesystem access of its own) a text modification on
// a file node.
func (s *Store) HasLocalMods(tx *bbolt.Tx, fileModified func(relpath string, checksum types.Hash) (bool, error)) (bool, error) {
	relpaths, err := descendantRelpaths(tx, "", true)
	if err != nil {
		return false, err
	}
	for _, rel := range relpaths {
		haveWork, err := s.HaveWork(tx, rel)
		if err != nil {
			return false, err
		}
		if haveWork {
			return true, nil
		}
		info, err := s.ReadInfo(tx, rel)
		if err != nil {
			return false, err
		}
		if info.PropsMod {
			return true, nil
		}
		if info.Kind == types.KindFile && fileModified != nil {
			modified, err := fileModified(rel, info.Checksum)
			if err != nil {
				return false, err
			}
			if modified {
				return true, nil
			}
		}
	}
	return false, nil
}

// RevisionStatusReport bundles the four derived queries above into a
// single call for status-reporting callers (spec.md §4.10.8); each
// query still makes its own pass over the nodes.
func (s *Store) RevisionStatusReport(tx *bbolt.Tx, wcrootReposRelpath, trailURL string, fileModified func(relpath string, checksum types.Hash) (bool, error)) (RevisionStatus, error) {
	min, max, err := s.MinMaxRevisions(tx, false)
	if err != nil {
		return RevisionStatus{}, err
	}
	switched, err := s.HasSwitchedSubtrees(tx, wcrootReposRelpath, trailURL)
	if err != nil {
		return RevisionStatus{}, err
	}
	sparse, err := s.IsSparseCheckout(tx)
	if err != nil {
		return RevisionStatus{}, err
	}
	mods, err := s.HasLocalMods(tx, fileModified)
	if err != nil {
		return RevisionStatus{}, err
	}
	return RevisionStatus{
		MinRevision:      min,
		MaxRevision:      max,
		SwitchedSubtrees: switched,
		SparseCheckout:   sparse,
		LocalMods:        mods,
	}, nil
}
