package wcdb

import (
	"wcengine/internal/kvtxn"
	"wcengine/pkg/types"
)

// OpMove is an unimplemented stub, preserved as such per the Open
// Question resolution in SPEC_FULL.md §5: the source leaves
// svn_wc__db_op_move unimplemented, and a faithful rewrite keeps that
// stub boundary rather than inventing move semantics the spec never
// describes.
func (s *Store) OpMove(trail *kvtxn.Trail, src, dst string) error {
	return types.NewError(types.KindNotImplemented, src, types.ErrNotImplemented)
}

// OpModified is an unimplemented stub for the same reason as OpMove.
func (s *Store) OpModified(trail *kvtxn.Trail, relpath string) error {
	return types.NewError(types.KindNotImplemented, relpath, types.ErrNotImplemented)
}
