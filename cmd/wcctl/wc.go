package main

import (
	"path/filepath"

	"wcengine/pkg/pristine"
	"wcengine/pkg/wcdb"
	"wcengine/pkg/wclock"
	"wcengine/pkg/wcroot"
)

// cache is shared across every subcommand invocation in one process
// run, the same way a single warren client reuses one connection.
var cache = wcroot.NewCache()

// workingCopy bundles the handles one subcommand needs against an
// already-resolved working copy root: the node-model store, the
// sub-tree lock manager, and the pristine text store, all sharing the
// root's bbolt handle.
type workingCopy struct {
	root     *wcroot.Root
	relpath  string
	db       *wcdb.Store
	locks    *wclock.Manager
	pristine *pristine.Store
}

// openWorkingCopy resolves pathArg (a directory inside, or at, a
// working copy) to its root and returns the bundle of handles every
// subcommand operates through.
func openWorkingCopy(pathArg string) (*workingCopy, error) {
	abs, err := filepath.Abs(pathArg)
	if err != nil {
		return nil, err
	}
	root, relpath, err := cache.Resolve(abs, true)
	if err != nil {
		return nil, err
	}
	return &workingCopy{
		root:     root,
		relpath:  relpath,
		db:       wcdb.New(),
		locks:    wclock.New(),
		pristine: pristine.New(filepath.Join(root.AbsPath, wcroot.AdminDirName)),
	}, nil
}
