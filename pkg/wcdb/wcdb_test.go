package wcdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"wcengine/internal/kvtxn"
	"wcengine/pkg/skel"
	"wcengine/pkg/types"
)

func openStore(t *testing.T) (*Store, *kvtxn.Runner) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "wc.db")
	db, err := bbolt.Open(dbPath, 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, EnsureBuckets(db))
	return New(), kvtxn.NewRunner(db)
}

func TestBaseAddFileThenReadInfo(t *testing.T) {
	store, runner := openStore(t)

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.BaseAddFile(trail, "a.txt", BaseAddArgs{
			ReposRelpath: "a.txt", Revision: 5, ChangedRev: 5, ChangedAuthor: "alice",
		})
	}))

	require.NoError(t, runner.View(func(tx *bbolt.Tx) error {
		info, err := store.ReadInfo(tx, "a.txt")
		require.NoError(t, err)
		require.Equal(t, types.StatusNormal, info.Status)
		require.Equal(t, types.KindFile, info.Kind)
		require.Equal(t, types.RevNum(5), info.Revision)
		require.True(t, info.HaveBase)
		require.False(t, info.HaveWork)
		// a BASE row (op_depth 0) below the root is not an op-root
		require.False(t, info.OpRoot)
		return nil
	}))
}

func TestBaseAddDirectoryWithChildrenInsertsIncompletePlaceholders(t *testing.T) {
	store, runner := openStore(t)

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.BaseAddDirectory(trail, "dir", BaseAddArgs{
			ReposRelpath: "dir", Revision: 1, Children: []string{"x", "y"},
		})
	}))

	require.NoError(t, runner.View(func(tx *bbolt.Tx) error {
		info, err := store.ReadInfo(tx, "dir/x")
		require.NoError(t, err)
		require.Equal(t, types.StatusIncomplete, info.Status)

		children, err := store.ReadChildren(tx, "dir")
		require.NoError(t, err)
		require.Equal(t, []string{"dir/x", "dir/y"}, children)
		return nil
	}))
}

func TestOpSetPropsDedupAgainstPristineDropsOverride(t *testing.T) {
	store, runner := openStore(t)

	props := skel.NewList(skel.NewList(skel.NewAtomString("k"), skel.NewAtomString("v")))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.BaseAddFile(trail, "f", BaseAddArgs{ReposRelpath: "f", Revision: 1, Properties: props})
	}))

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.OpSetProps(trail, "f", props)
	}))
	require.NoError(t, runner.View(func(tx *bbolt.Tx) error {
		_, ok, err := getActual(tx, "f")
		require.NoError(t, err)
		require.False(t, ok, "setting props equal to pristine must not leave an ACTUAL override")
		info, err := store.ReadInfo(tx, "f")
		require.NoError(t, err)
		require.False(t, info.PropsMod)
		return nil
	}))

	newProps := skel.NewList(skel.NewList(skel.NewAtomString("k"), skel.NewAtomString("v2")))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.OpSetProps(trail, "f", newProps)
	}))
	require.NoError(t, runner.View(func(tx *bbolt.Tx) error {
		got, err := store.ReadProps(tx, "f")
		require.NoError(t, err)
		require.True(t, propsEqual(got, newProps))
		info, err := store.ReadInfo(tx, "f")
		require.NoError(t, err)
		require.True(t, info.PropsMod)
		return nil
	}))
}

func TestOpCopyWithinSameRootPreservesProvenance(t *testing.T) {
	store, runner := openStore(t)

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.BaseAddFile(trail, "A", BaseAddArgs{
			ReposRelpath: "trunk/A", Revision: 7, ChangedRev: 7, ChangedAuthor: "bob",
		})
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.OpCopy(trail, "A", "B")
	}))

	require.NoError(t, runner.View(func(tx *bbolt.Tx) error {
		info, err := store.ReadInfo(tx, "B")
		require.NoError(t, err)
		require.Equal(t, types.StatusAdded, info.Status)
		require.True(t, info.OpRoot)

		scan, err := store.ScanAddition(tx, "B")
		require.NoError(t, err)
		require.Equal(t, types.StatusCopied, scan.Status)
		require.Equal(t, "trunk/A", scan.OriginalReposRelpath)
		require.Equal(t, types.RevNum(7), scan.OriginalRevision)
		return nil
	}))
}

func TestThreeLayerDeleteThenCommit(t *testing.T) {
	store, runner := openStore(t)

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.BaseAddFile(trail, "X", BaseAddArgs{ReposRelpath: "X", Revision: 3})
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.OpDelete(trail, "X")
	}))
	require.NoError(t, runner.View(func(tx *bbolt.Tx) error {
		info, err := store.ReadInfo(tx, "X")
		require.NoError(t, err)
		require.Equal(t, types.StatusDeleted, info.Status)
		require.True(t, info.HaveBase)
		require.True(t, info.HaveWork)
		return nil
	}))

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.GlobalCommit(trail, "X", CommitArgs{NewRevision: 9, ChangedRev: 9, ChangedAuthor: "carol"})
	}))
	require.NoError(t, runner.View(func(tx *bbolt.Tx) error {
		info, err := store.ReadInfo(tx, "X")
		require.NoError(t, err)
		require.Equal(t, types.StatusNormal, info.Status)
		require.Equal(t, types.RevNum(9), info.Revision)
		require.Equal(t, types.KindFile, info.Kind)
		require.True(t, info.HaveBase)
		require.False(t, info.HaveWork)
		return nil
	}))
}

func TestRevertRemovesWorkingRow(t *testing.T) {
	store, runner := openStore(t)

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.BaseAddFile(trail, "A", BaseAddArgs{ReposRelpath: "A", Revision: 1})
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.OpCopy(trail, "A", "B")
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.OpRevert(trail, "B", false)
	}))

	require.NoError(t, runner.View(func(tx *bbolt.Tx) error {
		_, err := store.ReadInfo(tx, "B")
		require.Error(t, err)
		require.Equal(t, types.KindPathNotFound, types.KindOf(err))
		return nil
	}))
}

func TestRevertNonRootFailsInvalidOperationDepth(t *testing.T) {
	store, runner := openStore(t)

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.BaseAddDirectory(trail, "src", BaseAddArgs{ReposRelpath: "src", Revision: 1})
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.BaseAddFile(trail, "src/child", BaseAddArgs{ReposRelpath: "src/child", Revision: 1})
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.OpCopy(trail, "src", "dst")
	}))

	// "dst/child" was carried along as a natural child of the "dst"
	// copy, so it shares dst's op_depth rather than being its own
	// op-root: reverting it directly must fail.
	err := runner.Do(func(trail *kvtxn.Trail) error {
		return store.OpRevert(trail, "dst/child", false)
	})
	require.Error(t, err)
	require.Equal(t, types.KindInvalidOperationDepth, types.KindOf(err))

	// Reverting "dst" itself (the actual op-root) is legal.
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.OpRevert(trail, "dst", true)
	}))
}

func TestWorkQueueAddFetchCompleted(t *testing.T) {
	store, runner := openStore(t)

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.WqAdd(trail, skel.NewAtomString("work1"))
	}))

	var itemID int64
	require.NoError(t, runner.View(func(tx *bbolt.Tx) error {
		item, ok, err := store.WqFetch(tx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "work1", item.Work.Str())
		itemID = item.ID
		return nil
	}))

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.WqCompleted(trail, itemID)
	}))
	require.NoError(t, runner.View(func(tx *bbolt.Tx) error {
		empty, err := store.WqIsEmpty(tx)
		require.NoError(t, err)
		require.True(t, empty)
		return nil
	}))
}

func TestScanDeletionClassifiesBaseDeleted(t *testing.T) {
	store, runner := openStore(t)

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.BaseAddFile(trail, "X", BaseAddArgs{ReposRelpath: "X", Revision: 3})
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.OpDelete(trail, "X")
	}))

	require.NoError(t, runner.View(func(tx *bbolt.Tx) error {
		scan, err := store.ScanDeletion(tx, "X")
		require.NoError(t, err)
		require.Equal(t, "X", scan.BaseDelRelpath)
		return nil
	}))
}

func TestLockPutGetRemove(t *testing.T) {
	store, runner := openStore(t)

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.PutLock(trail, "trunk/A", types.Lock{Token: "opaquelocktoken:1", Owner: "alice"})
	}))
	require.NoError(t, runner.View(func(tx *bbolt.Tx) error {
		l, ok, err := getLock(tx, "trunk/A")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "opaquelocktoken:1", l.Token)
		return nil
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.RemoveLock(trail, "trunk/A")
	}))
	require.NoError(t, runner.View(func(tx *bbolt.Tx) error {
		_, ok, err := getLock(tx, "trunk/A")
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))
}

func TestIsSparseCheckoutAndHasLocalMods(t *testing.T) {
	store, runner := openStore(t)

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.BaseAddDirectory(trail, "dir", BaseAddArgs{ReposRelpath: "dir", Revision: 1, Depth: types.DepthInfinity})
	}))
	require.NoError(t, runner.View(func(tx *bbolt.Tx) error {
		sparse, err := store.IsSparseCheckout(tx)
		require.NoError(t, err)
		require.False(t, sparse)
		mods, err := store.HasLocalMods(tx, nil)
		require.NoError(t, err)
		require.False(t, mods)
		return nil
	}))

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.BaseAddFile(trail, "A", BaseAddArgs{ReposRelpath: "A", Revision: 1})
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return store.OpCopy(trail, "A", "B")
	}))
	require.NoError(t, runner.View(func(tx *bbolt.Tx) error {
		mods, err := store.HasLocalMods(tx, nil)
		require.NoError(t, err)
		require.True(t, mods)
		return nil
	}))
}

func TestEnsureRepositoryIsIdempotentByURL(t *testing.T) {
	store, runner := openStore(t)

	var first, second Repository
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		r, err := store.EnsureRepository(trail, "svn://example/repo")
		first = r
		return err
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		r, err := store.EnsureRepository(trail, "svn://example/repo")
		second = r
		return err
	}))
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.UUID, second.UUID)
}
