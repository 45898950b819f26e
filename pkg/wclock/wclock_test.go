package wclock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"wcengine/internal/kvtxn"
	"wcengine/pkg/types"
)

func openManager(t *testing.T) (*Manager, *kvtxn.Runner) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "locks.db")
	db, err := bbolt.Open(dbPath, 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, EnsureBucket(db))
	return New(), kvtxn.NewRunner(db)
}

func TestObtainThenOwnsLockExact(t *testing.T) {
	m, runner := openManager(t)
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return m.Obtain(trail, "a/b", 0, false)
	}))
	require.True(t, m.OwnsLock("a/b", true))
	require.False(t, m.OwnsLock("a/b/c", true))
}

func TestObtainWithLevelsCoversDescendantsInherited(t *testing.T) {
	m, runner := openManager(t)
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return m.Obtain(trail, "a", Infinite, false)
	}))
	require.True(t, m.OwnsLock("a/b/c/d", false))
	require.False(t, m.OwnsLock("a/b/c/d", true))
}

func TestObtainFailsWhenDescendantAlreadyLockedByOther(t *testing.T) {
	owner1, runner := openManager(t)
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return owner1.Obtain(trail, "a/b", 0, false)
	}))

	owner2 := New()
	err := runner.Do(func(trail *kvtxn.Trail) error {
		return owner2.Obtain(trail, "a", Infinite, false)
	})
	require.Error(t, err)
	require.Equal(t, types.KindLocked, types.KindOf(err))
}

func TestObtainWithStealRemovesDescendantLock(t *testing.T) {
	owner1, runner := openManager(t)
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return owner1.Obtain(trail, "a/b", 0, false)
	}))

	owner2 := New()
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return owner2.Obtain(trail, "a", Infinite, true)
	}))
	require.True(t, owner2.OwnsLock("a/b", false))
}

func TestObtainFailsWhenAncestorAlreadyCovers(t *testing.T) {
	owner1, runner := openManager(t)
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return owner1.Obtain(trail, "a", Infinite, false)
	}))

	owner2 := New()
	err := runner.Do(func(trail *kvtxn.Trail) error {
		return owner2.Obtain(trail, "a/b", 0, true) // steal does not help here
	})
	require.Error(t, err)
	require.Equal(t, types.KindLocked, types.KindOf(err))
}

func TestReleaseRequiresOwnership(t *testing.T) {
	m, runner := openManager(t)
	err := runner.Do(func(trail *kvtxn.Trail) error {
		return m.Release(trail, "a/b")
	})
	require.Error(t, err)
	require.Equal(t, types.KindNotLocked, types.KindOf(err))
}

func TestReleaseThenObtainAgainSucceeds(t *testing.T) {
	m, runner := openManager(t)
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return m.Obtain(trail, "a/b", 0, false)
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return m.Release(trail, "a/b")
	}))
	require.False(t, m.OwnsLock("a/b", true))

	m2 := New()
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return m2.Obtain(trail, "a/b", 0, false)
	}))
}

func TestOwnsLockInheritedWithFiniteLevelsRespectsDepth(t *testing.T) {
	m, runner := openManager(t)
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return m.Obtain(trail, "a", 1, false)
	}))
	require.True(t, m.OwnsLock("a", false))
	require.True(t, m.OwnsLock("a/b", false))
	require.False(t, m.OwnsLock("a/b/c", false))
}
