package pristine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"wcengine/internal/kvtxn"
	"wcengine/pkg/types"
)

func openStore(t *testing.T) (*Store, *kvtxn.Runner) {
	t.Helper()
	root := t.TempDir()
	dbPath := filepath.Join(root, "wc.db")
	db, err := bbolt.Open(dbPath, 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, EnsureBucket(db))
	return New(root), kvtxn.NewRunner(db)
}

func TestInstallThenReadRoundTrip(t *testing.T) {
	s, runner := openStore(t)
	data := []byte("hello pristine world")
	md5 := types.HashFromBytes([]byte("md5-stand-in"))

	var sha1 types.Hash
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		var err error
		sha1, err = s.Install(trail, data, md5)
		return err
	}))
	require.Equal(t, types.HashFromBytes(data), sha1)

	var got []byte
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		var err error
		got, err = s.Read(trail, sha1)
		return err
	}))
	require.Equal(t, data, got)
}

func TestInstallDeduplicatesByContent(t *testing.T) {
	s, runner := openStore(t)
	data := []byte("same content twice")

	var sha1a, sha1b types.Hash
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		var err error
		sha1a, err = s.Install(trail, data, types.ZeroHash)
		return err
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		var err error
		sha1b, err = s.Install(trail, data, types.ZeroHash)
		return err
	}))
	require.Equal(t, sha1a, sha1b)

	// written to disk exactly once, refcounted to 2.
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		b, err := bucket(trail.Tx)
		require.NoError(t, err)
		r, err := decodeRow(b.Get([]byte(sha1a.String())))
		require.NoError(t, err)
		require.Equal(t, int64(2), r.RefCount)
		return nil
	}))
}

func TestCheckFailsWhenFileMissingEvenIfRowPresent(t *testing.T) {
	s, runner := openStore(t)
	data := []byte("to be deleted underneath the store")
	var sha1 types.Hash
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		var err error
		sha1, err = s.Install(trail, data, types.ZeroHash)
		return err
	}))

	require.NoError(t, os.Remove(s.path(sha1)))

	err := runner.Do(func(trail *kvtxn.Trail) error {
		return s.Check(trail, sha1)
	})
	require.Error(t, err)
	require.Equal(t, types.KindNoSuchPristine, types.KindOf(err))
}

func TestRemoveDecrementsThenDeletes(t *testing.T) {
	s, runner := openStore(t)
	data := []byte("refcounted content")

	var sha1 types.Hash
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		var err error
		sha1, err = s.Install(trail, data, types.ZeroHash)
		return err
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		_, err := s.Install(trail, data, types.ZeroHash)
		return err
	}))

	// first remove: refcount 2 -> 1, file still present.
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return s.Remove(trail, sha1)
	}))
	_, err := os.Stat(s.path(sha1))
	require.NoError(t, err)

	// second remove: refcount 1 -> 0, file deleted.
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return s.Remove(trail, sha1)
	}))
	_, err = os.Stat(s.path(sha1))
	require.True(t, os.IsNotExist(err))

	err = runner.Do(func(trail *kvtxn.Trail) error {
		return s.Check(trail, sha1)
	})
	require.Error(t, err)
}

func TestGetSHA1AndGetMD5RoundTrip(t *testing.T) {
	s, runner := openStore(t)
	data := []byte("md5 lookup content")
	md5 := types.HashFromBytes([]byte("transitional-md5"))

	var sha1 types.Hash
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		var err error
		sha1, err = s.Install(trail, data, md5)
		return err
	}))

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		got, err := s.GetSHA1(trail, md5)
		require.NoError(t, err)
		require.Equal(t, sha1, got)

		gotMD5, err := s.GetMD5(trail, sha1)
		require.NoError(t, err)
		require.Equal(t, md5, gotMD5)
		return nil
	}))
}

func TestPathUsesTwoLevelHexSubdir(t *testing.T) {
	s, runner := openStore(t)
	data := []byte("subdir layout check")
	var sha1 types.Hash
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		var err error
		sha1, err = s.Install(trail, data, types.ZeroHash)
		return err
	}))

	hex := sha1.String()
	want := filepath.Join(s.rootDir, "pristine", hex[:2], hex)
	require.Equal(t, want, s.path(sha1))
	_, err := os.Stat(want)
	require.NoError(t, err)
}

func TestCleanupRemovesOrphanedZeroRefRows(t *testing.T) {
	s, runner := openStore(t)
	data := []byte("orphan me")
	var sha1 types.Hash
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		var err error
		sha1, err = s.Install(trail, data, types.ZeroHash)
		return err
	}))

	// force the row to refcount 0 without going through Remove, to
	// simulate a crash between decrementing the row and deleting the
	// file.
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		b, err := bucket(trail.Tx)
		require.NoError(t, err)
		return b.Put([]byte(sha1.String()), encodeRow(row{Size: int64(len(data)), RefCount: 0}))
	}))

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return s.Cleanup(trail)
	}))

	_, err := os.Stat(s.path(sha1))
	require.True(t, os.IsNotExist(err))
}
