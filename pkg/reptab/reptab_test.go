package reptab

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"wcengine/internal/kvtxn"
	"wcengine/pkg/types"
)

func openStore(t *testing.T) (*Store, *kvtxn.Runner) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "reps.db")
	db, err := bbolt.Open(dbPath, 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, EnsureBucket(db))
	return New(), kvtxn.NewRunner(db)
}

func TestWriteNewThenReadRoundTrip(t *testing.T) {
	s, runner := openStore(t)

	rep := Representation{
		Kind:      KindFulltext,
		Checksum:  types.HashFromBytes([]byte("hello")),
		Size:      5,
		StringKey: "3",
	}

	var key string
	err := runner.Do(func(trail *kvtxn.Trail) error {
		var err error
		key, err = s.WriteNew(trail, rep)
		return err
	})
	require.NoError(t, err)

	err = runner.Do(func(trail *kvtxn.Trail) error {
		got, err := s.Read(trail, key)
		require.NoError(t, err)
		require.Equal(t, rep, got)
		return nil
	})
	require.NoError(t, err)
}

func TestDeltaRepresentationRoundTrip(t *testing.T) {
	s, runner := openStore(t)
	rep := Representation{
		Kind:      KindDelta,
		Checksum:  types.HashFromBytes([]byte("v2")),
		Size:      42,
		StringKey: "7",
		DeltaBase: "3",
	}
	var key string
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		var err error
		key, err = s.WriteNew(trail, rep)
		return err
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		got, err := s.Read(trail, key)
		require.NoError(t, err)
		require.Equal(t, rep, got)
		return nil
	}))
}

func TestReadMissingKeyFails(t *testing.T) {
	_, runner := openStore(t)
	s := New()
	err := runner.Do(func(trail *kvtxn.Trail) error {
		_, err := s.Read(trail, "nope")
		return err
	})
	require.Error(t, err)
	require.Equal(t, types.KindNoSuchRepresentation, types.KindOf(err))
}

func TestWriteNewAllocatesDistinctKeys(t *testing.T) {
	s, runner := openStore(t)
	rep := Representation{Kind: KindFulltext, Size: 1, StringKey: "0"}

	keys := map[string]bool{}
	for i := 0; i < 20; i++ {
		err := runner.Do(func(trail *kvtxn.Trail) error {
			k, err := s.WriteNew(trail, rep)
			if err != nil {
				return err
			}
			require.False(t, keys[k])
			keys[k] = true
			return nil
		})
		require.NoError(t, err)
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	s, runner := openStore(t)
	rep := Representation{Kind: KindFulltext, Size: 1, StringKey: "0"}
	var key string
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		var err error
		key, err = s.WriteNew(trail, rep)
		return err
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return s.Delete(trail, key)
	}))
	err := runner.Do(func(trail *kvtxn.Trail) error {
		_, err := s.Read(trail, key)
		return err
	})
	require.Error(t, err)
}
