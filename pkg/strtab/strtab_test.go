package strtab

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
	"pgregory.net/rapid"

	"wcengine/internal/kvtxn"
)

func openStore(t *testing.T) (*Store, *kvtxn.Runner) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "strings.db")
	db, err := bbolt.Open(dbPath, 0600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, EnsureBucket(db))
	return New(), kvtxn.NewRunner(db)
}

// TestAppendAndReadback is scenario S1: append + readback of chunks.
func TestAppendAndReadback(t *testing.T) {
	s, runner := openStore(t)

	var key string
	err := runner.Do(func(trail *kvtxn.Trail) error {
		if err := s.Append(trail, &key, []byte("Hello ")); err != nil {
			return err
		}
		return s.Append(trail, &key, []byte("world!"))
	})
	require.NoError(t, err)
	require.NotEmpty(t, key)

	err = runner.Do(func(trail *kvtxn.Trail) error {
		size, err := s.Size(trail, key)
		require.NoError(t, err)
		require.EqualValues(t, 12, size)

		full, err := s.Read(trail, key, 0, 100)
		require.NoError(t, err)
		require.Equal(t, "Hello world!", string(full))

		tail, err := s.Read(trail, key, 6, 100)
		require.NoError(t, err)
		require.Equal(t, "world!", string(tail))
		return nil
	})
	require.NoError(t, err)
}

// TestClearThenAppend is scenario S2.
func TestClearThenAppend(t *testing.T) {
	s, runner := openStore(t)

	var key string
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return s.Append(trail, &key, []byte("Hello world!"))
	}))

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return s.Clear(trail, key)
	}))

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		size, err := s.Size(trail, key)
		require.NoError(t, err)
		require.EqualValues(t, 0, size)

		empty, err := s.Read(trail, key, 0, 100)
		require.NoError(t, err)
		require.Empty(t, empty)
		return nil
	}))

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return s.Append(trail, &key, []byte("x"))
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		size, err := s.Size(trail, key)
		require.NoError(t, err)
		require.EqualValues(t, 1, size)
		return nil
	}))
}

func TestReadPastEndReturnsEmpty(t *testing.T) {
	s, runner := openStore(t)
	var key string
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return s.Append(trail, &key, []byte("abc"))
	}))
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		out, err := s.Read(trail, key, 3, 10)
		require.NoError(t, err)
		require.Empty(t, out)
		out, err = s.Read(trail, key, 100, 10)
		require.NoError(t, err)
		require.Empty(t, out)
		return nil
	}))
}

func TestReadMissingKeyFails(t *testing.T) {
	s, runner := openStore(t)
	err := runner.View(func(tx *bbolt.Tx) error { return nil })
	require.NoError(t, err)
	err = runner.Do(func(trail *kvtxn.Trail) error {
		_, err := s.Read(trail, "missing", 0, 10)
		return err
	})
	require.Error(t, err)
}

// TestCopyPreservesContent is the copy round-trip law from spec.md 8.2.
func TestCopyPreservesContent(t *testing.T) {
	s, runner := openStore(t)
	var key string
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		return s.Append(trail, &key, []byte("some moderately long string of bytes"))
	}))

	var newKey string
	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		var err error
		newKey, err = s.Copy(trail, key)
		return err
	}))
	require.NotEqual(t, key, newKey)

	require.NoError(t, runner.Do(func(trail *kvtxn.Trail) error {
		sizeA, err := s.Size(trail, key)
		require.NoError(t, err)
		sizeB, err := s.Size(trail, newKey)
		require.NoError(t, err)
		require.Equal(t, sizeA, sizeB)

		a, err := s.Read(trail, key, 0, sizeA)
		require.NoError(t, err)
		b, err := s.Read(trail, newKey, 0, sizeB)
		require.NoError(t, err)
		require.Equal(t, a, b)
		return nil
	}))
}

func TestSizeEqualsSumOfAppends(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s, runner := openStore(t)
		var key string
		chunks := rapid.SliceOfN(rapid.SliceOfN(rapid.Byte(), 0, 40), 1, 8).Draw(rt, "chunks")

		var want int64
		for _, c := range chunks {
			want += int64(len(c))
			cc := c
			err := runner.Do(func(trail *kvtxn.Trail) error {
				return s.Append(trail, &key, cc)
			})
			require.NoError(rt, err)
		}

		err := runner.Do(func(trail *kvtxn.Trail) error {
			got, err := s.Size(trail, key)
			require.NoError(rt, err)
			require.Equal(rt, want, got)
			return nil
		})
		require.NoError(rt, err)
	})
}

func TestNextKeyIsMonotonic(t *testing.T) {
	seen := map[string]bool{}
	k := "0"
	for i := 0; i < 200; i++ {
		require.False(t, seen[k], "key %q repeated", k)
		seen[k] = true
		k = nextKey(k)
	}
}
