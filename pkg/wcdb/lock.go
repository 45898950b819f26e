package wcdb

import (
	"strconv"
	"strings"

	"go.etcd.io/bbolt"

	"wcengine/internal/kvtxn"
	"wcengine/pkg/types"
)

// The LOCK table maps a repository path to an exclusive-edit token
// (svn lock, not to be confused with the WC_LOCK working-copy
// sub-tree locks wclock.Manager owns). Keyed directly by
// repos_relpath since this engine, like the teacher, keeps one
// REPOSITORY row per WCROOT in the common case.

func encodeLock(l types.Lock) []byte {
	fields := []string{l.Token, l.Owner, l.Comment, strconv.FormatInt(l.Date, 10)}
	return []byte(strings.Join(fields, "\x01"))
}

func decodeLock(data []byte) (types.Lock, error) {
	parts := strings.Split(string(data), "\x01")
	if len(parts) != 4 {
		return types.Lock{}, types.NewError(types.KindCorrupt, "", nil)
	}
	date, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return types.Lock{}, err
	}
	return types.Lock{Token: parts[0], Owner: parts[1], Comment: parts[2], Date: date}, nil
}

func getLock(tx *bbolt.Tx, reposRelpath string) (types.Lock, bool, error) {
	if reposRelpath == "" {
		return types.Lock{}, false, nil
	}
	b, err := bucket(tx, lockBucket)
	if err != nil {
		return types.Lock{}, false, err
	}
	v := b.Get([]byte(reposRelpath))
	if v == nil {
		return types.Lock{}, false, nil
	}
	l, err := decodeLock(v)
	return l, err == nil, err
}

// PutLock records a lock token against reposRelpath.
func (s *Store) PutLock(trail *kvtxn.Trail, reposRelpath string, l types.Lock) error {
	b, err := bucket(trail.Tx, lockBucket)
	if err != nil {
		return err
	}
	return b.Put([]byte(reposRelpath), encodeLock(l))
}

// RemoveLock deletes the lock row for reposRelpath, if any.
func (s *Store) RemoveLock(trail *kvtxn.Trail, reposRelpath string) error {
	b, err := bucket(trail.Tx, lockBucket)
	if err != nil {
		return err
	}
	return b.Delete([]byte(reposRelpath))
}
