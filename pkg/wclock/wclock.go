// Package wclock implements the WC Lock Manager: process-local
// ownership over sub-trees of a working copy, keyed by relpath with a
// depth ("levels") parameter, backed by a bbolt bucket so a crashed
// process's stale locks are visible (though only the owning *Manager*
// instance that took a lock may release it or have it recognized by
// OwnsLock).
//
// This corresponds to spec.md 4.9's WC Lock Manager contract; there is
// no direct original_source file scoped to just this table (the
// reference implementation folds WC-lock bookkeeping into the general
// wc_db access-baton machinery), so the obtain/steal/release/owns-lock
// state machine here is built directly from the spec's numbered
// contract, using the same Trail-based transactional idiom as every
// other table in this engine.
package wclock

import (
	"fmt"
	"strings"
	"sync"

	"go.etcd.io/bbolt"

	"wcengine/internal/kvtxn"
	"wcengine/pkg/types"
)

var bucketName = []byte("wc_locks")

// Infinite is the "levels" value meaning the lock covers every
// descendant, with no depth limit.
const Infinite = -1

type lockRow struct {
	Levels int
}

func encodeRow(r lockRow) []byte {
	return []byte(fmt.Sprintf("%d", r.Levels))
}

func decodeRow(data []byte) (lockRow, error) {
	var levels int
	if _, err := fmt.Sscanf(string(data), "%d", &levels); err != nil {
		return lockRow{}, fmt.Errorf("wclock: corrupt row: %w", err)
	}
	return lockRow{Levels: levels}, nil
}

// Manager tracks which locks this process obtained, on top of a
// persisted bucket of all locks (including ones left behind by a
// crashed process, which only affect Obtain's ancestor/descendant
// collision checks, never this process's own OwnsLock answers).
type Manager struct {
	mu    sync.Mutex
	owned map[string]lockRow
}

// New returns a lock manager with no locks owned yet.
func New() *Manager {
	return &Manager{owned: map[string]lockRow{}}
}

// EnsureBucket creates the backing bucket.
func EnsureBucket(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
}

func bucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	b := tx.Bucket(bucketName)
	if b == nil {
		return nil, fmt.Errorf("wclock: bucket not initialized, call EnsureBucket first")
	}
	return b, nil
}

func relpathDepth(relpath string) int {
	if relpath == "" {
		return 0
	}
	return strings.Count(relpath, "/") + 1
}

// isAtOrUnder reports whether candidate is relpath itself or a
// descendant of it.
func isAtOrUnder(candidate, relpath string) bool {
	if candidate == relpath {
		return true
	}
	if relpath == "" {
		return true
	}
	return strings.HasPrefix(candidate, relpath+"/")
}

// covers reports whether a lock at lockRelpath with the given levels
// extends far enough to cover candidate.
func covers(lockRelpath string, levels int, candidate string) bool {
	if !isAtOrUnder(candidate, lockRelpath) {
		return false
	}
	if levels == Infinite {
		return true
	}
	return relpathDepth(candidate)-relpathDepth(lockRelpath) <= levels
}

// ancestorsOf returns every proper ancestor relpath of relpath,
// including "" (the working copy root), nearest first.
func ancestorsOf(relpath string) []string {
	var out []string
	for relpath != "" {
		idx := strings.LastIndex(relpath, "/")
		if idx < 0 {
			relpath = ""
		} else {
			relpath = relpath[:idx]
		}
		out = append(out, relpath)
	}
	return out
}

// Obtain takes a lock over relpath extending levels deep. Callers are
// responsible for having already verified relpath names a real node
// (BASE or WORKING) before calling -- this package has no node-model
// access to check that itself.
//
// Existing locks strictly under relpath that this lock would cover and
// that this process does not already own cause Locked, unless steal is
// true, in which case they are removed. Any ancestor lock that already
// covers relpath causes Locked unconditionally -- stealing only
// resolves collisions with descendants, never with an ancestor, per
// spec.md 4.9.
func (m *Manager) Obtain(trail *kvtxn.Trail, relpath string, levels int, steal bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := bucket(trail.Tx)
	if err != nil {
		return err
	}

	for _, anc := range ancestorsOf(relpath) {
		v := b.Get([]byte(anc))
		if v == nil {
			continue
		}
		row, err := decodeRow(v)
		if err != nil {
			return err
		}
		if covers(anc, row.Levels, relpath) {
			return types.NewError(types.KindLocked, relpath, fmt.Errorf("covered by ancestor lock at %q", anc))
		}
	}

	// a lock at exactly relpath collides the same way a descendant does.
	if v := b.Get([]byte(relpath)); v != nil {
		if _, ownedByUs := m.owned[relpath]; !ownedByUs {
			if !steal {
				return types.NewError(types.KindLocked, relpath, fmt.Errorf("already locked"))
			}
		}
	}

	type removedLock struct {
		key []byte
		row lockRow
	}
	var toRemove []removedLock
	prefix := ""
	if relpath != "" {
		prefix = relpath + "/"
	}
	c := b.Cursor()
	var seekFrom []byte
	if prefix != "" {
		seekFrom = []byte(prefix)
	}
	for k, v := c.Seek(seekFrom); k != nil; k, v = c.Next() {
		existingPath := string(k)
		if prefix != "" && !strings.HasPrefix(existingPath, prefix) {
			break
		}
		if existingPath == relpath {
			continue
		}
		row, err := decodeRow(v)
		if err != nil {
			return err
		}
		if !covers(relpath, levels, existingPath) {
			continue
		}
		if _, ownedByUs := m.owned[existingPath]; ownedByUs {
			continue
		}
		if !steal {
			return types.NewError(types.KindLocked, relpath, fmt.Errorf("descendant %q already locked", existingPath))
		}
		toRemove = append(toRemove, removedLock{key: append([]byte(nil), k...), row: row})
	}
	for _, rl := range toRemove {
		if err := b.Delete(rl.key); err != nil {
			return err
		}
		path := string(rl.key)
		prevOwned, hadOwned := m.owned[path]
		delete(m.owned, path)
		trail.OnUndo(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if hadOwned {
				m.owned[path] = prevOwned
			} else {
				delete(m.owned, path)
			}
		})
	}

	previous, hadPrevious := m.owned[relpath]
	row := lockRow{Levels: levels}
	if err := b.Put([]byte(relpath), encodeRow(row)); err != nil {
		return err
	}
	m.owned[relpath] = row
	trail.OnUndo(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if hadPrevious {
			m.owned[relpath] = previous
		} else {
			delete(m.owned, relpath)
		}
	})
	return nil
}

// Release removes a lock this process obtained. Fails NotLocked if
// this process does not own a lock at relpath.
func (m *Manager) Release(trail *kvtxn.Trail, relpath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.owned[relpath]
	if !ok {
		return types.NewError(types.KindNotLocked, relpath, nil)
	}

	b, err := bucket(trail.Tx)
	if err != nil {
		return err
	}
	if err := b.Delete([]byte(relpath)); err != nil {
		return err
	}
	delete(m.owned, relpath)
	trail.OnUndo(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.owned[relpath] = row
	})
	return nil
}

// OwnsLock reports whether this process holds a lock covering relpath.
// When exact is true, only a lock obtained at exactly relpath counts;
// otherwise any owned ancestor whose levels reach relpath also counts.
func (m *Manager) OwnsLock(relpath string, exact bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.owned[relpath]; ok {
		return true
	}
	if exact {
		return false
	}
	for path, row := range m.owned {
		if covers(path, row.Levels, relpath) {
			return true
		}
	}
	return false
}
