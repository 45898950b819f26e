// Package pristine implements the Pristine Store: a content-addressed
// text-base store keyed by SHA-1, laid out as a two-level hex
// subdirectory tree on disk (`pristine/xx/xxyyzz...`), refcounted via
// a bbolt row per checksum, with a secondary MD5-to-SHA1 index for
// transitional callers that still only know a file's MD5.
//
// This is a Go translation of libsvn_wc/wc_db_pristine.c's filesystem
// layout (get_pristine_fname) fused with the teacher's pkg/cas content
// store, resized from SHA-256 to SHA-1 and given the refcounted
// install/remove semantics the teacher's plain CAS does not have.
package pristine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"wcengine/internal/fsutil"
	"wcengine/internal/kvtxn"
	"wcengine/pkg/types"
)

var (
	bucketName    = []byte("pristine")
	md5IndexName  = []byte("pristine-md5-index")
	storageDirRel = "pristine"
)

// Store is the Pristine Store, rooted at a working copy's admin
// directory (the caller passes the directory that should contain the
// `pristine/` subtree, typically `<wcroot>/.svnng`).
type Store struct {
	rootDir string
}

// New returns a Pristine Store rooted at adminDir.
func New(adminDir string) *Store {
	return &Store{rootDir: adminDir}
}

// EnsureBucket creates the backing buckets.
func EnsureBucket(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(md5IndexName)
		return err
	})
}

func bucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	b := tx.Bucket(bucketName)
	if b == nil {
		return nil, fmt.Errorf("pristine: bucket not initialized, call EnsureBucket first")
	}
	return b, nil
}

func md5Bucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	b := tx.Bucket(md5IndexName)
	if b == nil {
		return nil, fmt.Errorf("pristine: md5 index not initialized, call EnsureBucket first")
	}
	return b, nil
}

// row is the refcount + metadata stored per SHA-1 entry.
type row struct {
	Size     int64
	RefCount int64
}

func encodeRow(r row) []byte {
	return []byte(fmt.Sprintf("%d %d", r.Size, r.RefCount))
}

func decodeRow(data []byte) (row, error) {
	var r row
	_, err := fmt.Sscanf(string(data), "%d %d", &r.Size, &r.RefCount)
	if err != nil {
		return row{}, fmt.Errorf("pristine: corrupt row: %w", err)
	}
	return r, nil
}

// path returns the on-disk path for sha1, under the two-level hex
// subdirectory layout: pristine/xx/xxyyzz....
func (s *Store) path(sha1 types.Hash) string {
	hex := sha1.String()
	return filepath.Join(s.rootDir, storageDirRel, hex[:2], hex)
}

// Install writes data's content under its SHA-1 address (computing the
// checksum itself) and records md5 as a secondary lookup key,
// incrementing the refcount if the content is already present instead
// of rewriting it -- the bbolt transaction is the "reserved
// transaction" that would guard a concurrent installer in the original;
// here the kvtxn.Trail's single-writer bbolt transaction serves the
// same purpose.
func (s *Store) Install(trail *kvtxn.Trail, data []byte, md5 types.Hash) (types.Hash, error) {
	sha1 := types.HashFromBytes(data)

	b, err := bucket(trail.Tx)
	if err != nil {
		return types.ZeroHash, err
	}
	m, err := md5Bucket(trail.Tx)
	if err != nil {
		return types.ZeroHash, err
	}

	key := []byte(sha1.String())
	if existing := b.Get(key); existing != nil {
		r, err := decodeRow(existing)
		if err != nil {
			return types.ZeroHash, err
		}
		r.RefCount++
		if err := b.Put(key, encodeRow(r)); err != nil {
			return types.ZeroHash, err
		}
		if !md5.IsZero() {
			if err := m.Put([]byte(md5.String()), key); err != nil {
				return types.ZeroHash, err
			}
		}
		return sha1, nil
	}

	dest := s.path(sha1)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return types.ZeroHash, err
	}
	if err := fsutil.AtomicWriteFile(dest, data, 0644); err != nil {
		return types.ZeroHash, err
	}
	trail.OnUndo(func() { _ = os.Remove(dest) })

	if err := b.Put(key, encodeRow(row{Size: int64(len(data)), RefCount: 1})); err != nil {
		return types.ZeroHash, err
	}
	if !md5.IsZero() {
		if err := m.Put([]byte(md5.String()), key); err != nil {
			return types.ZeroHash, err
		}
	}
	return sha1, nil
}

// Read returns the full content addressed by sha1.
func (s *Store) Read(trail *kvtxn.Trail, sha1 types.Hash) ([]byte, error) {
	if err := s.Check(trail, sha1); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(sha1))
	if err != nil {
		return nil, fmt.Errorf("pristine: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Check verifies sha1 is present both as a PRISTINE row and as a file
// on disk, failing if either is missing. Unlike the original (which
// gates this full check behind an assertion build), this store always
// performs both checks -- the debug-only invariant promoted to
// always-on, per the Open Question resolution in SPEC_FULL.md.
func (s *Store) Check(trail *kvtxn.Trail, sha1 types.Hash) error {
	b, err := bucket(trail.Tx)
	if err != nil {
		return err
	}
	if b.Get([]byte(sha1.String())) == nil {
		return types.NewError(types.KindNoSuchPristine, sha1.String(), nil)
	}
	if _, err := os.Stat(s.path(sha1)); err != nil {
		if os.IsNotExist(err) {
			return types.NewError(types.KindNoSuchPristine, sha1.String(), err)
		}
		return err
	}
	return nil
}

// GetMD5 resolves sha1 back to the MD5 under which it was last
// installed, by linear scan of the secondary index (the index is keyed
// md5->sha1, so the reverse direction is not a point lookup --
// acceptable because a working copy rarely holds more than a few
// thousand distinct pristines).
func (s *Store) GetMD5(trail *kvtxn.Trail, sha1 types.Hash) (types.Hash, error) {
	m, err := md5Bucket(trail.Tx)
	if err != nil {
		return types.ZeroHash, err
	}
	target := []byte(sha1.String())
	c := m.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if string(v) == string(target) {
			return types.HashFromHex(string(k))
		}
	}
	return types.ZeroHash, types.NewError(types.KindNoSuchPristine, sha1.String(), nil)
}

// GetSHA1 resolves a known MD5 checksum to its SHA-1 address, the
// transitional lookup path described by svn_wc__db_pristine_get_sha1.
func (s *Store) GetSHA1(trail *kvtxn.Trail, md5 types.Hash) (types.Hash, error) {
	m, err := md5Bucket(trail.Tx)
	if err != nil {
		return types.ZeroHash, err
	}
	v := m.Get([]byte(md5.String()))
	if v == nil {
		return types.ZeroHash, types.NewError(types.KindNoSuchPristine, md5.String(), nil)
	}
	return types.HashFromHex(string(v))
}

// Remove decrements sha1's refcount, deleting both the PRISTINE row and
// the on-disk file once it reaches zero -- mirroring
// pristine_remove_if_unreferenced_txn's "remove the DB row, if refcount
// is 0" behavior.
func (s *Store) Remove(trail *kvtxn.Trail, sha1 types.Hash) error {
	b, err := bucket(trail.Tx)
	if err != nil {
		return err
	}
	key := []byte(sha1.String())
	existing := b.Get(key)
	if existing == nil {
		return types.NewError(types.KindNoSuchPristine, sha1.String(), nil)
	}
	r, err := decodeRow(existing)
	if err != nil {
		return err
	}
	r.RefCount--
	if r.RefCount > 0 {
		return b.Put(key, encodeRow(r))
	}
	if err := b.Delete(key); err != nil {
		return err
	}
	path := s.path(sha1)
	trail.OnUndo(func() { _ = b.Put(key, existing) })
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Cleanup walks every row with RefCount <= 0 and removes its on-disk
// file, reconciling the store after a crash left orphaned rows (the
// refcounted-store analogue of svn_wc__db_pristine_cleanup's general
// "remove stale pristines" sweep, simplified here because this store
// keeps rows and files in lockstep on every path except a mid-Remove
// crash between the DB delete and the file unlink).
func (s *Store) Cleanup(trail *kvtxn.Trail) error {
	b, err := bucket(trail.Tx)
	if err != nil {
		return err
	}
	c := b.Cursor()
	var stale [][]byte
	for k, v := c.First(); k != nil; k, v = c.Next() {
		r, err := decodeRow(v)
		if err != nil {
			return err
		}
		if r.RefCount <= 0 {
			stale = append(stale, append([]byte(nil), k...))
		}
	}
	for _, k := range stale {
		sha1, err := types.HashFromHex(string(k))
		if err != nil {
			return err
		}
		if err := b.Delete(k); err != nil {
			return err
		}
		if err := os.Remove(s.path(sha1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
