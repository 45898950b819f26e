// Package reptab implements the Representations Table: it maps a
// representation id to a typed description referencing one or more
// string-table keys, allocating new ids from an independent next-key
// counter the same way the Strings Table does. This is the Go
// translation of libsvn_fs/bdb/reps-table.c.
package reptab

import (
	"fmt"
	"strconv"

	"go.etcd.io/bbolt"

	"wcengine/internal/kvtxn"
	"wcengine/pkg/skel"
	"wcengine/pkg/types"
)

var bucketName = []byte("representations")

const nextKeyMetaKey = "next-key"

// Kind distinguishes a fulltext representation (one string key holds
// the entire content) from a delta representation (a diff against a
// base representation).
type Kind int

const (
	KindFulltext Kind = iota
	KindDelta
)

func (k Kind) String() string {
	if k == KindDelta {
		return "delta"
	}
	return "fulltext"
}

// Representation is the in-memory form of a representations-table
// value; the on-disk encoding is a skel (see encode/decode below).
type Representation struct {
	Kind      Kind
	Checksum  types.Hash
	Size      int64
	StringKey string
	DeltaBase string // only meaningful when Kind == KindDelta
}

func encode(r Representation) []byte {
	children := []skel.Skel{
		skel.NewAtomString(r.Kind.String()),
		skel.NewAtomString(r.Checksum.String()),
		skel.NewAtomString(strconv.FormatInt(r.Size, 10)),
		skel.NewAtomString(r.StringKey),
	}
	if r.Kind == KindDelta {
		children = append(children, skel.NewAtomString(r.DeltaBase))
	}
	return skel.Unparse(skel.NewList(children...))
}

func decode(data []byte) (Representation, error) {
	s, err := skel.Parse(data)
	if err != nil {
		return Representation{}, fmt.Errorf("reptab: %w", err)
	}
	if s.IsAtom() || s.Len() < 4 {
		return Representation{}, fmt.Errorf("reptab: %w: malformed representation skel", types.ErrNotFound)
	}
	var r Representation
	switch s.At(0).Str() {
	case "delta":
		r.Kind = KindDelta
	default:
		r.Kind = KindFulltext
	}
	checksum, err := types.HashFromHex(s.At(1).Str())
	if err != nil {
		return Representation{}, fmt.Errorf("reptab: %w", err)
	}
	r.Checksum = checksum
	size, err := strconv.ParseInt(s.At(2).Str(), 10, 64)
	if err != nil {
		return Representation{}, fmt.Errorf("reptab: %w", err)
	}
	r.Size = size
	r.StringKey = s.At(3).Str()
	if r.Kind == KindDelta {
		if s.Len() < 5 {
			return Representation{}, fmt.Errorf("reptab: %w: delta rep missing base", types.ErrNotFound)
		}
		r.DeltaBase = s.At(4).Str()
	}
	return r, nil
}

// Store is the Representations Table, bound to one bbolt bucket.
type Store struct{}

// New returns a Representations Table accessor.
func New() *Store { return &Store{} }

// EnsureBucket creates the backing bucket and seeds the next-key row.
func EnsureBucket(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName)
		if err != nil {
			return err
		}
		if b.Get([]byte(nextKeyMetaKey)) == nil {
			if err := b.Put([]byte(nextKeyMetaKey), []byte("0")); err != nil {
				return err
			}
		}
		return nil
	})
}

func bucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	b := tx.Bucket(bucketName)
	if b == nil {
		return nil, fmt.Errorf("reptab: bucket not initialized, call EnsureBucket first")
	}
	return b, nil
}

// Read looks up key, decoding its skel value.
func (s *Store) Read(trail *kvtxn.Trail, key string) (Representation, error) {
	b, err := bucket(trail.Tx)
	if err != nil {
		return Representation{}, err
	}
	v := b.Get([]byte(key))
	if v == nil {
		return Representation{}, types.NewError(types.KindNoSuchRepresentation, key, nil)
	}
	return decode(v)
}

// Write stores rep under the existing key, overwriting any prior value.
func (s *Store) Write(trail *kvtxn.Trail, key string, rep Representation) error {
	b, err := bucket(trail.Tx)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), encode(rep))
}

// WriteNew allocates a fresh id and stores rep under it.
//
// The id bump happens inside the same transaction as the write, exactly
// as svn_fs__bdb_write_new_rep does -- carrying forward the source's own
// `### todo: see issue #409` comment. Because the bump and the write
// share one bbolt transaction, an aborted or retried attempt (see
// internal/kvtxn) rolls the counter back together with the write, so no
// key is consumed by an attempt that does not commit.
func (s *Store) WriteNew(trail *kvtxn.Trail, rep Representation) (string, error) {
	b, err := bucket(trail.Tx)
	if err != nil {
		return "", err
	}
	key := string(b.Get([]byte(nextKeyMetaKey)))
	if key == "" {
		key = "0"
	}
	if err := b.Put([]byte(nextKeyMetaKey), []byte(nextKey(key))); err != nil {
		return "", err
	}
	if err := b.Put([]byte(key), encode(rep)); err != nil {
		return "", err
	}
	return key, nil
}

// Delete removes key, failing NoSuchRepresentation if it was absent.
func (s *Store) Delete(trail *kvtxn.Trail, key string) error {
	b, err := bucket(trail.Tx)
	if err != nil {
		return err
	}
	if b.Get([]byte(key)) == nil {
		return types.NewError(types.KindNoSuchRepresentation, key, nil)
	}
	return b.Delete([]byte(key))
}

// nextKey computes the successor of a base-36 monotonic key; identical
// scheme to strtab's allocator, kept as an unexported duplicate here
// because the representations and strings tables each own an
// independent next-key counter, per spec.md 4.3.
func nextKey(s string) string {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		idx := 0
		for j := 0; j < len(digits); j++ {
			if digits[j] == b[i] {
				idx = j
				break
			}
		}
		if idx < len(digits)-1 {
			b[i] = digits[idx+1]
			return string(b)
		}
		b[i] = digits[0]
	}
	return "1" + string(b)
}
