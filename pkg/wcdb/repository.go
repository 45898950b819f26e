package wcdb

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"wcengine/internal/kvtxn"
	"wcengine/pkg/types"
)

// Repository is one REPOSITORY row (spec.md §6.2): a root URL paired
// with the repository's UUID, looked up by either.
type Repository struct {
	ID      int64
	RootURL string
	UUID    uuid.UUID
}

var reposNextKey = []byte("next-id")

func encodeRepository(r Repository) []byte {
	return []byte(strings.Join([]string{r.RootURL, r.UUID.String()}, "\x01"))
}

func decodeRepository(id int64, data []byte) (Repository, error) {
	parts := strings.SplitN(string(data), "\x01", 2)
	if len(parts) != 2 {
		return Repository{}, types.NewError(types.KindCorrupt, "", nil)
	}
	id2, err := uuid.Parse(parts[1])
	if err != nil {
		return Repository{}, err
	}
	return Repository{ID: id, RootURL: parts[0], UUID: id2}, nil
}

// EnsureRepository looks up rootURL, returning its existing row, or
// registers a fresh one (with a freshly generated UUID, mirroring a
// local `init` that has no remote repository to ask) if none exists.
func (s *Store) EnsureRepository(trail *kvtxn.Trail, rootURL string) (Repository, error) {
	if r, ok, err := s.LookupRepositoryByURL(trail.Tx, rootURL); err != nil {
		return Repository{}, err
	} else if ok {
		return r, nil
	}

	b, err := bucket(trail.Tx, reposBucket)
	if err != nil {
		return Repository{}, err
	}
	id, err := nextID(b)
	if err != nil {
		return Repository{}, err
	}
	repo := Repository{ID: id, RootURL: rootURL, UUID: uuid.New()}
	if err := b.Put(idKey(id), encodeRepository(repo)); err != nil {
		return Repository{}, err
	}
	return repo, nil
}

func (s *Store) LookupRepositoryByURL(tx *bbolt.Tx, rootURL string) (Repository, bool, error) {
	b, err := bucket(tx, reposBucket)
	if err != nil {
		return Repository{}, false, err
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if string(k) == string(reposNextKey) {
			continue
		}
		repo, err := decodeRepository(idFromKey(k), v)
		if err != nil {
			return Repository{}, false, err
		}
		if repo.RootURL == rootURL {
			return repo, true, nil
		}
	}
	return Repository{}, false, nil
}

// soleRepository returns the WC's repository row. This engine keeps
// exactly one REPOSITORY row per working copy (EnsureRepository is
// only ever called once, from `wcctl init`), so callers that need the
// WC root's URL but don't have a relpath-scoped node to start from can
// just take whichever row is there.
func (s *Store) soleRepository(tx *bbolt.Tx) (Repository, bool, error) {
	b, err := bucket(tx, reposBucket)
	if err != nil {
		return Repository{}, false, err
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if string(k) == string(reposNextKey) {
			continue
		}
		repo, err := decodeRepository(idFromKey(k), v)
		if err != nil {
			return Repository{}, false, err
		}
		return repo, true, nil
	}
	return Repository{}, false, nil
}

func (s *Store) GetRepository(tx *bbolt.Tx, id int64) (Repository, error) {
	b, err := bucket(tx, reposBucket)
	if err != nil {
		return Repository{}, err
	}
	v := b.Get(idKey(id))
	if v == nil {
		return Repository{}, types.NewError(types.KindCorrupt, "", nil)
	}
	return decodeRepository(id, v)
}

func idKey(id int64) []byte {
	return []byte("id:" + strconv.FormatInt(id, 10))
}

func idFromKey(k []byte) int64 {
	n, _ := strconv.ParseInt(strings.TrimPrefix(string(k), "id:"), 10, 64)
	return n
}

// nextID implements the same cursor-overwrite monotonic allocator
// idiom the strings/representations tables use for their `next-key`
// row, generalized from base-36 string keys to a plain int64 counter.
func nextID(b *bbolt.Bucket) (int64, error) {
	v := b.Get(reposNextKey)
	var next int64 = 1
	if v != nil {
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, err
		}
		next = n
	}
	if err := b.Put(reposNextKey, []byte(strconv.FormatInt(next+1, 10))); err != nil {
		return 0, err
	}
	return next, nil
}
