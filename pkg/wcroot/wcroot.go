// Package wcroot implements the WC-Root Resolver: given a directory
// inside a working copy, it walks upward looking for the admin
// directory's database, validates (and optionally auto-upgrades) its
// format version, and caches the result so a repeated lookup of the
// same directory doesn't re-walk the filesystem and an already-open
// root is reused.
//
// This corresponds to svn_wc__db_pdh_parse_local_abspath in
// libsvn_wc/wc_db_pdh.c: the per-process directory-handle (PDH) cache
// there is collapsed here into a single Cache keyed by absolute path,
// since this engine has no equivalent of Subversion's separate
// access-baton locking layer to keep in step with it (supplemental
// feature #3 in SPEC_FULL.md).
package wcroot

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.etcd.io/bbolt"

	"wcengine/pkg/types"
)

const (
	// AdminDirName is the working copy's administrative subdirectory,
	// analogous to Subversion's ".svn".
	AdminDirName = ".svnng"
	dbFileName   = "wc.db"

	// MinSupportedFormat is the oldest format this engine can still
	// read, auto-upgrading on open.
	MinSupportedFormat = 1
	// CurrentFormat is the format this engine writes.
	CurrentFormat = 2
)

var metaBucket = []byte("meta")

const formatKey = "format"

// Root is one open working copy root: its absolute path and the bbolt
// handle backing its metadata store.
type Root struct {
	AbsPath string
	DB      *bbolt.DB
	Format  int
}

type dirEntry struct {
	root    *Root
	relpath string
}

// Cache resolves directories to working-copy roots, caching both the
// open *Root (keyed by root abspath) and the directory-to-root mapping
// (keyed by the queried abspath) so a repeated Resolve of the same
// path is a map lookup. Any other path still walks upward, reusing the
// open *Root once it reaches that root.
type Cache struct {
	mu    sync.RWMutex
	roots map[string]*Root
	dirs  map[string]*dirEntry
}

// NewCache returns an empty resolver cache.
func NewCache() *Cache {
	return &Cache{roots: map[string]*Root{}, dirs: map[string]*dirEntry{}}
}

// Resolve walks upward from dirAbsPath looking for AdminDirName/wc.db,
// opening (or reusing a cached) *Root, and returns it along with
// dirAbsPath's path relative to the root. autoUpgrade controls whether
// an old-but-supported format is rewritten in place; when false, an old
// format yields KindUpgradeRequired instead.
func (c *Cache) Resolve(dirAbsPath string, autoUpgrade bool) (*Root, string, error) {
	dirAbsPath = filepath.Clean(dirAbsPath)

	c.mu.RLock()
	if e, ok := c.dirs[dirAbsPath]; ok {
		c.mu.RUnlock()
		return e.root, e.relpath, nil
	}
	c.mu.RUnlock()

	cur := dirAbsPath
	var segments []string
	for {
		adminPath := filepath.Join(cur, AdminDirName, dbFileName)
		if _, err := os.Stat(adminPath); err == nil {
			root, err := c.openRoot(cur, adminPath, autoUpgrade)
			if err != nil {
				return nil, "", err
			}
			relpath := reverseJoin(segments)

			c.mu.Lock()
			c.dirs[dirAbsPath] = &dirEntry{root: root, relpath: relpath}
			c.mu.Unlock()
			return root, relpath, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, "", types.NewError(types.KindNotWorkingCopy, dirAbsPath, nil)
		}
		segments = append(segments, filepath.Base(cur))
		cur = parent
	}
}

func reverseJoin(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[len(segments)-1-i] = s
	}
	return strings.Join(parts, "/")
}

func (c *Cache) openRoot(rootAbsPath, dbPath string, autoUpgrade bool) (*Root, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.roots[rootAbsPath]; ok {
		return r, nil
	}

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("wcroot: open %s: %w", dbPath, err)
	}

	format, err := readFormat(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	if format < MinSupportedFormat || format > CurrentFormat {
		db.Close()
		return nil, types.NewError(types.KindUnsupportedFormat, rootAbsPath,
			fmt.Errorf("format %d not in supported range [%d, %d]", format, MinSupportedFormat, CurrentFormat))
	}

	if format < CurrentFormat {
		if !autoUpgrade {
			db.Close()
			return nil, types.NewError(types.KindUpgradeRequired, rootAbsPath, nil)
		}
		if err := writeFormat(db, CurrentFormat); err != nil {
			db.Close()
			return nil, err
		}
		format = CurrentFormat
	}

	root := &Root{AbsPath: rootAbsPath, DB: db, Format: format}
	c.roots[rootAbsPath] = root
	return root, nil
}

func readFormat(db *bbolt.DB) (int, error) {
	var format int
	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if b == nil {
			return types.NewError(types.KindCorrupt, "", fmt.Errorf("missing meta bucket"))
		}
		v := b.Get([]byte(formatKey))
		if v == nil {
			return types.NewError(types.KindCorrupt, "", fmt.Errorf("missing format row"))
		}
		n, err := strconv.Atoi(string(v))
		if err != nil {
			return types.NewError(types.KindCorrupt, "", err)
		}
		format = n
		return nil
	})
	return format, err
}

func writeFormat(db *bbolt.DB, format int) error {
	return db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(formatKey), []byte(strconv.Itoa(format)))
	})
}

// InitRoot creates a fresh admin directory and wc.db at rootAbsPath,
// seeded with CurrentFormat, and returns the opened Root.
func InitRoot(rootAbsPath string) (*Root, error) {
	adminDir := filepath.Join(rootAbsPath, AdminDirName)
	if err := os.MkdirAll(adminDir, 0755); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(adminDir, dbFileName)
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, err
	}
	if err := writeFormat(db, CurrentFormat); err != nil {
		db.Close()
		return nil, err
	}
	return &Root{AbsPath: rootAbsPath, DB: db, Format: CurrentFormat}, nil
}

// FlushEntries drops the cached directory-to-root mapping for
// dirAbsPath (but keeps the underlying *Root and its DB handle open),
// forcing the next Resolve to recompute the relpath -- the equivalent
// of the original's per-PDH entry-cache invalidation.
func (c *Cache) FlushEntries(dirAbsPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.dirs, filepath.Clean(dirAbsPath))
}

// Close closes every open root's DB handle.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, r := range c.roots {
		if err := r.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.roots = map[string]*Root{}
	c.dirs = map[string]*dirEntry{}
	return firstErr
}
