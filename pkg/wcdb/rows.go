package wcdb

import (
	"sort"

	"go.etcd.io/bbolt"

	"wcengine/internal/kvtxn"
)

// putNode writes (or overwrites) the row for relpath at row.OpDepth.
func putNode(trail *kvtxn.Trail, relpath string, row NodeRow) error {
	b, err := bucket(trail.Tx, nodesBucket)
	if err != nil {
		return err
	}
	return b.Put(nodeKey(relpath, row.OpDepth), encodeNodeRow(row))
}

// deleteNode removes the row for relpath at opDepth, if any.
func deleteNode(trail *kvtxn.Trail, relpath string, opDepth int) error {
	b, err := bucket(trail.Tx, nodesBucket)
	if err != nil {
		return err
	}
	return b.Delete(nodeKey(relpath, opDepth))
}

// rowsAt returns every row stored for relpath's identity, ordered by
// op_depth descending (highest/WORKING-most layer first).
func rowsAt(tx *bbolt.Tx, relpath string) ([]NodeRow, error) {
	b, err := bucket(tx, nodesBucket)
	if err != nil {
		return nil, err
	}
	var rows []NodeRow
	prefix := nodeKeyPrefix(relpath)
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		row, err := decodeNodeRow(v)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// highestRow returns the highest-op_depth row for relpath, or ok=false
// if no row exists at all.
func highestRow(tx *bbolt.Tx, relpath string) (NodeRow, bool, error) {
	rows, err := rowsAt(tx, relpath)
	if err != nil {
		return NodeRow{}, false, err
	}
	if len(rows) == 0 {
		return NodeRow{}, false, nil
	}
	return rows[0], true, nil
}

// baseRow returns the op_depth==0 row for relpath, if any.
func baseRow(tx *bbolt.Tx, relpath string) (NodeRow, bool, error) {
	rows, err := rowsAt(tx, relpath)
	if err != nil {
		return NodeRow{}, false, err
	}
	for _, r := range rows {
		if r.OpDepth == 0 {
			return r, true, nil
		}
	}
	return NodeRow{}, false, nil
}

// directChildren returns the relpaths of every identity that is a
// direct child of relpath and has at least one row.
func directChildren(tx *bbolt.Tx, relpath string) ([]string, error) {
	b, err := bucket(tx, nodesBucket)
	if err != nil {
		return nil, err
	}
	prefix := descendantPrefix(relpath)
	seen := map[string]bool{}
	var out []string
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && (prefix == nil || hasPrefix(k, prefix)); k, _ = c.Next() {
		path, _, err := splitNodeKey(k)
		if err != nil {
			return nil, err
		}
		rest := path
		if len(prefix) > 0 {
			rest = path[len(prefix):]
		}
		if i := indexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		var child string
		if relpath == "" {
			child = rest
		} else {
			child = relpath + "/" + rest
		}
		if !seen[child] && child != relpath {
			seen[child] = true
			out = append(out, child)
		}
	}
	sort.Strings(out)
	return out, nil
}

// descendantRelpaths returns every distinct identity strictly under
// relpath that has at least one row, ordered by relpath. If
// includeSelf, relpath itself is included first when it has rows.
func descendantRelpaths(tx *bbolt.Tx, relpath string, includeSelf bool) ([]string, error) {
	b, err := bucket(tx, nodesBucket)
	if err != nil {
		return nil, err
	}
	var out []string
	if includeSelf {
		if rows, err := rowsAt(tx, relpath); err != nil {
			return nil, err
		} else if len(rows) > 0 {
			out = append(out, relpath)
		}
	}
	prefix := descendantPrefix(relpath)
	seen := map[string]bool{}
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && (prefix == nil || hasPrefix(k, prefix)); k, _ = c.Next() {
		path, _, err := splitNodeKey(k)
		if err != nil {
			return nil, err
		}
		if !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

func hasPrefix(k, prefix []byte) bool {
	if len(prefix) == 0 {
		return true
	}
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}
