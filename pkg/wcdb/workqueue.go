package wcdb

import (
	"fmt"
	"strconv"

	"go.etcd.io/bbolt"

	"wcengine/internal/kvtxn"
	"wcengine/pkg/skel"
	"wcengine/pkg/types"
)

// WorkItem is one queued unit of post-transaction work (spec.md
// §4.10.10): an opaque skel, plus the auto-assigned id wq_fetch hands
// back so the caller can report completion.
type WorkItem struct {
	ID   int64
	Work skel.Skel
}

// WqAdd appends one work item. If work is a non-empty list whose
// elements are all lists (a "list of lists"), each inner list is enqueued
// as its own item -- the unpacking spec.md describes.
func (s *Store) WqAdd(trail *kvtxn.Trail, work skel.Skel) error {
	if !work.IsAtom() && work.Len() > 0 && allListChildren(work) {
		for _, item := range work.Children() {
			if err := s.wqAddOne(trail, item); err != nil {
				return err
			}
		}
		return nil
	}
	return s.wqAddOne(trail, work)
}

func allListChildren(s skel.Skel) bool {
	for _, c := range s.Children() {
		if c.IsAtom() {
			return false
		}
	}
	return true
}

func (s *Store) wqAddOne(trail *kvtxn.Trail, work skel.Skel) error {
	b, err := bucket(trail.Tx, workQueueBucket)
	if err != nil {
		return err
	}
	id, err := nextID(b)
	if err != nil {
		return err
	}
	return b.Put(workQueueKey(id), skel.Unparse(work))
}

// workQueueKey zero-pads id so that byte order of keys matches id order.
func workQueueKey(id int64) []byte {
	return []byte(fmt.Sprintf("item:%020d", id))
}

// WqFetch returns the lowest-id pending work item, or ok=false if the
// queue is empty. No ordering guarantee beyond "eventually seen" is
// promised beyond lowest-id-first, matching spec.md's contract.
func (s *Store) WqFetch(tx *bbolt.Tx) (WorkItem, bool, error) {
	b, err := bucket(tx, workQueueBucket)
	if err != nil {
		return WorkItem{}, false, err
	}
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if string(k) == string(workQueueNextKey) {
			continue
		}
		id := idFromPrefixedKey(k, "item:")
		work, err := skel.Parse(v)
		if err != nil {
			return WorkItem{}, false, types.NewError(types.KindCorrupt, "", err)
		}
		return WorkItem{ID: id, Work: work}, true, nil
	}
	return WorkItem{}, false, nil
}

// WqCompleted deletes a fetched work item by id.
func (s *Store) WqCompleted(trail *kvtxn.Trail, id int64) error {
	b, err := bucket(trail.Tx, workQueueBucket)
	if err != nil {
		return err
	}
	return b.Delete(workQueueKey(id))
}

// WqIsEmpty reports whether the work queue has no pending items.
// wcroot.Cache.Resolve does not call it: opening a working copy does
// not check the work queue.
func (s *Store) WqIsEmpty(tx *bbolt.Tx) (bool, error) {
	_, ok, err := s.WqFetch(tx)
	return !ok, err
}

func idFromPrefixedKey(k []byte, prefix string) int64 {
	n, _ := strconv.ParseInt(string(k[len(prefix):]), 10, 64)
	return n
}
