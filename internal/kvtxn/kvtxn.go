// Package kvtxn implements the Transaction Runner: it runs a
// caller-supplied body inside a bbolt read-write transaction, commits on
// success, and on a request to retry (the body returning types.ErrConflict)
// runs the body's registered in-memory undo callbacks in LIFO order and
// retries, running the body at most MaxRetries times in total.
//
// This is the Go translation of the legacy "trail" mechanism: the
// original ran against Berkeley DB, where two trails could genuinely
// deadlock against each other and the retry existed to paper over that.
// bbolt serializes all writers through a single mutex, so a true
// deadlock cannot occur; what remains of the original contract is the
// retry-on-conflict loop for bodies that detect an optimistic race
// themselves (for example bumping a next-key counter and discovering
// another write already claimed it) and the undo-callback bookkeeping,
// which still matters for reverting process-local caches on abort.
package kvtxn

import (
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"wcengine/internal/wclog"
	"wcengine/pkg/types"
)

// MaxRetries bounds the deadlock/conflict retry loop. The original BDB
// trail retried unboundedly (svn_fs__retry_txn's `for(;;)`); an
// unbounded retry is not acceptable in production Go, so this rewrite
// imposes an explicit cap -- a deliberate redesign, not a silent
// behavior change (see DESIGN.md Open Questions).
const MaxRetries = 25

// Trail is the live transaction handle passed to a transaction body. It
// wraps the bbolt write transaction and an in-memory undo-callback
// stack.
type Trail struct {
	Tx   *bbolt.Tx
	undo []func()
}

// OnUndo registers an in-memory compensating action, run in LIFO order
// if the enclosing transaction is aborted (either for retry or for
// final failure). Undo callbacks revert cached state only; they must
// never fail, and they never touch persistent data -- that is the KV
// store's own rollback responsibility.
func (t *Trail) OnUndo(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *Trail) runUndo() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// Runner opens bbolt transactions against a single *bbolt.DB.
type Runner struct {
	DB *bbolt.DB
}

// NewRunner wraps db for transactional use.
func NewRunner(db *bbolt.DB) *Runner {
	return &Runner{DB: db}
}

// Do runs body inside a write transaction: on success it commits; on
// types.ErrConflict it runs undo callbacks and retries (the body runs at
// most MaxRetries times in total); on any other error it runs undo callbacks and returns
// the first error encountered.
func (r *Runner) Do(body func(trail *Trail) error) error {
	var firstErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		var trail *Trail
		err := r.DB.Update(func(tx *bbolt.Tx) error {
			trail = &Trail{Tx: tx}
			return body(trail)
		})
		if err == nil {
			return nil
		}
		if trail != nil {
			trail.runUndo()
		}
		if errors.Is(err, types.ErrConflict) {
			firstErr = err
			wclog.WithComponent("kvtxn").Warn(fmt.Sprintf("conflict on attempt %d, retrying", attempt+1))
			continue
		}
		return err
	}
	return fmt.Errorf("kvtxn: exceeded %d retries: %w", MaxRetries, firstErr)
}

// View runs a read-only body against the current snapshot. There is no
// retry/undo machinery for reads: a read transaction cannot conflict.
func (r *Runner) View(body func(tx *bbolt.Tx) error) error {
	return r.DB.View(body)
}
