package lockmgr

import (
	"sync"

	"github.com/WJSGDBZ/busTub/config"
	"github.com/WJSGDBZ/busTub/txn"
)

// request is one pending or granted lock request in a queue.
type request struct {
	txnID   int64
	mode    txn.LockMode
	granted bool
}

// queue is the FIFO list of requests contending for one resource (a table
// oid or a table,row pair). Grant order follows BusTub's LockRequestQueue:
// requests are granted front-to-back as long as each is compatible with
// every already-granted request ahead of it, and the transaction
// currently upgrading (if any) jumps to the front of that scan.
type queue struct {
	mu          sync.Mutex
	cond        *sync.Cond
	requests    []*request
	upgrading   int64 // txn id currently upgrading this queue, or InvalidTxnID
}

func newQueue() *queue {
	q := &queue{upgrading: config.InvalidTxnID}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// tryGrantLocked attempts to grant as many front-of-queue requests as
// compatibility allows. Must be called with q.mu held. Returns true if
// anything changed (so the caller knows to Broadcast).
func (q *queue) tryGrantLocked() bool {
	changed := false

	// A transaction mid-upgrade gets priority: its (upgraded) request,
	// still physically in the queue at its original position, is
	// considered before any request that arrived after it.
	granted := make([]txn.LockMode, 0, len(q.requests))
	for _, r := range q.requests {
		if !r.granted {
			continue
		}
		granted = append(granted, r.mode)
	}

	for _, r := range q.requests {
		if r.granted {
			continue
		}
		if q.upgrading != config.InvalidTxnID && r.txnID != q.upgrading {
			// While someone is upgrading, no other new request is granted
			// ahead of it, preserving the upgrade's priority.
			break
		}
		ok := true
		for _, h := range granted {
			if !compatible(h, r.mode) {
				ok = false
				break
			}
		}
		if !ok {
			break
		}
		r.granted = true
		granted = append(granted, r.mode)
		changed = true
		if q.upgrading == r.txnID {
			q.upgrading = config.InvalidTxnID
		}
	}
	return changed
}
