// Package lockmgr implements hierarchical two-phase locking over tables
// and rows: five lock modes, a symmetric compatibility matrix, FIFO
// batch-granting with upgrade priority, isolation-level-gated admission,
// and a background deadlock detector. Each table and row has its own
// request queue guarded by a sync.Cond; a waiter blocks on the condvar and
// is woken whenever the queue's grant state might have changed, rather
// than polling.
package lockmgr

import (
	"sync"

	"github.com/WJSGDBZ/busTub/config"
	"github.com/WJSGDBZ/busTub/txn"
)

// Manager grants and releases table and row locks on behalf of
// transactions, aborting a transaction (by returning an *AbortError)
// whenever the 2PL or isolation-level rules forbid a request rather than
// blocking forever.
type Manager struct {
	tableMu     sync.Mutex
	tableQueues map[int64]*queue

	rowMu     sync.Mutex
	rowQueues map[rowKey]*queue

	abortMu sync.Mutex
	aborted map[int64]struct{}

	txnMu sync.Mutex
	txns  map[int64]*txn.Transaction

	detector *deadlockDetector
}

type rowKey struct {
	table int64
	row   int64
}

// NewManager constructs a lock manager and starts its background deadlock
// detector. Call Close to stop the detector goroutine.
func NewManager() *Manager {
	m := &Manager{
		tableQueues: make(map[int64]*queue),
		rowQueues:   make(map[rowKey]*queue),
		aborted:     make(map[int64]struct{}),
		txns:        make(map[int64]*txn.Transaction),
	}
	m.detector = newDeadlockDetector(m)
	m.detector.start()
	return m
}

// Close stops the background deadlock detector.
func (m *Manager) Close() {
	m.detector.stop()
}

func (m *Manager) tableQueue(tableOID int64) *queue {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	q, ok := m.tableQueues[tableOID]
	if !ok {
		q = newQueue()
		m.tableQueues[tableOID] = q
	}
	return q
}

// registerTxn records t under its id so a later abortTxn (e.g. from the
// deadlock detector, which only has a bare txn id from the wait-for graph)
// can reach t's actual state.
func (m *Manager) registerTxn(t *txn.Transaction) {
	m.txnMu.Lock()
	m.txns[t.ID] = t
	m.txnMu.Unlock()
}

func (m *Manager) lookupTxn(txnID int64) *txn.Transaction {
	m.txnMu.Lock()
	defer m.txnMu.Unlock()
	return m.txns[txnID]
}

// abortTxn flags txnID as deadlock-aborted, sets its transaction's state to
// ABORTED, and wakes every queue so its waiting goroutine (if any) notices
// and unwinds.
func (m *Manager) abortTxn(txnID int64) {
	m.abortMu.Lock()
	m.aborted[txnID] = struct{}{}
	m.abortMu.Unlock()

	if t := m.lookupTxn(txnID); t != nil {
		t.SetState(txn.Aborted)
	}

	m.tableMu.Lock()
	tableQs := make([]*queue, 0, len(m.tableQueues))
	for _, q := range m.tableQueues {
		tableQs = append(tableQs, q)
	}
	m.tableMu.Unlock()
	for _, q := range tableQs {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	}

	m.rowMu.Lock()
	rowQs := make([]*queue, 0, len(m.rowQueues))
	for _, q := range m.rowQueues {
		rowQs = append(rowQs, q)
	}
	m.rowMu.Unlock()
	for _, q := range rowQs {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

func (m *Manager) isAborted(txnID int64) bool {
	m.abortMu.Lock()
	defer m.abortMu.Unlock()
	_, ok := m.aborted[txnID]
	return ok
}

func (m *Manager) clearAborted(txnID int64) {
	m.abortMu.Lock()
	delete(m.aborted, txnID)
	m.abortMu.Unlock()
}

// removeRequestLocked drops txnID's request from q.requests. Must be
// called with q.mu held.
func removeRequestLocked(q *queue, txnID int64) {
	for i, r := range q.requests {
		if r.txnID == txnID {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			return
		}
	}
}

func (m *Manager) rowQueue(tableOID, rowID int64) *queue {
	key := rowKey{tableOID, rowID}
	m.rowMu.Lock()
	defer m.rowMu.Unlock()
	q, ok := m.rowQueues[key]
	if !ok {
		q = newQueue()
		m.rowQueues[key] = q
	}
	return q
}

// checkIsolationForAcquire enforces which lock modes a transaction's
// isolation level permits it to request at all, and whether the
// transaction's 2PL state currently allows acquiring locks.
func checkIsolationForAcquire(t *txn.Transaction, mode txn.LockMode) error {
	t.Lock()
	state, level := t.State, t.IsolationLevel
	t.Unlock()

	if state == txn.Shrinking {
		switch level {
		case txn.ReadCommitted:
			// READ_COMMITTED permits acquiring S/IS locks during shrinking
			// (to support unlocking X early without losing protection on
			// reads already in flight); X/IX are still forbidden.
			if mode == txn.Exclusive || mode == txn.IntentionExclusive || mode == txn.SharedIntentionExclusive {
				return &AbortError{TxnID: t.ID, Reason: AbortLockOnShrinking}
			}
		default:
			return &AbortError{TxnID: t.ID, Reason: AbortLockOnShrinking}
		}
	}
	if state == txn.Committed || state == txn.Aborted {
		return &AbortError{TxnID: t.ID, Reason: AbortLockOnShrinking}
	}
	if level == txn.ReadUncommitted && (mode == txn.Shared || mode == txn.IntentionShared || mode == txn.SharedIntentionExclusive) {
		return &AbortError{TxnID: t.ID, Reason: AbortLockSharedOnReadUncommitted}
	}
	return nil
}

// LockTable acquires tableOID in mode on behalf of t, blocking until
// granted or aborting t if the request is disallowed or deadlocked.
func (m *Manager) LockTable(t *txn.Transaction, tableOID int64, mode txn.LockMode) error {
	m.registerTxn(t)
	if t.HoldsTableLock(tableOID, mode) {
		return nil
	}
	if err := checkIsolationForAcquire(t, mode); err != nil {
		return err
	}

	q := m.tableQueue(tableOID)
	q.mu.Lock()

	var existing *request
	for _, r := range q.requests {
		if r.txnID == t.ID {
			existing = r
			break
		}
	}

	if existing != nil {
		if existing.mode == mode {
			q.mu.Unlock()
			return nil
		}
		if !canUpgrade(existing.mode, mode) {
			q.mu.Unlock()
			return &AbortError{TxnID: t.ID, Reason: AbortIncompatibleUpgrade}
		}
		if q.upgrading != config.InvalidTxnID && q.upgrading != t.ID {
			q.mu.Unlock()
			return &AbortError{TxnID: t.ID, Reason: AbortUpgradeConflict}
		}
		t.ForgetTableLock(tableOID, existing.mode)
		existing.mode = mode
		existing.granted = false
		q.upgrading = t.ID
	} else {
		existing = &request{txnID: t.ID, mode: mode}
		q.requests = append(q.requests, existing)
	}

	for !existing.granted {
		if q.tryGrantLocked() {
			q.cond.Broadcast()
		}
		if existing.granted {
			break
		}
		if m.isAborted(t.ID) {
			removeRequestLocked(q, t.ID)
			q.tryGrantLocked()
			q.cond.Broadcast()
			q.mu.Unlock()
			m.clearAborted(t.ID)
			return &AbortError{TxnID: t.ID, Reason: AbortDeadlock}
		}
		q.cond.Wait()
	}
	q.mu.Unlock()

	t.RecordTableLock(tableOID, mode)
	return nil
}

// UnlockTable releases tableOID, transitioning t to SHRINKING: always on
// releasing an Exclusive lock, or on releasing any lock at all under
// REPEATABLE_READ. It refuses to release a table lock while t still holds
// row locks on that table.
func (m *Manager) UnlockTable(t *txn.Transaction, tableOID int64) error {
	mode, held := heldTableMode(t, tableOID)
	if !held {
		return &AbortError{TxnID: t.ID, Reason: AbortAttemptedUnlockButNoLockHeld}
	}
	if t.RowLocksHeld(tableOID) > 0 {
		return &AbortError{TxnID: t.ID, Reason: AbortTableUnlockedBeforeUnlockingRows}
	}

	q := m.tableQueue(tableOID)
	q.mu.Lock()
	for i, r := range q.requests {
		if r.txnID == t.ID {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			break
		}
	}
	q.tryGrantLocked()
	q.cond.Broadcast()
	q.mu.Unlock()

	t.ForgetTableLock(tableOID, mode)
	t.Lock()
	state := t.State
	t.Unlock()
	if state == txn.Growing && (mode == txn.Exclusive || t.IsolationLevel == txn.RepeatableRead) {
		t.SetState(txn.Shrinking)
	}
	return nil
}

func heldTableMode(t *txn.Transaction, tableOID int64) (txn.LockMode, bool) {
	for _, mode := range []txn.LockMode{txn.Shared, txn.Exclusive, txn.IntentionShared, txn.IntentionExclusive, txn.SharedIntentionExclusive} {
		if t.HoldsTableLock(tableOID, mode) {
			return mode, true
		}
	}
	return 0, false
}

// LockRow acquires rowID of tableOID in mode on behalf of t. Row locks in
// S or X require t to already hold a compatible intention (or stronger)
// lock on the table itself: any table lock for a row S, and IX, SIX or X
// for a row X.
func (m *Manager) LockRow(t *txn.Transaction, tableOID, rowID int64, mode txn.LockMode) error {
	m.registerTxn(t)
	if mode != txn.Shared && mode != txn.Exclusive {
		return &AbortError{TxnID: t.ID, Reason: AbortAttemptedIntentionLockOnRow}
	}
	if t.HoldsRowLock(tableOID, rowID, mode) {
		return nil
	}
	if mode == txn.Exclusive {
		if !t.HoldsTableLock(tableOID, txn.IntentionExclusive) &&
			!t.HoldsTableLock(tableOID, txn.SharedIntentionExclusive) &&
			!t.HoldsTableLock(tableOID, txn.Exclusive) {
			return &AbortError{TxnID: t.ID, Reason: AbortTableLockNotPresent}
		}
	} else if !t.HoldsAnyTableLock(tableOID) {
		return &AbortError{TxnID: t.ID, Reason: AbortTableLockNotPresent}
	}
	if err := checkIsolationForAcquire(t, mode); err != nil {
		return err
	}

	q := m.rowQueue(tableOID, rowID)
	q.mu.Lock()

	var existing *request
	for _, r := range q.requests {
		if r.txnID == t.ID {
			existing = r
			break
		}
	}
	if existing != nil {
		if existing.mode == mode {
			q.mu.Unlock()
			return nil
		}
		if !canUpgrade(existing.mode, mode) {
			q.mu.Unlock()
			return &AbortError{TxnID: t.ID, Reason: AbortIncompatibleUpgrade}
		}
		if q.upgrading != config.InvalidTxnID && q.upgrading != t.ID {
			q.mu.Unlock()
			return &AbortError{TxnID: t.ID, Reason: AbortUpgradeConflict}
		}
		t.ForgetRowLock(tableOID, rowID, existing.mode)
		existing.mode = mode
		existing.granted = false
		q.upgrading = t.ID
	} else {
		existing = &request{txnID: t.ID, mode: mode}
		q.requests = append(q.requests, existing)
	}

	for !existing.granted {
		if q.tryGrantLocked() {
			q.cond.Broadcast()
		}
		if existing.granted {
			break
		}
		if m.isAborted(t.ID) {
			removeRequestLocked(q, t.ID)
			q.tryGrantLocked()
			q.cond.Broadcast()
			q.mu.Unlock()
			m.clearAborted(t.ID)
			return &AbortError{TxnID: t.ID, Reason: AbortDeadlock}
		}
		q.cond.Wait()
	}
	q.mu.Unlock()

	t.RecordRowLock(tableOID, rowID, mode)
	return nil
}

// UnlockRow releases rowID of tableOID.
func (m *Manager) UnlockRow(t *txn.Transaction, tableOID, rowID int64) error {
	var mode txn.LockMode
	var held bool
	if t.HoldsRowLock(tableOID, rowID, txn.Shared) {
		mode, held = txn.Shared, true
	} else if t.HoldsRowLock(tableOID, rowID, txn.Exclusive) {
		mode, held = txn.Exclusive, true
	}
	if !held {
		return &AbortError{TxnID: t.ID, Reason: AbortAttemptedUnlockButNoLockHeld}
	}

	q := m.rowQueue(tableOID, rowID)
	q.mu.Lock()
	for i, r := range q.requests {
		if r.txnID == t.ID {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			break
		}
	}
	q.tryGrantLocked()
	q.cond.Broadcast()
	q.mu.Unlock()

	t.ForgetRowLock(tableOID, rowID, mode)
	t.Lock()
	state := t.State
	t.Unlock()
	if state == txn.Growing && (mode == txn.Exclusive || t.IsolationLevel == txn.RepeatableRead) {
		t.SetState(txn.Shrinking)
	}
	return nil
}
