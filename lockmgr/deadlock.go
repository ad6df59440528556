package lockmgr

import (
	"sort"
	"time"

	"github.com/WJSGDBZ/busTub/config"
)

// deadlockDetector periodically rebuilds the wait-for graph across every
// table and row queue and aborts the youngest transaction in any cycle it
// finds, mirroring BusTub's background RunDeadlockDetection thread. Table
// queues are collected before row queues on every pass; the detector
// releases the table-map mutex before taking the row-map mutex and locks
// one queue's mutex at a time, as LockTable/LockRow do.
type deadlockDetector struct {
	mgr    *Manager
	stopCh chan struct{}
	doneCh chan struct{}
}

func newDeadlockDetector(mgr *Manager) *deadlockDetector {
	return &deadlockDetector{mgr: mgr, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
}

func (d *deadlockDetector) start() {
	go d.run()
}

func (d *deadlockDetector) stop() {
	close(d.stopCh)
	<-d.doneCh
}

func (d *deadlockDetector) run() {
	defer close(d.doneCh)
	ticker := time.NewTicker(config.DeadlockDetectionIntervalMillis * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.detectAndAbort()
		}
	}
}

// waitForEdges collects, from a snapshot of one queue's requests, every
// (waiter, holder) pair where waiter is blocked behind an incompatible
// granted holder.
func waitForEdges(q *queue, edges map[int64]map[int64]struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var granted []*request
	for _, r := range q.requests {
		if r.granted {
			granted = append(granted, r)
		}
	}
	for _, r := range q.requests {
		if r.granted {
			continue
		}
		for _, g := range granted {
			if g.txnID == r.txnID {
				continue
			}
			if !compatible(g.mode, r.mode) {
				if edges[r.txnID] == nil {
					edges[r.txnID] = make(map[int64]struct{})
				}
				edges[r.txnID][g.txnID] = struct{}{}
			}
		}
	}
}

func (m *Manager) snapshotQueues() []*queue {
	m.tableMu.Lock()
	qs := make([]*queue, 0, len(m.tableQueues))
	for _, q := range m.tableQueues {
		qs = append(qs, q)
	}
	m.tableMu.Unlock()

	m.rowMu.Lock()
	for _, q := range m.rowQueues {
		qs = append(qs, q)
	}
	m.rowMu.Unlock()
	return qs
}

func (d *deadlockDetector) detectAndAbort() {
	edges := make(map[int64]map[int64]struct{})
	for _, q := range d.mgr.snapshotQueues() {
		waitForEdges(q, edges)
	}

	for {
		victim, found := findCycleVictim(edges)
		if !found {
			return
		}
		d.mgr.abortTxn(victim)
		delete(edges, victim)
		for _, targets := range edges {
			delete(targets, victim)
		}
	}
}

// findCycleVictim runs DFS from every node (in deterministic, sorted
// order) looking for a cycle, and returns the youngest (highest id)
// transaction participating in the first cycle found.
func findCycleVictim(edges map[int64]map[int64]struct{}) (int64, bool) {
	nodes := make([]int64, 0, len(edges))
	for n := range edges {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	visited := make(map[int64]bool)
	var path []int64
	onPath := make(map[int64]bool)

	var dfs func(n int64) (int64, bool)
	dfs = func(n int64) (int64, bool) {
		visited[n] = true
		onPath[n] = true
		path = append(path, n)

		targets := make([]int64, 0, len(edges[n]))
		for t := range edges[n] {
			targets = append(targets, t)
		}
		sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

		for _, t := range targets {
			if onPath[t] {
				// The cycle is t plus every node after it on the path.
				youngest := t
				for i := len(path) - 1; i >= 0 && path[i] != t; i-- {
					if path[i] > youngest {
						youngest = path[i]
					}
				}
				return youngest, true
			}
			if !visited[t] {
				if v, ok := dfs(t); ok {
					return v, true
				}
			}
		}

		onPath[n] = false
		path = path[:len(path)-1]
		return 0, false
	}

	for _, n := range nodes {
		if !visited[n] {
			if v, ok := dfs(n); ok {
				return v, true
			}
		}
	}
	return 0, false
}
