// Demo program: builds a buffer-pool-backed B+tree index over a disk
// file, inserts and looks up a handful of rows, and exercises the lock
// manager across two concurrent transactions.
// Run: go run ./cmd/bustubdemo
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/WJSGDBZ/busTub/config"
	"github.com/WJSGDBZ/busTub/index/bptree"
	"github.com/WJSGDBZ/busTub/lockmgr"
	"github.com/WJSGDBZ/busTub/storage/buffer"
	"github.com/WJSGDBZ/busTub/storage/disk"
	"github.com/WJSGDBZ/busTub/txn"
)

const dbFile = "bustub_demo.db"

func main() {
	store, err := disk.OpenFileStore(dbFile)
	if err != nil {
		log.Fatalf("open disk store: %v", err)
	}
	defer store.Close()
	defer os.Remove(dbFile)

	bpm := buffer.NewPoolManager(config.DefaultPoolSize, config.DefaultReplacerK, store)

	tree, err := bptree.NewBPlusTree[int64](bpm, bptree.Int64Codec{}, bptree.CompareInt64, config.DefaultLeafMaxSize, config.DefaultInternalMaxSize)
	if err != nil {
		log.Fatalf("new bptree: %v", err)
	}

	fmt.Println("Inserting rows 1..20...")
	for i := int64(1); i <= 20; i++ {
		if err := tree.Insert(i, bptree.RID{PageID: i, SlotNum: 0}); err != nil {
			log.Fatalf("insert %d: %v", i, err)
		}
	}

	fmt.Println("Looking up row 7...")
	rid, ok, err := tree.GetValue(7)
	if err != nil {
		log.Fatalf("get 7: %v", err)
	}
	fmt.Printf("  found=%v rid=%s\n", ok, rid)

	fmt.Println("Removing row 7...")
	if err := tree.Remove(7); err != nil {
		log.Fatalf("remove 7: %v", err)
	}
	_, ok, _ = tree.GetValue(7)
	fmt.Printf("  still present=%v\n", ok)

	fmt.Println("\nWalking the remaining keys in order...")
	it, err := tree.BeginFirst()
	if err != nil {
		log.Fatalf("begin: %v", err)
	}
	for it.Valid() {
		k, v := it.Entry()
		fmt.Printf("  %d -> %s\n", k, v)
		if err := it.Next(); err != nil {
			log.Fatalf("next: %v", err)
		}
	}

	fmt.Println("\nAcquiring table and row locks across two transactions...")
	locks := lockmgr.NewManager()
	defer locks.Close()
	txns := txn.NewManager()

	t1 := txns.Begin(txn.RepeatableRead)
	t2 := txns.Begin(txn.RepeatableRead)

	const tableOID = 1
	if err := locks.LockTable(t1, tableOID, txn.IntentionShared); err != nil {
		log.Fatalf("t1 lock table: %v", err)
	}
	if err := locks.LockRow(t1, tableOID, 7, txn.Shared); err != nil {
		log.Fatalf("t1 lock row 7: %v", err)
	}
	if err := locks.LockTable(t2, tableOID, txn.IntentionShared); err != nil {
		log.Fatalf("t2 lock table: %v", err)
	}
	if err := locks.LockRow(t2, tableOID, 8, txn.Shared); err != nil {
		log.Fatalf("t2 lock row 8: %v", err)
	}
	fmt.Println("  t1 holds S(row 7), t2 holds S(row 8) — no conflict, both proceed")

	if err := locks.UnlockRow(t1, tableOID, 7); err != nil {
		log.Fatalf("t1 unlock row 7: %v", err)
	}
	if err := locks.UnlockTable(t1, tableOID); err != nil {
		log.Fatalf("t1 unlock table: %v", err)
	}
	if err := txns.Commit(t1); err != nil {
		log.Fatalf("commit t1: %v", err)
	}

	if err := locks.UnlockRow(t2, tableOID, 8); err != nil {
		log.Fatalf("t2 unlock row 8: %v", err)
	}
	if err := locks.UnlockTable(t2, tableOID); err != nil {
		log.Fatalf("t2 unlock table: %v", err)
	}
	if err := txns.Commit(t2); err != nil {
		log.Fatalf("commit t2: %v", err)
	}

	fmt.Println("\nDone.")
}
