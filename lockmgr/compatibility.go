package lockmgr

import "github.com/WJSGDBZ/busTub/txn"

// compatible reports whether a lock held in mode held can coexist with a
// lock requested in mode want. The table is symmetric by construction:
// compatible(a, b) == compatible(b, a).
func compatible(held, want txn.LockMode) bool {
	type pair struct {
		a, b txn.LockMode
	}
	// Only the incompatible pairs are listed; anything absent is
	// compatible. IS is compatible with everything except X. S is
	// compatible with IS and S. IX is compatible with IS and IX. SIX is
	// compatible with IS only. X is compatible with nothing.
	incompatible := map[pair]bool{
		{txn.Shared, txn.Exclusive}:                   true,
		{txn.Shared, txn.IntentionExclusive}:           true,
		{txn.Shared, txn.SharedIntentionExclusive}:     true,
		{txn.Exclusive, txn.Shared}:                    true,
		{txn.Exclusive, txn.Exclusive}:                 true,
		{txn.Exclusive, txn.IntentionShared}:            true,
		{txn.Exclusive, txn.IntentionExclusive}:        true,
		{txn.Exclusive, txn.SharedIntentionExclusive}:  true,
		{txn.IntentionExclusive, txn.Shared}:            true,
		{txn.IntentionExclusive, txn.Exclusive}:        true,
		{txn.IntentionExclusive, txn.SharedIntentionExclusive}: true,
		{txn.SharedIntentionExclusive, txn.Shared}:                   true,
		{txn.SharedIntentionExclusive, txn.Exclusive}:                true,
		{txn.SharedIntentionExclusive, txn.IntentionExclusive}:       true,
		{txn.SharedIntentionExclusive, txn.SharedIntentionExclusive}: true,
		{txn.IntentionShared, txn.Exclusive}: true,
	}
	return !incompatible[pair{held, want}]
}

// canUpgrade reports whether a transaction holding curr may request an
// upgrade to next, per the upgrade lattice: IS -> {S, X, IX, SIX}, S/IX ->
// SIX, SIX/S/IX -> X. Requesting the mode already held is handled by the
// caller (it's a no-op, not an upgrade).
func canUpgrade(curr, next txn.LockMode) bool {
	allowed := map[txn.LockMode]map[txn.LockMode]bool{
		txn.IntentionShared: {
			txn.Shared:                   true,
			txn.Exclusive:                true,
			txn.IntentionExclusive:       true,
			txn.SharedIntentionExclusive: true,
		},
		txn.Shared: {
			txn.Exclusive:                true,
			txn.SharedIntentionExclusive: true,
		},
		txn.IntentionExclusive: {
			txn.Exclusive:                true,
			txn.SharedIntentionExclusive: true,
		},
		txn.SharedIntentionExclusive: {
			txn.Exclusive: true,
		},
	}
	set, ok := allowed[curr]
	if !ok {
		return false
	}
	return set[next]
}
