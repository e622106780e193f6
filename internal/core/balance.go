package core

import "sort"

// WithBalances returns a copy of the given transactions with every
// Balance recomputed from scratch. Entries are folded in (date asc,
// id asc) order: running += amount for cash-in, running -= amount for
// cash-out. The returned slice keeps that order.
//
// Input order does not matter; the fold always sorts first. This is the
// single source of truth for the running-balance invariant — storage
// and the consistency worker both derive balances through it.
func WithBalances(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})

	var running int64
	for i := range out {
		running += out[i].Type.Signed(out[i].Amount)
		out[i].Balance = Money{Cents: running}
	}
	return out
}
