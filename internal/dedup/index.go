package dedup

import (
	"time"

	"github.com/Veraticus/spice-reconcile/internal/model"
)

// DefaultDateToleranceDays is how far apart two dates may be and still name
// the same purchase.
const DefaultDateToleranceDays = 2

// CandidateIndex maps (date, absolute amount) keys to the existing
// transactions carrying them. It is built once per run and never mutated
// after construction.
type CandidateIndex struct {
	existing []model.Transaction
	buckets  map[string][]int
}

// BuildDateAmountIndex indexes every existing transaction under its primary
// date and, when distinct, its authorized and posted dates. Keys whose date
// does not parse are skipped, so a malformed transaction becomes harder to
// find rather than breaking the run.
func BuildDateAmountIndex(existing []model.Transaction) *CandidateIndex {
	idx := &CandidateIndex{
		existing: existing,
		buckets:  make(map[string][]int, len(existing)),
	}

	for i, tx := range existing {
		amount := tx.AbsAmountKey()
		for _, date := range tx.DateVariants() {
			if !validDate(date) {
				continue
			}
			key := indexKey(date, amount)
			if bucket := idx.buckets[key]; len(bucket) > 0 && bucket[len(bucket)-1] == i {
				continue
			}
			idx.buckets[key] = append(idx.buckets[key], i)
		}
	}

	return idx
}

// Len returns the number of indexed keys.
func (idx *CandidateIndex) Len() int {
	return len(idx.buckets)
}

// Transaction returns the existing transaction at position i.
func (idx *CandidateIndex) Transaction(i int) model.Transaction {
	return idx.existing[i]
}

// FindCandidates returns the positions of existing transactions with the same
// absolute amount as tx whose indexed date lies within toleranceDays of any of
// tx's dates. Results are unique and ordered by date offset, then by position
// within each bucket.
func (idx *CandidateIndex) FindCandidates(tx model.Transaction, toleranceDays int) []int {
	if toleranceDays < 0 {
		toleranceDays = 0
	}

	amount := tx.AbsAmountKey()
	var anchors []time.Time
	for _, date := range tx.DateVariants() {
		parsed, err := time.Parse(model.DateLayout, date)
		if err != nil {
			continue
		}
		anchors = append(anchors, parsed)
	}

	seen := make(map[int]bool)
	var candidates []int
	for offset := -toleranceDays; offset <= toleranceDays; offset++ {
		for _, anchor := range anchors {
			key := indexKey(anchor.AddDate(0, 0, offset).Format(model.DateLayout), amount)
			for _, pos := range idx.buckets[key] {
				if seen[pos] {
					continue
				}
				seen[pos] = true
				candidates = append(candidates, pos)
			}
		}
	}

	return candidates
}

// FindCandidateTransactions is FindCandidates returning the transactions
// themselves.
func (idx *CandidateIndex) FindCandidateTransactions(tx model.Transaction, toleranceDays int) []model.Transaction {
	positions := idx.FindCandidates(tx, toleranceDays)
	out := make([]model.Transaction, 0, len(positions))
	for _, pos := range positions {
		out = append(out, idx.existing[pos])
	}
	return out
}

func indexKey(date, absAmount string) string {
	return date + "|" + absAmount
}

func validDate(date string) bool {
	_, err := time.Parse(model.DateLayout, date)
	return err == nil
}
