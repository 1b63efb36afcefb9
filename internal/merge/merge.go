// Package merge reconciles two copies of a dataset.
//
// Records are resolved last-write-wins on their own LastModified stamp. Deletions are
// carried as tombstones, and a tombstone newer than a record's last modification removes
// that record from the result no matter which side it came from. A record modified after
// its tombstone survives (resurrection).
package merge

import (
	"bytes"
	"encoding/json"

	"github.com/dvloznov/cashflow-planner/internal/domain"
)

// Datasets merges local and remote and stamps the result with now.
//
// Record sets are merged symmetrically: swapping local and remote yields the same
// transactions, plans and tombstones. Scalar settings are taken wholesale from the
// dataset with the newer top-level stamp, preferring local on a tie.
func Datasets(local, remote domain.Dataset, now domain.Stamp) domain.Dataset {
	tombstones := Tombstones(local.DeletedIDs, remote.DeletedIDs)

	out := domain.Dataset{
		Transactions:  Transactions(local.Transactions, remote.Transactions, tombstones),
		Plans:         Plans(local.Plans, remote.Plans, tombstones),
		CycleStartDay: local.CycleStartDay,
		DeletedIDs:    tombstones,
		LastModified:  now,
	}
	if remote.LastModified > local.LastModified {
		out.CycleStartDay = remote.CycleStartDay
	}

	out.SortRecords()
	return out
}

// Tombstones returns the union of both maps, keeping the later stamp per id.
func Tombstones(a, b domain.Tombstones) domain.Tombstones {
	out := make(domain.Tombstones, len(a)+len(b))
	for id, ts := range a {
		out.Record(id, ts)
	}
	for id, ts := range b {
		out.Record(id, ts)
	}
	return out
}

// Transactions merges two transaction lists under the given tombstones.
func Transactions(a, b []domain.Transaction, tombstones domain.Tombstones) []domain.Transaction {
	return records(a, b, tombstones, func(t domain.Transaction) (string, domain.Stamp) {
		return t.ID, t.LastModified
	})
}

// Plans merges two plan lists under the given tombstones.
func Plans(a, b []domain.RecurringPlan, tombstones domain.Tombstones) []domain.RecurringPlan {
	return records(a, b, tombstones, func(p domain.RecurringPlan) (string, domain.Stamp) {
		return p.ID, p.LastModified
	})
}

func records[T any](a, b []T, tombstones domain.Tombstones, key func(T) (string, domain.Stamp)) []T {
	winners := make(map[string]T, len(a)+len(b))
	order := make([]string, 0, len(a)+len(b))

	consider := func(rec T) {
		id, ts := key(rec)
		if tombstones.Suppresses(id, ts) {
			return
		}
		current, seen := winners[id]
		if !seen {
			winners[id] = rec
			order = append(order, id)
			return
		}
		if newer(rec, current, key) {
			winners[id] = rec
		}
	}

	for _, rec := range a {
		consider(rec)
	}
	for _, rec := range b {
		consider(rec)
	}

	out := make([]T, 0, len(order))
	for _, id := range order {
		out = append(out, winners[id])
	}
	return out
}

// newer reports whether candidate should replace current.
// Equal stamps fall back to the canonical encoding so the winner does not depend on
// which side a record came from.
func newer[T any](candidate, current T, key func(T) (string, domain.Stamp)) bool {
	_, candidateTS := key(candidate)
	_, currentTS := key(current)
	if candidateTS != currentTS {
		return candidateTS > currentTS
	}
	return bytes.Compare(canonical(candidate), canonical(current)) > 0
}

func canonical(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
