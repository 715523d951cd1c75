package resolver

import (
	"fmt"
	"sort"

	"github.com/ginjaninja78/card-fee-reconciler/internal/types"
)

// Overlap is a pair of rate records for the same key whose validity windows
// intersect. Sales inside the intersection resolve to First.
type Overlap struct {
	Key    types.RateKey
	First  types.RateRecord
	Second types.RateRecord

	// From and To bound the intersection.
	From types.NullDate
	To   types.NullDate
}

// String describes the overlap for logs.
func (o Overlap) String() string {
	return fmt.Sprintf("%s/%dx: rows %d and %d overlap from %s to %s (row %d wins)",
		o.Key.InstrumentID, o.Key.Installments,
		o.First.Row, o.Second.Row,
		o.From, o.To, o.First.Row)
}

// FindOverlaps reports every pair of same-key records with intersecting
// windows. Pairs are ordered by the first record's position in the schedule,
// then the second's. Records with missing bounds are ignored.
func FindOverlaps(rates []types.RateRecord) []Overlap {
	type positioned struct {
		pos  int
		rate types.RateRecord
	}

	buckets := make(map[types.RateKey][]positioned)
	var keys []types.RateKey
	for pos, r := range rates {
		if !r.InstallmentCount.Valid || !r.ValidFrom.Valid || !r.ValidTo.Valid {
			continue
		}
		if r.ValidFrom.Time.After(r.ValidTo.Time) {
			continue
		}
		k := r.Key()
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], positioned{pos: pos, rate: r})
	}

	type found struct {
		a, b int
		o    Overlap
	}
	var all []found

	for _, k := range keys {
		bucket := buckets[k]
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				a, b := bucket[i].rate, bucket[j].rate
				if a.ValidFrom.Time.After(b.ValidTo.Time) || b.ValidFrom.Time.After(a.ValidTo.Time) {
					continue
				}

				from, to := a.ValidFrom, a.ValidTo
				if b.ValidFrom.Time.After(from.Time) {
					from = b.ValidFrom
				}
				if b.ValidTo.Time.Before(to.Time) {
					to = b.ValidTo
				}

				all = append(all, found{
					a: bucket[i].pos,
					b: bucket[j].pos,
					o: Overlap{Key: k, First: a, Second: b, From: from, To: to},
				})
			}
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].a != all[j].a {
			return all[i].a < all[j].a
		}
		return all[i].b < all[j].b
	})

	overlaps := make([]Overlap, len(all))
	for i, f := range all {
		overlaps[i] = f.o
	}
	return overlaps
}
