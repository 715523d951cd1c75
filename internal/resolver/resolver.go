// Package resolver finds the fee rate in force for a sale.
//
// A rate record applies to a transaction when both share the composite key
// (instrument identifier, installment count) and the sale date falls inside
// the record's inclusive [valid_from, valid_to] window. When several records
// qualify, the one listed first in the fee schedule wins.
//
// Two strategies are provided and always agree:
//   - indexed: rates bucketed by key, each bucket scanned in source order
//   - scan:    every rate scanned in source order for every transaction
package resolver

import (
	"fmt"

	"github.com/ginjaninja78/card-fee-reconciler/internal/config"
	"github.com/ginjaninja78/card-fee-reconciler/internal/types"
)

// Resolver is the interface all resolution strategies implement.
// Implementations are safe for concurrent use once built.
type Resolver interface {
	// Resolve returns the applicable rate record, or false when the
	// transaction is unresolved.
	Resolve(tx types.TransactionRecord) (types.RateRecord, bool)

	// Name returns the strategy name.
	Name() string
}

// New builds the named strategy over rates.
func New(strategy string, rates []types.RateRecord) (Resolver, error) {
	switch strategy {
	case config.StrategyIndexed, "":
		return NewIndexed(rates), nil
	case config.StrategyScan:
		return NewScan(rates), nil
	default:
		return nil, fmt.Errorf("unknown resolver strategy %q", strategy)
	}
}

// applies checks the composite key and the validity window.
func applies(tx types.TransactionRecord, rate types.RateRecord) bool {
	if !tx.InstallmentCount.Valid || !rate.InstallmentCount.Valid {
		return false
	}
	if tx.InstrumentID != rate.InstrumentID || tx.InstallmentCount.Int != rate.InstallmentCount.Int {
		return false
	}
	return rate.Covers(tx.SaleDate)
}

// txKey returns the key a transaction is looked up under.
func txKey(tx types.TransactionRecord) types.RateKey {
	return types.RateKey{InstrumentID: tx.InstrumentID, Installments: tx.InstallmentCount.Int}
}

// =============================================================================
// INDEXED STRATEGY
// =============================================================================

// Indexed buckets rate records by key. Per-transaction cost is the size of
// the matching bucket.
type Indexed struct {
	buckets map[types.RateKey][]types.RateRecord
}

// NewIndexed builds the index. Bucket order follows the rate table's row
// order, which keeps first-match-wins intact.
func NewIndexed(rates []types.RateRecord) *Indexed {
	idx := &Indexed{
		buckets: make(map[types.RateKey][]types.RateRecord),
	}
	for _, r := range rates {
		if !r.InstallmentCount.Valid || !r.ValidFrom.Valid || !r.ValidTo.Valid {
			continue
		}
		idx.buckets[r.Key()] = append(idx.buckets[r.Key()], r)
	}
	return idx
}

// Name implements Resolver.
func (i *Indexed) Name() string {
	return config.StrategyIndexed
}

// Resolve implements Resolver.
func (i *Indexed) Resolve(tx types.TransactionRecord) (types.RateRecord, bool) {
	if !tx.InstallmentCount.Valid || !tx.SaleDate.Valid {
		return types.RateRecord{}, false
	}
	for _, r := range i.buckets[txKey(tx)] {
		if r.Covers(tx.SaleDate) {
			return r, true
		}
	}
	return types.RateRecord{}, false
}

// Buckets returns the number of distinct keys in the index.
func (i *Indexed) Buckets() int {
	return len(i.buckets)
}

// =============================================================================
// SCAN STRATEGY
// =============================================================================

// Scan checks every rate record for every transaction. It is the reference
// behavior the indexed strategy is tested against.
type Scan struct {
	rates []types.RateRecord
}

// NewScan wraps rates without indexing them.
func NewScan(rates []types.RateRecord) *Scan {
	return &Scan{rates: rates}
}

// Name implements Resolver.
func (s *Scan) Name() string {
	return config.StrategyScan
}

// Resolve implements Resolver.
func (s *Scan) Resolve(tx types.TransactionRecord) (types.RateRecord, bool) {
	for _, r := range s.rates {
		if applies(tx, r) {
			return r, true
		}
	}
	return types.RateRecord{}, false
}
