package pricestore

import "sort"

// Snapshot is an immutable view of the price table at one point in time
// It satisfies costing.PriceSource
type Snapshot struct {
	prices map[string]float64
}

// NewSnapshot copies prices into a snapshot
func NewSnapshot(prices map[string]float64) Snapshot {
	return Snapshot{prices: copyPrices(prices)}
}

// Price returns the unit price of an ingredient
func (s Snapshot) Price(ingredient string) (float64, bool) {
	v, ok := s.prices[ingredient]
	return v, ok
}

// Keys returns the priced ingredient names, sorted
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.prices))
	for k := range s.prices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s Snapshot) Len() int { return len(s.prices) }

// Map returns a copy of the underlying table
func (s Snapshot) Map() map[string]float64 {
	return copyPrices(s.prices)
}

func copyPrices(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
