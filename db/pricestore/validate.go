package pricestore

import (
	"encoding/json"
	"math"
	"sort"
)

// ReservedKey is the metadata header kept at the top of the price file
// It is never treated as an ingredient
const ReservedKey = "ingredient_master"

// DefaultHeader is written when the file carried no header of its own
const DefaultHeader = "JPY per gram (g) or per piece"

const (
	reasonNotNumber = "not a number"
	reasonNotFinite = "not a finite number"
	reasonNegative  = "negative price"
)

// Validate checks a candidate mapping. It returns the accepted prices only
// when there are no violations; a single bad entry rejects the whole
// candidate. The reserved key is ignored
func Validate(candidate map[string]any) (map[string]float64, []Violation) {
	accepted := make(map[string]float64, len(candidate))
	var violations []Violation

	for key, raw := range candidate {
		if key == ReservedKey {
			continue
		}
		price, reason := toPrice(raw)
		if reason != "" {
			violations = append(violations, Violation{Key: key, Value: raw, Reason: reason})
			continue
		}
		accepted[key] = price
	}

	if len(violations) > 0 {
		sort.Slice(violations, func(i, j int) bool { return violations[i].Key < violations[j].Key })
		return nil, violations
	}
	return accepted, nil
}

// toPrice converts a decoded value to a price. An empty reason means valid
func toPrice(v any) (float64, string) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			if math.IsInf(x, 0) {
				return 0, reasonNotFinite
			}
			return 0, reasonNotNumber
		}
		f = x
	default:
		return 0, reasonNotNumber
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, reasonNotFinite
	}
	if f < 0 {
		return 0, reasonNegative
	}
	return f, ""
}
