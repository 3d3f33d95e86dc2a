// Package currency moves log-price series between a symbol's own currency
// and the run's default currency.
package currency

import (
	"fmt"
	"math"
	"sort"
)

// Direction of a conversion.
type Direction int

const (
	// Forward converts into the default currency.
	Forward Direction = iota
	// Backward converts out of the default currency.
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Convert returns logp shifted by the log of the daily exchange rates,
// where rates[t] is the price of one unit of the symbol's currency in the
// default currency. Forward and Backward are exact inverses.
func Convert(logp, rates []float64, dir Direction) ([]float64, error) {
	if len(logp) != len(rates) {
		return nil, fmt.Errorf("log prices have %d days, rates have %d", len(logp), len(rates))
	}
	var sign float64
	switch dir {
	case Forward:
		sign = 1
	case Backward:
		sign = -1
	default:
		return nil, fmt.Errorf("unknown conversion %s: use forward or backward", dir)
	}
	out := make([]float64, len(logp))
	for t, r := range rates {
		if !(r > 0) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("exchange rate %v on day %d is not a positive number", r, t)
		}
		out[t] = logp[t] + sign*math.Log(r)
	}
	return out, nil
}

// ConvertRows applies Convert in place to every row whose currency differs
// from def. rates holds one series per foreign currency.
func ConvertRows(logp [][]float64, currencies []string, def string, rates map[string][]float64, dir Direction) error {
	if len(logp) != len(currencies) {
		return fmt.Errorf("%d series but %d currencies", len(logp), len(currencies))
	}
	for i, cur := range currencies {
		if cur == def {
			continue
		}
		r, ok := rates[cur]
		if !ok {
			return fmt.Errorf("no exchange rate for %s into %s", cur, def)
		}
		row, err := Convert(logp[i], r, dir)
		if err != nil {
			return fmt.Errorf("convert %s series %d: %w", cur, i, err)
		}
		copy(logp[i], row)
	}
	return nil
}

// Default returns the most frequent currency, preferring the
// alphabetically first one among ties.
func Default(currencies []string) string {
	counts := make(map[string]int)
	for _, c := range currencies {
		counts[c]++
	}
	names := make([]string, 0, len(counts))
	for c := range counts {
		names = append(names, c)
	}
	sort.Strings(names)

	best := ""
	for _, c := range names {
		if best == "" || counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// PairSymbol is the quote symbol of the exchange rate from cur into def.
func PairSymbol(cur, def string) string { return cur + def + "=X" }
