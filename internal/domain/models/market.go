package models

import "time"

// Series is a single symbol's daily history as delivered by a price source.
type Series struct {
	Symbol   string
	Currency string
	Sector   string
	Industry string
	Dates    []time.Time
	Close    []float64
	Volume   []float64
}

// MarketData is the aligned input of an estimation run.
// Price and Volume are indexed [stock][day] and share Dates.
type MarketData struct {
	Tickers         []string
	Dates           []time.Time
	Price           [][]float64
	Volume          [][]float64
	Currencies      []string
	ExchangeRates   map[string][]float64 // currency -> rate into DefaultCurrency, per day
	DefaultCurrency string
	Sectors         map[string]string
	Industries      map[string]string
}

// NumStocks returns the number of aligned symbols.
func (d *MarketData) NumStocks() int { return len(d.Tickers) }

// NumDays returns the length of the aligned series.
func (d *MarketData) NumDays() int { return len(d.Dates) }
