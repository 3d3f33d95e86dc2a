package models

import "time"

// Rating is the categorical position of a stock relative to its trend.
type Rating string

const (
	RatingHighlyBelow Rating = "HIGHLY BELOW TREND"
	RatingBelow       Rating = "BELOW TREND"
	RatingAlong       Rating = "ALONG TREND"
	RatingAbove       Rating = "ABOVE TREND"
	RatingHighlyAbove Rating = "HIGHLY ABOVE TREND"
)

// NotAvailable is how unavailable sectors and industries are displayed.
const NotAvailable = "Not Available"

// Band is a mean estimate with its ±2 standard deviation envelope.
// Lower is clipped at zero.
type Band struct {
	Mean  []float64 `json:"mean"`
	Std   []float64 `json:"std"`
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// StockPrediction is one row of the ranked prediction table.
type StockPrediction struct {
	Rank      int       `json:"rank"`
	Symbol    string    `json:"symbol"`
	Sector    string    `json:"sector"`
	Industry  string    `json:"industry"`
	Currency  string    `json:"currency"`
	LastPrice float64   `json:"last_price"`
	Score     float64   `json:"score"`
	Rate      Rating    `json:"rate"`
	Growth    float64   `json:"growth"`
	PredPrice float64   `json:"pred_price"`
	PredStd   float64   `json:"pred_std"`
	Price     []float64 `json:"price,omitempty"`
	Volume    []float64 `json:"volume,omitempty"`
	Trend     Band      `json:"trend"`
}

// LevelEstimate is the fitted trend of one market, sector or industry entity.
type LevelEstimate struct {
	Level     string    `json:"level"`
	Name      string    `json:"name"`
	Available bool      `json:"available"`
	Phi       []float64 `json:"phi"`
	Psi       float64   `json:"psi"`
	Trend     Band      `json:"trend"`
}

// Estimation is the full outcome of a run.
type Estimation struct {
	RunID           string                     `json:"run_id"`
	RunAt           time.Time                  `json:"run_at"`
	Dates           []time.Time                `json:"dates"`
	DefaultCurrency string                     `json:"default_currency"`
	Order           int                        `json:"order"`
	Horizon         int                        `json:"horizon"`
	RankMode        string                     `json:"rank_mode"`
	Stocks          []StockPrediction          `json:"stocks"` // ranked
	Levels          map[string][]LevelEstimate `json:"levels"` // market, sector, industry
	Losses          map[string][]float64       `json:"losses"`
}

// Find returns the ranked prediction of symbol.
func (e *Estimation) Find(symbol string) (StockPrediction, bool) {
	for _, s := range e.Stocks {
		if s.Symbol == symbol {
			return s, true
		}
	}
	return StockPrediction{}, false
}
