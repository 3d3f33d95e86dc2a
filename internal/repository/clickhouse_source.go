package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"Volatile/internal/domain/models"
	"Volatile/internal/services/currency"
	applogger "Volatile/pkg/logger"
	"Volatile/pkg/util"
)

type rowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// CHSeriesSource reads stored daily bars and profiles. Exchange rates are
// bars of the {CUR}{TARGET}=X pair symbols.
type CHSeriesSource struct {
	db     *sql.DB
	tables Tables
	rng    string
	now    func() time.Time
	l      *applogger.Logger
}

func NewCHSeriesSource(db *sql.DB, tables Tables, rng string, l *applogger.Logger) *CHSeriesSource {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHSeriesSource{db: db, tables: tables, rng: rng, now: time.Now, l: l}
}

func (s *CHSeriesSource) Series(ctx context.Context, symbols []string) ([]models.Series, error) {
	series, err := s.bars(ctx, symbols)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT symbol, sector, industry FROM %s FINAL WHERE has(?, symbol)`, s.tables.qualified(s.tables.Profiles))
	rows, err := s.db.QueryContext(ctx, q, symbols)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()
	profiles, err := scanProfiles(rows)
	if err != nil {
		return nil, err
	}

	out := make([]models.Series, 0, len(symbols))
	for _, sym := range symbols {
		bs, ok := series[sym]
		if !ok {
			s.l.Warn("Skipping symbol without stored bars", applogger.String("symbol", sym))
			continue
		}
		p := profiles[sym]
		bs.Sector, bs.Industry = p.Sector, p.Industry
		out = append(out, bs)
	}
	return out, nil
}

func (s *CHSeriesSource) ExchangeRates(ctx context.Context, currencies []string, target string) (map[string]models.Series, error) {
	pairs := make([]string, 0, len(currencies))
	byPair := make(map[string]string, len(currencies))
	for _, cur := range currencies {
		if cur == target {
			continue
		}
		p := currency.PairSymbol(cur, target)
		pairs = append(pairs, p)
		byPair[p] = cur
	}
	if len(pairs) == 0 {
		return map[string]models.Series{}, nil
	}

	series, err := s.bars(ctx, pairs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Series, len(pairs))
	for _, p := range pairs {
		bs, ok := series[p]
		if !ok {
			return nil, fmt.Errorf("no stored bars for exchange rate %s", p)
		}
		out[byPair[p]] = bs
	}
	return out, nil
}

func (s *CHSeriesSource) bars(ctx context.Context, symbols []string) (map[string]models.Series, error) {
	start := time.Now()
	from, err := util.RangeStart(s.now(), s.rng)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`
        SELECT symbol, date, close, volume, currency
        FROM %s FINAL
        WHERE has(?, symbol) AND date >= ?
        ORDER BY symbol, date`, s.tables.qualified(s.tables.Bars))
	rows, err := s.db.QueryContext(ctx, q, symbols, from)
	if err != nil {
		s.l.Error("ClickHouse bars query failed", applogger.Int("symbols", len(symbols)), applogger.Error(err))
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	out, err := scanBars(rows)
	if err != nil {
		return nil, err
	}
	s.l.Debug("ClickHouse bars loaded",
		applogger.Int("symbols", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func scanBars(rows rowScanner) (map[string]models.Series, error) {
	out := make(map[string]models.Series)
	for rows.Next() {
		var (
			sym, cur      string
			date          time.Time
			price, volume float64
		)
		if err := rows.Scan(&sym, &date, &price, &volume, &cur); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		s := out[sym]
		s.Symbol = sym
		s.Currency = cur
		s.Dates = append(s.Dates, date)
		s.Close = append(s.Close, price)
		s.Volume = append(s.Volume, volume)
		out[sym] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

type profile struct {
	Sector   string
	Industry string
}

func scanProfiles(rows rowScanner) (map[string]profile, error) {
	out := make(map[string]profile)
	for rows.Next() {
		var sym string
		var p profile
		if err := rows.Scan(&sym, &p.Sector, &p.Industry); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out[sym] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
