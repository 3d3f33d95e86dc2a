package repository

import "fmt"

// Tables names the ClickHouse tables used by the price source and the
// prediction store.
type Tables struct {
	Database    string
	Bars        string
	Profiles    string
	Predictions string
}

func (t Tables) qualified(name string) string {
	if t.Database == "" {
		return name
	}
	return t.Database + "." + name
}

// Schema returns idempotent DDL for all tables.
func (t Tables) Schema() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    symbol   LowCardinality(String),
    date     Date,
    close    Float64,
    volume   Float64,
    currency LowCardinality(String)
) ENGINE = ReplacingMergeTree
ORDER BY (symbol, date)`, t.qualified(t.Bars)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    symbol   String,
    sector   String,
    industry String
) ENGINE = ReplacingMergeTree
ORDER BY symbol`, t.qualified(t.Profiles)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    run_id     String,
    run_at     DateTime64(3, 'UTC'),
    rank_mode  LowCardinality(String),
    rank       UInt32,
    symbol     String,
    sector     String,
    industry   String,
    currency   LowCardinality(String),
    last_price Float64,
    score      Float64,
    rate       LowCardinality(String),
    growth     Float64,
    pred_price Float64,
    pred_std   Float64
) ENGINE = MergeTree
PARTITION BY toYYYYMM(run_at)
ORDER BY (run_at, rank)`, t.qualified(t.Predictions)),
	}
}
