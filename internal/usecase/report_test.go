package usecase

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"Volatile/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func reportEstimation() *models.Estimation {
	band := models.Band{Mean: []float64{1, 2}, Std: []float64{0.1, 0.1}, Lower: []float64{0.8, 1.8}, Upper: []float64{1.2, 2.2}}
	return &models.Estimation{
		RunID: "run-1",
		Dates: []time.Time{
			time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		},
		Stocks: []models.StockPrediction{
			{Rank: 1, Symbol: "AAA", Sector: "Technology", Industry: "Software", Currency: "USD", LastPrice: 101.456, Rate: models.RatingHighlyBelow, Growth: 0.0123, Score: 3.5},
			{Rank: 2, Symbol: "BBB", Sector: "Technology", Industry: "Software", Currency: "USD", LastPrice: 50, Rate: models.RatingHighlyBelow, Growth: -0.001, Score: 3.1},
			{Rank: 3, Symbol: "CCC", Sector: "Energy", Industry: "Oil & Gas", Currency: "EUR", LastPrice: 20.1, Rate: models.RatingAlong, Growth: 0, Score: 0.2},
		},
		Levels: map[string][]models.LevelEstimate{
			"market":   {{Level: "market", Name: "Market", Available: true, Trend: band}},
			"sector":   {{Level: "sector", Name: "Energy", Available: true, Trend: band}, {Level: "sector", Name: "Technology", Available: true, Trend: band}},
			"industry": {{Level: "industry", Name: "Oil & Gas", Available: true, Trend: band}},
		},
		Losses: map[string][]float64{
			"market":   {3, 2, 1},
			"sector":   {2, 1},
			"industry": {1},
			"stock":    {4, 3},
		},
	}
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "101.46 USD", FormatPrice(101.456, "USD"))
	assert.Equal(t, "50 EUR", FormatPrice(50, "EUR"))
	assert.Equal(t, "+1.23%", FormatGrowth(0.0123))
	assert.Equal(t, "-0.1%", FormatGrowth(-0.001))
	assert.Equal(t, "+0%", FormatGrowth(0))
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, reportEstimation()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	sep := strings.Repeat("-", 141)
	// separator, header, separator, then row and separator per stock plus
	// one extra separator between the two rating groups.
	require.Len(t, lines, 3+2*3+1)
	assert.Equal(t, sep, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "SYMBOL "))
	assert.Contains(t, lines[1], "LAST AVAILABLE PRICE")
	assert.True(t, strings.HasPrefix(lines[3], "AAA "))
	assert.Contains(t, lines[3], "101.46 USD")
	assert.Contains(t, lines[3], "HIGHLY BELOW TREND")
	assert.Contains(t, lines[3], "+1.23%")
	assert.True(t, strings.HasPrefix(lines[5], "BBB "))
	assert.Equal(t, sep, lines[6])
	assert.Equal(t, sep, lines[7])
	assert.True(t, strings.HasPrefix(lines[8], "CCC "))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, reportEstimation()))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, tableHeader, recs[0])
	assert.Equal(t, []string{"AAA", "Technology", "Software", "101.46 USD", "HIGHLY BELOW TREND", "0.0123"}, recs[1])
	assert.Equal(t, "Oil & Gas", recs[3][2])
}

func TestWriteLossesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLossesCSV(&buf, reportEstimation()))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, []string{"step", "market", "sector", "industry", "stock"}, recs[0])
	assert.Equal(t, []string{"0", "3", "2", "1", "4"}, recs[1])
	assert.Equal(t, []string{"2", "1", "", "", ""}, recs[3])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, reportEstimation()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Predictions", "market", "sector", "industry"}, f.GetSheetList())

	rows, err := f.GetRows("Predictions")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "RANK", rows[0][0])
	assert.Equal(t, "AAA", rows[1][1])

	sectors, err := f.GetRows("sector")
	require.NoError(t, err)
	require.Len(t, sectors, 3)
	assert.Equal(t, []string{"DATE", "Energy", "Technology"}, sectors[0])
	assert.Equal(t, "2024-01-02", sectors[1][0])
}
